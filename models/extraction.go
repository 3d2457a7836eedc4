package models

import "time"

// ComponentType identifies which normalizer produced an extraction.
type ComponentType string

const (
	ComponentCPU         ComponentType = "cpu"
	ComponentMotherboard ComponentType = "motherboard"
	ComponentRAM         ComponentType = "ram"
)

// Valid reports whether ct is one of the known component types.
func (ct ComponentType) Valid() bool {
	switch ct {
	case ComponentCPU, ComponentMotherboard, ComponentRAM:
		return true
	}
	return false
}

// Source tags where an extracted attribute came from. The overall result
// carries the source of its deciding attribute (socket for CPU and
// motherboard, memory type for RAM).
type Source string

const (
	SourceSpecs        Source = "specs"
	SourceTitle        Source = "title"
	SourceInferred     Source = "inferred"
	SourceInferredDual Source = "inferred_dual"
	SourceNone         Source = "none"
	SourceAdminManual  Source = "admin_manual"
)

// Confidence levels by provenance. The cascade tries specs first, then
// the title, then inference from an already-extracted attribute.
const (
	ConfidenceSpecs    = 0.95
	ConfidenceTitle    = 0.90
	ConfidenceInferred = 0.80
	ConfidenceAdmin    = 0.95
)

// Canonical attribute keys produced by the normalizers.
const (
	AttrCPUSocket        = "cpu_socket"
	AttrCPUBrand         = "cpu_brand"
	AttrCPUGeneration    = "cpu_generation"
	AttrCPUTDPWatts      = "cpu_tdp_watts"
	AttrCanonicalCPUName = "canonical_cpu_name"

	AttrMoboChipset       = "mobo_chipset"
	AttrMoboSocket        = "mobo_socket"
	AttrMoboFormFactor    = "mobo_form_factor"
	AttrCanonicalMoboName = "canonical_mobo_name"

	AttrMemoryType          = "memory_type"
	AttrMemorySlots         = "memory_slots"
	AttrMemoryMaxSpeedMHz   = "memory_max_speed_mhz"
	AttrMemoryMaxCapacityGB = "memory_max_capacity_gb"
	AttrMemoryCapacityGB    = "memory_capacity_gb"
	AttrMemoryModules       = "memory_modules"
	AttrECC                 = "ecc"
)

// ExtractionResult is the output of a component normalizer. Attributes
// map canonical field names to typed values; Confidence is bounded to
// [0,1] and reflects the deciding attribute's provenance.
type ExtractionResult struct {
	ComponentType ComponentType  `json:"component_type"`
	Attributes    map[string]any `json:"attributes"`
	Confidence    float64        `json:"confidence"`
	Source        Source         `json:"source"`
	Warnings      []string       `json:"warnings,omitempty"`
}

// CompatibilityRecord is the persisted form of an ExtractionResult,
// keyed one-to-one by product ID.
type CompatibilityRecord struct {
	ProductID     int64
	ComponentType ComponentType

	CPUSocket     string
	CPUBrand      string
	CPUGeneration string
	CPUTDPWatts   int
	CanonicalName string

	MoboChipset    string
	MoboSocket     string
	MoboFormFactor string

	MemoryType          string
	MemorySlots         int
	MemoryMaxSpeedMHz   int
	MemoryMaxCapacityGB int
	MemoryCapacityGB    int
	MemoryModules       int
	ECC                 *bool

	Confidence float64
	Source     Source
	Warnings   []string
	UpdatedAt  time.Time
}

// Socket returns the deciding socket field for the record's type.
func (r *CompatibilityRecord) Socket() string {
	if r.ComponentType == ComponentCPU {
		return r.CPUSocket
	}
	return r.MoboSocket
}

// RecordFromExtraction maps a fresh extraction onto a persisted record.
func RecordFromExtraction(productID int64, res *ExtractionResult) *CompatibilityRecord {
	rec := &CompatibilityRecord{
		ProductID:     productID,
		ComponentType: res.ComponentType,
		Confidence:    res.Confidence,
		Source:        res.Source,
		Warnings:      append([]string(nil), res.Warnings...),
		UpdatedAt:     time.Now().UTC(),
	}
	for key, val := range res.Attributes {
		rec.ApplyAttribute(key, val)
	}
	return rec
}

// ApplyAttribute sets one canonical attribute on the record. Unknown
// keys are ignored.
func (r *CompatibilityRecord) ApplyAttribute(key string, val any) {
	switch key {
	case AttrCPUSocket:
		r.CPUSocket, _ = val.(string)
	case AttrCPUBrand:
		r.CPUBrand, _ = val.(string)
	case AttrCPUGeneration:
		r.CPUGeneration, _ = val.(string)
	case AttrCPUTDPWatts:
		r.CPUTDPWatts = asInt(val)
	case AttrCanonicalCPUName, AttrCanonicalMoboName:
		r.CanonicalName, _ = val.(string)
	case AttrMoboChipset:
		r.MoboChipset, _ = val.(string)
	case AttrMoboSocket:
		r.MoboSocket, _ = val.(string)
	case AttrMoboFormFactor:
		r.MoboFormFactor, _ = val.(string)
	case AttrMemoryType:
		r.MemoryType, _ = val.(string)
	case AttrMemorySlots:
		r.MemorySlots = asInt(val)
	case AttrMemoryMaxSpeedMHz:
		r.MemoryMaxSpeedMHz = asInt(val)
	case AttrMemoryMaxCapacityGB:
		r.MemoryMaxCapacityGB = asInt(val)
	case AttrMemoryCapacityGB:
		r.MemoryCapacityGB = asInt(val)
	case AttrMemoryModules:
		r.MemoryModules = asInt(val)
	case AttrECC:
		if b, ok := val.(bool); ok {
			ecc := b
			r.ECC = &ecc
		}
	}
}

func asInt(val any) int {
	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

package compat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/buildparts/hwcompat/models"
	"github.com/buildparts/hwcompat/store"
)

// overridableFields restricts admin edits to the attributes meaningful
// for each component type.
var overridableFields = map[models.ComponentType]map[string]bool{
	models.ComponentCPU: {
		models.AttrCPUSocket:        true,
		models.AttrCPUBrand:         true,
		models.AttrCPUGeneration:    true,
		models.AttrCPUTDPWatts:      true,
		models.AttrCanonicalCPUName: true,
	},
	models.ComponentMotherboard: {
		models.AttrMoboChipset:         true,
		models.AttrMoboSocket:          true,
		models.AttrMoboFormFactor:      true,
		models.AttrMemoryType:          true,
		models.AttrMemorySlots:         true,
		models.AttrMemoryMaxSpeedMHz:   true,
		models.AttrMemoryMaxCapacityGB: true,
		models.AttrCanonicalMoboName:   true,
	},
	models.ComponentRAM: {
		models.AttrMemoryType:        true,
		models.AttrMemoryCapacityGB:  true,
		models.AttrMemoryModules:     true,
		models.AttrMemoryMaxSpeedMHz: true,
		models.AttrECC:               true,
	},
}

// AdminOverride applies a manual correction to a product's record. Only
// fields valid for the component type are accepted; the stored record
// is stamped with admin provenance and confidence 0.95.
func (s *Service) AdminOverride(ctx context.Context, productID int64, ct models.ComponentType, fields map[string]any) (*models.CompatibilityRecord, error) {
	if !ct.Valid() {
		return nil, fmt.Errorf("invalid component type %q", ct)
	}
	if len(fields) == 0 {
		return nil, errors.New("no fields to override")
	}
	allowed := overridableFields[ct]
	for key := range fields {
		if !allowed[key] {
			return nil, fmt.Errorf("field %q cannot be overridden for component type %q", key, ct)
		}
	}

	rec, err := s.store.Get(ctx, productID)
	if errors.Is(err, store.ErrNotFound) {
		rec = &models.CompatibilityRecord{ProductID: productID, ComponentType: ct}
	} else if err != nil {
		return nil, fmt.Errorf("load record: %w", err)
	}
	if rec.ComponentType != ct {
		return nil, fmt.Errorf("product %d is a %s, not a %s", productID, rec.ComponentType, ct)
	}

	for key, val := range fields {
		rec.ApplyAttribute(key, val)
	}
	rec.Confidence = models.ConfidenceAdmin
	rec.Source = models.SourceAdminManual
	rec.UpdatedAt = time.Now().UTC()

	if err := s.store.Upsert(ctx, rec); err != nil {
		return nil, fmt.Errorf("store override: %w", err)
	}
	s.cache.Remove(productID)
	return rec, nil
}

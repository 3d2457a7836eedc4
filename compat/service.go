// Package compat answers hardware-compatibility queries over the
// extracted attribute records: which motherboards fit a CPU, and which
// RAM fits a motherboard.
package compat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/buildparts/hwcompat/models"
	"github.com/buildparts/hwcompat/store"
)

// Mode selects how uncertain records are treated.
type Mode string

const (
	// ModeStrict includes only records whose deciding field was
	// extracted with confidence at or above StrictThreshold.
	ModeStrict Mode = "strict"
	// ModeLenient additionally reports low-confidence and unknown
	// records in the Unknown list instead of excluding them.
	ModeLenient Mode = "lenient"
)

// StrictThreshold is the minimum confidence for a record's deciding
// field to count as compatible in strict mode.
const StrictThreshold = 0.70

const (
	cacheSize = 4096
	cacheTTL  = 5 * time.Minute
)

// ParseMode validates a mode string, defaulting empty input to strict.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeStrict, "":
		return ModeStrict, nil
	case ModeLenient:
		return ModeLenient, nil
	}
	return "", fmt.Errorf("unknown compatibility mode %q", s)
}

// CPUSummary describes the query's input CPU in a result.
type CPUSummary struct {
	ID         int64  `json:"id"`
	Socket     string `json:"socket,omitempty"`
	Brand      string `json:"brand,omitempty"`
	Generation string `json:"generation,omitempty"`
}

// MotherboardSummary describes the query's input motherboard in a result.
type MotherboardSummary struct {
	ID         int64  `json:"id"`
	Socket     string `json:"socket,omitempty"`
	Chipset    string `json:"chipset,omitempty"`
	MemoryType string `json:"memory_type,omitempty"`
}

// MotherboardsResult is the answer to a CPU→motherboard query.
type MotherboardsResult struct {
	CPU        CPUSummary `json:"cpu"`
	Mode       Mode       `json:"mode"`
	Compatible []int64    `json:"compatible"`
	Unknown    []int64    `json:"unknown,omitempty"`
	Warning    string     `json:"warning,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// RAMResult is the answer to a motherboard→RAM query.
type RAMResult struct {
	Motherboard MotherboardSummary `json:"motherboard"`
	Mode        Mode               `json:"mode"`
	Compatible  []int64            `json:"compatible"`
	Unknown     []int64            `json:"unknown,omitempty"`
	Warning     string             `json:"warning,omitempty"`
	Error       string             `json:"error,omitempty"`
}

// Service resolves compatibility queries against a CompatibilityStore.
// Input records are read through a small TTL cache; candidate scans
// always go to the store so fresh crawl results show up immediately.
type Service struct {
	store  store.CompatibilityStore
	cache  *expirable.LRU[int64, *models.CompatibilityRecord]
	logger *slog.Logger
}

// NewService wraps a compatibility store.
func NewService(cs store.CompatibilityStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  cs,
		cache:  expirable.NewLRU[int64, *models.CompatibilityRecord](cacheSize, nil, cacheTTL),
		logger: logger,
	}
}

// Invalidate drops a product's cached record, e.g. after an ingestion
// upsert in the same process.
func (s *Service) Invalidate(productID int64) {
	s.cache.Remove(productID)
}

func (s *Service) record(ctx context.Context, productID int64) (*models.CompatibilityRecord, error) {
	if rec, ok := s.cache.Get(productID); ok {
		return rec, nil
	}
	rec, err := s.store.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	s.cache.Add(productID, rec)
	return rec, nil
}

// GetCompatibleMotherboards lists motherboard product IDs compatible
// with the given CPU. A CPU with no extractable socket returns the full
// motherboard set with a warning in both modes.
func (s *Service) GetCompatibleMotherboards(ctx context.Context, cpuID int64, mode Mode) (*MotherboardsResult, error) {
	res := &MotherboardsResult{CPU: CPUSummary{ID: cpuID}, Mode: mode, Compatible: []int64{}}

	rec, err := s.record(ctx, cpuID)
	if errors.Is(err, store.ErrNotFound) {
		res.Error = "no extraction record for cpu"
		return res, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cpu record: %w", err)
	}
	if rec.ComponentType != models.ComponentCPU {
		res.Error = fmt.Sprintf("product %d is a %s, not a cpu", cpuID, rec.ComponentType)
		return res, nil
	}
	res.CPU.Socket = rec.CPUSocket
	res.CPU.Brand = rec.CPUBrand
	res.CPU.Generation = rec.CPUGeneration

	if rec.CPUSocket == "" {
		// Business policy: an unknown CPU socket degrades to the full
		// motherboard set rather than a dead-end empty result.
		boards, err := s.store.ByComponentType(ctx, models.ComponentMotherboard)
		if err != nil {
			return nil, fmt.Errorf("list motherboards: %w", err)
		}
		res.Warning = "cpu socket unknown; returning all motherboards"
		for _, b := range boards {
			res.Compatible = append(res.Compatible, b.ProductID)
		}
		sortIDs(res.Compatible)
		s.logger.Warn("cpu socket unknown, degraded to full set",
			slog.Int64("cpu_id", cpuID), slog.Int("motherboards", len(res.Compatible)))
		return res, nil
	}

	// Strict mode only needs exact socket matches; lenient also scans
	// for below-threshold and unknown-socket boards.
	if mode == ModeStrict {
		boards, err := s.store.BySocket(ctx, models.ComponentMotherboard, rec.CPUSocket)
		if err != nil {
			return nil, fmt.Errorf("list motherboards: %w", err)
		}
		for _, b := range boards {
			if b.Confidence >= StrictThreshold {
				res.Compatible = append(res.Compatible, b.ProductID)
			}
		}
		sortIDs(res.Compatible)
		return res, nil
	}

	boards, err := s.store.ByComponentType(ctx, models.ComponentMotherboard)
	if err != nil {
		return nil, fmt.Errorf("list motherboards: %w", err)
	}
	for _, b := range boards {
		switch {
		case b.MoboSocket == rec.CPUSocket && b.Confidence >= StrictThreshold:
			res.Compatible = append(res.Compatible, b.ProductID)
		case b.MoboSocket == "" || b.Confidence < StrictThreshold:
			res.Unknown = append(res.Unknown, b.ProductID)
		}
	}
	sortIDs(res.Compatible)
	sortIDs(res.Unknown)
	return res, nil
}

// GetCompatibleRAM lists RAM product IDs compatible with the given
// motherboard. Unlike the CPU path, an unknown motherboard memory type
// is an explicit error with no default-all fallback.
func (s *Service) GetCompatibleRAM(ctx context.Context, moboID int64, mode Mode) (*RAMResult, error) {
	res := &RAMResult{Motherboard: MotherboardSummary{ID: moboID}, Mode: mode, Compatible: []int64{}}

	rec, err := s.record(ctx, moboID)
	if errors.Is(err, store.ErrNotFound) {
		res.Error = "no extraction record for motherboard"
		return res, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load motherboard record: %w", err)
	}
	if rec.ComponentType != models.ComponentMotherboard {
		res.Error = fmt.Sprintf("product %d is a %s, not a motherboard", moboID, rec.ComponentType)
		return res, nil
	}
	res.Motherboard.Socket = rec.MoboSocket
	res.Motherboard.Chipset = rec.MoboChipset
	res.Motherboard.MemoryType = rec.MemoryType

	if rec.MemoryType == "" {
		res.Error = "motherboard memory type unknown"
		return res, nil
	}

	if mode == ModeStrict {
		modules, err := s.store.ByMemoryType(ctx, models.ComponentRAM, rec.MemoryType)
		if err != nil {
			return nil, fmt.Errorf("list ram: %w", err)
		}
		for _, m := range modules {
			if m.Confidence >= StrictThreshold {
				res.Compatible = append(res.Compatible, m.ProductID)
			}
		}
		sortIDs(res.Compatible)
		return res, nil
	}

	modules, err := s.store.ByComponentType(ctx, models.ComponentRAM)
	if err != nil {
		return nil, fmt.Errorf("list ram: %w", err)
	}
	for _, m := range modules {
		switch {
		case m.MemoryType == rec.MemoryType && m.Confidence >= StrictThreshold:
			res.Compatible = append(res.Compatible, m.ProductID)
		case m.MemoryType == "" || m.Confidence < StrictThreshold:
			res.Unknown = append(res.Unknown, m.ProductID)
		}
	}
	sortIDs(res.Compatible)
	sortIDs(res.Unknown)
	return res, nil
}

func sortIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

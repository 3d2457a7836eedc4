package store

import (
	"context"
	"sync"

	"github.com/buildparts/hwcompat/models"
)

// Memory is an in-memory implementation of both repository interfaces,
// used in tests and dry runs where nothing should touch disk.
type Memory struct {
	mu       sync.RWMutex
	nextID   int64
	products map[string]*models.Product // by slug
	byURL    map[string]int64
	prices   map[int64]map[string]*models.PriceEntry
	records  map[int64]*models.CompatibilityRecord
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		nextID:   1,
		products: make(map[string]*models.Product),
		byURL:    make(map[string]int64),
		prices:   make(map[int64]map[string]*models.PriceEntry),
		records:  make(map[int64]*models.CompatibilityRecord),
	}
}

// UpsertProduct implements ProductRepository.
func (m *Memory) UpsertProduct(_ context.Context, p *models.Product) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.products[p.Slug]; ok {
		existing.Name = p.Name
		existing.Category = p.Category
		existing.Brand = p.Brand
		existing.ImageURL = p.ImageURL
		p.ID = existing.ID
		return existing.ID, nil
	}
	if id, ok := m.byURL[p.SourceURL]; ok && p.SourceURL != "" {
		// A URL match updates the stored fields too; the slug key stays as
		// first seen, same as the sqlite implementation.
		for _, existing := range m.products {
			if existing.ID == id {
				existing.Name = p.Name
				existing.Category = p.Category
				existing.Brand = p.Brand
				existing.ImageURL = p.ImageURL
				break
			}
		}
		p.ID = id
		return id, nil
	}

	stored := *p
	stored.ID = m.nextID
	m.nextID++
	m.products[p.Slug] = &stored
	p.ID = stored.ID
	return stored.ID, nil
}

// UpsertPrice implements ProductRepository.
func (m *Memory) UpsertPrice(_ context.Context, productID int64, entry *models.PriceEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.prices[productID] == nil {
		m.prices[productID] = make(map[string]*models.PriceEntry)
	}
	stored := *entry
	m.prices[productID][entry.Retailer] = &stored
	if entry.ProductURL != "" {
		m.byURL[entry.ProductURL] = productID
	}
	return nil
}

// Upsert implements CompatibilityStore.
func (m *Memory) Upsert(_ context.Context, rec *models.CompatibilityRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *rec
	stored.Warnings = append([]string(nil), rec.Warnings...)
	m.records[rec.ProductID] = &stored
	return nil
}

// Get implements CompatibilityStore.
func (m *Memory) Get(_ context.Context, productID int64) (*models.CompatibilityRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[productID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *rec
	return &copied, nil
}

// ByComponentType implements CompatibilityStore.
func (m *Memory) ByComponentType(_ context.Context, ct models.ComponentType) ([]*models.CompatibilityRecord, error) {
	return m.filter(func(rec *models.CompatibilityRecord) bool {
		return rec.ComponentType == ct
	}), nil
}

// BySocket implements CompatibilityStore.
func (m *Memory) BySocket(_ context.Context, ct models.ComponentType, socket string) ([]*models.CompatibilityRecord, error) {
	return m.filter(func(rec *models.CompatibilityRecord) bool {
		return rec.ComponentType == ct && rec.Socket() == socket
	}), nil
}

// ByMemoryType implements CompatibilityStore.
func (m *Memory) ByMemoryType(_ context.Context, ct models.ComponentType, memoryType string) ([]*models.CompatibilityRecord, error) {
	return m.filter(func(rec *models.CompatibilityRecord) bool {
		return rec.ComponentType == ct && rec.MemoryType == memoryType
	}), nil
}

func (m *Memory) filter(keep func(*models.CompatibilityRecord) bool) []*models.CompatibilityRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.CompatibilityRecord
	for _, rec := range m.records {
		if keep(rec) {
			copied := *rec
			out = append(out, &copied)
		}
	}
	return out
}

// Package store persists products, per-retailer prices, and the
// compatibility records produced by extraction. Callers only see the
// narrow repository interfaces; the default implementation is SQLite.
package store

import (
	"context"
	"errors"

	"github.com/buildparts/hwcompat/models"
)

// ErrNotFound is returned when a keyed lookup has no row.
var ErrNotFound = errors.New("store: not found")

// ProductRepository upserts catalog products and their price rows.
// Products match by slug first, then by a previously seen product URL.
type ProductRepository interface {
	UpsertProduct(ctx context.Context, p *models.Product) (int64, error)
	UpsertPrice(ctx context.Context, productID int64, entry *models.PriceEntry) error
}

// CompatibilityStore holds one record per product, upserted on every
// successful extraction. Same-product races resolve last-write-wins.
type CompatibilityStore interface {
	Upsert(ctx context.Context, rec *models.CompatibilityRecord) error
	Get(ctx context.Context, productID int64) (*models.CompatibilityRecord, error)
	ByComponentType(ctx context.Context, ct models.ComponentType) ([]*models.CompatibilityRecord, error)
	BySocket(ctx context.Context, ct models.ComponentType, socket string) ([]*models.CompatibilityRecord, error)
	ByMemoryType(ctx context.Context, ct models.ComponentType, memoryType string) ([]*models.CompatibilityRecord, error)
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the catalog entity an item upserts into. Matching on
// ingestion happens by slug or product URL.
type Product struct {
	ID       int64
	Name     string
	Slug     string
	Category string
	Brand    string
	ImageURL string
	// SourceURL is the retailer listing URL used for matching only;
	// persisted per retailer on the price row.
	SourceURL string
}

// PriceEntry is one retailer's observed price for a product.
type PriceEntry struct {
	Retailer   string
	Price      decimal.Decimal
	ProductURL string
	InStock    bool
	SeenAt     time.Time
}

// Package models defines the data structures shared across the crawler,
// pipeline, normalizers, and compatibility service.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ScrapedItem is one retailer listing observation emitted by a spider.
type ScrapedItem struct {
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	ProductURL string          `json:"product_url"`
	Retailer   string          `json:"retailer"`
	Category   string          `json:"category"`
	ImageURL   string          `json:"image_url,omitempty"`
	Brand      string          `json:"brand,omitempty"`
	// InStock must be set explicitly by every spider; the pipeline drops
	// items not marked purchasable.
	InStock   bool           `json:"in_stock"`
	Specs     map[string]any `json:"specs,omitempty"`
	ScrapedAt time.Time      `json:"scraped_at"`
}

// CrawlResult holds the overall result of one retailer crawl run.
type CrawlResult struct {
	RunID        string
	Retailer     string
	Category     string
	StartTime    time.Time
	EndTime      time.Time
	ItemCount    int
	SavedCount   int
	FailedCount  int
	DroppedCount int
	PageCount    int
	RequestCount int
	ErrorCount   int
	RetryCount   int
	FailedURLs   []string
	ErrorsByType map[string]int
}

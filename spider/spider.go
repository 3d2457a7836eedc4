// Package spider implements the retailer crawling framework: the spider
// contract, the per-run crawl engine, fetchers (plain HTTP and headless
// rendering), politeness, and shared parsing helpers.
package spider

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/buildparts/hwcompat/models"
)

// Page is one fetched listing page handed to a spider for parsing.
type Page struct {
	URL      string
	Number   int // 1-based page number within the category
	Category string
	Doc      *goquery.Document
}

// ParseOutput is what a spider extracts from one listing page.
type ParseOutput struct {
	Items []*models.ScrapedItem
	// HasNext reports whether the page advertises a further page.
	HasNext bool
	// NextURL overrides the engine's computed next listing URL when the
	// site exposes an explicit next link. Ignored for JS retailers,
	// whose pagination is replayed as a click chain.
	NextURL string
}

// Spider parses one retailer's listing pages. Implementations are
// stateless; all per-run state lives in the engine.
type Spider interface {
	Retailer() *RetailerConfig
	// ListingURL builds the listing URL for a category and 1-based
	// page. JS retailers return the category entry URL regardless of
	// page; the render fetcher replays the click chain to reach it.
	ListingURL(category string, page int) (string, error)
	ParseListing(page *Page) (*ParseOutput, error)
}

// DetailSpider is optionally implemented by spiders that can enrich an
// item from its product detail page (spec tables, stock state).
type DetailSpider interface {
	Spider
	ParseDetail(doc *goquery.Document, item *models.ScrapedItem) error
}

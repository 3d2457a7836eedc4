package sites

import (
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/buildparts/hwcompat/models"
	"github.com/buildparts/hwcompat/spider"
)

// Ryans crawls ryans.com. Listings render client-side and paginate
// through an in-page next button, so the retailer runs on the headless
// fetcher with click-chain replay; ListingURL always returns the
// category entry URL.
type Ryans struct {
	rc *spider.RetailerConfig
}

// NewRyans builds the ryans spider.
func NewRyans() *Ryans {
	return &Ryans{
		rc: &spider.RetailerConfig{
			Slug:       "ryans",
			Name:       "Ryans",
			BaseURL:    "https://www.ryans.com",
			RequiresJS: true,
			Categories: map[string]string{
				"cpu":         "/category/desktop-component-processor",
				"motherboard": "/category/desktop-component-motherboard",
				"ram":         "/category/desktop-component-desktop-ram",
			},
			StartDelay:   2 * time.Second,
			MaxDelay:     15 * time.Second,
			RandomDelay:  1 * time.Second,
			NextSelector: "a.next-page-link",
			WaitSelector: ".category-single-product",
			Enabled:      true,
		},
	}
}

// Retailer implements spider.Spider.
func (s *Ryans) Retailer() *spider.RetailerConfig {
	return s.rc
}

// ListingURL implements spider.Spider. Pagination state lives in the
// rendered page, so the page argument is intentionally unused.
func (s *Ryans) ListingURL(category string, _ int) (string, error) {
	path, ok := s.rc.Categories[category]
	if !ok {
		return "", fmt.Errorf("ryans does not list category %q", category)
	}
	return s.rc.BaseURL + path, nil
}

// ParseListing implements spider.Spider.
func (s *Ryans) ParseListing(page *spider.Page) (*spider.ParseOutput, error) {
	out := &spider.ParseOutput{}

	page.Doc.Find(".category-single-product").Each(func(_ int, sel *goquery.Selection) {
		link := sel.Find(".card-body a").First()
		name := spider.NormalizeText(link.AttrOr("title", link.Text()))
		href, _ := link.Attr("href")
		if name == "" || href == "" {
			return
		}

		price, ok := spider.ParsePrice(sel.Find(".pr-text").First().Text())
		if !ok {
			price = priceZero
		}

		item := &models.ScrapedItem{
			Name:       name,
			Price:      price,
			ProductURL: absoluteURL(s.rc.BaseURL, href),
			Retailer:   s.rc.Slug,
			Category:   page.Category,
			ImageURL:   sel.Find(".image-box img").AttrOr("src", ""),
			Brand:      spider.ExtractBrand(name),
			InStock:    ok,
			ScrapedAt:  time.Now(),
		}
		out.Items = append(out.Items, item)
	})

	// The next control disappears on the last page.
	out.HasNext = page.Doc.Find(s.rc.NextSelector).Length() > 0
	return out, nil
}

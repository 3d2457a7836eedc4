package sites

import (
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/buildparts/hwcompat/models"
	"github.com/buildparts/hwcompat/spider"
)

// Techland crawls techlandbd.com, another server-rendered storefront.
// Listings expose only name, price, and stock; spec tables live on the
// product detail pages.
type Techland struct {
	rc *spider.RetailerConfig
}

// NewTechland builds the techland spider.
func NewTechland() *Techland {
	return &Techland{
		rc: &spider.RetailerConfig{
			Slug:    "techland",
			Name:    "Tech Land",
			BaseURL: "https://www.techlandbd.com",
			Categories: map[string]string{
				"cpu":         "/pc-components/processor",
				"motherboard": "/pc-components/motherboard",
				"ram":         "/pc-components/ram-for-pc",
			},
			StartDelay:  1 * time.Second,
			MaxDelay:    10 * time.Second,
			RandomDelay: 500 * time.Millisecond,
			Enabled:     true,
		},
	}
}

// Retailer implements spider.Spider.
func (s *Techland) Retailer() *spider.RetailerConfig {
	return s.rc
}

// ListingURL implements spider.Spider.
func (s *Techland) ListingURL(category string, page int) (string, error) {
	path, ok := s.rc.Categories[category]
	if !ok {
		return "", fmt.Errorf("techland does not list category %q", category)
	}
	if page <= 1 {
		return s.rc.BaseURL + path, nil
	}
	return fmt.Sprintf("%s%s?page=%d", s.rc.BaseURL, path, page), nil
}

// ParseListing implements spider.Spider.
func (s *Techland) ParseListing(page *spider.Page) (*spider.ParseOutput, error) {
	out := &spider.ParseOutput{}

	page.Doc.Find(".product-layout").Each(func(_ int, sel *goquery.Selection) {
		link := sel.Find(".name a")
		name := spider.NormalizeText(link.Text())
		href, _ := link.Attr("href")
		if name == "" || href == "" {
			return
		}

		priceText := sel.Find(".price .price-new").First().Text()
		if priceText == "" {
			priceText = sel.Find(".price").First().Text()
		}
		price, ok := spider.ParsePrice(priceText)
		if !ok {
			price = priceZero
		}

		item := &models.ScrapedItem{
			Name:       name,
			Price:      price,
			ProductURL: absoluteURL(s.rc.BaseURL, href),
			Retailer:   s.rc.Slug,
			Category:   page.Category,
			ImageURL:   absoluteURL(s.rc.BaseURL, sel.Find(".product-img img").AttrOr("data-src", sel.Find(".product-img img").AttrOr("src", ""))),
			Brand:      spider.ExtractBrand(name),
			InStock:    ok && spider.ParseStock(sel.Find(".stock").Text()),
			ScrapedAt:  time.Now(),
		}
		out.Items = append(out.Items, item)
	})

	if href, ok := page.Doc.Find("ul.pagination a[rel=next]").Attr("href"); ok && href != "" {
		out.HasNext = true
		out.NextURL = absoluteURL(s.rc.BaseURL, href)
	}
	return out, nil
}

// ParseDetail enriches an item with the product page's specification
// table rows.
func (s *Techland) ParseDetail(doc *goquery.Document, item *models.ScrapedItem) error {
	specs := make(map[string]any)
	doc.Find("#tab-specification tbody tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}
		key := spider.NormalizeText(cells.Eq(0).Text())
		val := spider.NormalizeText(cells.Eq(1).Text())
		if key != "" && val != "" {
			specs[key] = val
		}
	})
	if len(specs) > 0 {
		item.Specs = specs
	}
	return nil
}

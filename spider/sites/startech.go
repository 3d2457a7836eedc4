package sites

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/buildparts/hwcompat/models"
	"github.com/buildparts/hwcompat/spider"
)

// Startech crawls startech.com.bd, a server-rendered OpenCart storefront
// with ?page=N pagination.
type Startech struct {
	rc *spider.RetailerConfig
}

// NewStartech builds the startech spider.
func NewStartech() *Startech {
	return &Startech{
		rc: &spider.RetailerConfig{
			Slug:    "startech",
			Name:    "Star Tech",
			BaseURL: "https://www.startech.com.bd",
			Categories: map[string]string{
				"cpu":         "/component/processor",
				"motherboard": "/component/motherboard",
				"ram":         "/component/ram",
			},
			StartDelay:  1 * time.Second,
			MaxDelay:    10 * time.Second,
			RandomDelay: 500 * time.Millisecond,
			Enabled:     true,
		},
	}
}

// Retailer implements spider.Spider.
func (s *Startech) Retailer() *spider.RetailerConfig {
	return s.rc
}

// ListingURL implements spider.Spider.
func (s *Startech) ListingURL(category string, page int) (string, error) {
	path, ok := s.rc.Categories[category]
	if !ok {
		return "", fmt.Errorf("startech does not list category %q", category)
	}
	if page <= 1 {
		return s.rc.BaseURL + path, nil
	}
	return fmt.Sprintf("%s%s?page=%d", s.rc.BaseURL, path, page), nil
}

// ParseListing implements spider.Spider.
func (s *Startech) ParseListing(page *spider.Page) (*spider.ParseOutput, error) {
	out := &spider.ParseOutput{}

	page.Doc.Find(".p-item").Each(func(_ int, sel *goquery.Selection) {
		link := sel.Find(".p-item-name a")
		name := spider.NormalizeText(link.Text())
		href, _ := link.Attr("href")
		if name == "" || href == "" {
			return
		}

		priceText := sel.Find(".p-item-price span").First().Text()
		price, ok := spider.ParsePrice(priceText)
		if !ok {
			// "TBA" and call-for-price listings carry no price.
			price = priceZero
		}

		item := &models.ScrapedItem{
			Name:       name,
			Price:      price,
			ProductURL: absoluteURL(s.rc.BaseURL, href),
			Retailer:   s.rc.Slug,
			Category:   page.Category,
			ImageURL:   absoluteURL(s.rc.BaseURL, sel.Find(".p-item-img img").AttrOr("src", "")),
			Brand:      spider.ExtractBrand(name),
			InStock:    ok && spider.ParseStock(sel.Find(".mark").Text()),
			Specs:      shortSpecList(sel.Find(".short-description li")),
			ScrapedAt:  time.Now(),
		}
		out.Items = append(out.Items, item)
	})

	next := page.Doc.Find("ul.pagination li.active").Next().Find("a")
	if href, ok := next.Attr("href"); ok && href != "" {
		out.HasNext = true
		out.NextURL = absoluteURL(s.rc.BaseURL, href)
	}
	return out, nil
}

// shortSpecList turns a listing's key-feature bullets into a specs map.
// Lines are "Socket: AM4" pairs; bullets without a colon are collected
// under "features".
func shortSpecList(sel *goquery.Selection) map[string]any {
	specs := make(map[string]any)
	var features []string
	sel.Each(func(_ int, li *goquery.Selection) {
		line := spider.NormalizeText(li.Text())
		if line == "" {
			return
		}
		if key, val, found := strings.Cut(line, ":"); found {
			specs[strings.TrimSpace(key)] = strings.TrimSpace(val)
			return
		}
		features = append(features, line)
	})
	if len(features) > 0 {
		specs["features"] = features
	}
	if len(specs) == 0 {
		return nil
	}
	return specs
}

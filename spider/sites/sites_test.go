package sites

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"github.com/buildparts/hwcompat/models"
	"github.com/buildparts/hwcompat/spider"
)

func docFrom(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return doc
}

func TestRegistryCoversAllRetailers(t *testing.T) {
	r, err := Registry()
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}

	want := []string{"ryans", "startech", "techland"}
	got := r.Slugs()
	if len(got) != len(want) {
		t.Fatalf("slugs = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("slugs = %v, want %v", got, want)
		}
	}

	js, err := r.Select(spider.FilterJSOnly)
	if err != nil {
		t.Fatalf("select js: %v", err)
	}
	if len(js) != 1 || js[0].Retailer().Slug != "ryans" {
		t.Fatalf("js retailers = %d, want just ryans", len(js))
	}
}

const startechFixture = `
<html><body>
<div class="p-item">
  <div class="p-item-img"><a href="/amd-ryzen-7-5800x"><img src="/images/5800x.webp"></a></div>
  <div class="p-item-details">
    <h4 class="p-item-name"><a href="https://www.startech.com.bd/amd-ryzen-7-5800x">AMD Ryzen 7 5800X Processor</a></h4>
    <div class="short-description">
      <ul>
        <li>Socket: AM4</li>
        <li>TDP: 105W</li>
        <li>8 Cores 16 Threads</li>
      </ul>
    </div>
    <div class="p-item-price"><span>32,500৳</span></div>
  </div>
</div>
<div class="p-item">
  <div class="p-item-details">
    <h4 class="p-item-name"><a href="/intel-core-i5-13400">Intel Core i5-13400 Processor</a></h4>
    <div class="p-item-price"><span>Call for Price</span></div>
  </div>
</div>
<ul class="pagination">
  <li class="active"><span>1</span></li>
  <li><a href="https://www.startech.com.bd/component/processor?page=2">2</a></li>
</ul>
</body></html>`

func TestStartechParseListing(t *testing.T) {
	sp := NewStartech()
	out, err := sp.ParseListing(&spider.Page{
		Category: "cpu",
		Number:   1,
		Doc:      docFrom(t, startechFixture),
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(out.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(out.Items))
	}

	first := out.Items[0]
	if first.Name != "AMD Ryzen 7 5800X Processor" {
		t.Fatalf("name = %q", first.Name)
	}
	if !first.Price.Equal(decimal.NewFromInt(32500)) {
		t.Fatalf("price = %s, want 32500", first.Price)
	}
	if first.ProductURL != "https://www.startech.com.bd/amd-ryzen-7-5800x" {
		t.Fatalf("url = %q", first.ProductURL)
	}
	if first.Brand != "AMD" {
		t.Fatalf("brand = %q, want AMD", first.Brand)
	}
	if got := first.Specs["Socket"]; got != "AM4" {
		t.Fatalf("specs socket = %v, want AM4", got)
	}
	if got := first.Specs["TDP"]; got != "105W" {
		t.Fatalf("specs tdp = %v, want 105W", got)
	}
	features, ok := first.Specs["features"].([]string)
	if !ok || len(features) != 1 {
		t.Fatalf("features = %v, want one entry", first.Specs["features"])
	}

	// Unpriced listing still parses but is flagged not purchasable.
	second := out.Items[1]
	if !second.Price.IsZero() || second.InStock {
		t.Fatalf("call-for-price item: price = %s in_stock = %v", second.Price, second.InStock)
	}
	if second.ProductURL != "https://www.startech.com.bd/intel-core-i5-13400" {
		t.Fatalf("relative url not resolved: %q", second.ProductURL)
	}

	if !out.HasNext {
		t.Fatalf("has next = false, want true")
	}
	if out.NextURL != "https://www.startech.com.bd/component/processor?page=2" {
		t.Fatalf("next url = %q", out.NextURL)
	}
}

func TestStartechListingURL(t *testing.T) {
	sp := NewStartech()

	url, err := sp.ListingURL("cpu", 1)
	if err != nil {
		t.Fatalf("listing url: %v", err)
	}
	if url != "https://www.startech.com.bd/component/processor" {
		t.Fatalf("page 1 url = %q", url)
	}

	url, err = sp.ListingURL("ram", 3)
	if err != nil {
		t.Fatalf("listing url: %v", err)
	}
	if url != "https://www.startech.com.bd/component/ram?page=3" {
		t.Fatalf("page 3 url = %q", url)
	}

	if _, err := sp.ListingURL("gpu", 1); err == nil {
		t.Fatalf("unsupported category should fail")
	}
}

const techlandFixture = `
<html><body>
<div class="main-products">
<div class="product-layout">
  <div class="product-img"><img data-src="/image/b650m.jpg"></div>
  <div class="caption">
    <div class="name"><a href="/msi-pro-b650m-p">MSI PRO B650M-P AM5 Motherboard</a></div>
    <div class="price"><span class="price-new">18,700৳</span> <span class="price-old">19,500৳</span></div>
    <div class="stock">In Stock</div>
  </div>
</div>
<div class="product-layout">
  <div class="caption">
    <div class="name"><a href="/gigabyte-z790-ud">Gigabyte Z790 UD Motherboard</a></div>
    <div class="price">45,000৳</div>
    <div class="stock">Out of Stock</div>
  </div>
</div>
</div>
<ul class="pagination"><li><a rel="next" href="/pc-components/motherboard?page=2">&gt;</a></li></ul>
</body></html>`

func TestTechlandParseListing(t *testing.T) {
	sp := NewTechland()
	out, err := sp.ParseListing(&spider.Page{
		Category: "motherboard",
		Number:   1,
		Doc:      docFrom(t, techlandFixture),
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(out.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(out.Items))
	}

	first := out.Items[0]
	if !first.Price.Equal(decimal.NewFromInt(18700)) {
		t.Fatalf("price = %s, want discounted 18700", first.Price)
	}
	if !first.InStock {
		t.Fatalf("first item should be in stock")
	}
	if first.ImageURL != "https://www.techlandbd.com/image/b650m.jpg" {
		t.Fatalf("image url = %q", first.ImageURL)
	}

	second := out.Items[1]
	if second.InStock {
		t.Fatalf("out-of-stock item marked in stock")
	}
	if !second.Price.Equal(decimal.NewFromInt(45000)) {
		t.Fatalf("price = %s, want 45000", second.Price)
	}

	if !out.HasNext || out.NextURL != "https://www.techlandbd.com/pc-components/motherboard?page=2" {
		t.Fatalf("pagination: has_next=%v next=%q", out.HasNext, out.NextURL)
	}
}

func TestTechlandParseDetail(t *testing.T) {
	sp := NewTechland()
	doc := docFrom(t, `
<html><body>
<div id="tab-specification"><table><tbody>
<tr><td>Socket</td><td>AM5</td></tr>
<tr><td>Chipset</td><td>B650</td></tr>
<tr><td>Memory Type</td><td>DDR5</td></tr>
<tr><td>single cell row</td></tr>
</tbody></table></div>
</body></html>`)

	item := out0(t, sp)
	if err := sp.ParseDetail(doc, item); err != nil {
		t.Fatalf("parse detail: %v", err)
	}
	if got := item.Specs["Socket"]; got != "AM5" {
		t.Fatalf("socket = %v, want AM5", got)
	}
	if got := item.Specs["Memory Type"]; got != "DDR5" {
		t.Fatalf("memory type = %v, want DDR5", got)
	}
	if _, ok := item.Specs["single cell row"]; ok {
		t.Fatalf("malformed row should be skipped")
	}
}

const ryansFixture = `
<html><body>
<div class="category-single-product">
  <div class="image-box"><img src="https://cdn.ryans.test/vengeance.webp"></div>
  <div class="card-body">
    <a href="/corsair-vengeance-32gb" title="Corsair Vengeance LPX 32GB (2x16GB) DDR4 3200MHz">Corsair Vengeance...</a>
    <p class="pr-text">Tk 13,500</p>
  </div>
</div>
<div class="category-single-product">
  <div class="card-body">
    <a href="/gskill-trident-z5">G.Skill Trident Z5 RGB 32GB DDR5 6000MHz</a>
    <p class="pr-text">Tk 21,000</p>
  </div>
</div>
<a class="next-page-link" href="#">Next</a>
</body></html>`

func TestRyansParseListing(t *testing.T) {
	sp := NewRyans()
	out, err := sp.ParseListing(&spider.Page{
		Category: "ram",
		Number:   1,
		Doc:      docFrom(t, ryansFixture),
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(out.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(out.Items))
	}

	first := out.Items[0]
	if first.Name != "Corsair Vengeance LPX 32GB (2x16GB) DDR4 3200MHz" {
		t.Fatalf("name should prefer the title attribute, got %q", first.Name)
	}
	if !first.Price.Equal(decimal.NewFromInt(13500)) {
		t.Fatalf("price = %s, want 13500", first.Price)
	}
	if first.Brand != "Corsair" {
		t.Fatalf("brand = %q, want Corsair", first.Brand)
	}

	second := out.Items[1]
	if second.Name != "G.Skill Trident Z5 RGB 32GB DDR5 6000MHz" {
		t.Fatalf("link text fallback failed: %q", second.Name)
	}

	if !out.HasNext {
		t.Fatalf("has next = false, want true while the next control is present")
	}
	if out.NextURL != "" {
		t.Fatalf("js spider must not emit a next url, got %q", out.NextURL)
	}
}

func TestRyansLastPage(t *testing.T) {
	sp := NewRyans()
	out, err := sp.ParseListing(&spider.Page{
		Category: "ram",
		Number:   4,
		Doc: docFrom(t, `<html><body>
<div class="category-single-product"><div class="card-body">
<a href="/last-item">Last RAM Kit 8GB DDR4</a><p class="pr-text">Tk 2,500</p>
</div></div>
</body></html>`),
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if out.HasNext {
		t.Fatalf("has next = true, want false without the next control")
	}
}

func TestRyansListingURLIgnoresPage(t *testing.T) {
	sp := NewRyans()
	first, err := sp.ListingURL("cpu", 1)
	if err != nil {
		t.Fatalf("listing url: %v", err)
	}
	fifth, err := sp.ListingURL("cpu", 5)
	if err != nil {
		t.Fatalf("listing url: %v", err)
	}
	if first != fifth {
		t.Fatalf("url changed across pages: %q vs %q", first, fifth)
	}
}

// out0 parses the techland fixture and returns its first item.
func out0(t *testing.T, sp *Techland) *models.ScrapedItem {
	t.Helper()
	out, err := sp.ParseListing(&spider.Page{
		Category: "motherboard",
		Number:   1,
		Doc:      docFrom(t, techlandFixture),
	})
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return out.Items[0]
}

package spider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"github.com/buildparts/hwcompat/config"
	"github.com/buildparts/hwcompat/models"
)

func emptyDoc(t *testing.T) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<html><body></body></html>"))
	if err != nil {
		t.Fatalf("build doc: %v", err)
	}
	return doc
}

type scriptedSpider struct {
	rc    *RetailerConfig
	pages map[int]*ParseOutput
}

func (s *scriptedSpider) Retailer() *RetailerConfig { return s.rc }

func (s *scriptedSpider) ListingURL(category string, page int) (string, error) {
	return fmt.Sprintf("%s/%s?page=%d", s.rc.BaseURL, category, page), nil
}

func (s *scriptedSpider) ParseListing(page *Page) (*ParseOutput, error) {
	out, ok := s.pages[page.Number]
	if !ok {
		return &ParseOutput{}, nil
	}
	return out, nil
}

type fakeFetcher struct {
	doc     *goquery.Document
	failOn  map[int]error
	fetches int
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string, page int) (*goquery.Document, error) {
	f.fetches++
	if err, ok := f.failOn[page]; ok {
		return nil, err
	}
	return f.doc, nil
}

func (f *fakeFetcher) Retries() int { return 0 }
func (f *fakeFetcher) Close() error { return nil }

type recordingSink struct {
	mu      sync.Mutex
	items   []*models.ScrapedItem
	respond func(item *models.ScrapedItem) error
}

func (s *recordingSink) Process(_ context.Context, item *models.ScrapedItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, item)
	if s.respond != nil {
		return s.respond(item)
	}
	return nil
}

func pageOf(n int, hasNext bool) *ParseOutput {
	out := &ParseOutput{HasNext: hasNext}
	for i := 0; i < n; i++ {
		out.Items = append(out.Items, &models.ScrapedItem{
			Name:       fmt.Sprintf("Item %d", i),
			Price:      decimal.NewFromInt(100),
			ProductURL: fmt.Sprintf("https://shop.test/item-%d", i),
		})
	}
	return out
}

func testEngine(t *testing.T, sp Spider, sink ItemSink, fetcher Fetcher) *Engine {
	t.Helper()
	registry, err := NewRegistry(sp)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	cfg := config.DefaultConfig()
	e := NewEngine(cfg, registry, sink, NewMetrics(), nil)
	e.SetFetcherFactory(func(Spider) (Fetcher, error) { return fetcher, nil })
	return e
}

func TestEngineCrawlsUntilLastPage(t *testing.T) {
	sp := &scriptedSpider{
		rc: stub("shop", false, true).rc,
		pages: map[int]*ParseOutput{
			1: pageOf(2, true),
			2: pageOf(2, true),
			3: pageOf(1, false),
		},
	}
	sink := &recordingSink{}
	e := testEngine(t, sp, sink, &fakeFetcher{doc: emptyDoc(t)})

	result, err := e.RunRetailer(context.Background(), "shop", "cpu")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.PageCount != 3 {
		t.Fatalf("pages = %d, want 3", result.PageCount)
	}
	if result.ItemCount != 5 || result.SavedCount != 5 {
		t.Fatalf("items = %d saved = %d, want 5/5", result.ItemCount, result.SavedCount)
	}
	if result.RunID == "" {
		t.Fatalf("run id must be set")
	}
	for _, item := range sink.items {
		if item.Retailer != "shop" || item.Category != "cpu" {
			t.Fatalf("item not stamped: retailer=%q category=%q", item.Retailer, item.Category)
		}
	}
}

func TestEngineStopsOnEmptyPage(t *testing.T) {
	sp := &scriptedSpider{
		rc: stub("shop", false, true).rc,
		pages: map[int]*ParseOutput{
			1: pageOf(2, true),
			// Page 2 claims more pages but yields nothing.
			2: {HasNext: true},
			3: pageOf(2, true),
		},
	}
	e := testEngine(t, sp, &recordingSink{}, &fakeFetcher{doc: emptyDoc(t)})

	result, err := e.RunRetailer(context.Background(), "shop", "cpu")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.ItemCount != 2 {
		t.Fatalf("items = %d, want 2 (crawl must stop at the empty page)", result.ItemCount)
	}
}

func TestEngineHonorsMaxPages(t *testing.T) {
	pages := make(map[int]*ParseOutput)
	for i := 1; i <= config.MaxPages+5; i++ {
		pages[i] = pageOf(1, true)
	}
	sp := &scriptedSpider{rc: stub("shop", false, true).rc, pages: pages}
	fetcher := &fakeFetcher{doc: emptyDoc(t)}
	e := testEngine(t, sp, &recordingSink{}, fetcher)

	result, err := e.RunRetailer(context.Background(), "shop", "cpu")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.PageCount != config.MaxPages {
		t.Fatalf("pages = %d, want %d", result.PageCount, config.MaxPages)
	}
	if fetcher.fetches != config.MaxPages {
		t.Fatalf("fetches = %d, want %d", fetcher.fetches, config.MaxPages)
	}
}

func TestEngineHonorsItemLimit(t *testing.T) {
	pages := make(map[int]*ParseOutput)
	for i := 1; i <= config.MaxPages; i++ {
		pages[i] = pageOf(4, true)
	}
	sp := &scriptedSpider{rc: stub("shop", false, true).rc, pages: pages}

	registry, err := NewRegistry(sp)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	cfg := config.DefaultConfig()
	cfg.Limit = 6
	e := NewEngine(cfg, registry, &recordingSink{}, NewMetrics(), nil)
	e.SetFetcherFactory(func(Spider) (Fetcher, error) {
		return &fakeFetcher{doc: emptyDoc(t)}, nil
	})

	result, err := e.RunRetailer(context.Background(), "shop", "cpu")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.ItemCount != 6 {
		t.Fatalf("items = %d, want limit 6", result.ItemCount)
	}
}

type detailSpider struct {
	*scriptedSpider
	detailErr error
}

func (s *detailSpider) ParseDetail(_ *goquery.Document, item *models.ScrapedItem) error {
	if s.detailErr != nil {
		return s.detailErr
	}
	item.Specs = map[string]any{"Socket": "AM5"}
	return nil
}

func TestEngineFetchesDetails(t *testing.T) {
	sp := &detailSpider{scriptedSpider: &scriptedSpider{
		rc:    stub("shop", false, true).rc,
		pages: map[int]*ParseOutput{1: pageOf(2, false)},
	}}
	sink := &recordingSink{}
	fetcher := &fakeFetcher{doc: emptyDoc(t)}

	registry, err := NewRegistry(sp)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	cfg := config.DefaultConfig()
	cfg.FetchDetails = true
	e := NewEngine(cfg, registry, sink, NewMetrics(), nil)
	e.SetFetcherFactory(func(Spider) (Fetcher, error) { return fetcher, nil })

	result, err := e.RunRetailer(context.Background(), "shop", "cpu")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// One listing fetch plus one detail fetch per item.
	if fetcher.fetches != 3 {
		t.Fatalf("fetches = %d, want 3", fetcher.fetches)
	}
	if result.RequestCount != 3 {
		t.Fatalf("requests = %d, want 3", result.RequestCount)
	}
	for _, item := range sink.items {
		if item.Specs["Socket"] != "AM5" {
			t.Fatalf("item %q not enriched: specs = %v", item.Name, item.Specs)
		}
	}
}

func TestEngineDetailFailureKeepsItem(t *testing.T) {
	sp := &detailSpider{
		scriptedSpider: &scriptedSpider{
			rc:    stub("shop", false, true).rc,
			pages: map[int]*ParseOutput{1: pageOf(1, false)},
		},
		detailErr: errors.New("spec table missing"),
	}
	sink := &recordingSink{}

	registry, err := NewRegistry(sp)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	cfg := config.DefaultConfig()
	cfg.FetchDetails = true
	e := NewEngine(cfg, registry, sink, NewMetrics(), nil)
	e.SetFetcherFactory(func(Spider) (Fetcher, error) {
		return &fakeFetcher{doc: emptyDoc(t)}, nil
	})

	result, err := e.RunRetailer(context.Background(), "shop", "cpu")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.SavedCount != 1 {
		t.Fatalf("saved = %d, want 1 (detail failure must not lose the item)", result.SavedCount)
	}
	if result.ErrorsByType["parse"] != 1 {
		t.Fatalf("errors by type = %v, want parse:1", result.ErrorsByType)
	}
}

func TestEngineCountsDropsAndFailures(t *testing.T) {
	sp := &scriptedSpider{
		rc:    stub("shop", false, true).rc,
		pages: map[int]*ParseOutput{1: pageOf(3, false)},
	}
	sink := &recordingSink{
		respond: func(item *models.ScrapedItem) error {
			switch item.Name {
			case "Item 0":
				return fmt.Errorf("%w: bad price", ErrDropItem)
			case "Item 1":
				return errors.New("db unavailable")
			}
			return nil
		},
	}
	e := testEngine(t, sp, sink, &fakeFetcher{doc: emptyDoc(t)})

	result, err := e.RunRetailer(context.Background(), "shop", "cpu")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.DroppedCount != 1 || result.FailedCount != 1 || result.SavedCount != 1 {
		t.Fatalf("dropped/failed/saved = %d/%d/%d, want 1/1/1",
			result.DroppedCount, result.FailedCount, result.SavedCount)
	}
}

func TestEngineFetchFailureEndsCategory(t *testing.T) {
	sp := &scriptedSpider{
		rc: stub("shop", false, true).rc,
		pages: map[int]*ParseOutput{
			1: pageOf(2, true),
			2: pageOf(2, true),
		},
	}
	fetcher := &fakeFetcher{
		doc:    emptyDoc(t),
		failOn: map[int]error{2: ErrServer{Status: 503, Err: errors.New("boom")}},
	}
	e := testEngine(t, sp, &recordingSink{}, fetcher)

	result, err := e.RunRetailer(context.Background(), "shop", "cpu")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.PageCount != 1 {
		t.Fatalf("pages = %d, want 1", result.PageCount)
	}
	if result.ErrorCount != 1 || len(result.FailedURLs) != 1 {
		t.Fatalf("errors = %d failed urls = %d, want 1/1", result.ErrorCount, len(result.FailedURLs))
	}
	if result.ErrorsByType["server"] != 1 {
		t.Fatalf("errors by type = %v, want server:1", result.ErrorsByType)
	}
}

func TestEngineUnknownRetailer(t *testing.T) {
	e := testEngine(t, &scriptedSpider{rc: stub("shop", false, true).rc}, &recordingSink{}, &fakeFetcher{doc: emptyDoc(t)})

	_, err := e.RunRetailer(context.Background(), "ghost", "cpu")
	var unknown ErrUnknownRetailer
	if !errors.As(err, &unknown) {
		t.Fatalf("error = %v, want ErrUnknownRetailer", err)
	}
}

func TestRunAllContinuesPastFailingRetailer(t *testing.T) {
	good := &scriptedSpider{
		rc:    stub("good", false, true).rc,
		pages: map[int]*ParseOutput{1: pageOf(1, false)},
	}
	bad := &scriptedSpider{rc: stub("bad", false, true).rc}

	registry, err := NewRegistry(good, bad)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	e := NewEngine(config.DefaultConfig(), registry, &recordingSink{}, NewMetrics(), nil)
	e.SetFetcherFactory(func(sp Spider) (Fetcher, error) {
		if sp.Retailer().Slug == "bad" {
			return nil, errors.New("no browser available")
		}
		return &fakeFetcher{doc: emptyDoc(t)}, nil
	})

	results, err := e.RunAll(context.Background(), FilterAll, "cpu")
	if err != nil {
		t.Fatalf("run all: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1 (bad retailer skipped)", len(results))
	}
	if results[0].Retailer != "good" {
		t.Fatalf("result retailer = %q, want good", results[0].Retailer)
	}
}

func TestRunAllSkipsRetailersWithoutCategory(t *testing.T) {
	cpuOnly := &scriptedSpider{
		rc:    stub("cpu-only", false, true).rc,
		pages: map[int]*ParseOutput{1: pageOf(1, false)},
	}
	e := testEngine(t, cpuOnly, &recordingSink{}, &fakeFetcher{doc: emptyDoc(t)})

	results, err := e.RunAll(context.Background(), FilterAll, "ram")
	if err != nil {
		t.Fatalf("run all: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("results = %d, want 0", len(results))
	}
}

func TestEngineVisitedGuard(t *testing.T) {
	// Crawling the same category twice in one run must not refetch.
	sp := &scriptedSpider{
		rc:    stub("shop", false, true).rc,
		pages: map[int]*ParseOutput{1: pageOf(1, false)},
	}
	fetcher := &fakeFetcher{doc: emptyDoc(t)}
	registry, err := NewRegistry(sp)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	e := NewEngine(config.DefaultConfig(), registry, &recordingSink{}, NewMetrics(), nil)
	e.SetFetcherFactory(func(Spider) (Fetcher, error) { return fetcher, nil })

	result := &models.CrawlResult{ErrorsByType: make(map[string]int)}
	visited := make(map[pageKey]bool)
	e.crawlCategory(context.Background(), sp, fetcher, "cpu", visited, result)
	e.crawlCategory(context.Background(), sp, fetcher, "cpu", visited, result)

	if fetcher.fetches != 1 {
		t.Fatalf("fetches = %d, want 1 (second pass must hit the visited guard)", fetcher.fetches)
	}
}

func TestEngineContextCancellation(t *testing.T) {
	pages := make(map[int]*ParseOutput)
	for i := 1; i <= config.MaxPages; i++ {
		pages[i] = pageOf(1, true)
	}
	sp := &scriptedSpider{rc: stub("shop", false, true).rc, pages: pages}

	ctx, cancel := context.WithCancel(context.Background())
	sink := &recordingSink{
		respond: func(*models.ScrapedItem) error {
			cancel()
			return nil
		},
	}
	e := testEngine(t, sp, sink, &fakeFetcher{doc: emptyDoc(t)})

	start := time.Now()
	result, err := e.RunRetailer(ctx, "shop", "cpu")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.PageCount != 1 {
		t.Fatalf("pages = %d, want 1 after cancellation", result.PageCount)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("cancellation took too long")
	}
}

package spider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/buildparts/hwcompat/config"
	"github.com/buildparts/hwcompat/models"
)

// ErrDropItem is returned by a sink when an item failed validation and
// was discarded. Drops are counted separately from failures and never
// interrupt a crawl.
var ErrDropItem = errors.New("item dropped")

// ItemSink consumes scraped items. The pipeline implements it.
type ItemSink interface {
	Process(ctx context.Context, item *models.ScrapedItem) error
}

// FetcherFactory builds the fetcher for one spider. Tests substitute
// their own to crawl canned documents.
type FetcherFactory func(sp Spider) (Fetcher, error)

// Engine owns crawl runs: per-run visited-page state, pagination limits
// and stops, item accounting, and multi-retailer orchestration. Spiders
// stay stateless parsers.
type Engine struct {
	cfg        *config.Config
	registry   *Registry
	sink       ItemSink
	metrics    *Metrics
	logger     *slog.Logger
	newFetcher FetcherFactory
}

// NewEngine wires a crawl engine.
func NewEngine(cfg *config.Config, registry *Registry, sink ItemSink, metrics *Metrics, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		cfg:      cfg,
		registry: registry,
		sink:     sink,
		metrics:  metrics,
		logger:   logger,
	}
	e.newFetcher = e.defaultFetcher
	return e
}

// SetFetcherFactory overrides fetcher construction.
func (e *Engine) SetFetcherFactory(fn FetcherFactory) {
	e.newFetcher = fn
}

func (e *Engine) defaultFetcher(sp Spider) (Fetcher, error) {
	rc := sp.Retailer()
	if rc.RequiresJS {
		return NewRenderFetcher(rc, e.cfg, e.metrics)
	}
	return NewHTTPFetcher(rc, e.cfg, e.metrics)
}

type pageKey struct {
	category string
	page     int
}

// RunRetailer crawls one retailer. With an empty category every
// category the retailer lists is crawled in stable order.
func (e *Engine) RunRetailer(ctx context.Context, slug, category string) (*models.CrawlResult, error) {
	sp, err := e.registry.Get(slug)
	if err != nil {
		return nil, err
	}
	rc := sp.Retailer()

	var categories []string
	if category != "" {
		if !rc.SupportsCategory(category) {
			return nil, fmt.Errorf("retailer %s does not list category %q", slug, category)
		}
		categories = []string{category}
	} else {
		for cat := range rc.Categories {
			categories = append(categories, cat)
		}
		sort.Strings(categories)
	}

	fetcher, err := e.newFetcher(sp)
	if err != nil {
		return nil, fmt.Errorf("build fetcher for %s: %w", slug, err)
	}
	defer fetcher.Close()

	result := &models.CrawlResult{
		RunID:        uuid.NewString(),
		Retailer:     slug,
		Category:     category,
		StartTime:    time.Now(),
		ErrorsByType: make(map[string]int),
	}
	visited := make(map[pageKey]bool)

	e.logger.Info("crawl started",
		slog.String("run_id", result.RunID),
		slog.String("retailer", slug),
		slog.Any("categories", categories),
	)

	for _, cat := range categories {
		e.crawlCategory(ctx, sp, fetcher, cat, visited, result)
		if ctx.Err() != nil || e.limitReached(result) {
			break
		}
	}

	result.EndTime = time.Now()
	result.RetryCount = fetcher.Retries()
	e.logger.Info("crawl finished",
		slog.String("run_id", result.RunID),
		slog.String("retailer", slug),
		slog.Int("pages", result.PageCount),
		slog.Int("items", result.ItemCount),
		slog.Int("saved", result.SavedCount),
		slog.Int("dropped", result.DroppedCount),
		slog.Int("failed", result.FailedCount),
		slog.Int("errors", result.ErrorCount),
		slog.Duration("elapsed", result.EndTime.Sub(result.StartTime)),
	)
	return result, nil
}

func (e *Engine) crawlCategory(ctx context.Context, sp Spider, fetcher Fetcher, category string, visited map[pageKey]bool, result *models.CrawlResult) {
	rc := sp.Retailer()
	nextOverride := ""

	for page := 1; page <= config.MaxPages; page++ {
		if ctx.Err() != nil || e.limitReached(result) {
			return
		}

		key := pageKey{category: category, page: page}
		if visited[key] {
			e.logger.Warn("page already visited, stopping category",
				slog.String("retailer", rc.Slug),
				slog.String("category", category),
				slog.Int("page", page),
			)
			return
		}
		visited[key] = true

		pageURL := nextOverride
		if pageURL == "" || rc.RequiresJS {
			var err error
			pageURL, err = sp.ListingURL(category, page)
			if err != nil {
				result.ErrorCount++
				e.logger.Error("listing url", slog.String("category", category), slog.Any("error", err))
				return
			}
		}

		result.RequestCount++
		doc, err := fetcher.Fetch(ctx, pageURL, page)
		if err != nil {
			result.ErrorCount++
			result.FailedURLs = append(result.FailedURLs, pageURL)
			result.ErrorsByType[errorTypeLabel(err)]++
			e.logger.Error("page fetch failed",
				slog.String("retailer", rc.Slug),
				slog.String("url", pageURL),
				slog.Any("error", err),
			)
			return
		}

		out, err := sp.ParseListing(&Page{URL: pageURL, Number: page, Category: category, Doc: doc})
		if err != nil {
			result.ErrorCount++
			result.ErrorsByType["parse"]++
			e.logger.Error("page parse failed",
				slog.String("retailer", rc.Slug),
				slog.String("url", pageURL),
				slog.Any("error", err),
			)
			return
		}

		result.PageCount++
		e.metrics.IncPages(rc.Slug)

		// An empty page means pagination ran past the catalog.
		if len(out.Items) == 0 {
			return
		}

		for _, item := range out.Items {
			if e.limitReached(result) {
				return
			}
			e.stampItem(item, rc, category)
			result.ItemCount++
			e.metrics.IncItems(rc.Slug, 1)

			if ds, ok := sp.(DetailSpider); ok && e.cfg.FetchDetails && item.ProductURL != "" {
				e.enrichDetail(ctx, ds, fetcher, item, result)
			}

			switch err := e.sink.Process(ctx, item); {
			case err == nil:
				result.SavedCount++
			case errors.Is(err, ErrDropItem):
				result.DroppedCount++
			default:
				result.FailedCount++
				e.logger.Error("item processing failed",
					slog.String("retailer", rc.Slug),
					slog.String("name", item.Name),
					slog.Any("error", err),
				)
			}
		}

		if !out.HasNext {
			return
		}
		nextOverride = out.NextURL
	}
}

// enrichDetail visits an item's product page for the data listings omit,
// typically the specification table. Failures keep the listing data; the
// item is still processed.
func (e *Engine) enrichDetail(ctx context.Context, ds DetailSpider, fetcher Fetcher, item *models.ScrapedItem, result *models.CrawlResult) {
	rc := ds.Retailer()
	result.RequestCount++
	doc, err := fetcher.Fetch(ctx, item.ProductURL, 1)
	if err != nil {
		result.ErrorCount++
		result.ErrorsByType[errorTypeLabel(err)]++
		e.logger.Warn("detail fetch failed",
			slog.String("retailer", rc.Slug),
			slog.String("url", item.ProductURL),
			slog.Any("error", err),
		)
		return
	}
	if err := ds.ParseDetail(doc, item); err != nil {
		result.ErrorCount++
		result.ErrorsByType["parse"]++
		e.logger.Warn("detail parse failed",
			slog.String("retailer", rc.Slug),
			slog.String("url", item.ProductURL),
			slog.Any("error", err),
		)
	}
}

func (e *Engine) stampItem(item *models.ScrapedItem, rc *RetailerConfig, category string) {
	if item.Retailer == "" {
		item.Retailer = rc.Slug
	}
	if item.Category == "" {
		item.Category = category
	}
	if item.ScrapedAt.IsZero() {
		item.ScrapedAt = time.Now()
	}
}

func (e *Engine) limitReached(result *models.CrawlResult) bool {
	return e.cfg.Limit > 0 && result.ItemCount >= e.cfg.Limit
}

// RunAll crawls every enabled retailer matching the filter. A failing
// retailer never aborts the others; its error is logged and the run
// continues.
func (e *Engine) RunAll(ctx context.Context, f Filter, category string) ([]*models.CrawlResult, error) {
	spiders, err := e.registry.Select(f)
	if err != nil {
		return nil, err
	}

	var results []*models.CrawlResult
	for _, sp := range spiders {
		rc := sp.Retailer()
		if category != "" && !rc.SupportsCategory(category) {
			e.logger.Warn("retailer skipped, category not listed",
				slog.String("retailer", rc.Slug),
				slog.String("category", category),
			)
			continue
		}
		result, err := e.RunRetailer(ctx, rc.Slug, category)
		if err != nil {
			e.logger.Error("retailer run failed",
				slog.String("retailer", rc.Slug),
				slog.Any("error", err),
			)
			continue
		}
		results = append(results, result)
		if ctx.Err() != nil {
			break
		}
	}
	return results, nil
}

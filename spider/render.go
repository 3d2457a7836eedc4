package spider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"

	"github.com/buildparts/hwcompat/config"
)

// clickSettle gives a listing time to swap its DOM after a next-page
// click before the wait selector is checked again.
const clickSettle = 750 * time.Millisecond

// renderFetcher drives a headless browser for retailers whose listings
// only exist after JavaScript runs. Pagination state lives in the page,
// not the URL, so reaching page N replays the click chain from page 1
// in a fresh browser tab. Stateless replay costs redundant navigation
// on deep pages but no DOM state leaks between fetches.
type renderFetcher struct {
	rc       *RetailerConfig
	cfg      *config.Config
	throttle *throttle
	metrics  *Metrics

	allocCtx    context.Context
	allocCancel context.CancelFunc

	retries int
}

// NewRenderFetcher starts a browser allocator for one retailer.
func NewRenderFetcher(rc *RetailerConfig, cfg *config.Config, metrics *Metrics) (*renderFetcher, error) {
	if rc.WaitSelector == "" {
		return nil, fmt.Errorf("retailer %s requires js but has no wait selector", rc.Slug)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(cfg.UserAgent),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &renderFetcher{
		rc:          rc,
		cfg:         cfg,
		throttle:    newThrottle(rc.StartDelay, rc.MaxDelay, rc.RandomDelay),
		metrics:     metrics,
		allocCtx:    allocCtx,
		allocCancel: cancel,
	}, nil
}

// Fetch renders the listing and replays page-1..page-N-1 next clicks to
// reach the requested page, with bounded retries around the whole
// render.
func (f *renderFetcher) Fetch(ctx context.Context, pageURL string, page int) (*goquery.Document, error) {
	if page < 1 {
		page = 1
	}

	var lastErr error
	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			f.retries++
			f.metrics.IncRetries()
			if err := sleepCtx(ctx, retryBackoff(f.cfg, attempt)); err != nil {
				return nil, err
			}
		}
		if err := f.throttle.Wait(ctx); err != nil {
			return nil, err
		}

		doc, err := f.renderOnce(ctx, pageURL, page)
		f.throttle.Observe(err)
		if err == nil {
			return doc, nil
		}
		lastErr = err
		f.metrics.IncError(errorTypeLabel(err))
		if !isRetryable(err) {
			return nil, err
		}
		slog.Debug("render retrying",
			slog.String("retailer", f.rc.Slug),
			slog.String("url", pageURL),
			slog.Int("page", page),
			slog.Int("attempt", attempt+1),
			slog.Any("error", err),
		)
	}
	return nil, fmt.Errorf("render %s page %d: retries exhausted: %w", pageURL, page, lastErr)
}

func (f *renderFetcher) renderOnce(ctx context.Context, pageURL string, page int) (*goquery.Document, error) {
	tabCtx, cancelTab := chromedp.NewContext(f.allocCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, f.cfg.RenderTimeout)
	defer cancelTimeout()

	// Honor the caller's cancellation without re-parenting the browser
	// context.
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	f.metrics.IncRequest(f.rc.Slug)
	f.metrics.IncRenders()
	start := time.Now()

	tasks := chromedp.Tasks{
		chromedp.Navigate(pageURL),
		chromedp.WaitReady(f.rc.WaitSelector, chromedp.ByQuery),
	}
	for i := 1; i < page; i++ {
		tasks = append(tasks,
			chromedp.Click(f.rc.NextSelector, chromedp.ByQuery),
			chromedp.Sleep(clickSettle),
			chromedp.WaitReady(f.rc.WaitSelector, chromedp.ByQuery),
		)
	}
	var html string
	tasks = append(tasks, chromedp.OuterHTML("html", &html, chromedp.ByQuery))

	err := chromedp.Run(tabCtx, tasks)
	f.metrics.ObserveDuration(time.Since(start))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, classifyError(err, 0)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse rendered html: %w", err)
	}
	return doc, nil
}

// Retries implements Fetcher.
func (f *renderFetcher) Retries() int {
	return f.retries
}

// Close shuts the browser allocator down.
func (f *renderFetcher) Close() error {
	f.allocCancel()
	return nil
}

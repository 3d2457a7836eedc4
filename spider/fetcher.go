package spider

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/buildparts/hwcompat/config"
)

// Fetcher retrieves one listing page as a parsed document. The page
// number lets the render fetcher replay a click chain; the HTTP fetcher
// ignores it because the URL already encodes the page.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string, page int) (*goquery.Document, error)
	// Retries reports how many retry attempts the fetcher has made.
	Retries() int
	Close() error
}

// httpFetcher fetches server-rendered retailers through a colly
// collector. The engine owns pagination and dedup, so the collector is
// synchronous with URL revisits allowed; retries wrap the whole visit.
type httpFetcher struct {
	collector *colly.Collector
	rc        *RetailerConfig
	cfg       *config.Config
	throttle  *throttle
	metrics   *Metrics

	// Captured by collector callbacks; safe because the engine issues
	// one fetch at a time per retailer.
	lastBody   []byte
	lastStatus int
	lastErr    error

	retries int
}

// NewHTTPFetcher builds a fetcher bound to one retailer's host.
func NewHTTPFetcher(rc *RetailerConfig, cfg *config.Config, metrics *Metrics) (*httpFetcher, error) {
	parsed, err := url.Parse(rc.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Host),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(cfg.Timeout)
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	// Parallelism 1 keeps at most one in-flight request per host;
	// pacing between requests is the throttle's job.
	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	f := &httpFetcher{
		collector: collector,
		rc:        rc,
		cfg:       cfg,
		throttle:  newThrottle(rc.StartDelay, rc.MaxDelay, rc.RandomDelay),
		metrics:   metrics,
	}

	collector.OnResponse(func(r *colly.Response) {
		f.lastBody = r.Body
		f.lastStatus = r.StatusCode
	})
	collector.OnError(func(r *colly.Response, err error) {
		f.lastErr = err
		if r != nil {
			f.lastStatus = r.StatusCode
		}
	})
	return f, nil
}

// SetTransport swaps the collector's transport; tests install an
// httpmock transport here.
func (f *httpFetcher) SetTransport(rt http.RoundTripper) {
	f.collector.WithTransport(rt)
}

// Fetch retrieves pageURL with bounded retries on transient failures.
func (f *httpFetcher) Fetch(ctx context.Context, pageURL string, _ int) (*goquery.Document, error) {
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

		doc, err := f.fetchOnce(pageURL)
		f.throttle.Observe(err)
		if err == nil {
			return doc, nil
		}
		lastErr = err
		f.metrics.IncError(errorTypeLabel(err))
		if !isRetryable(err) {
			return nil, err
		}
		slog.Debug("fetch retrying",
			slog.String("retailer", f.rc.Slug),
			slog.String("url", pageURL),
			slog.Int("attempt", attempt+1),
			slog.Any("error", err),
		)
	}
	return nil, fmt.Errorf("fetch %s: retries exhausted: %w", pageURL, lastErr)
}

func (f *httpFetcher) fetchOnce(pageURL string) (*goquery.Document, error) {
	f.lastBody = nil
	f.lastStatus = 0
	f.lastErr = nil

	f.metrics.IncRequest(f.rc.Slug)
	start := time.Now()
	visitErr := f.collector.Visit(pageURL)
	f.collector.Wait()
	f.metrics.ObserveDuration(time.Since(start))

	if f.lastErr != nil || visitErr != nil {
		err := f.lastErr
		if err == nil {
			err = visitErr
		}
		return nil, classifyError(err, f.lastStatus)
	}
	if f.lastStatus >= http.StatusBadRequest {
		return nil, classifyError(nil, f.lastStatus)
	}
	if len(f.lastBody) == 0 {
		return nil, fmt.Errorf("empty response body from %s", pageURL)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(f.lastBody))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// Retries implements Fetcher.
func (f *httpFetcher) Retries() int {
	return f.retries
}

// Close is a no-op; the collector holds no resources beyond its
// transport's idle connections.
func (f *httpFetcher) Close() error {
	return nil
}

// retryBackoff doubles the base per attempt, capped at the ceiling.
func retryBackoff(cfg *config.Config, attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	base := cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	delay := base * time.Duration(1<<(attempt-1))
	if max := cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

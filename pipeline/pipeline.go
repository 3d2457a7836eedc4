// Package pipeline takes scraped items through cleaning, validation,
// and ingestion, and triggers compatibility extraction asynchronously
// so extraction failures never stall a crawl.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/buildparts/hwcompat/models"
	"github.com/buildparts/hwcompat/normalize"
	"github.com/buildparts/hwcompat/spider"
	"github.com/buildparts/hwcompat/store"
)

// ErrPipelineClosed is returned when Process is called after shutdown.
var ErrPipelineClosed = errors.New("pipeline: closed")

const (
	extractionQueueSize = 512
	extractionTimeout   = 10 * time.Second
)

// Options configures a pipeline.
type Options struct {
	// Repo and Compat enable persistence; both may be nil for dump-only
	// runs.
	Repo   store.ProductRepository
	Compat store.CompatibilityStore
	// Dump collects items for a JSON output file.
	Dump *DumpWriter
	// Save gates persistence independently of Repo being present.
	Save   bool
	Logger *slog.Logger
}

type extractionJob struct {
	productID int64
	item      *models.ScrapedItem
}

// Pipeline implements spider.ItemSink. Cleaning and validation run
// inline with the crawl; compatibility extraction runs on a worker
// goroutine fed through a queue.
type Pipeline struct {
	repo   store.ProductRepository
	compat store.CompatibilityStore
	dump   *DumpWriter
	save   bool
	logger *slog.Logger

	seenMu sync.Mutex
	seen   map[string]struct{}

	jobs     chan extractionJob
	wg       sync.WaitGroup
	shutdown chan struct{}

	mu     sync.Mutex
	closed bool

	saved          int64
	extractOK      int64
	extractFailed  int64
	droppedByCause sync.Map // cause string -> *int64
}

// New builds a pipeline and starts its extraction worker.
func New(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		repo:     opts.Repo,
		compat:   opts.Compat,
		dump:     opts.Dump,
		save:     opts.Save && opts.Repo != nil,
		logger:   logger,
		seen:     make(map[string]struct{}),
		jobs:     make(chan extractionJob, extractionQueueSize),
		shutdown: make(chan struct{}),
	}
	p.wg.Add(1)
	go p.extractionWorker()
	return p
}

// Process implements spider.ItemSink: clean, validate, ingest.
func (p *Pipeline) Process(ctx context.Context, item *models.ScrapedItem) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrPipelineClosed
	}

	p.clean(item)
	if err := p.validate(item); err != nil {
		p.countDrop(err)
		p.logger.Debug("item dropped", slog.String("name", item.Name), slog.Any("error", err))
		return err
	}
	if p.isDuplicate(item.ProductURL) {
		err := fmt.Errorf("%w: duplicate url %s", spider.ErrDropItem, item.ProductURL)
		p.countDrop(err)
		return err
	}

	if p.dump != nil {
		p.dump.Add(item)
	}
	if !p.save {
		atomic.AddInt64(&p.saved, 1)
		return nil
	}

	productID, err := p.ingest(ctx, item)
	if err != nil {
		return fmt.Errorf("ingest %s: %w", item.Name, err)
	}
	atomic.AddInt64(&p.saved, 1)

	p.enqueueExtraction(extractionJob{productID: productID, item: item})
	return nil
}

// enqueueExtraction hands a job to the worker. A full queue or a
// pipeline racing shutdown skips extraction rather than blocking or
// panicking; ingestion already succeeded.
func (p *Pipeline) enqueueExtraction(job extractionJob) {
	defer func() {
		_ = recover()
	}()

	select {
	case p.jobs <- job:
	case <-p.shutdown:
	default:
		p.logger.Warn("extraction queue full, skipping",
			slog.Int64("product_id", job.productID), slog.String("name", job.item.Name))
	}
}

// clean normalizes the fields validation will inspect.
func (p *Pipeline) clean(item *models.ScrapedItem) {
	item.Name = spider.NormalizeText(item.Name)
	item.ProductURL = strings.TrimSpace(item.ProductURL)
	item.ImageURL = strings.TrimSpace(item.ImageURL)
	if item.Brand == "" {
		item.Brand = spider.ExtractBrand(item.Name)
	}
	if item.ScrapedAt.IsZero() {
		item.ScrapedAt = time.Now()
	}
}

func (p *Pipeline) validate(item *models.ScrapedItem) error {
	switch {
	case item.Name == "":
		return fmt.Errorf("%w: empty name", spider.ErrDropItem)
	case !item.Price.IsPositive():
		return fmt.Errorf("%w: non-positive price %s", spider.ErrDropItem, item.Price)
	case !item.InStock:
		// Out-of-stock, pre-order, and upcoming listings never reach the
		// catalog; it only contains purchasable items.
		return fmt.Errorf("%w: not purchasable", spider.ErrDropItem)
	case !strings.HasPrefix(item.ProductURL, "http://") && !strings.HasPrefix(item.ProductURL, "https://"):
		return fmt.Errorf("%w: product url %q is not absolute", spider.ErrDropItem, item.ProductURL)
	case item.Retailer == "":
		return fmt.Errorf("%w: missing retailer", spider.ErrDropItem)
	case item.Category == "":
		return fmt.Errorf("%w: missing category", spider.ErrDropItem)
	}
	return nil
}

func (p *Pipeline) isDuplicate(url string) bool {
	p.seenMu.Lock()
	defer p.seenMu.Unlock()
	if _, ok := p.seen[url]; ok {
		return true
	}
	p.seen[url] = struct{}{}
	return false
}

func (p *Pipeline) ingest(ctx context.Context, item *models.ScrapedItem) (int64, error) {
	product := &models.Product{
		Name:      item.Name,
		Slug:      spider.Slugify(item.Name),
		Category:  item.Category,
		Brand:     item.Brand,
		ImageURL:  item.ImageURL,
		SourceURL: item.ProductURL,
	}
	productID, err := p.repo.UpsertProduct(ctx, product)
	if err != nil {
		return 0, fmt.Errorf("upsert product: %w", err)
	}

	entry := &models.PriceEntry{
		Retailer:   item.Retailer,
		Price:      item.Price,
		ProductURL: item.ProductURL,
		InStock:    item.InStock,
		SeenAt:     item.ScrapedAt,
	}
	if err := p.repo.UpsertPrice(ctx, productID, entry); err != nil {
		return 0, fmt.Errorf("upsert price: %w", err)
	}
	return productID, nil
}

func (p *Pipeline) extractionWorker() {
	defer p.wg.Done()

	for job := range p.jobs {
		p.extract(job)
	}
}

func (p *Pipeline) extract(job extractionJob) {
	extractor, ok := normalize.ForCategory(job.item.Category)
	if !ok {
		// Categories without a normalizer (future: gpu, storage) are
		// ingested for pricing only.
		return
	}

	if p.compat == nil {
		return
	}
	res := extractor.Extract(job.item.Name, job.item.Specs, job.item.Brand)
	rec := models.RecordFromExtraction(job.productID, res)

	ctx, cancel := context.WithTimeout(context.Background(), extractionTimeout)
	defer cancel()
	if err := p.compat.Upsert(ctx, rec); err != nil {
		atomic.AddInt64(&p.extractFailed, 1)
		p.logger.Error("extraction upsert failed",
			slog.Int64("product_id", job.productID),
			slog.String("name", job.item.Name),
			slog.Any("error", err),
		)
		return
	}
	atomic.AddInt64(&p.extractOK, 1)
	if len(res.Warnings) > 0 {
		p.logger.Debug("extraction warnings",
			slog.Int64("product_id", job.productID),
			slog.String("name", job.item.Name),
			slog.Any("warnings", res.Warnings),
		)
	}
}

func (p *Pipeline) countDrop(err error) {
	cause := "invalid"
	switch msg := err.Error(); {
	case strings.Contains(msg, "duplicate"):
		cause = "duplicate"
	case strings.Contains(msg, "purchasable"):
		cause = "not_purchasable"
	}
	val, _ := p.droppedByCause.LoadOrStore(cause, new(int64))
	atomic.AddInt64(val.(*int64), 1)
}

// Stats is a snapshot of pipeline counters.
type Stats struct {
	Saved           int64
	ExtractOK       int64
	ExtractFailed   int64
	DroppedByReason map[string]int64
}

// Stats snapshots the counters.
func (p *Pipeline) Stats() Stats {
	s := Stats{
		Saved:           atomic.LoadInt64(&p.saved),
		ExtractOK:       atomic.LoadInt64(&p.extractOK),
		ExtractFailed:   atomic.LoadInt64(&p.extractFailed),
		DroppedByReason: make(map[string]int64),
	}
	p.droppedByCause.Range(func(k, v any) bool {
		s.DroppedByReason[k.(string)] = atomic.LoadInt64(v.(*int64))
		return true
	})
	return s
}

// Close drains the extraction queue, stops the worker, and finalizes
// the dump file if one was configured.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	close(p.shutdown)
	close(p.jobs)
	p.wg.Wait()

	if p.dump != nil {
		if err := p.dump.Close(); err != nil {
			return fmt.Errorf("finalize dump: %w", err)
		}
	}
	return nil
}

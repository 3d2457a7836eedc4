package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/buildparts/hwcompat/config"
	"github.com/buildparts/hwcompat/models"
	"github.com/buildparts/hwcompat/pipeline"
	"github.com/buildparts/hwcompat/spider"
	"github.com/buildparts/hwcompat/spider/sites"
	"github.com/buildparts/hwcompat/store"
)

func main() {
	defaultCfg := config.DefaultConfig()
	limitDefault := defaultCfg.Limit
	if value, ok, err := config.EnvInt("CRAWLER_LIMIT"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid CRAWLER_LIMIT: %v\n", err)
		os.Exit(1)
	} else if ok {
		limitDefault = value
	}
	dbDefault := defaultCfg.DBPath
	if value, ok := config.EnvString("CRAWLER_DB"); ok {
		dbDefault = value
	}
	outputDefault := defaultCfg.OutputFile
	if value, ok := config.EnvString("CRAWLER_OUTPUT"); ok {
		outputDefault = value
	}
	metricsDefault := defaultCfg.MetricsAddr
	if value, ok := config.EnvString("CRAWLER_METRICS_ADDR"); ok {
		metricsDefault = value
	}

	retailer := flag.String("retailer", "all", "Retailer slug, or all | js-only | except-js")
	category := flag.String("category", "", "Category to crawl: cpu, motherboard, ram (empty = all)")
	limit := flag.Int("limit", limitDefault, "Maximum items per retailer run (0 = unlimited)")
	details := flag.Bool("details", false, "Also visit product pages for specification tables")
	save := flag.Bool("save", false, "Persist products, prices, and extractions to the database")
	dbPath := flag.String("db", dbDefault, "SQLite database path")
	outputFile := flag.String("output", outputDefault, "Write collected items to a JSON dump file")
	retailersFile := flag.String("retailers", "", "Optional retailers.yaml with politeness overrides")
	maxRetries := flag.Int("max-retries", defaultCfg.MaxRetries, "Maximum fetch retry attempts")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")
	verbose := flag.Bool("v", false, "Enable verbose logging")
	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	setLogLoggerLevel(level.Level())

	cfg := config.DefaultConfig()
	cfg.Limit = *limit
	cfg.FetchDetails = *details
	cfg.Save = *save
	cfg.DBPath = *dbPath
	cfg.OutputFile = *outputFile
	cfg.MaxRetries = *maxRetries
	cfg.MetricsAddr = *metricsAddr
	cfg.Verbose = *verbose
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	registry, err := sites.Registry()
	if err != nil {
		slog.Error("building retailer registry", slog.Any("error", err))
		os.Exit(1)
	}
	if *retailersFile != "" {
		if err := registry.ApplyOverrides(*retailersFile); err != nil {
			slog.Error("applying retailer overrides", slog.Any("error", err))
			os.Exit(1)
		}
	}

	opts := pipeline.Options{Save: cfg.Save, Logger: logger}
	if cfg.Save {
		db, err := store.Open(cfg.DBPath)
		if err != nil {
			slog.Error("opening database", slog.String("path", cfg.DBPath), slog.Any("error", err))
			os.Exit(1)
		}
		defer db.Close()
		opts.Repo = db
		opts.Compat = db
	}
	if cfg.OutputFile != "" {
		dump, err := pipeline.NewDumpWriter(cfg.OutputFile)
		if err != nil {
			slog.Error("preparing output file", slog.Any("error", err))
			os.Exit(1)
		}
		opts.Dump = dump
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, waiting for in-flight work to finish")
	}()

	metrics := spider.NewMetrics()
	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	p := pipeline.New(opts)
	engine := spider.NewEngine(cfg, registry, p, metrics, logger)

	start := time.Now()
	results, err := runCrawl(ctx, engine, *retailer, *category)
	if err != nil {
		slog.Error("crawl failed", slog.Any("error", err))
		os.Exit(1)
	}

	if err := p.Close(); err != nil {
		slog.Error("pipeline shutdown failed", slog.Any("error", err))
		os.Exit(1)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(results, p.Stats(), time.Since(start), cfg.OutputFile)
}

// runCrawl dispatches to one retailer or a filtered set.
func runCrawl(ctx context.Context, engine *spider.Engine, retailer, category string) ([]*models.CrawlResult, error) {
	switch retailer {
	case string(spider.FilterAll), string(spider.FilterJSOnly), string(spider.FilterExceptJS):
		return engine.RunAll(ctx, spider.Filter(retailer), category)
	default:
		result, err := engine.RunRetailer(ctx, retailer, category)
		if err != nil {
			return nil, err
		}
		return []*models.CrawlResult{result}, nil
	}
}

func printSummary(results []*models.CrawlResult, stats pipeline.Stats, duration time.Duration, outputFile string) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Crawl complete")

	totalItems, totalErrors, totalRetries := 0, 0, 0
	for _, r := range results {
		fmt.Printf("  %-10s pages=%-3d items=%-4d saved=%-4d dropped=%-3d failed=%-3d errors=%d\n",
			r.Retailer, r.PageCount, r.ItemCount, r.SavedCount, r.DroppedCount, r.FailedCount, r.ErrorCount)
		totalItems += r.ItemCount
		totalErrors += r.ErrorCount
		totalRetries += r.RetryCount
	}

	fmt.Printf("  Total items:   %d\n", totalItems)
	fmt.Printf("  Saved:         %d\n", stats.Saved)
	if len(stats.DroppedByReason) > 0 {
		fmt.Printf("  Dropped:       %v\n", stats.DroppedByReason)
	}
	fmt.Printf("  Extractions:   %d ok, %d failed\n", stats.ExtractOK, stats.ExtractFailed)
	fmt.Printf("  Errors:        %d\n", totalErrors)
	fmt.Printf("  Retries:       %d\n", totalRetries)
	fmt.Printf("  Duration:      %v\n", duration)
	if outputFile != "" {
		fmt.Printf("  Output file:   %s\n", outputFile)
	}
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

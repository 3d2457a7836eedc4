// compatq answers compatibility queries against a crawled database:
// which motherboards fit a CPU, which RAM fits a motherboard, and
// manual attribute overrides.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/buildparts/hwcompat/compat"
	"github.com/buildparts/hwcompat/config"
	"github.com/buildparts/hwcompat/models"
	"github.com/buildparts/hwcompat/store"
)

func main() {
	defaultCfg := config.DefaultConfig()
	dbDefault := defaultCfg.DBPath
	if value, ok := config.EnvString("CRAWLER_DB"); ok {
		dbDefault = value
	}

	dbPath := flag.String("db", dbDefault, "SQLite database path")
	cpuID := flag.Int64("cpu", 0, "CPU product id: list compatible motherboards")
	moboID := flag.Int64("mobo", 0, "Motherboard product id: list compatible RAM")
	mode := flag.String("mode", "strict", "Query mode: strict or lenient")
	overrideID := flag.Int64("override", 0, "Product id to apply a manual override to")
	overrideType := flag.String("type", "", "Component type for -override: cpu, motherboard, ram")
	overrideFields := flag.String("fields", "", `Override fields as JSON, e.g. {"memory_type":"DDR4"}`)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	db, err := store.Open(*dbPath)
	if err != nil {
		slog.Error("opening database", slog.String("path", *dbPath), slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	svc := compat.NewService(db, logger)
	ctx := context.Background()

	queryMode, err := compat.ParseMode(*mode)
	if err != nil {
		slog.Error("invalid mode", slog.Any("error", err))
		os.Exit(1)
	}

	switch {
	case *overrideID != 0:
		runOverride(ctx, svc, *overrideID, *overrideType, *overrideFields)
	case *cpuID != 0:
		result, err := svc.GetCompatibleMotherboards(ctx, *cpuID, queryMode)
		if err != nil {
			slog.Error("query failed", slog.Any("error", err))
			os.Exit(1)
		}
		printJSON(result)
	case *moboID != 0:
		result, err := svc.GetCompatibleRAM(ctx, *moboID, queryMode)
		if err != nil {
			slog.Error("query failed", slog.Any("error", err))
			os.Exit(1)
		}
		printJSON(result)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func runOverride(ctx context.Context, svc *compat.Service, productID int64, componentType, fieldsJSON string) {
	if fieldsJSON == "" {
		slog.Error("-override requires -fields")
		os.Exit(2)
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(fieldsJSON), &fields); err != nil {
		slog.Error("parsing -fields", slog.Any("error", err))
		os.Exit(2)
	}

	rec, err := svc.AdminOverride(ctx, productID, models.ComponentType(componentType), fields)
	if err != nil {
		slog.Error("override failed", slog.Any("error", err))
		os.Exit(1)
	}
	fmt.Printf("record %d updated: confidence=%.2f source=%s\n", rec.ProductID, rec.Confidence, rec.Source)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		slog.Error("encoding result", slog.Any("error", err))
		os.Exit(1)
	}
}

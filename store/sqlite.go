package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/buildparts/hwcompat/models"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

const schema = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA foreign_keys = ON;

CREATE TABLE IF NOT EXISTS products (
    product_id INTEGER PRIMARY KEY AUTOINCREMENT,
    name       TEXT NOT NULL,
    slug       TEXT NOT NULL UNIQUE,
    category   TEXT NOT NULL,
    brand      TEXT,
    image_url  TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS prices (
    price_id    INTEGER PRIMARY KEY AUTOINCREMENT,
    product_id  INTEGER NOT NULL REFERENCES products(product_id) ON DELETE CASCADE,
    retailer    TEXT NOT NULL,
    price       TEXT NOT NULL,
    product_url TEXT NOT NULL,
    in_stock    BOOLEAN NOT NULL DEFAULT 1,
    seen_at     TIMESTAMP NOT NULL,
    UNIQUE (product_id, retailer)
);

CREATE INDEX IF NOT EXISTS idx_prices_url ON prices(product_url);

CREATE TABLE IF NOT EXISTS compatibility (
    product_id             INTEGER PRIMARY KEY REFERENCES products(product_id) ON DELETE CASCADE,
    component_type         TEXT NOT NULL,
    cpu_socket             TEXT,
    cpu_brand              TEXT,
    cpu_generation         TEXT,
    cpu_tdp_watts          INTEGER,
    canonical_name         TEXT,
    mobo_chipset           TEXT,
    mobo_socket            TEXT,
    mobo_form_factor       TEXT,
    memory_type            TEXT,
    memory_slots           INTEGER,
    memory_max_speed_mhz   INTEGER,
    memory_max_capacity_gb INTEGER,
    memory_capacity_gb     INTEGER,
    memory_modules         INTEGER,
    ecc                    BOOLEAN,
    confidence             REAL NOT NULL,
    extraction_source      TEXT NOT NULL,
    extraction_warnings    TEXT,
    updated_at             TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_compat_type_cpu_socket ON compatibility(component_type, cpu_socket);
CREATE INDEX IF NOT EXISTS idx_compat_type_mobo_socket ON compatibility(component_type, mobo_socket);
CREATE INDEX IF NOT EXISTS idx_compat_type_memory ON compatibility(component_type, memory_type);
`

// DB wraps the SQLite handle and implements both repository
// interfaces.
type DB struct {
	*sql.DB
	path string
}

// Open opens or creates the database at path and ensures the schema.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &DB{DB: sqlDB, path: path}, nil
}

// Transient write retries. SQLite reports lock contention as an error
// string rather than a sentinel, so matching is textual.
const (
	writeAttempts = 3
	writeBackoff  = 50 * time.Millisecond
)

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

func (db *DB) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < writeAttempts; attempt++ {
		if err = fn(); err == nil || !isBusy(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(writeBackoff << attempt):
		}
	}
	return err
}

// UpsertProduct inserts or updates a product, matching existing rows
// by slug first and by any previously recorded product URL second.
func (db *DB) UpsertProduct(ctx context.Context, p *models.Product) (int64, error) {
	var id int64
	err := db.withRetry(ctx, func() error {
		row := db.QueryRowContext(ctx, `SELECT product_id FROM products WHERE slug = ?`, p.Slug)
		err := row.Scan(&id)
		if errors.Is(err, sql.ErrNoRows) && p.SourceURL != "" {
			row = db.QueryRowContext(ctx,
				`SELECT product_id FROM prices WHERE product_url = ? LIMIT 1`, p.SourceURL)
			err = row.Scan(&id)
		}
		switch {
		case err == nil:
			_, err = db.ExecContext(ctx, `
				UPDATE products
				SET name = ?, category = ?, brand = ?, image_url = ?, updated_at = CURRENT_TIMESTAMP
				WHERE product_id = ?`,
				p.Name, p.Category, p.Brand, p.ImageURL, id)
			return err
		case errors.Is(err, sql.ErrNoRows):
			result, insertErr := db.ExecContext(ctx, `
				INSERT INTO products (name, slug, category, brand, image_url)
				VALUES (?, ?, ?, ?, ?)`,
				p.Name, p.Slug, p.Category, p.Brand, p.ImageURL)
			if insertErr != nil {
				return insertErr
			}
			id, insertErr = result.LastInsertId()
			return insertErr
		default:
			return err
		}
	})
	if err != nil {
		return 0, fmt.Errorf("upsert product %q: %w", p.Slug, err)
	}
	p.ID = id
	return id, nil
}

// UpsertPrice records a retailer's latest observed price for a product.
func (db *DB) UpsertPrice(ctx context.Context, productID int64, entry *models.PriceEntry) error {
	err := db.withRetry(ctx, func() error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO prices (product_id, retailer, price, product_url, in_stock, seen_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (product_id, retailer) DO UPDATE SET
				price = excluded.price,
				product_url = excluded.product_url,
				in_stock = excluded.in_stock,
				seen_at = excluded.seen_at`,
			productID, entry.Retailer, entry.Price.String(), entry.ProductURL, entry.InStock,
			entry.SeenAt.UTC().Format(time.RFC3339))
		return err
	})
	if err != nil {
		return fmt.Errorf("upsert price for product %d: %w", productID, err)
	}
	return nil
}

// PriceFor returns a retailer's stored price for a product.
func (db *DB) PriceFor(ctx context.Context, productID int64, retailer string) (*models.PriceEntry, error) {
	row := db.QueryRowContext(ctx, `
		SELECT retailer, price, product_url, in_stock, seen_at
		FROM prices WHERE product_id = ? AND retailer = ?`, productID, retailer)

	var entry models.PriceEntry
	var priceText, seenAt string
	if err := row.Scan(&entry.Retailer, &priceText, &entry.ProductURL, &entry.InStock, &seenAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query price: %w", err)
	}
	price, err := decimal.NewFromString(priceText)
	if err != nil {
		return nil, fmt.Errorf("parse stored price %q: %w", priceText, err)
	}
	entry.Price = price
	if ts, err := time.Parse(time.RFC3339, seenAt); err == nil {
		entry.SeenAt = ts
	}
	return &entry, nil
}

const compatColumns = `product_id, component_type, cpu_socket, cpu_brand, cpu_generation,
	cpu_tdp_watts, canonical_name, mobo_chipset, mobo_socket, mobo_form_factor,
	memory_type, memory_slots, memory_max_speed_mhz, memory_max_capacity_gb,
	memory_capacity_gb, memory_modules, ecc, confidence, extraction_source,
	extraction_warnings, updated_at`

// Upsert creates or overwrites the compatibility record for a product.
func (db *DB) Upsert(ctx context.Context, rec *models.CompatibilityRecord) error {
	warnings, err := encodeWarnings(rec.Warnings)
	if err != nil {
		return err
	}
	err = db.withRetry(ctx, func() error {
		_, execErr := db.ExecContext(ctx, `
			INSERT INTO compatibility (`+compatColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (product_id) DO UPDATE SET
				component_type = excluded.component_type,
				cpu_socket = excluded.cpu_socket,
				cpu_brand = excluded.cpu_brand,
				cpu_generation = excluded.cpu_generation,
				cpu_tdp_watts = excluded.cpu_tdp_watts,
				canonical_name = excluded.canonical_name,
				mobo_chipset = excluded.mobo_chipset,
				mobo_socket = excluded.mobo_socket,
				mobo_form_factor = excluded.mobo_form_factor,
				memory_type = excluded.memory_type,
				memory_slots = excluded.memory_slots,
				memory_max_speed_mhz = excluded.memory_max_speed_mhz,
				memory_max_capacity_gb = excluded.memory_max_capacity_gb,
				memory_capacity_gb = excluded.memory_capacity_gb,
				memory_modules = excluded.memory_modules,
				ecc = excluded.ecc,
				confidence = excluded.confidence,
				extraction_source = excluded.extraction_source,
				extraction_warnings = excluded.extraction_warnings,
				updated_at = excluded.updated_at`,
			rec.ProductID, string(rec.ComponentType),
			nullString(rec.CPUSocket), nullString(rec.CPUBrand), nullString(rec.CPUGeneration),
			nullInt(rec.CPUTDPWatts), nullString(rec.CanonicalName),
			nullString(rec.MoboChipset), nullString(rec.MoboSocket), nullString(rec.MoboFormFactor),
			nullString(rec.MemoryType), nullInt(rec.MemorySlots), nullInt(rec.MemoryMaxSpeedMHz),
			nullInt(rec.MemoryMaxCapacityGB), nullInt(rec.MemoryCapacityGB), nullInt(rec.MemoryModules),
			nullBool(rec.ECC), rec.Confidence, string(rec.Source), warnings,
			rec.UpdatedAt.UTC().Format(time.RFC3339))
		return execErr
	})
	if err != nil {
		return fmt.Errorf("upsert compatibility for product %d: %w", rec.ProductID, err)
	}
	return nil
}

// Get returns the compatibility record for one product.
func (db *DB) Get(ctx context.Context, productID int64) (*models.CompatibilityRecord, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+compatColumns+` FROM compatibility WHERE product_id = ?`, productID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get compatibility for product %d: %w", productID, err)
	}
	return rec, nil
}

// ByComponentType returns every record of one component type.
func (db *DB) ByComponentType(ctx context.Context, ct models.ComponentType) ([]*models.CompatibilityRecord, error) {
	return db.queryRecords(ctx,
		`SELECT `+compatColumns+` FROM compatibility WHERE component_type = ?`, string(ct))
}

// BySocket returns records of one type whose socket matches exactly.
func (db *DB) BySocket(ctx context.Context, ct models.ComponentType, socket string) ([]*models.CompatibilityRecord, error) {
	column := "mobo_socket"
	if ct == models.ComponentCPU {
		column = "cpu_socket"
	}
	return db.queryRecords(ctx,
		`SELECT `+compatColumns+` FROM compatibility WHERE component_type = ? AND `+column+` = ?`,
		string(ct), socket)
}

// ByMemoryType returns records of one type with a given DDR type.
func (db *DB) ByMemoryType(ctx context.Context, ct models.ComponentType, memoryType string) ([]*models.CompatibilityRecord, error) {
	return db.queryRecords(ctx,
		`SELECT `+compatColumns+` FROM compatibility WHERE component_type = ? AND memory_type = ?`,
		string(ct), memoryType)
}

func (db *DB) queryRecords(ctx context.Context, query string, args ...any) ([]*models.CompatibilityRecord, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query compatibility: %w", err)
	}
	defer rows.Close()

	var records []*models.CompatibilityRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan compatibility row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate compatibility rows: %w", err)
	}
	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*models.CompatibilityRecord, error) {
	var rec models.CompatibilityRecord
	var componentType, source string
	var cpuSocket, cpuBrand, cpuGeneration, canonicalName sql.NullString
	var moboChipset, moboSocket, moboFormFactor, memoryType sql.NullString
	var tdp, slots, maxSpeed, maxCapacity, capacity, modules sql.NullInt64
	var ecc sql.NullBool
	var warnings sql.NullString
	var updatedAt string

	if err := s.Scan(&rec.ProductID, &componentType, &cpuSocket, &cpuBrand, &cpuGeneration,
		&tdp, &canonicalName, &moboChipset, &moboSocket, &moboFormFactor,
		&memoryType, &slots, &maxSpeed, &maxCapacity, &capacity, &modules,
		&ecc, &rec.Confidence, &source, &warnings, &updatedAt); err != nil {
		return nil, err
	}

	rec.ComponentType = models.ComponentType(componentType)
	rec.Source = models.Source(source)
	rec.CPUSocket = cpuSocket.String
	rec.CPUBrand = cpuBrand.String
	rec.CPUGeneration = cpuGeneration.String
	rec.CPUTDPWatts = int(tdp.Int64)
	rec.CanonicalName = canonicalName.String
	rec.MoboChipset = moboChipset.String
	rec.MoboSocket = moboSocket.String
	rec.MoboFormFactor = moboFormFactor.String
	rec.MemoryType = memoryType.String
	rec.MemorySlots = int(slots.Int64)
	rec.MemoryMaxSpeedMHz = int(maxSpeed.Int64)
	rec.MemoryMaxCapacityGB = int(maxCapacity.Int64)
	rec.MemoryCapacityGB = int(capacity.Int64)
	rec.MemoryModules = int(modules.Int64)
	if ecc.Valid {
		value := ecc.Bool
		rec.ECC = &value
	}
	if warnings.Valid && warnings.String != "" {
		if err := json.Unmarshal([]byte(warnings.String), &rec.Warnings); err != nil {
			return nil, fmt.Errorf("decode warnings: %w", err)
		}
	}
	if ts, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		rec.UpdatedAt = ts
	}
	return &rec, nil
}

func encodeWarnings(warnings []string) (sql.NullString, error) {
	if len(warnings) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(warnings)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode warnings: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(n int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(n), Valid: n != 0}
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/buildparts/hwcompat/models"
)

// Dump is the JSON document an output file contains.
type Dump struct {
	ScrapedAt  time.Time             `json:"scraped_at"`
	Spider     string                `json:"spider"`
	Category   string                `json:"category"`
	TotalItems int                   `json:"total_items"`
	Items      []*models.ScrapedItem `json:"items"`
}

// DumpWriter buffers crawled items and writes them as one JSON document
// on Close. Items from multiple retailers in the same run are tagged
// with spider "all".
type DumpWriter struct {
	mu    sync.Mutex
	path  string
	items []*models.ScrapedItem
}

// NewDumpWriter prepares a dump targeting path; parent directories are
// created on demand.
func NewDumpWriter(path string) (*DumpWriter, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return &DumpWriter{path: path}, nil
}

// Add buffers one item.
func (w *DumpWriter) Add(item *models.ScrapedItem) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.items = append(w.items, item)
}

// Len reports how many items are buffered.
func (w *DumpWriter) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.items)
}

// Close writes the dump document.
func (w *DumpWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	dump := &Dump{
		ScrapedAt:  time.Now(),
		TotalItems: len(w.items),
		Items:      w.items,
	}
	dump.Spider, dump.Category = dumpLabels(w.items)

	f, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("create dump file: %w", err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(dump); err != nil {
		f.Close()
		return fmt.Errorf("encode dump: %w", err)
	}
	return f.Close()
}

// dumpLabels derives the spider and category tags: the single shared
// value, or "all" when items span more than one.
func dumpLabels(items []*models.ScrapedItem) (spider, category string) {
	for _, item := range items {
		switch {
		case spider == "":
			spider = item.Retailer
		case spider != item.Retailer:
			spider = "all"
		}
		switch {
		case category == "":
			category = item.Category
		case category != item.Category:
			category = "all"
		}
	}
	return spider, category
}

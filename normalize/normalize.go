// Package normalize turns free-text product titles and inconsistent
// retailer spec tables into typed, confidence-scored compatibility
// attributes. One extractor exists per component type; all of them share
// the same lookup cascade: spec table first, title second, inference
// from a related attribute third.
package normalize

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/buildparts/hwcompat/models"
)

// DDR speed thresholds in MT/s, shared by the motherboard and RAM
// extractors so speed-based inference stays symmetric.
const (
	DDR5FloorMTs   = 4800
	DDR4CeilingMTs = 3600
)

// Extractor is implemented once per component type.
type Extractor interface {
	ComponentType() models.ComponentType
	Extract(title string, specs map[string]any, brand string) *models.ExtractionResult
}

// ForCategory resolves the extractor responsible for a crawl category.
func ForCategory(category string) (Extractor, bool) {
	switch strings.ToLower(strings.TrimSpace(category)) {
	case "cpu", "processor", "processors":
		return CPU{}, true
	case "motherboard", "motherboards", "mainboard":
		return Motherboard{}, true
	case "ram", "memory", "desktop-ram":
		return RAM{}, true
	}
	return nil, false
}

var trademarkReplacer = strings.NewReplacer("®", "", "™", "", "©", "")

func stripTrademarks(s string) string {
	return trademarkReplacer.Replace(s)
}

// normKey collapses a spec key for synonym matching: lowercase with
// spaces, hyphens, and underscores removed.
func normKey(key string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(key) {
		switch r {
		case ' ', '-', '_', '.', ':':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// flatten renders an arbitrary spec value as a single searchable
// string. Retailer JSON nests values as lists or localized maps, so
// pattern matching always happens against the flattened form.
func flatten(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s := flatten(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	case []string:
		return strings.Join(v, " ")
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			if s := flatten(v[k]); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	default:
		return fmt.Sprintf("%v", v)
	}
}

// specValue returns the flattened value of the first synonym key
// present in the spec table.
func specValue(specs map[string]any, synonyms ...string) (string, bool) {
	if len(specs) == 0 {
		return "", false
	}
	normalized := make(map[string]string, len(specs))
	for key, value := range specs {
		nk := normKey(key)
		if _, exists := normalized[nk]; !exists {
			normalized[nk] = flatten(value)
		}
	}
	for _, syn := range synonyms {
		if value, ok := normalized[normKey(syn)]; ok && strings.TrimSpace(value) != "" {
			return value, true
		}
	}
	return "", false
}

// specSearch concatenates every spec value whose key matches a synonym,
// for attributes that may be spread over several rows.
func specSearch(specs map[string]any, contains ...string) string {
	if len(specs) == 0 {
		return ""
	}
	var parts []string
	keys := make([]string, 0, len(specs))
	for key := range specs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		nk := normKey(key)
		for _, sub := range contains {
			if strings.Contains(nk, normKey(sub)) {
				if s := flatten(specs[key]); s != "" {
					parts = append(parts, s)
				}
				break
			}
		}
	}
	return strings.Join(parts, " ")
}

// match holds one resolved attribute and its provenance.
type match struct {
	value      string
	source     models.Source
	confidence float64
}

// cascade runs the shared specs → title lookup for a pattern-matched
// attribute. Inference (the third level) is component-specific and
// handled by each extractor.
func cascade(title string, specs map[string]any, synonyms []string, find func(string) (string, bool)) (match, bool) {
	if raw, ok := specValue(specs, synonyms...); ok {
		if value, found := find(raw); found {
			return match{value: value, source: models.SourceSpecs, confidence: models.ConfidenceSpecs}, true
		}
	}
	if value, found := find(title); found {
		return match{value: value, source: models.SourceTitle, confidence: models.ConfidenceTitle}, true
	}
	return match{}, false
}

// result assembles an ExtractionResult whose overall confidence and
// source mirror the deciding attribute.
func result(ct models.ComponentType, attrs map[string]any, deciding match, decided bool, warnings []string) *models.ExtractionResult {
	res := &models.ExtractionResult{
		ComponentType: ct,
		Attributes:    attrs,
		Source:        models.SourceNone,
		Warnings:      warnings,
	}
	if decided {
		res.Source = deciding.source
		res.Confidence = deciding.confidence
	}
	return res
}

var ddrTypeRe = regexp.MustCompile(`(?i)\bDDR([2-5])\b`)

func findDDRType(text string) (string, bool) {
	if m := ddrTypeRe.FindStringSubmatch(text); m != nil {
		return "DDR" + m[1], true
	}
	return "", false
}

var firstIntRe = regexp.MustCompile(`\d+`)

func firstInt(text string) (int, bool) {
	m := firstIntRe.FindString(text)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

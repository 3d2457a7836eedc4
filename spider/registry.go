package spider

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// RetailerConfig describes one retailer: identity, rendering policy,
// politeness parameters, and the selectors a JS click-chain needs.
type RetailerConfig struct {
	Slug    string
	Name    string
	BaseURL string
	// RequiresJS selects the headless render fetcher; pagination then
	// happens by clicking NextSelector instead of following URLs.
	RequiresJS bool
	// Categories maps canonical category slugs (cpu, motherboard, ram)
	// to the retailer's listing paths.
	Categories map[string]string

	StartDelay  time.Duration
	MaxDelay    time.Duration
	RandomDelay time.Duration

	// NextSelector is the clickable next-page control; WaitSelector is
	// an element whose readiness signals the listing rendered.
	NextSelector string
	WaitSelector string

	Enabled bool
}

// SupportsCategory reports whether the retailer lists the category.
func (rc *RetailerConfig) SupportsCategory(category string) bool {
	_, ok := rc.Categories[category]
	return ok
}

// Filter selects a subset of registered retailers for a run.
type Filter string

const (
	FilterAll      Filter = "all"
	FilterJSOnly   Filter = "js-only"
	FilterExceptJS Filter = "except-js"
)

// Registry is the closed set of retailer spiders, fixed at startup.
// Unknown slugs fail a single retailer's run, never the whole job.
type Registry struct {
	spiders map[string]Spider
	order   []string
}

// NewRegistry indexes spiders by retailer slug.
func NewRegistry(spiders ...Spider) (*Registry, error) {
	r := &Registry{spiders: make(map[string]Spider, len(spiders))}
	for _, sp := range spiders {
		rc := sp.Retailer()
		if rc == nil || rc.Slug == "" {
			return nil, fmt.Errorf("spider %T has no retailer slug", sp)
		}
		if _, dup := r.spiders[rc.Slug]; dup {
			return nil, fmt.Errorf("duplicate retailer slug %q", rc.Slug)
		}
		r.spiders[rc.Slug] = sp
		r.order = append(r.order, rc.Slug)
	}
	sort.Strings(r.order)
	return r, nil
}

// Get resolves a retailer slug.
func (r *Registry) Get(slug string) (Spider, error) {
	sp, ok := r.spiders[slug]
	if !ok {
		return nil, ErrUnknownRetailer{Slug: slug}
	}
	return sp, nil
}

// Slugs lists registered retailer slugs in stable order.
func (r *Registry) Slugs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Select returns enabled spiders matching the filter, in stable order.
func (r *Registry) Select(f Filter) ([]Spider, error) {
	var out []Spider
	for _, slug := range r.order {
		sp := r.spiders[slug]
		rc := sp.Retailer()
		if !rc.Enabled {
			continue
		}
		switch f {
		case FilterAll:
		case FilterJSOnly:
			if !rc.RequiresJS {
				continue
			}
		case FilterExceptJS:
			if rc.RequiresJS {
				continue
			}
		default:
			return nil, fmt.Errorf("unknown retailer filter %q", f)
		}
		out = append(out, sp)
	}
	return out, nil
}

// retailerOverride is the YAML shape for per-retailer tuning. Only
// politeness and the enabled switch are overridable; identity and
// selectors stay in code.
type retailerOverride struct {
	StartDelay  *time.Duration `yaml:"start_delay"`
	MaxDelay    *time.Duration `yaml:"max_delay"`
	RandomDelay *time.Duration `yaml:"random_delay"`
	Enabled     *bool          `yaml:"enabled"`
}

// ApplyOverrides loads a retailers.yaml file and applies per-slug
// politeness overrides. Unknown slugs in the file are an error so a
// typo cannot silently no-op.
func (r *Registry) ApplyOverrides(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read retailer overrides: %w", err)
	}

	var overrides map[string]retailerOverride
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return fmt.Errorf("parse retailer overrides: %w", err)
	}

	for slug, ov := range overrides {
		sp, ok := r.spiders[slug]
		if !ok {
			return fmt.Errorf("retailer overrides: %w", ErrUnknownRetailer{Slug: slug})
		}
		rc := sp.Retailer()
		if ov.StartDelay != nil {
			rc.StartDelay = *ov.StartDelay
		}
		if ov.MaxDelay != nil {
			rc.MaxDelay = *ov.MaxDelay
		}
		if ov.RandomDelay != nil {
			rc.RandomDelay = *ov.RandomDelay
		}
		if ov.Enabled != nil {
			rc.Enabled = *ov.Enabled
		}
	}
	return nil
}

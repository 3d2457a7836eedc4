// Package sites holds the concrete retailer spiders. The registry
// built here is the closed set of supported retailers; adding one means
// adding a spider type and listing it in Registry.
package sites

import "github.com/buildparts/hwcompat/spider"

// Registry builds the full retailer registry.
func Registry() (*spider.Registry, error) {
	return spider.NewRegistry(
		NewStartech(),
		NewTechland(),
		NewRyans(),
	)
}

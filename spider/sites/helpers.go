package sites

import (
	"strings"

	"github.com/shopspring/decimal"
)

var priceZero = decimal.Zero

// absoluteURL resolves a possibly relative href against the retailer
// base. Retailer markup mixes absolute and relative links freely.
func absoluteURL(base, href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return strings.TrimSuffix(base, "/") + href
}

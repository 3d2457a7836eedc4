package spider

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	priceDigitsRe = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
	slugStripRe   = regexp.MustCompile(`[^a-z0-9]+`)
)

// ParsePrice extracts the first numeric amount from retailer price text,
// tolerating currency symbols, thousands separators, and surrounding
// noise ("121,500৳", "Tk 9,800", "$ 1,299.00"). Returns false when no
// usable amount is present, e.g. "Call for Price" or "TBA".
func ParsePrice(text string) (decimal.Decimal, bool) {
	raw := priceDigitsRe.FindString(text)
	if raw == "" {
		return decimal.Zero, false
	}
	raw = strings.ReplaceAll(raw, ",", "")
	price, err := decimal.NewFromString(raw)
	if err != nil || !price.IsPositive() {
		return decimal.Zero, false
	}
	return price, true
}

// NormalizeText collapses runs of whitespace (including newlines from
// pretty-printed HTML) into single spaces and trims the result.
func NormalizeText(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// Slugify lowercases a product name into a stable url-safe slug used
// for cross-retailer product matching.
func Slugify(name string) string {
	s := strings.ToLower(NormalizeText(name))
	s = slugStripRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// knownBrands is ordered so multi-word brands match before their
// substrings ("G.Skill" before "G").
var knownBrands = []string{
	"AMD", "Intel",
	"ASUS", "ASRock", "Gigabyte", "MSI", "Biostar", "NZXT", "EVGA",
	"Corsair", "G.Skill", "Kingston", "Crucial", "TeamGroup", "Team",
	"ADATA", "XPG", "Patriot", "Transcend", "PNY", "Lexar",
	"Samsung", "HyperX", "Netac", "Apacer", "Silicon Power", "Geil", "Twinmos",
}

// ExtractBrand picks the product brand from a listing title, preferring
// a known-brand substring match and falling back to the first token.
func ExtractBrand(name string) string {
	lower := strings.ToLower(name)
	for _, brand := range knownBrands {
		if strings.Contains(lower, strings.ToLower(brand)) {
			return brand
		}
	}
	fields := strings.Fields(NormalizeText(name))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

var outOfStockMarkers = []string{
	"out of stock", "stock out", "sold out",
	"pre order", "pre-order", "upcoming", "unavailable",
	"call for price",
}

// ParseStock interprets a retailer availability string. Empty or
// unrecognized text counts as in stock; retailers only call it out when
// a listing is not purchasable.
func ParseStock(text string) bool {
	lower := strings.ToLower(NormalizeText(text))
	if lower == "" {
		return true
	}
	for _, marker := range outOfStockMarkers {
		if strings.Contains(lower, marker) {
			return false
		}
	}
	return true
}

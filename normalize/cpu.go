package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/buildparts/hwcompat/models"
)

// CPU extracts socket, brand, generation, TDP, and a canonical name
// from processor listings.
type CPU struct{}

func (CPU) ComponentType() models.ComponentType { return models.ComponentCPU }

// cpuSocketPatterns is tried in order; longer or newer socket codes
// come before substrings that could shadow them.
var cpuSocketPatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"sWRX8", regexp.MustCompile(`(?i)\bsWRX8\b`)},
	{"sTRX4", regexp.MustCompile(`(?i)\bsTRX4\b`)},
	{"TR4", regexp.MustCompile(`(?i)\bTR4\b`)},
	{"AM5", regexp.MustCompile(`(?i)\bAM5\b`)},
	{"AM4", regexp.MustCompile(`(?i)\bAM4\b`)},
	{"AM3+", regexp.MustCompile(`(?i)\bAM3\+`)},
	{"FM2+", regexp.MustCompile(`(?i)\bFM2\+`)},
	{"LGA1851", regexp.MustCompile(`(?i)\bLGA\s*1851\b`)},
	{"LGA1700", regexp.MustCompile(`(?i)\bLGA\s*1700\b`)},
	{"LGA1200", regexp.MustCompile(`(?i)\bLGA\s*1200\b`)},
	{"LGA2066", regexp.MustCompile(`(?i)\bLGA\s*2066\b`)},
	{"LGA2011-3", regexp.MustCompile(`(?i)\bLGA\s*2011-?3\b`)},
	{"LGA1151", regexp.MustCompile(`(?i)\bLGA\s*1151\b`)},
	{"LGA1150", regexp.MustCompile(`(?i)\bLGA\s*1150\b`)},
	{"LGA1155", regexp.MustCompile(`(?i)\bLGA\s*1155\b`)},
}

func findCPUSocket(text string) (string, bool) {
	for _, p := range cpuSocketPatterns {
		if p.re.MatchString(text) {
			return p.name, true
		}
	}
	return "", false
}

// generationRules infer socket (and generation) from the model number
// when no socket is spelled out anywhere. This is the level-3 fallback
// of the cascade.
var generationRules = []struct {
	re         *regexp.Regexp
	generation string
	socket     string
}{
	{regexp.MustCompile(`(?i)\bryzen\s*[3579]?\s*9\d{3}`), "Ryzen 9000 series", "AM5"},
	{regexp.MustCompile(`(?i)\bryzen\s*[3579]?\s*8\d{3}`), "Ryzen 8000 series", "AM5"},
	{regexp.MustCompile(`(?i)\bryzen\s*[3579]?\s*7\d{3}`), "Ryzen 7000 series", "AM5"},
	{regexp.MustCompile(`(?i)\bryzen\s*[3579]?\s*5\d{3}`), "Ryzen 5000 series", "AM4"},
	{regexp.MustCompile(`(?i)\bryzen\s*[3579]?\s*4\d{3}`), "Ryzen 4000 series", "AM4"},
	{regexp.MustCompile(`(?i)\bryzen\s*[3579]?\s*3\d{3}`), "Ryzen 3000 series", "AM4"},
	{regexp.MustCompile(`(?i)\bryzen\s*[3579]?\s*2\d{3}`), "Ryzen 2000 series", "AM4"},
	{regexp.MustCompile(`(?i)\bryzen\s*[3579]?\s*1\d{3}`), "Ryzen 1000 series", "AM4"},
	{regexp.MustCompile(`(?i)\bcore\s*ultra\b`), "Core Ultra series 2", "LGA1851"},
	{regexp.MustCompile(`(?i)\bi[3579][\s-]*14\d{3}`), "Intel 14th gen", "LGA1700"},
	{regexp.MustCompile(`(?i)\bi[3579][\s-]*13\d{3}`), "Intel 13th gen", "LGA1700"},
	{regexp.MustCompile(`(?i)\bi[3579][\s-]*12\d{3}`), "Intel 12th gen", "LGA1700"},
	{regexp.MustCompile(`(?i)\bi[3579][\s-]*11\d{3}`), "Intel 11th gen", "LGA1200"},
	{regexp.MustCompile(`(?i)\bi[3579][\s-]*10\d{3}`), "Intel 10th gen", "LGA1200"},
	{regexp.MustCompile(`(?i)\bi[3579][\s-]*9\d{3}`), "Intel 9th gen", "LGA1151"},
	{regexp.MustCompile(`(?i)\bi[3579][\s-]*8\d{3}`), "Intel 8th gen", "LGA1151"},
}

func inferGeneration(title string) (generation, socket string, ok bool) {
	for _, rule := range generationRules {
		if rule.re.MatchString(title) {
			return rule.generation, rule.socket, true
		}
	}
	return "", "", false
}

var (
	amdIndicators   = []string{"amd", "ryzen", "threadripper", "athlon", "epyc", "opteron"}
	intelIndicators = []string{"intel", "core i", "core ultra", "xeon", "pentium", "celeron"}
)

// extractCPUBrand matches indicator substrings in the title. The title
// overrides a passed-in hint only for the two canonical brand names.
func extractCPUBrand(title, hint string) string {
	lower := strings.ToLower(title)
	for _, ind := range amdIndicators {
		if strings.Contains(lower, ind) {
			return "AMD"
		}
	}
	for _, ind := range intelIndicators {
		if strings.Contains(lower, ind) {
			return "Intel"
		}
	}
	return strings.TrimSpace(hint)
}

// TDP plausibility bounds, rejecting false positives from unrelated
// numbers in the title.
const (
	tdpMinWatts = 5
	tdpMaxWatts = 500
)

var tdpRe = regexp.MustCompile(`(?i)\b(\d{1,3})\s*W(?:att)?s?\b`)

func findTDP(text string) (int, bool) {
	for _, m := range tdpRe.FindAllStringSubmatch(text, -1) {
		watts, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if watts >= tdpMinWatts && watts <= tdpMaxWatts {
			return watts, true
		}
	}
	return 0, false
}

// canonicalCPUPatterns are tried in fixed priority order; the first
// structural match wins. Used for joining against external CPU
// datasets, so the output shape matters more than completeness.
var canonicalCPUPatterns = []struct {
	re     *regexp.Regexp
	render func([]string) string
}{
	{regexp.MustCompile(`(?i)\bcore\s*i([3579])[\s-]*(\d{3,5}[A-Z]{0,2})\b`),
		func(m []string) string { return fmt.Sprintf("Core i%s-%s", m[1], strings.ToUpper(m[2])) }},
	{regexp.MustCompile(`(?i)\bcore\s*ultra\s*([3579])[\s-]*(\d{3}[A-Z]{0,2})\b`),
		func(m []string) string { return fmt.Sprintf("Core Ultra %s %s", m[1], strings.ToUpper(m[2])) }},
	{regexp.MustCompile(`(?i)\bryzen\s*([3579])\s*(?:pro\s+)?(\d{4}[A-Z0-9]{0,4})\b`),
		func(m []string) string { return fmt.Sprintf("Ryzen %s %s", m[1], strings.ToUpper(m[2])) }},
	{regexp.MustCompile(`(?i)\bthreadripper\s*(pro)?\s*(\d{4}[A-Z]{0,3})\b`),
		func(m []string) string {
			if m[1] != "" {
				return fmt.Sprintf("Threadripper PRO %s", strings.ToUpper(m[2]))
			}
			return fmt.Sprintf("Threadripper %s", strings.ToUpper(m[2]))
		}},
	{regexp.MustCompile(`(?i)\bxeon\s*((?:E[357]?|W|Gold|Silver|Bronze|Platinum)[\s-]?\d{4}[A-Z]?(?:\s*v\d)?)\b`),
		func(m []string) string { return "Xeon " + strings.TrimSpace(m[1]) }},
	{regexp.MustCompile(`(?i)\bepyc\s*(\d{4}[A-Z]?)\b`),
		func(m []string) string { return "EPYC " + strings.ToUpper(m[1]) }},
	{regexp.MustCompile(`(?i)\bathlon\s*(?:gold\s+|silver\s+|x4\s+|ii\s+)?(\d{3,4}[A-Z]{0,2})\b`),
		func(m []string) string { return "Athlon " + strings.ToUpper(m[1]) }},
	{regexp.MustCompile(`(?i)\bamd\b.*\b(A(?:6|8|10|12)[\s-]?\d{4}[A-Z]?)\b`),
		func(m []string) string { return strings.ToUpper(strings.ReplaceAll(m[1], " ", "-")) }},
	{regexp.MustCompile(`(?i)\bopteron\s*(\d{3,4}[A-Z]{0,2})\b`),
		func(m []string) string { return "Opteron " + strings.ToUpper(m[1]) }},
	{regexp.MustCompile(`(?i)\bi7[\s-]*(\d{3,4}X)\b[^,]*\bextreme\b`),
		func(m []string) string { return fmt.Sprintf("Core i7-%s Extreme", strings.ToUpper(m[1])) }},
	{regexp.MustCompile(`(?i)\bpentium\s*(?:gold\s+)?(G\d{4}[A-Z]?)\b`),
		func(m []string) string { return "Pentium Gold " + strings.ToUpper(m[1]) }},
	{regexp.MustCompile(`(?i)\bceleron\s*(G?\d{3,4}[A-Z]?)\b`),
		func(m []string) string { return "Celeron " + strings.ToUpper(m[1]) }},
}

// CanonicalCPUName derives a dataset-join key from a listing title.
func CanonicalCPUName(title string) (string, bool) {
	clean := stripTrademarks(title)
	for _, p := range canonicalCPUPatterns {
		if m := p.re.FindStringSubmatch(clean); m != nil {
			return p.render(m), true
		}
	}
	return "", false
}

var cpuSocketSynonyms = []string{"socket", "cpu socket", "socket type", "supported socket", "package"}
var cpuTDPSynonyms = []string{"tdp", "default tdp", "processor base power", "wattage", "max tdp"}

// Extract implements the Extractor contract for processors.
func (CPU) Extract(title string, specs map[string]any, brand string) *models.ExtractionResult {
	title = stripTrademarks(title)
	attrs := make(map[string]any)
	var warnings []string

	socket, socketFound := cascade(title, specs, cpuSocketSynonyms, findCPUSocket)

	generation, inferredSocket, genFound := inferGeneration(title)
	if !socketFound && genFound {
		socket = match{value: inferredSocket, source: models.SourceInferred, confidence: models.ConfidenceInferred}
		socketFound = true
	}
	if socketFound {
		attrs[models.AttrCPUSocket] = socket.value
	} else {
		warnings = append(warnings, "cpu socket could not be determined")
	}
	if genFound {
		attrs[models.AttrCPUGeneration] = generation
	}

	if b := extractCPUBrand(title, brand); b != "" {
		attrs[models.AttrCPUBrand] = b
	}

	if raw, ok := specValue(specs, cpuTDPSynonyms...); ok {
		if watts, found := findTDP(raw); found {
			attrs[models.AttrCPUTDPWatts] = watts
		}
	}
	if _, ok := attrs[models.AttrCPUTDPWatts]; !ok {
		if watts, found := findTDP(title); found {
			attrs[models.AttrCPUTDPWatts] = watts
		}
	}

	if name, ok := CanonicalCPUName(title); ok {
		attrs[models.AttrCanonicalCPUName] = name
	} else {
		warnings = append(warnings, "no canonical cpu name pattern matched")
	}

	return result(models.ComponentCPU, attrs, socket, socketFound, warnings)
}

package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/buildparts/hwcompat/models"
)

// Motherboard extracts chipset, socket, form factor, and memory-side
// attributes from motherboard listings. The chipset is resolved first
// because both the socket and the memory type can be inferred from it.
type Motherboard struct{}

func (Motherboard) ComponentType() models.ComponentType { return models.ComponentMotherboard }

// chipsetSocket maps chipset codes to the socket they imply.
var chipsetSocket = map[string]string{
	// AMD AM4
	"A320": "AM4", "B350": "AM4", "X370": "AM4",
	"B450": "AM4", "X470": "AM4",
	"A520": "AM4", "B550": "AM4", "X570": "AM4",
	// AMD AM5
	"A620": "AM5", "B650": "AM5", "B650E": "AM5",
	"X670": "AM5", "X670E": "AM5",
	"B840": "AM5", "B850": "AM5", "X870": "AM5", "X870E": "AM5",
	// AMD HEDT
	"X399": "TR4", "TRX40": "sTRX4", "WRX80": "sWRX8",
	// Intel 100/200/300 series
	"H110": "LGA1151", "B150": "LGA1151", "B250": "LGA1151",
	"H270": "LGA1151", "Z170": "LGA1151", "Z270": "LGA1151",
	"H310": "LGA1151", "B360": "LGA1151", "B365": "LGA1151",
	"H370": "LGA1151", "Z370": "LGA1151", "Z390": "LGA1151",
	// Intel 400/500 series
	"H410": "LGA1200", "B460": "LGA1200", "H470": "LGA1200", "Z490": "LGA1200",
	"H510": "LGA1200", "B560": "LGA1200", "H570": "LGA1200", "Z590": "LGA1200",
	// Intel 600/700 series
	"H610": "LGA1700", "B660": "LGA1700", "H670": "LGA1700", "Z690": "LGA1700",
	"B760": "LGA1700", "H770": "LGA1700", "Z790": "LGA1700",
	// Intel 800 series
	"H810": "LGA1851", "B860": "LGA1851", "Z890": "LGA1851", "W880": "LGA1851",
	// Intel HEDT
	"X99": "LGA2011-3", "X299": "LGA2066",
}

// chipsetMemory maps chipset codes to supported DDR types. Entries with
// two types are the dual-DDR chipsets whose boards exist in both DDR4
// and DDR5 variants under the same name.
var chipsetMemory = map[string][]string{
	"A320": {"DDR4"}, "B350": {"DDR4"}, "X370": {"DDR4"},
	"B450": {"DDR4"}, "X470": {"DDR4"},
	"A520": {"DDR4"}, "B550": {"DDR4"}, "X570": {"DDR4"},
	"H310": {"DDR4"}, "B360": {"DDR4"}, "B365": {"DDR4"},
	"H370": {"DDR4"}, "Z370": {"DDR4"}, "Z390": {"DDR4"},
	"H410": {"DDR4"}, "B460": {"DDR4"}, "H470": {"DDR4"}, "Z490": {"DDR4"},
	"H510": {"DDR4"}, "B560": {"DDR4"}, "H570": {"DDR4"}, "Z590": {"DDR4"},

	"H610": {"DDR4", "DDR5"}, "B660": {"DDR4", "DDR5"},
	"H670": {"DDR4", "DDR5"}, "Z690": {"DDR4", "DDR5"},
	"B760": {"DDR4", "DDR5"}, "H770": {"DDR4", "DDR5"}, "Z790": {"DDR4", "DDR5"},
	"B650": {"DDR4", "DDR5"},

	"A620": {"DDR5"}, "B650E": {"DDR5"},
	"X670": {"DDR5"}, "X670E": {"DDR5"},
	"B840": {"DDR5"}, "B850": {"DDR5"}, "X870": {"DDR5"}, "X870E": {"DDR5"},
	"H810": {"DDR5"}, "B860": {"DDR5"}, "Z890": {"DDR5"}, "W880": {"DDR5"},
}

var chipsetTokenRe = regexp.MustCompile(`(?i)\b(TRX40|WRX80|X399|X99|X299|[ABHZWQ]\d{3}E?M?)\b`)

// findChipset scans text for a known chipset token. Variant suffixes
// ("B550M", "Z790M") collapse to the base chipset when the exact code
// is not itself in the table.
func findChipset(text string) (string, bool) {
	for _, m := range chipsetTokenRe.FindAllStringSubmatch(text, -1) {
		token := strings.ToUpper(m[1])
		if _, ok := chipsetSocket[token]; ok {
			return token, true
		}
		stripped := strings.TrimRight(token, "EM")
		if _, ok := chipsetSocket[stripped]; ok {
			return stripped, true
		}
	}
	return "", false
}

// socketForChipset resolves the implied socket, stripping E/M variant
// suffixes when the exact code is absent from the table.
func socketForChipset(chipset string) (string, bool) {
	if socket, ok := chipsetSocket[chipset]; ok {
		return socket, true
	}
	if socket, ok := chipsetSocket[strings.TrimRight(chipset, "EM")]; ok {
		return socket, true
	}
	return "", false
}

// formFactorPatterns is checked most-specific first so "E-ATX" never
// falls through to a bare "ATX" substring match.
var formFactorPatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"E-ATX", regexp.MustCompile(`(?i)\bE[\s-]?ATX\b|\bextended\s*ATX\b`)},
	{"Micro-ATX", regexp.MustCompile(`(?i)\bmicro[\s-]?ATX\b|\bm[\s-]?ATX\b|\buATX\b`)},
	{"Mini-ITX", regexp.MustCompile(`(?i)\bmini[\s-]?ITX\b|\bITX\b`)},
	{"ATX", regexp.MustCompile(`(?i)\bATX\b`)},
}

func findFormFactor(text string) (string, bool) {
	for _, p := range formFactorPatterns {
		if p.re.MatchString(text) {
			return p.name, true
		}
	}
	return "", false
}

var memorySpeedRe = regexp.MustCompile(`(?i)\b(?:DDR[45][\s-]?)?(\d{4,5})\s*(?:MHz|MT/?s|\+?\s*\(OC\))?`)

// maxMemorySpeed extracts the highest plausible memory speed mentioned
// in text, in MT/s.
func maxMemorySpeed(text string) (int, bool) {
	best := 0
	for _, m := range memorySpeedRe.FindAllStringSubmatch(text, -1) {
		speed, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if speed < 1600 || speed > 9000 {
			continue
		}
		if speed > best {
			best = speed
		}
	}
	return best, best > 0
}

var maxCapacityRe = regexp.MustCompile(`(?i)\b(\d{2,4})\s*GB\b`)

func maxMemoryCapacity(text string) (int, bool) {
	best := 0
	for _, m := range maxCapacityRe.FindAllStringSubmatch(text, -1) {
		gb, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if gb < 16 || gb > 2048 {
			continue
		}
		if gb > best {
			best = gb
		}
	}
	return best, best > 0
}

var dimmCountRe = regexp.MustCompile(`(?i)\b([1-8])\s*(?:x\s*)?DIMM`)

var moboSocketSynonyms = []string{"socket", "cpu socket", "cpu support", "socket type", "supported cpu"}
var moboChipsetSynonyms = []string{"chipset", "chipset model", "mainboard chipset"}
var moboFormFactorSynonyms = []string{"form factor", "board form factor", "size"}
var moboSlotSynonyms = []string{"memory slots", "dimm slots", "ram slots", "memory slot", "no of dimm slots"}

// Extract implements the Extractor contract for motherboards.
func (Motherboard) Extract(title string, specs map[string]any, brand string) *models.ExtractionResult {
	title = stripTrademarks(title)
	attrs := make(map[string]any)
	var warnings []string

	chipset, chipsetFound := cascade(title, specs, moboChipsetSynonyms, findChipset)
	if chipsetFound {
		attrs[models.AttrMoboChipset] = chipset.value
	} else {
		warnings = append(warnings, "motherboard chipset could not be determined")
	}

	socket, socketFound := cascade(title, specs, moboSocketSynonyms, findCPUSocket)
	if !socketFound && chipsetFound {
		if inferred, ok := socketForChipset(chipset.value); ok {
			socket = match{value: inferred, source: models.SourceInferred, confidence: models.ConfidenceInferred}
			socketFound = true
		}
	}
	if socketFound {
		attrs[models.AttrMoboSocket] = socket.value
	} else {
		warnings = append(warnings, "motherboard socket could not be determined")
	}

	if ff, found := cascade(title, specs, moboFormFactorSynonyms, findFormFactor); found {
		attrs[models.AttrMoboFormFactor] = ff.value
	}

	memoryText := specSearch(specs, "memory", "ram", "dimm")

	speed, speedFound := 0, false
	if memoryText != "" {
		speed, speedFound = maxMemorySpeed(memoryText)
	}
	if !speedFound {
		speed, speedFound = maxMemorySpeed(title)
	}
	if speedFound {
		attrs[models.AttrMemoryMaxSpeedMHz] = speed
	}

	memType, memWarnings := resolveMemoryType(title, memoryText, chipset.value, chipsetFound, speed, speedFound)
	warnings = append(warnings, memWarnings...)
	if memType.value != "" {
		attrs[models.AttrMemoryType] = memType.value
	}

	if slotsRaw, ok := specValue(specs, moboSlotSynonyms...); ok {
		if slots, found := firstInt(slotsRaw); found && slots >= 1 && slots <= 8 {
			attrs[models.AttrMemorySlots] = slots
		}
	} else if m := dimmCountRe.FindStringSubmatch(memoryText); m != nil {
		slots, _ := strconv.Atoi(m[1])
		attrs[models.AttrMemorySlots] = slots
	}

	if memoryText != "" {
		if capGB, found := maxMemoryCapacity(memoryText); found {
			attrs[models.AttrMemoryMaxCapacityGB] = capGB
		}
	}

	if name := canonicalMoboName(title, brand, chipset.value); name != "" {
		attrs[models.AttrCanonicalMoboName] = name
	}

	return result(models.ComponentMotherboard, attrs, socket, socketFound, warnings)
}

// resolveMemoryType implements the dual-DDR resolution order: explicit
// DDR mention in specs, explicit mention in the title, speed-based
// inference, then the chipset table. When the table lists both types
// and nothing disambiguates, DDR5 wins as a deliberate bias toward the
// newer variant, tagged with the inferred_dual source.
func resolveMemoryType(title, memoryText, chipset string, chipsetFound bool, speed int, speedFound bool) (match, []string) {
	if memoryText != "" {
		if ddr, ok := findDDRType(memoryText); ok {
			return match{value: ddr, source: models.SourceSpecs, confidence: models.ConfidenceSpecs}, nil
		}
	}
	if ddr, ok := findDDRType(title); ok {
		return match{value: ddr, source: models.SourceTitle, confidence: models.ConfidenceTitle}, nil
	}
	if speedFound {
		if speed >= DDR5FloorMTs {
			return match{value: "DDR5", source: models.SourceInferred, confidence: models.ConfidenceInferred}, nil
		}
		if speed <= DDR4CeilingMTs {
			return match{value: "DDR4", source: models.SourceInferred, confidence: models.ConfidenceInferred}, nil
		}
	}
	if chipsetFound {
		if types, ok := chipsetMemory[chipset]; ok {
			if len(types) == 1 {
				return match{value: types[0], source: models.SourceInferred, confidence: models.ConfidenceInferred}, nil
			}
			return match{value: "DDR5", source: models.SourceInferredDual, confidence: 0.75},
				[]string{"chipset " + chipset + " supports both DDR4 and DDR5; defaulted to DDR5"}
		}
	}
	return match{}, []string{"memory type could not be determined"}
}

// productLineTokens are matched most-specific first when deriving the
// canonical motherboard name.
var productLineTokens = []string{
	"ROG STRIX", "ROG", "TUF GAMING", "TUF", "PRIME", "ProArt",
	"MEG", "MPG", "MAG", "AORUS", "Phantom Gaming", "Steel Legend",
	"LiveMixer", "Taichi", "Tomahawk", "Mortar", "Bazooka",
}

var wifiRe = regexp.MustCompile(`(?i)\bWI[\s-]?FI\b`)

var moboNameStopwords = map[string]struct{}{
	"DDR4": {}, "DDR5": {}, "WIFI": {}, "WI-FI": {}, "MOTHERBOARD": {},
	"MAINBOARD": {}, "GAMING": {}, "AMD": {}, "INTEL": {},
}

// canonicalMoboName assembles brand + product line + chipset + trailing
// model segment, with a Wi-Fi feature tag when present.
func canonicalMoboName(title, brand, chipset string) string {
	if chipset == "" {
		return ""
	}
	parts := make([]string, 0, 5)
	if brand == "" {
		if fields := strings.Fields(title); len(fields) > 0 {
			brand = fields[0]
		}
	}
	if brand != "" {
		parts = append(parts, brand)
	}

	upperTitle := strings.ToUpper(title)
	for _, line := range productLineTokens {
		if strings.Contains(upperTitle, strings.ToUpper(line)) {
			parts = append(parts, line)
			break
		}
	}

	parts = append(parts, chipset)

	// Trailing model segment: uppercase-looking tokens after the chipset
	// token that are not feature words.
	if idx := strings.Index(upperTitle, chipset); idx >= 0 {
		rest := strings.Fields(title[idx:])
		for _, token := range rest[min(1, len(rest)):] {
			up := strings.ToUpper(token)
			if _, stop := moboNameStopwords[up]; stop {
				continue
			}
			if up != token || len(token) < 2 {
				break
			}
			parts = append(parts, token)
		}
	}

	if wifiRe.MatchString(title) {
		parts = append(parts, "WiFi")
	}
	return strings.Join(parts, " ")
}

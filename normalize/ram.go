package normalize

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/buildparts/hwcompat/models"
)

// RAM extracts DDR type, speed, capacity/module layout, and an
// optional ECC flag from memory listings. The deciding attribute is
// the memory type.
type RAM struct{}

func (RAM) ComponentType() models.ComponentType { return models.ComponentRAM }

var (
	ddrSpeedRe = regexp.MustCompile(`(?i)\bDDR[2-5][\s-]?(\d{4})\b`)
	// PC bandwidth designations: PC5-48000 is 48000 MB/s of bandwidth,
	// divided by 8 to get the 6000 MT/s transfer rate.
	pcSpeedRe    = regexp.MustCompile(`(?i)\bPC[2-5][\s-]?(\d{4,5})[A-Z]?\b`)
	plainSpeedRe = regexp.MustCompile(`(?i)\b(\d{4})\s*(?:MHz|MT/?s)\b`)
)

// findRAMSpeed extracts a module speed in MT/s from any of the three
// common notations.
func findRAMSpeed(text string) (int, bool) {
	if m := ddrSpeedRe.FindStringSubmatch(text); m != nil {
		if speed, err := strconv.Atoi(m[1]); err == nil {
			return speed, true
		}
	}
	if m := pcSpeedRe.FindStringSubmatch(text); m != nil {
		if bandwidth, err := strconv.Atoi(m[1]); err == nil {
			return bandwidth / 8, true
		}
	}
	if m := plainSpeedRe.FindStringSubmatch(text); m != nil {
		if speed, err := strconv.Atoi(m[1]); err == nil {
			return speed, true
		}
	}
	return 0, false
}

var (
	kitRe      = regexp.MustCompile(`(?i)\b(\d{1,4})\s*GB\s*\(\s*(\d)\s*[x×]\s*(\d{1,3})\s*GB\s*\)`)
	bareKitRe  = regexp.MustCompile(`(?i)\b(\d)\s*[x×]\s*(\d{1,3})\s*GB\b`)
	capacityRe = regexp.MustCompile(`(?i)\b(\d{1,4})\s*GB\b`)
)

// parseKit parses capacity and module count from kit notations like
// "32GB (2x16GB)", falling back to "2x16GB" and then a bare "16GB".
// A warning is returned when the kit arithmetic does not add up.
func parseKit(text string) (capacityGB, modules int, warning string, ok bool) {
	if m := kitRe.FindStringSubmatch(text); m != nil {
		total, _ := strconv.Atoi(m[1])
		count, _ := strconv.Atoi(m[2])
		per, _ := strconv.Atoi(m[3])
		if count*per != total {
			warning = fmt.Sprintf("kit notation mismatch: %dx%dGB != %dGB", count, per, total)
		}
		return total, count, warning, true
	}
	if m := bareKitRe.FindStringSubmatch(text); m != nil {
		count, _ := strconv.Atoi(m[1])
		per, _ := strconv.Atoi(m[2])
		return count * per, count, "", true
	}
	if m := capacityRe.FindStringSubmatch(text); m != nil {
		total, _ := strconv.Atoi(m[1])
		return total, 0, "", true
	}
	return 0, 0, "", false
}

var (
	nonECCRe      = regexp.MustCompile(`(?i)\bnon[\s-]?ECC\b`)
	eccRe         = regexp.MustCompile(`(?i)\bECC\b`)
	dualChannelRe = regexp.MustCompile(`(?i)\bdual\s*channel\b`)
	quadChannelRe = regexp.MustCompile(`(?i)\bquad\s*channel\b`)
)

var ramTypeSynonyms = []string{"memory type", "type", "ram type", "technology"}
var ramSpeedSynonyms = []string{"speed", "frequency", "memory speed", "clock speed", "bus speed", "data rate"}
var ramCapacitySynonyms = []string{"capacity", "memory capacity", "size", "kit capacity", "total capacity"}

// Extract implements the Extractor contract for memory modules.
func (RAM) Extract(title string, specs map[string]any, _ string) *models.ExtractionResult {
	title = stripTrademarks(title)
	attrs := make(map[string]any)
	var warnings []string
	searchable := title + " " + specSearch(specs, "memory", "type", "speed", "frequency", "capacity", "channel", "ecc")

	speed, speedFound := 0, false
	if raw, ok := specValue(specs, ramSpeedSynonyms...); ok {
		speed, speedFound = findRAMSpeed(raw)
	}
	if !speedFound {
		speed, speedFound = findRAMSpeed(title)
	}
	if speedFound {
		attrs[models.AttrMemoryMaxSpeedMHz] = speed
	}

	memType, typeFound := cascade(title, specs, ramTypeSynonyms, findDDRType)
	if !typeFound && speedFound {
		// Speed-based inference, same thresholds as the motherboard
		// extractor.
		if speed >= DDR5FloorMTs {
			memType = match{value: "DDR5", source: models.SourceInferred, confidence: models.ConfidenceInferred}
			typeFound = true
		} else if speed <= DDR4CeilingMTs {
			memType = match{value: "DDR4", source: models.SourceInferred, confidence: models.ConfidenceInferred}
			typeFound = true
		}
	}
	if typeFound {
		attrs[models.AttrMemoryType] = memType.value
	} else {
		warnings = append(warnings, "memory type could not be determined")
	}

	capacitySource := title
	if raw, ok := specValue(specs, ramCapacitySynonyms...); ok {
		capacitySource = raw + " " + title
	}
	if capacityGB, modules, warning, ok := parseKit(capacitySource); ok {
		attrs[models.AttrMemoryCapacityGB] = capacityGB
		if warning != "" {
			warnings = append(warnings, warning)
		}
		if modules == 0 {
			// Channel keywords are the last resort for module count.
			switch {
			case quadChannelRe.MatchString(searchable):
				modules = 4
			case dualChannelRe.MatchString(searchable):
				modules = 2
			}
		}
		if modules > 0 {
			attrs[models.AttrMemoryModules] = modules
		}
	}

	// Absence of any ECC mention means unknown, not false.
	switch {
	case nonECCRe.MatchString(searchable):
		attrs[models.AttrECC] = false
	case eccRe.MatchString(searchable):
		attrs[models.AttrECC] = true
	}

	return result(models.ComponentRAM, attrs, memType, typeFound, warnings)
}

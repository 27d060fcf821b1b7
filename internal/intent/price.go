package intent

import (
	"regexp"
	"strconv"
	"strings"
)

// Price patterns run against folded text ("até" -> "ate", "R$" -> "r$")
var (
	amount = `(\d{1,3}(?:[.,]\d{3})+|\d+(?:[.,]\d{1,2})?)`

	rangeRe    = regexp.MustCompile(`\b(?:de|entre)\s+(r\$\s*)?` + amount + `\s*(mil|k)?\s+(?:a|e|ate)\s+(r\$\s*)?` + amount + `\s*(mil|k)?\b`)
	maxRe      = regexp.MustCompile(`\b(?:ate|no maximo|max(?:imo)?|menos de|abaixo de)\s+(r\$\s*)?` + amount + `\s*(mil|k)?\b`)
	minRe      = regexp.MustCompile(`\b(?:a partir de|acima de|mais de|minimo de)\s+(r\$\s*)?` + amount + `\s*(mil|k)?\b`)
	currencyRe = regexp.MustCompile(`r\$\s*(\d{1,3}(?:\.\d{3})+|\d+)(?:,\d{2})?\s*(mil|k)?\b`)
	thousandRe = regexp.MustCompile(`\b(\d+(?:[.,]\d+)?)\s*(mil|k)\b`)
	yearRe     = regexp.MustCompile(`\b(19[89]\d|20[0-4]\d)\b`)
)

// A bare number below this is read as thousands of reais ("até 50" -> 50000)
const thousandsCutoff = 1000

// ExtractPrice pulls a price range out of folded text. Range patterns win over
// single bounds, and explicit bounds win over a loose currency amount.
func ExtractPrice(folded string) (min, max *int) {
	if m := rangeRe.FindStringSubmatch(folded); m != nil {
		currency := m[1] != "" || m[4] != ""
		suffix := m[3] != "" || m[6] != ""
		lo, okLo := parseAmount(m[2], m[3], true)
		hi, okHi := parseAmount(m[5], m[6], true)
		if okLo && okHi && (currency || suffix || !looksLikeYear(m[2]) || !looksLikeYear(m[5])) {
			if lo > hi {
				lo, hi = hi, lo
			}
			return &lo, &hi
		}
	}

	if m := maxRe.FindStringSubmatch(folded); m != nil && (m[1] != "" || m[3] != "" || !looksLikeYear(m[2])) {
		if v, ok := parseAmount(m[2], m[3], true); ok {
			max = &v
		}
	}
	if m := minRe.FindStringSubmatch(folded); m != nil && (m[1] != "" || m[3] != "" || !looksLikeYear(m[2])) {
		if v, ok := parseAmount(m[2], m[3], true); ok {
			min = &v
		}
	}
	if min != nil || max != nil {
		return min, max
	}

	if m := currencyRe.FindStringSubmatch(folded); m != nil {
		if v, ok := parseAmount(m[1], m[2], false); ok {
			return nil, &v
		}
	}
	if m := thousandRe.FindStringSubmatch(folded); m != nil {
		if v, ok := parseAmount(m[1], m[2], false); ok {
			return nil, &v
		}
	}
	return nil, nil
}

// ExtractYear returns the first plausible model year in folded text
func ExtractYear(folded string) *int {
	for _, m := range yearRe.FindAllStringSubmatchIndex(folded, -1) {
		// "2.020" or "2020 mil" are amounts, not years
		rest := strings.TrimSpace(folded[m[1]:])
		if strings.HasPrefix(rest, "mil") || strings.HasPrefix(rest, "k ") || rest == "k" {
			continue
		}
		y, err := strconv.Atoi(folded[m[2]:m[3]])
		if err == nil {
			return &y
		}
	}
	return nil
}

// maxPrice bounds parsed amounts, nothing on a used-car lot costs more
const maxPrice = 100_000_000

// parseAmount converts a matched amount to reais. With a "mil"/"k" suffix the
// number may carry decimals ("65,5 mil"); without one, separators are
// thousand separators ("29.900").
func parseAmount(num, suffix string, assumeThousands bool) (int, bool) {
	if suffix != "" {
		if isThousandGrouped(num) {
			num = strings.NewReplacer(".", "", ",", "").Replace(num)
		}
		f, err := strconv.ParseFloat(strings.ReplaceAll(num, ",", "."), 64)
		if err != nil || f <= 0 || f*1000 > maxPrice {
			return 0, false
		}
		return int(f*1000 + 0.5), true
	}

	if !isThousandGrouped(num) {
		// "65,90" style cents are dropped
		if i := strings.IndexAny(num, ".,"); i >= 0 {
			num = num[:i]
		}
	}
	v, err := strconv.Atoi(strings.NewReplacer(".", "", ",", "").Replace(num))
	if err != nil || v <= 0 || v > maxPrice {
		return 0, false
	}
	if assumeThousands && v < thousandsCutoff {
		v *= 1000
	}
	return v, true
}

// isThousandGrouped reports whether every separator is followed by exactly three digits
func isThousandGrouped(num string) bool {
	if !strings.ContainsAny(num, ".,") {
		return false
	}
	parts := strings.FieldsFunc(num, func(r rune) bool { return r == '.' || r == ',' })
	for _, p := range parts[1:] {
		if len(p) != 3 {
			return false
		}
	}
	return true
}

func looksLikeYear(num string) bool {
	return yearRe.MatchString(num) && len(num) == 4
}

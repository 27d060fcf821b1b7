package policy

import (
	"regexp"
	"strings"

	"eino_dealer_bot/pkg"
)

var (
	spaceBeforePunctRe = regexp.MustCompile(`\s+([,.!?;:])`)
	doubleCommaRe      = regexp.MustCompile(`,\s*,`)
	commaBeforeEndRe   = regexp.MustCompile(`,\s*([.!?])`)
	leadingPunctRe     = regexp.MustCompile(`^[\s,.;:!]+`)
)

// nameRe matches the name as a whole word with an optional comma on either
// side, so "Claro, Marcos! Temos" and "Marcos, temos" both lose the comma
func nameRe(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(,\s*)?(^|[^\p{L}\p{N}])(` + regexp.QuoteMeta(name) + `)($|[^\p{L}\p{N}])(\s*,)?`)
}

// firstName returns the first word of the stored customer name
func firstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// ContainsName reports whether text mentions the customer's first name
func ContainsName(text, name string) bool {
	name = firstName(name)
	if name == "" {
		return false
	}
	return nameRe(name).MatchString(text)
}

// NameAllowed applies the cooldown: the name may appear on the first turn,
// when it was never used, when cooldown turns passed since the last use, or
// when the conversation state changed this turn
func NameAllowed(summary *pkg.TurnSummary, turn, cooldown int, stateChanged bool) bool {
	if turn <= 1 || stateChanged {
		return true
	}
	if summary == nil || summary.NameLastUsedTurn == nil {
		return true
	}
	return turn-*summary.NameLastUsedTurn >= cooldown
}

// StripName removes every mention of the customer's first name and cleans
// the punctuation left behind
func StripName(text, name string) string {
	name = firstName(name)
	if name == "" {
		return text
	}

	re := nameRe(name)
	for re.MatchString(text) {
		text = re.ReplaceAllStringFunc(text, func(match string) string {
			m := re.FindStringSubmatch(match)
			leadingComma, before, after, trailingComma := m[1] != "", m[2], m[4], m[5] != ""
			// "Olha, Marcos, temos" keeps one comma
			if leadingComma && trailingComma {
				return "," + before + after
			}
			return before + after
		})
	}

	text = doubleCommaRe.ReplaceAllString(text, ",")
	text = commaBeforeEndRe.ReplaceAllString(text, "$1")
	text = spaceBeforePunctRe.ReplaceAllString(text, "$1")
	text = leadingPunctRe.ReplaceAllString(text, "")
	text = strings.Join(strings.Fields(text), " ")
	return capitalizeSentences(text)
}

package policy

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"eino_dealer_bot/internal/textsim"
)

var (
	// "1)", "2.", "-", "*" or a bullet at the start of a line, possibly stacked
	listMarkerRe = regexp.MustCompile(`^ *(?:(?:\d{1,2}[).]|[-*•·▪➤])(?: +|$))+`)

	repeatedQuestionRe = regexp.MustCompile(`\?[?!]*`)

	// action prompts that count as a call-to-action without a question mark
	ctaRe = regexp.MustCompile(`\b(me (avisa|avise|chama|chame|fala|diz|conta)|(fico|estou|estamos|ficamos) a (sua )?disposicao|posso (te |lhe )?(enviar|mandar|mostrar|separar|reservar|agendar)|vamos agendar|agende|agendar (uma|sua) visita|venha (ver|conhecer|nos visitar)|vem (ver|conhecer)|te espero|esperamos (voce|sua visita)|so (me )?(chamar|responder|dizer))\b`)
)

// emoji-presentation symbols outside the main pictograph blocks
var emojiSymbols = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x00A9, Hi: 0x00AE, Stride: 5},
		{Lo: 0x203C, Hi: 0x2049, Stride: 13},
		{Lo: 0x2122, Hi: 0x2139, Stride: 23},
		{Lo: 0x24C2, Hi: 0x24C2, Stride: 1},
		{Lo: 0x25A0, Hi: 0x25FF, Stride: 1},
		{Lo: 0x2934, Hi: 0x2935, Stride: 1},
		{Lo: 0x3030, Hi: 0x3030, Stride: 1},
		{Lo: 0x303D, Hi: 0x303D, Stride: 1},
		{Lo: 0x3297, Hi: 0x3299, Stride: 2},
	},
	LatinOffset: 1,
}

// isEmoji reports whether r is in an emoji or decorative-symbol range
func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F000 && r <= 0x1FAFF:
		return true
	case r >= 0x2600 && r <= 0x27BF:
		return true
	case r >= 0x2300 && r <= 0x23FF:
		return true
	case r >= 0x2B00 && r <= 0x2BFF:
		return true
	case r >= 0x2190 && r <= 0x21FF:
		return true
	case r >= 0xFE00 && r <= 0xFE0F:
		return true
	case r >= 0xE0000 && r <= 0xE007F:
		return true
	case r == 0x200D || r == 0x20E3:
		return true
	case unicode.Is(emojiSymbols, r):
		return true
	}
	return false
}

// HasEmoji reports whether text carries any emoji-range rune
func HasEmoji(text string) bool {
	return strings.IndexFunc(text, isEmoji) >= 0
}

// Normalize strips emoji, leading list markers and redundant whitespace.
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	text = strings.Map(func(r rune) rune {
		if isEmoji(r) {
			return -1
		}
		if r != '\n' && unicode.IsSpace(r) {
			return ' '
		}
		return r
	}, text)

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = listMarkerRe.ReplaceAllString(line, "")
	}
	return strings.Join(strings.Fields(strings.Join(lines, " ")), " ")
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?' || r == '…'
}

func isCloser(r rune) bool {
	return r == ')' || r == '"' || r == '\'' || r == '”' || r == '’'
}

// SplitSentences splits on terminal punctuation followed by whitespace or
// the end of text. "R$ 65.000" stays whole.
func SplitSentences(text string) []string {
	runes := []rune(text)
	var sentences []string
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isTerminal(runes[i]) {
			continue
		}
		j := i
		for j+1 < len(runes) && (isTerminal(runes[j+1]) || isCloser(runes[j+1])) {
			j++
		}
		if j+1 == len(runes) || unicode.IsSpace(runes[j+1]) {
			if s := strings.TrimSpace(string(runes[start : j+1])); s != "" {
				sentences = append(sentences, s)
			}
			start = j + 1
		}
		i = j
	}
	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

// TruncateToOneQuestion keeps the first sentence with a question mark,
// drops every later question sentence and keeps all other sentences in place
func TruncateToOneQuestion(text string) string {
	sentences := SplitSentences(text)
	kept := make([]string, 0, len(sentences))
	seenQuestion := false
	for _, s := range sentences {
		if strings.Contains(s, "?") {
			if seenQuestion {
				continue
			}
			seenQuestion = true
		}
		kept = append(kept, s)
	}
	return strings.Join(kept, " ")
}

func limitSentences(text string, n int) string {
	sentences := SplitSentences(text)
	if n <= 0 || len(sentences) <= n {
		return strings.Join(sentences, " ")
	}
	return strings.Join(sentences[:n], " ")
}

// keepFirstQuestionMark turns any question mark after the first into a period
func keepFirstQuestionMark(text string) string {
	first := strings.Index(text, "?")
	if first < 0 {
		return text
	}
	return text[:first+1] + strings.ReplaceAll(text[first+1:], "?", ".")
}

// HasCTA reports whether text asks a question or carries an action prompt
func HasCTA(text string) bool {
	return strings.Contains(text, "?") || ctaRe.MatchString(textsim.Fold(text))
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// HardTruncate cuts text to at most limit runes at a word boundary and
// closes it with a period
func HardTruncate(text string, limit int) string {
	if runeLen(text) <= limit {
		return text
	}
	if limit <= 1 {
		return ""
	}

	runes := []rune(text)
	cut := string(runes[:limit-1])
	if i := strings.LastIndexFunc(cut, unicode.IsSpace); i > 0 {
		cut = cut[:i]
	}
	return closeSentence(cut)
}

// closeSentence trims dangling separators and ends text with punctuation
func closeSentence(text string) string {
	text = strings.TrimRightFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == ';' || r == ':' || r == '-'
	})
	if text == "" {
		return ""
	}
	last, _ := utf8.DecodeLastRuneInString(text)
	if !isTerminal(last) && !isCloser(last) {
		text += "."
	}
	return text
}

// capitalizeSentences upper-cases the first letter of every sentence
func capitalizeSentences(text string) string {
	runes := []rune(text)
	upper := true
	for i, r := range runes {
		switch {
		case isTerminal(r):
			upper = true
		case unicode.IsLetter(r):
			if upper {
				runes[i] = unicode.ToUpper(r)
			}
			upper = false
		case unicode.IsDigit(r):
			upper = false
		}
	}
	return string(runes)
}

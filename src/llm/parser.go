package llm

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ErrEmptyOutput is returned when nothing usable is left after cleaning
var ErrEmptyOutput = errors.New("empty model output")

var (
	// ```text ... ``` wrappers some models add around plain answers
	codeFenceRe = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")

	// "Assistente:", "Vendedor:", "Resposta:" and similar role prefixes
	rolePrefixRe = regexp.MustCompile(`(?i)^(assistente|assistant|vendedor|consultor|resposta|bot)\s*:\s*`)
)

const quoteChars = "\"'“”‘’"

// CleanOutput strips the wrappers models put around the reply text
func CleanOutput(content string) string {
	text := strings.TrimSpace(content)
	if m := codeFenceRe.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	text = rolePrefixRe.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)

	// strip surrounding quotes only when both ends are quoted
	first, _ := utf8.DecodeRuneInString(text)
	last, _ := utf8.DecodeLastRuneInString(text)
	if utf8.RuneCountInString(text) >= 2 && strings.ContainsRune(quoteChars, first) && strings.ContainsRune(quoteChars, last) {
		text = strings.TrimSpace(strings.Trim(text, quoteChars))
	}
	return text
}

// ParseResponse cleans content and fails when nothing is left
func ParseResponse(content string) (string, error) {
	text := CleanOutput(content)
	if text == "" {
		return "", ErrEmptyOutput
	}
	return text, nil
}

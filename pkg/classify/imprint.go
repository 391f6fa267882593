package classify

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var imprintPattern = regexp.MustCompile(`^[A-Z0-9\-/]+$`)

const (
	minImprintLen = 2
	maxImprintLen = 10
)

// ExtractImprint guesses which OCR line is the code stamped on a pill.
// A line made only of letters, digits, '-' and '/' wins; otherwise the first
// short line of any kind is returned. The returned line is trimmed but keeps
// its original case.
//
// Multi-line imprints and short non-imprint text are not told apart.
func ExtractImprint(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	lines := strings.Split(text, "\n")
	for _, line := range lines {
		clean := strings.ToUpper(strings.TrimSpace(line))
		if imprintLength(clean) && imprintPattern.MatchString(clean) {
			return strings.TrimSpace(line), true
		}
	}
	for _, line := range lines {
		if clean := strings.TrimSpace(line); imprintLength(clean) {
			return clean, true
		}
	}
	return "", false
}

func imprintLength(s string) bool {
	n := utf8.RuneCountInString(s)
	return n >= minImprintLen && n <= maxImprintLen
}

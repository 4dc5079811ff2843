package analyzer

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// identifierMatcher finds "label + digits" in recognized text.
type identifierMatcher struct {
	pattern   *regexp.Regexp
	minDigits int
	maxDigits int
}

func newIdentifierMatcher(label string, minDigits, maxDigits int) (*identifierMatcher, error) {
	if minDigits < 1 || maxDigits < minDigits {
		return nil, fmt.Errorf("invalid identifier digit bounds %d..%d", minDigits, maxDigits)
	}
	// OCR splits long numbers with spaces and often drops the one after the
	// label; the capture tolerates both and the digit count is checked after
	// spaces are removed.
	expr := `(?i)\b(?:` + label + `)\s*[:#.]?\s*([0-9][0-9 ]{0,62}[0-9])`
	pattern, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile label pattern: %w", err)
	}
	return &identifierMatcher{
		pattern:   pattern,
		minDigits: minDigits,
		maxDigits: maxDigits,
	}, nil
}

// normalizeText applies NFKC (full-width digits and ligatures become ASCII)
// and case folding.
func (m *identifierMatcher) normalizeText(text string) string {
	return cases.Fold().String(norm.NFKC.String(text))
}

// Find returns the first identifier whose digit count is within bounds.
// When the captured run holds several space-separated groups, a leading
// group that is already a full identifier wins over the joined digits.
func (m *identifierMatcher) Find(text string) (string, bool) {
	normalized := m.normalizeText(text)
	for _, match := range m.pattern.FindAllStringSubmatch(normalized, -1) {
		run := match[1]
		if first, _, split := strings.Cut(run, " "); split && m.inBounds(first) {
			return first, true
		}
		if digits := strings.ReplaceAll(run, " ", ""); m.inBounds(digits) {
			return digits, true
		}
	}
	return "", false
}

func (m *identifierMatcher) inBounds(digits string) bool {
	return len(digits) >= m.minDigits && len(digits) <= m.maxDigits
}

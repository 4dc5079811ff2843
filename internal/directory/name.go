package directory

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"warden/internal/services"
)

// ErrInvalidName marks a directory row whose name cannot be applied as a
// display name. It always travels wrapped in services.ErrConfiguration: a
// bad row is an operator problem, never the submitter's.
var ErrInvalidName = errors.New("invalid directory name")

const (
	minNameRunes = 2
	maxNameRunes = 32
)

var namePattern = regexp.MustCompile(`^[\p{L}\p{N} ._\-'\[\]#]+$`)

// SanitizeName trims, NFC-normalizes and collapses whitespace, then checks
// the result is 2..32 runes of letters, digits, spaces and ._-'[]#.
func SanitizeName(raw string) (string, error) {
	name := strings.Join(strings.Fields(norm.NFC.String(raw)), " ")
	count := utf8.RuneCountInString(name)
	if count < minNameRunes || count > maxNameRunes {
		return "", invalidName(raw, fmt.Sprintf("length %d outside %d..%d", count, minNameRunes, maxNameRunes))
	}
	if !namePattern.MatchString(name) {
		return "", invalidName(raw, "contains disallowed characters")
	}
	return name, nil
}

func invalidName(raw, reason string) error {
	return fmt.Errorf("%w: %w: %q %s", services.ErrConfiguration, ErrInvalidName, raw, reason)
}

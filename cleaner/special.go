package cleaner

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var specialPatterns = []*regexp.Regexp{
	// special characters
	charClass("©×⇔_»«~#$€Â�¬"),
	// punctuation
	charClass(",;:!¡’‘”“\"'`"),
	// brackets
	charClass("}{[]()<>?¿°|"),
	// operators
	charClass("/-+*=^%&$"),
}

func charClass(chars string) *regexp.Regexp {
	var sb strings.Builder
	sb.WriteString("[")
	for _, r := range chars {
		sb.WriteString(fmt.Sprintf(`\x{%X}`, r))
	}
	sb.WriteString("]")
	return regexp.MustCompile(sb.String())
}

// DeleteSpecialPatterns replaces every special, punctuation, bracket and operator
// character by a space and lowercases the result.
func DeleteSpecialPatterns(text string) string {
	for _, re := range specialPatterns {
		text = re.ReplaceAllLiteralString(text, " ")
	}
	return strings.ToLower(text)
}

// ProperEncoding decomposes the text and drops everything outside ASCII, so accents vanish.
func ProperEncoding(text string) (string, error) {
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.Predicate(func(r rune) bool {
			return r > unicode.MaxASCII
		})),
	)
	result, _, err := transform.String(t, text)
	if err != nil {
		return "", err
	}
	return result, nil
}

package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

	// Letters that do not decompose into a base letter plus a mark.
	special = strings.NewReplacer("ı", "i", "ß", "ss", "ø", "o", "æ", "ae", "œ", "oe", "ł", "l", "đ", "d")
)

// Generate turns a category or product name into a URL slug: accents are
// folded to ASCII, every run of other characters becomes one hyphen.
//
//	"Men's T-Shirts"  -> "men-s-t-shirts"
//	"Çocuk Ürünleri"  -> "cocuk-urunleri"
func Generate(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = special.Replace(s)

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}

	s = nonAlnum.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// Path joins the slugs of non-empty names with "/".
func Path(names ...string) string {
	parts := make([]string, 0, len(names))
	for _, n := range names {
		if s := Generate(n); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "/")
}

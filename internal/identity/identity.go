// Package identity provides the normalization primitives that every
// equality test in the discovery pipeline is built on: a stable URL key
// and a canonical name key for job titles.
package identity

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// yearPattern matches 4-digit year tokens (2000-2099). Career pages tend to
// re-title postings each cycle ("2025 Summer Analyst" → "2026 Summer Analyst"),
// so years must not participate in identity.
var yearPattern = regexp.MustCompile(`20\d{2}`)

// accentFolder strips combining marks after NFD decomposition, so accented
// titles fold to the same canonical key as their ASCII spellings.
var accentFolder = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// NormalizeURL returns scheme + host (lowercased) + path with the query string
// and fragment stripped, so tracking parameters and session IDs never cause a
// false "changed" detection. On parse failure the input is returned unchanged;
// this function never fails. Idempotent: NormalizeURL(NormalizeURL(x)) ==
// NormalizeURL(x).
func NormalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if u.Scheme == "" || u.Host == "" {
		return rawURL
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host) + u.Path
}

// CanonicalName reduces a raw title to its identity form: accents folded,
// year tokens removed, every non-alphanumeric rune replaced with a space,
// whitespace collapsed, trimmed, lowercased. Empty input yields empty output.
func CanonicalName(title string) string {
	if folded, _, err := transform.String(accentFolder, title); err == nil {
		title = folded
	}
	title = yearPattern.ReplaceAllString(title, " ")

	var b strings.Builder
	b.Grow(len(title))
	for _, r := range title {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Package text turns raw fetched markup into bounded, readable text.
package text

import (
	"html"
	"strings"
	"unicode/utf8"

	xhtml "golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

// skipContent lists elements whose text content is never readable prose.
var skipContent = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
}

// StripMarkup removes HTML tags, comments and script/style bodies, decodes
// entities and collapses whitespace. Markup that only appears once entities
// are decoded, such as "&lt;b&gt;" in an article about HTML, is prose: its
// angle brackets become spaces and its words are kept. StripMarkup is
// idempotent: StripMarkup(StripMarkup(s)) == StripMarkup(s).
func StripMarkup(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "\uFFFD")
	}
	for {
		next := clean(s)
		if next == s {
			return s
		}
		s = next
	}
}

func clean(s string) string {
	// Every pass that changes s replaces a tag of two or more bytes with a
	// single space, so this loop ends.
	for {
		next := stripTags(s)
		if next == s {
			break
		}
		s = next
	}
	return collapse(neutralize(decodeEntities(s)))
}

// stripTags drops one layer of tags and comments, keeping text tokens
// byte-for-byte with their entities still encoded.
func stripTags(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	z := xhtml.NewTokenizer(strings.NewReader(s))
	skipDepth := 0
	for {
		tt := z.Next()
		switch tt {
		case xhtml.ErrorToken:
			return b.String()
		case xhtml.TextToken:
			if skipDepth == 0 {
				b.Write(z.Raw())
			}
		case xhtml.StartTagToken:
			name, _ := z.TagName()
			if skipContent[string(name)] {
				skipDepth++
			}
			b.WriteByte(' ')
		case xhtml.EndTagToken:
			name, _ := z.TagName()
			if skipContent[string(name)] && skipDepth > 0 {
				skipDepth--
			}
			b.WriteByte(' ')
		case xhtml.SelfClosingTagToken:
			b.WriteByte(' ')
		}
	}
}

// decodeEntities unescapes until no entity is left. Each changing pass
// either consumes an '&' or shortens the text.
func decodeEntities(s string) string {
	s = norm.NFC.String(s)
	for {
		next := norm.NFC.String(html.UnescapeString(s))
		if next == s {
			return s
		}
		s = next
	}
}

// neutralize turns the brackets of anything the tokenizer would read as a
// tag, comment or declaration into spaces. A '<' followed by a space, digit
// or other punctuation is left alone, as is a '>' that closes nothing.
func neutralize(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	b := []byte(s)
	open := false
	for i, c := range b {
		switch {
		case c == '<' && i+1 < len(b) && opensMarkup(b[i+1]):
			b[i] = ' '
			open = true
		case c == '>' && open:
			b[i] = ' '
			open = false
		}
	}
	return string(b)
}

func opensMarkup(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || c == '/' || c == '!' || c == '?'
}

// collapse folds every whitespace run to one space and trims the ends.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate returns at most n characters of s without splitting a multi-byte
// character. Shorter input is returned unchanged; n <= 0 yields "".
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// Between returns the text strictly between the first occurrence of start and
// the next occurrence of end after it.
func Between(s, start, end string) (string, bool) {
	i := strings.Index(s, start)
	if i < 0 {
		return "", false
	}
	rest := s[i+len(start):]
	j := strings.Index(rest, end)
	if j < 0 {
		return "", false
	}
	return rest[:j], true
}

// SplitAfter splits s on sep and drops everything before the first sep,
// returning one chunk per delimited entry.
func SplitAfter(s, sep string) []string {
	parts := strings.Split(s, sep)
	if len(parts) <= 1 {
		return nil
	}
	return parts[1:]
}

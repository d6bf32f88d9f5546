// Package linkextract pulls anchor targets out of HTML text with a plain
// string scan and recognizes HTML documents by their doctype.
package linkextract

import (
	"strings"
	"unicode"
)

const (
	anchorOpen = "<a"
	hrefAttr   = `href="`
	doctype    = "<!doctype html"
)

// Extract returns the href value of every <a ...> tag in order of appearance.
// Only double-quoted values are recognized and entities are left undecoded.
// Duplicates are kept.
func Extract(text string) []string {
	lower := asciiLower(text)
	links := []string{}

	for pos := 0; pos < len(lower); {
		rel := strings.Index(lower[pos:], anchorOpen)
		if rel < 0 {
			break
		}
		attrs := pos + rel + len(anchorOpen)
		if attrs >= len(lower) || !isTagSpace(lower[attrs]) {
			pos = attrs
			continue
		}

		tagEnd := len(lower)
		if end := strings.IndexByte(lower[attrs:], '>'); end >= 0 {
			tagEnd = attrs + end
		}
		valStart, ok := findHref(lower, attrs, tagEnd)
		if !ok {
			pos = tagEnd
			continue
		}
		valLen := strings.IndexByte(text[valStart:], '"')
		if valLen < 0 {
			break
		}
		links = append(links, text[valStart:valStart+valLen])
		pos = valStart + valLen + 1
	}
	return links
}

// IsHTML reports whether text starts with an HTML doctype, ignoring case and
// leading whitespace.
func IsHTML(text string) bool {
	text = strings.TrimPrefix(text, "\ufeff")
	text = strings.TrimLeftFunc(text, unicode.IsSpace)
	if len(text) <= len(doctype) {
		return false
	}
	if asciiLower(text[:len(doctype)]) != doctype {
		return false
	}
	next := text[len(doctype)]
	return next == '>' || isTagSpace(next)
}

// findHref locates the value of an href attribute between from and to and
// returns the offset of its first byte.
func findHref(lower string, from, to int) (int, bool) {
	for i := from; i < to; {
		rel := strings.Index(lower[i:to], hrefAttr)
		if rel < 0 {
			return 0, false
		}
		at := i + rel
		if isTagSpace(lower[at-1]) {
			return at + len(hrefAttr), true
		}
		i = at + len(hrefAttr)
	}
	return 0, false
}

func isTagSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\f':
		return true
	}
	return false
}

// asciiLower lowercases A-Z only, keeping byte offsets aligned with the input.
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

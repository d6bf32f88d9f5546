package crawler

import (
	"net/http"
	"strings"
	"time"
)

// LinkDelimiter separates outbound links in the persisted links_to column.
const LinkDelimiter = ":::"

// PageID identifies a row in the page store.
type PageID int64

// Page is a single crawled (or still pending) document.
type Page struct {
	ID      PageID  `db:"id" json:"id"`
	URL     string  `db:"url" json:"url"`
	Visited bool    `db:"visited" json:"visited"`
	Content *string `db:"content" json:"content,omitempty"`
	LinksTo *string `db:"links_to" json:"links_to,omitempty"`
	InUse   bool    `db:"in_use" json:"in_use"`
}

// ContentText returns the stored content or an empty string when unvisited.
func (p Page) ContentText() string {
	if p.Content == nil {
		return ""
	}
	return *p.Content
}

// LinksText returns the raw serialized link list or an empty string.
func (p Page) LinksText() string {
	if p.LinksTo == nil {
		return ""
	}
	return *p.LinksTo
}

// Links splits the serialized links_to column.
// An empty column yields a single empty element, matching strings.Split.
func (p Page) Links() []string {
	return SplitLinks(p.LinksText())
}

// JoinLinks serializes outbound links for storage.
func JoinLinks(links []string) string {
	return strings.Join(links, LinkDelimiter)
}

// SplitLinks is the inverse of JoinLinks.
func SplitLinks(raw string) []string {
	return strings.Split(raw, LinkDelimiter)
}

// FetchResponse is the raw result returned by a Fetcher.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// Document is a validated HTML page ready for link extraction.
type Document struct {
	URL  string
	Text string
}

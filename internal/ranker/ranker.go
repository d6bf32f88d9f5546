// Package ranker scores search candidates from the page store.
//
// A page's score is the sum of its outbound link count, its inbound link
// count, the number of query keyword occurrences in its url and content, and
// a bonus of 10 when the whole query appears as a word sequence.
package ranker

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/guugle/internal/crawler"
	"github.com/JakeFAU/guugle/internal/metrics"
)

// WholeWordBonus is added when the full query matches on word boundaries.
const WholeWordBonus = 10

// Corpus is the subset of crawler.PageStore the ranker reads from.
type Corpus interface {
	Search(ctx context.Context, query string, limit int) ([]crawler.Page, error)
	CountInboundLinks(ctx context.Context, id crawler.PageID) (int, error)
}

// RankedPage is a search candidate together with its score breakdown.
type RankedPage struct {
	crawler.Page
	Score       int
	Outbound    int
	Inbound     int
	KeywordHits int
	WholeWord   bool
}

// Ranker ranks pages for a query.
type Ranker struct {
	corpus Corpus
	logger *zap.Logger
}

// New constructs a Ranker.
func New(corpus Corpus, logger *zap.Logger) *Ranker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ranker{corpus: corpus, logger: logger.Named("ranker")}
}

// Rank fetches up to limit candidates for query and returns them ordered by
// descending score. Ties keep store order. limit <= 0 means no limit.
func (r *Ranker) Rank(ctx context.Context, query string, limit int) ([]RankedPage, error) {
	if strings.TrimSpace(query) == "" {
		return []RankedPage{}, nil
	}
	candidates, err := r.corpus.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search candidates: %w", err)
	}

	matcher := wholeWordPattern(query)
	ranked := make([]RankedPage, 0, len(candidates))
	for _, page := range candidates {
		inbound, err := r.corpus.CountInboundLinks(ctx, page.ID)
		if err != nil {
			return nil, fmt.Errorf("inbound links for page %d: %w", page.ID, err)
		}
		rp := RankedPage{
			Page:        page,
			Outbound:    len(page.Links()),
			Inbound:     inbound,
			KeywordHits: KeywordHits(query, page.URL) + KeywordHits(query, page.ContentText()),
			WholeWord:   matcher.MatchString(page.URL) || matcher.MatchString(page.ContentText()),
		}
		rp.Score = Score(rp.Outbound, rp.Inbound, rp.KeywordHits, rp.WholeWord)
		ranked = append(ranked, rp)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	metrics.ObserveSearch(len(ranked))
	r.logger.Debug("ranked query",
		zap.String("query", query),
		zap.Int("limit", limit),
		zap.Int("results", len(ranked)),
	)
	return ranked, nil
}

// Score combines the ranking signals.
func Score(outbound, inbound, keywordHits int, wholeWord bool) int {
	score := outbound + inbound + keywordHits
	if wholeWord {
		score += WholeWordBonus
	}
	return score
}

// KeywordHits counts non-overlapping, case-insensitive occurrences of each
// whitespace-separated query word in text.
func KeywordHits(query, text string) int {
	lowerText := strings.ToLower(text)
	hits := 0
	for _, word := range strings.Fields(strings.ToLower(query)) {
		hits += strings.Count(lowerText, word)
	}
	return hits
}

// WholeWordMatch reports whether the full query occurs in text delimited by
// non-word characters or the text boundaries.
func WholeWordMatch(query, text string) bool {
	if strings.TrimSpace(query) == "" {
		return false
	}
	return wholeWordPattern(query).MatchString(text)
}

func wholeWordPattern(query string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:^|\W)` + regexp.QuoteMeta(strings.TrimSpace(query)) + `(?:\W|$)`)
}

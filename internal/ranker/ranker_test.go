package ranker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/guugle/internal/crawler"
	"github.com/JakeFAU/guugle/internal/pagestore/pagestoretest"
)

type scored struct {
	url   string
	score int
}

func summarize(pages []RankedPage) []scored {
	out := make([]scored, 0, len(pages))
	for _, p := range pages {
		out = append(out, scored{url: p.URL, score: p.Score})
	}
	return out
}

func TestRankSingleWord(t *testing.T) {
	t.Parallel()
	store, _ := pagestoretest.NewSeededStore(t)

	results, err := New(store, nil).Rank(context.Background(), "team", 10)
	require.NoError(t, err)
	assert.Equal(t, []scored{
		{"help.ch", 17},
		{"test.ch", 16},
		{"ep.ch", 13},
	}, summarize(results))

	top := results[0]
	assert.Equal(t, 3, top.Outbound)
	assert.Equal(t, 3, top.Inbound)
	assert.Equal(t, 1, top.KeywordHits)
	assert.True(t, top.WholeWord)
}

func TestRankPhrase(t *testing.T) {
	t.Parallel()
	store, _ := pagestoretest.NewSeededStore(t)

	results, err := New(store, nil).Rank(context.Background(), "anim tempor fugiat deserunt est", 10)
	require.NoError(t, err)
	assert.Equal(t, []scored{
		{"hre.he", 40},
		{"help.ch", 7},
		{"test.ch", 6},
	}, summarize(results))

	hre := results[0]
	assert.Equal(t, 2, hre.Outbound)
	assert.Equal(t, 0, hre.Inbound)
	assert.Equal(t, 28, hre.KeywordHits)
	assert.True(t, hre.WholeWord)
}

func TestRankRespectsLimitBeforeScoring(t *testing.T) {
	t.Parallel()
	store, _ := pagestoretest.NewSeededStore(t)

	results, err := New(store, nil).Rank(context.Background(), "team", 1)
	require.NoError(t, err)
	assert.Equal(t, []scored{{"test.ch", 16}}, summarize(results))
}

func TestRankBlankQuery(t *testing.T) {
	t.Parallel()
	store := &crawler.MockPageStore{}

	results, err := New(store, nil).Rank(context.Background(), "  ", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
	store.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything)
}

func TestRankNoMatches(t *testing.T) {
	t.Parallel()
	store, _ := pagestoretest.NewSeededStore(t)

	results, err := New(store, nil).Rank(context.Background(), "zzz", 10)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestRankEmptyLinksCountAsOneOutbound(t *testing.T) {
	t.Parallel()
	store := &crawler.MockPageStore{}
	empty := ""
	content := "solo page"
	store.On("Search", mock.Anything, "solo", 5).Return([]crawler.Page{
		{ID: 1, URL: "solo.ch", Visited: true, Content: &content, LinksTo: &empty},
		{ID: 2, URL: "nolinks.ch", Visited: false, Content: nil, LinksTo: nil},
	}, nil)
	store.On("CountInboundLinks", mock.Anything, mock.Anything).Return(0, nil)

	results, err := New(store, nil).Rank(context.Background(), "solo", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Outbound)
	assert.Equal(t, 1, results[1].Outbound)
	store.AssertExpectations(t)
}

func TestRankPropagatesStoreErrors(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")

	searchFails := &crawler.MockPageStore{}
	searchFails.On("Search", mock.Anything, "team", 10).Return(nil, boom)
	_, err := New(searchFails, nil).Rank(context.Background(), "team", 10)
	require.ErrorIs(t, err, boom)

	inboundFails := &crawler.MockPageStore{}
	inboundFails.On("Search", mock.Anything, "team", 10).Return([]crawler.Page{{ID: 9, URL: "team.ch"}}, nil)
	inboundFails.On("CountInboundLinks", mock.Anything, crawler.PageID(9)).Return(0, boom)
	_, err = New(inboundFails, nil).Rank(context.Background(), "team", 10)
	require.ErrorIs(t, err, boom)
}

func TestScore(t *testing.T) {
	t.Parallel()
	assert.Greater(t, Score(8, 10, 20, true), Score(1, 0, 2, false))
	assert.Less(t, Score(0, 0, 0, false), Score(999, 999, 999, true))
	assert.Equal(t, 17, Score(3, 3, 1, true))
	assert.Equal(t, 0, Score(0, 0, 0, false))
}

func TestKeywordHits(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		query string
		text  string
		want  int
	}{
		{
			name:  "sentence",
			query: "where do we go?",
			text:  "We go to the church. There we live. I don't know where we should go.",
			want:  5,
		},
		{name: "case insensitive", query: "TEAM", text: "team-crystal.ch Team", want: 2},
		{name: "non overlapping", query: "aa", text: "aaaa", want: 2},
		{name: "empty query", query: "", text: "anything", want: 0},
		{name: "empty text", query: "team", text: "", want: 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, KeywordHits(tc.query, tc.text))
		})
	}
}

func TestWholeWordMatch(t *testing.T) {
	t.Parallel()
	assert.True(t, WholeWordMatch("team", "team-crystal.ch"))
	assert.True(t, WholeWordMatch("Team", "the TEAM wins"))
	assert.True(t, WholeWordMatch("go.ch", "visit go.ch"))
	assert.False(t, WholeWordMatch("team", "teammate"))
	assert.False(t, WholeWordMatch("go.ch", "goxch"))
	assert.False(t, WholeWordMatch("   ", "anything"))
}

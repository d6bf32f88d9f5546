// Package pagestoretest provides a seeded SQLite page store for tests of
// packages that read from the corpus.
package pagestoretest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/JakeFAU/guugle/internal/crawler"
	"github.com/JakeFAU/guugle/internal/pagestore"
)

// Row is one visited page of the fixture corpus.
type Row struct {
	URL     string
	LinksTo string
	Content string
}

// LoremPage is the HTML body stored for hre.he.
const LoremPage = `<html><body><h1>
Laborum nulla quis deserunt labore quis cupidatat reprehenderit amet consequat reprehenderit tempor anim sint amet. Eiusmod fugiat eu aliqua qui do proident adipisicing. Dolore esse laborum voluptate in qui in ex. Sunt exercitation sit dolore cillum. Nostrud non aliqua sit anim aliqua labore Lorem quis nostrud. Exercitation ex nulla in laborum eu non voluptate consectetur.
Incididunt anim voluptate aliqua et commodo cillum. Adipisicing fugiat ea consectetur cupidatat quis velit duis. Ad fugiat id quis proident qui mollit eu fugiat exercitation. Consectetur velit tempor esse reprehenderit laboris ea labore consectetur ut irure cupidatat in mollit. Dolore consequat amet id ipsum deserunt in eiusmod. Sunt excepteur eu eiusmod voluptate est mollit elit sunt laboris nostrud. Culpa non ea ad ex veniam et aute.

Tempor enim non laborum enim ut duis laborum. Dolore nisi dolor Lorem anim occaecat non eu tempor incididunt. Consectetur aliquip reprehenderit fugiat magna. Est voluptate nisi id voluptate est cupidatat incididunt. Aute est qui mollit quis commodo irure ut eu ipsum sit ex cupidatat est adipisicing. Amet qui do cillum duis ad. Voluptate anim ipsum mollit sint incididunt.

Eu nisi eu quis anim tempor fugiat deserunt est deserunt nulla ad do. Ipsum pariatur enim eiusmod minim cupidatat esse excepteur nostrud proident officia Lorem laboris esse. Excepteur reprehenderit anim duis exercitation labore nisi aliquip duis do. Id eiusmod dolore ex nulla nulla.
</h1></body></html>`

// Corpus returns the six-page fixture in insertion (id) order.
func Corpus() []Row {
	return []Row{
		{URL: "test.ch", LinksTo: "team-crystal.ch:::google.ch:::example.com", Content: "team-crystal.ch:::google.ch:::example.com"},
		{URL: "help.ch", LinksTo: "team-crystal.ch:::google.ch:::test.ch", Content: "team-crystal.ch:::google.ch:::test.ch"},
		{URL: "p.ch", LinksTo: "help.ch", Content: "help.ch"},
		{URL: "ep.ch", LinksTo: "team-crystal.ch:::help.ch", Content: "team-crystal.ch::help.ch"},
		{URL: "lp.ch", LinksTo: "help.ch:::google.ch", Content: "help.ch:::google.ch"},
		{URL: "hre.he", LinksTo: "test.ch:::lp.ch", Content: LoremPage},
	}
}

// NewStore opens an empty SQLite store in a temporary directory. The store
// is closed when the test finishes.
func NewStore(tb testing.TB) (*pagestore.SQLiteStore, string) {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), "database.db3")
	store, err := pagestore.OpenSQLite(context.Background(), path)
	if err != nil {
		tb.Fatalf("open sqlite store: %v", err)
	}
	tb.Cleanup(func() { _ = store.Close() })
	return store, path
}

// Seed writes rows as visited pages through the public store API.
func Seed(tb testing.TB, store crawler.PageStore, rows []Row) {
	tb.Helper()
	ctx := context.Background()
	for _, row := range rows {
		id, err := store.InsertUnvisited(ctx, row.URL)
		if err != nil {
			tb.Fatalf("insert %s: %v", row.URL, err)
		}
		if err := store.RecordVisited(ctx, id, row.Content, crawler.SplitLinks(row.LinksTo)); err != nil {
			tb.Fatalf("record %s: %v", row.URL, err)
		}
	}
}

// NewSeededStore returns a store holding Corpus and its file path.
func NewSeededStore(tb testing.TB) (*pagestore.SQLiteStore, string) {
	tb.Helper()
	store, path := NewStore(tb)
	Seed(tb, store, Corpus())
	return store, path
}

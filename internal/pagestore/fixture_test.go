package pagestore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type seedRow struct {
	url     string
	linksTo string
	inUse   bool
	visited bool
}

func newTestSQLiteStore(t *testing.T) (*SQLiteStore, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "pages.db3")
	store, err := OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, path
}

func seed(t *testing.T, store *SQLiteStore, rows []seedRow) {
	t.Helper()

	for _, row := range rows {
		_, err := store.db.ExecContext(context.Background(),
			`INSERT INTO pages (url, links_to, in_use, visited) VALUES (?, ?, ?, ?)`,
			row.url, row.linksTo, row.inUse, row.visited)
		require.NoError(t, err)
	}
}

// Package pagestore persists the crawl frontier and corpus. SQLite is the
// default backend; a postgres:// DSN selects the Postgres backend.
package pagestore

import (
	"context"
	"strings"

	"github.com/JakeFAU/guugle/internal/crawler"
)

const pageColumns = "id, url, visited, content, links_to, in_use"

// Open opens the store at path, creating the schema when missing and
// clearing every stale lease. pool tunes the Postgres backend; its DSN is
// taken from path.
func Open(ctx context.Context, path string, pool PostgresConfig) (crawler.PageStore, error) {
	if IsPostgresDSN(path) {
		pool.DSN = path
		return OpenPostgres(ctx, pool)
	}
	return OpenSQLite(ctx, path)
}

// IsPostgresDSN reports whether path names a Postgres database.
func IsPostgresDSN(path string) bool {
	return strings.HasPrefix(path, "postgres://") || strings.HasPrefix(path, "postgresql://")
}

// searchPredicate builds the OR'd containment predicate for every query token
// across url and content. contains renders one containment test for a column
// and the n-th token.
func searchPredicate(tokens []string, contains func(column string, n int) string) string {
	conds := make([]string, 0, 2*len(tokens))
	for i := range tokens {
		conds = append(conds, contains("url", i), contains("content", i))
	}
	return strings.Join(conds, " OR ")
}

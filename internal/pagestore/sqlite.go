package pagestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"github.com/JakeFAU/guugle/internal/crawler"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS pages (
	id       INTEGER NOT NULL PRIMARY KEY,
	visited  BOOLEAN NOT NULL DEFAULT false CHECK (visited IN (false, true)),
	url      TEXT    NOT NULL UNIQUE,
	content  TEXT,
	links_to TEXT,
	in_use   BOOLEAN NOT NULL DEFAULT false CHECK (in_use IN (false, true))
)`

// SQLiteStore is a PageStore backed by a single SQLite file. All access goes
// through one connection guarded by mu.
type SQLiteStore struct {
	mu sync.Mutex
	db *sqlx.DB
}

var _ crawler.PageStore = (*SQLiteStore)(nil)

// OpenSQLite opens (or creates) the database file at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, crawler.StorageFault("open sqlite", errors.New("path is required"))
	}
	dsn := fmt.Sprintf("file:%s?_journal=WAL&_busy_timeout=5000", path)
	db, err := sqlx.ConnectContext(ctx, "sqlite3", dsn)
	if err != nil {
		return nil, crawler.StorageFault("open sqlite", err)
	}
	db.SetMaxOpenConns(1)

	store, err := NewSQLiteStoreWithDB(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLiteStoreWithDB builds a store from an existing handle (primarily for testing).
func NewSQLiteStoreWithDB(ctx context.Context, db *sqlx.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, crawler.StorageFault("open sqlite", errors.New("db is required"))
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, crawler.StorageFault("create schema", err)
	}
	if _, err := db.ExecContext(ctx, `UPDATE pages SET in_use = false`); err != nil {
		return nil, crawler.StorageFault("reset leases", err)
	}
	return &SQLiteStore{db: db}, nil
}

// InsertUnvisited adds url to the frontier.
func (s *SQLiteStore) InsertUnvisited(ctx context.Context, url string) (crawler.PageID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `INSERT INTO pages (url) VALUES (?)`, url)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return 0, fmt.Errorf("insert %q: %w", url, crawler.ErrDuplicateURL)
		}
		return 0, fmt.Errorf("insert %q: %w", url, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert %q: last insert id: %w", url, err)
	}
	return crawler.PageID(id), nil
}

// LeaseNext picks the lowest unvisited, unleased id and leases it in one statement.
func (s *SQLiteStore) LeaseNext(ctx context.Context) (crawler.PageID, string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	const query = `
		UPDATE pages SET in_use = true
		WHERE id = (
			SELECT id FROM pages
			WHERE in_use = false AND visited = false
			ORDER BY id LIMIT 1
		) AND in_use = false AND visited = false
		RETURNING id, url`

	var (
		id  int64
		url string
	)
	if err := s.db.QueryRowxContext(ctx, query).Scan(&id, &url); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, "", false, nil
		}
		return 0, "", false, fmt.Errorf("lease next: %w", err)
	}
	return crawler.PageID(id), url, true, nil
}

// MarkLeased leases a specific row.
func (s *SQLiteStore) MarkLeased(ctx context.Context, id crawler.PageID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE pages SET in_use = true WHERE id = ? AND in_use = false AND visited = false`, int64(id))
	if err != nil {
		return fmt.Errorf("mark leased %d: %w", id, err)
	}
	return expectAffected(res, fmt.Errorf("mark leased %d: %w", id, crawler.ErrNotLeasable))
}

// Release clears the lease flag.
func (s *SQLiteStore) Release(ctx context.Context, id crawler.PageID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `UPDATE pages SET in_use = false WHERE id = ?`, int64(id)); err != nil {
		return fmt.Errorf("release %d: %w", id, err)
	}
	return nil
}

// RecordVisited stores the fetch outcome and moves the page into the corpus.
func (s *SQLiteStore) RecordVisited(ctx context.Context, id crawler.PageID, content string, links []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE pages SET visited = true, content = ?, links_to = ? WHERE id = ?`,
		content, crawler.JoinLinks(links), int64(id))
	if err != nil {
		return fmt.Errorf("record visited %d: %w", id, err)
	}
	return expectAffected(res, fmt.Errorf("record visited %d: %w", id, crawler.ErrPageNotFound))
}

// IsFrontierEmpty reports whether every page has been visited.
func (s *SQLiteStore) IsFrontierEmpty(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var empty bool
	if err := s.db.GetContext(ctx, &empty,
		`SELECT NOT EXISTS (SELECT 1 FROM pages WHERE visited = false)`); err != nil {
		return false, fmt.Errorf("frontier empty: %w", err)
	}
	return empty, nil
}

// CountInboundLinks counts pages whose links_to contains the page URL.
func (s *SQLiteStore) CountInboundLinks(ctx context.Context, id crawler.PageID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var url string
	if err := s.db.GetContext(ctx, &url, `SELECT url FROM pages WHERE id = ?`, int64(id)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("inbound links %d: %w", id, crawler.ErrPageNotFound)
		}
		return 0, fmt.Errorf("inbound links %d: %w", id, err)
	}
	var count int
	if err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM pages WHERE instr(links_to, ?) > 0`, url); err != nil {
		return 0, fmt.Errorf("inbound links %d: %w", id, err)
	}
	return count, nil
}

// Search returns pages whose url or content contains any query token.
// Matching is case-sensitive. limit <= 0 means no limit.
func (s *SQLiteStore) Search(ctx context.Context, query string, limit int) ([]crawler.Page, error) {
	tokens := strings.Fields(query)
	if len(tokens) == 0 {
		return []crawler.Page{}, nil
	}
	args := make([]any, 0, len(tokens)+1)
	for _, tok := range tokens {
		args = append(args, tok)
	}
	where := searchPredicate(tokens, func(column string, n int) string {
		return fmt.Sprintf("instr(%s, ?%d) > 0", column, n+1)
	})
	stmt := `SELECT ` + pageColumns + ` FROM pages WHERE ` + where + ` ORDER BY id`
	if limit > 0 {
		stmt += fmt.Sprintf(" LIMIT ?%d", len(tokens)+1)
		args = append(args, limit)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pages := []crawler.Page{}
	if err := s.db.SelectContext(ctx, &pages, stmt, args...); err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	return pages, nil
}

// Pages returns every row ordered by id.
func (s *SQLiteStore) Pages(ctx context.Context) ([]crawler.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pages := []crawler.Page{}
	if err := s.db.SelectContext(ctx, &pages, `SELECT `+pageColumns+` FROM pages ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	return pages, nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}

func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func expectAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

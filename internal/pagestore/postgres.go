package pagestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/guugle/internal/crawler"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS pages (
	id       BIGSERIAL PRIMARY KEY,
	visited  BOOLEAN NOT NULL DEFAULT false,
	url      TEXT    NOT NULL UNIQUE,
	content  TEXT,
	links_to TEXT,
	in_use   BOOLEAN NOT NULL DEFAULT false
)`

const pgUniqueViolation = "23505"

// PostgresConfig controls the Postgres connection pool.
type PostgresConfig struct {
	DSN             string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// PostgresStore is a PageStore backed by Postgres. Leasing relies on row
// locks rather than a process-wide mutex.
type PostgresStore struct {
	pool pgxPool
}

var _ crawler.PageStore = (*PostgresStore)(nil)

// OpenPostgres connects to cfg.DSN and prepares the schema.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, crawler.StorageFault("open postgres", errors.New("dsn is required"))
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, crawler.StorageFault("parse postgres dsn", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, crawler.StorageFault("connect postgres", err)
	}
	store, err := NewPostgresStoreWithPool(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewPostgresStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewPostgresStoreWithPool(ctx context.Context, pool pgxPool) (*PostgresStore, error) {
	if pool == nil {
		return nil, crawler.StorageFault("open postgres", errors.New("pool is required"))
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return nil, crawler.StorageFault("create schema", err)
	}
	if _, err := pool.Exec(ctx, `UPDATE pages SET in_use = false WHERE in_use`); err != nil {
		return nil, crawler.StorageFault("reset leases", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// InsertUnvisited adds url to the frontier.
func (s *PostgresStore) InsertUnvisited(ctx context.Context, url string) (crawler.PageID, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `INSERT INTO pages (url) VALUES ($1) RETURNING id`, url).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return 0, fmt.Errorf("insert %q: %w", url, crawler.ErrDuplicateURL)
		}
		return 0, fmt.Errorf("insert %q: %w", url, err)
	}
	return crawler.PageID(id), nil
}

// LeaseNext leases the lowest available id, skipping rows locked by other workers.
func (s *PostgresStore) LeaseNext(ctx context.Context) (crawler.PageID, string, bool, error) {
	const query = `
		UPDATE pages SET in_use = true
		WHERE id = (
			SELECT id FROM pages
			WHERE in_use = false AND visited = false
			ORDER BY id LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, url`

	var (
		id  int64
		url string
	)
	if err := s.pool.QueryRow(ctx, query).Scan(&id, &url); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, "", false, nil
		}
		return 0, "", false, fmt.Errorf("lease next: %w", err)
	}
	return crawler.PageID(id), url, true, nil
}

// MarkLeased leases a specific row.
func (s *PostgresStore) MarkLeased(ctx context.Context, id crawler.PageID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE pages SET in_use = true WHERE id = $1 AND in_use = false AND visited = false`, int64(id))
	if err != nil {
		return fmt.Errorf("mark leased %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark leased %d: %w", id, crawler.ErrNotLeasable)
	}
	return nil
}

// Release clears the lease flag.
func (s *PostgresStore) Release(ctx context.Context, id crawler.PageID) error {
	if _, err := s.pool.Exec(ctx, `UPDATE pages SET in_use = false WHERE id = $1`, int64(id)); err != nil {
		return fmt.Errorf("release %d: %w", id, err)
	}
	return nil
}

// RecordVisited stores the fetch outcome.
func (s *PostgresStore) RecordVisited(ctx context.Context, id crawler.PageID, content string, links []string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE pages SET visited = true, content = $1, links_to = $2 WHERE id = $3`,
		content, crawler.JoinLinks(links), int64(id))
	if err != nil {
		return fmt.Errorf("record visited %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("record visited %d: %w", id, crawler.ErrPageNotFound)
	}
	return nil
}

// IsFrontierEmpty reports whether every page has been visited.
func (s *PostgresStore) IsFrontierEmpty(ctx context.Context) (bool, error) {
	var empty bool
	if err := s.pool.QueryRow(ctx,
		`SELECT NOT EXISTS (SELECT 1 FROM pages WHERE visited = false)`).Scan(&empty); err != nil {
		return false, fmt.Errorf("frontier empty: %w", err)
	}
	return empty, nil
}

// CountInboundLinks counts pages whose links_to contains the page URL.
func (s *PostgresStore) CountInboundLinks(ctx context.Context, id crawler.PageID) (int, error) {
	var url string
	if err := s.pool.QueryRow(ctx, `SELECT url FROM pages WHERE id = $1`, int64(id)).Scan(&url); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("inbound links %d: %w", id, crawler.ErrPageNotFound)
		}
		return 0, fmt.Errorf("inbound links %d: %w", id, err)
	}
	var count int64
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM pages WHERE strpos(links_to, $1) > 0`, url).Scan(&count); err != nil {
		return 0, fmt.Errorf("inbound links %d: %w", id, err)
	}
	return int(count), nil
}

// Search returns pages whose url or content contains any query token.
func (s *PostgresStore) Search(ctx context.Context, query string, limit int) ([]crawler.Page, error) {
	tokens := strings.Fields(query)
	if len(tokens) == 0 {
		return []crawler.Page{}, nil
	}
	args := make([]any, 0, len(tokens)+1)
	for _, tok := range tokens {
		args = append(args, tok)
	}
	where := searchPredicate(tokens, func(column string, n int) string {
		return fmt.Sprintf("strpos(%s, $%d) > 0", column, n+1)
	})
	stmt := `SELECT ` + pageColumns + ` FROM pages WHERE ` + where + ` ORDER BY id`
	if limit > 0 {
		stmt += fmt.Sprintf(" LIMIT $%d", len(tokens)+1)
		args = append(args, limit)
	}
	pages, err := s.queryPages(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	return pages, nil
}

// Pages returns every row ordered by id.
func (s *PostgresStore) Pages(ctx context.Context) ([]crawler.Page, error) {
	pages, err := s.queryPages(ctx, `SELECT `+pageColumns+` FROM pages ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	return pages, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) queryPages(ctx context.Context, stmt string, args ...any) ([]crawler.Page, error) {
	rows, err := s.pool.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query pages: %w", err)
	}
	defer rows.Close()

	pages := []crawler.Page{}
	for rows.Next() {
		var (
			id   int64
			page crawler.Page
		)
		if err := rows.Scan(&id, &page.URL, &page.Visited, &page.Content, &page.LinksTo, &page.InUse); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		page.ID = crawler.PageID(id)
		pages = append(pages, page)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pages: %w", err)
	}
	return pages, nil
}

// Package sqlstore keeps grids in two relational tables, one row per sheet and
// one row per non-empty cell. It runs on PostgreSQL (through pgx) and SQLite
// (through modernc.org/sqlite) with the same statements.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"github.com/JonMunkholm/machinelog/internal/grid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

var _ grid.Store = (*Store)(nil)

// Dialect selects placeholder style.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS grid_sheets (
	name       TEXT PRIMARY KEY,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE TABLE IF NOT EXISTS grid_cells (
	sheet   TEXT NOT NULL,
	row_idx INTEGER NOT NULL,
	col_idx INTEGER NOT NULL,
	num     DOUBLE PRECISION,
	txt     TEXT,
	PRIMARY KEY (sheet, row_idx, col_idx)
)`,
}

const (
	qInsertSheet = `INSERT INTO grid_sheets (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`
	qListSheets  = `SELECT name FROM grid_sheets ORDER BY created_at, name`
	qGetCell     = `SELECT num, txt FROM grid_cells WHERE sheet = $1 AND row_idx = $2 AND col_idx = $3`
	qUpsertCell  = `INSERT INTO grid_cells (sheet, row_idx, col_idx, num, txt) VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (sheet, row_idx, col_idx) DO UPDATE SET num = excluded.num, txt = excluded.txt`
	qDeleteCell = `DELETE FROM grid_cells WHERE sheet = $1 AND row_idx = $2 AND col_idx = $3`
	qLastRow    = `SELECT COALESCE(MAX(row_idx), 0) FROM grid_cells WHERE sheet = $1`
	qClearSheet = `DELETE FROM grid_cells WHERE sheet = $1`
)

var placeholder = regexp.MustCompile(`\$(\d+)`)

// Store is a database-backed grid store.
type Store struct {
	db      *sql.DB
	dialect Dialect
	closers []func()
}

// New wraps an open database. The tables must already exist; see Migrate.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// OpenPostgres builds a store on top of a pgx pool. Closing the store closes
// the pool.
func OpenPostgres(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	s := New(stdlib.OpenDBFromPool(pool), Postgres)
	s.closers = append(s.closers, pool.Close)
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// OpenSQLite opens (or creates) a SQLite database file.
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := New(db, SQLite)
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return grid.Wrap("migrate", "", err)
		}
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	err := s.db.Close()
	for _, c := range s.closers {
		c()
	}
	return err
}

func (s *Store) GetOrCreate(ctx context.Context, name string, layout grid.Layout) (grid.Grid, error) {
	res, err := s.db.ExecContext(ctx, s.q(qInsertSheet), name)
	if err != nil {
		return nil, grid.Wrap("create", name, err)
	}
	created, err := res.RowsAffected()
	if err != nil {
		return nil, grid.Wrap("create", name, err)
	}

	g := &sheet{store: s, name: name}
	if created == 1 && layout != nil {
		if err := layout(ctx, g); err != nil {
			return nil, grid.Wrap("layout", name, err)
		}
	}
	return g, nil
}

func (s *Store) List(ctx context.Context, match func(string) bool) ([]grid.Grid, error) {
	rows, err := s.db.QueryContext(ctx, s.q(qListSheets))
	if err != nil {
		return nil, grid.Wrap("list", "", err)
	}
	defer rows.Close()

	var out []grid.Grid
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, grid.Wrap("list", "", err)
		}
		if match == nil || match(name) {
			out = append(out, &sheet{store: s, name: name})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, grid.Wrap("list", "", err)
	}
	return out, nil
}

// q adapts a $N statement to the store's dialect.
func (s *Store) q(query string) string {
	if s.dialect == SQLite {
		return placeholder.ReplaceAllString(query, "?$1")
	}
	return query
}

type sheet struct {
	store *Store
	name  string
}

func (g *sheet) Name() string { return g.name }

func (g *sheet) Get(ctx context.Context, c grid.Coord) (grid.Cell, error) {
	if !c.Valid() {
		return grid.Empty, grid.Wrap("get", g.name, grid.ErrOutOfRange)
	}

	var num sql.NullFloat64
	var txt sql.NullString
	err := g.store.db.QueryRowContext(ctx, g.store.q(qGetCell), g.name, c.Row, c.Col).Scan(&num, &txt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return grid.Empty, nil
	case err != nil:
		return grid.Empty, grid.Wrap("get", g.name, err)
	case num.Valid:
		return grid.Number(num.Float64), nil
	case txt.Valid:
		return grid.Text(txt.String), nil
	}
	return grid.Empty, nil
}

func (g *sheet) Set(ctx context.Context, c grid.Coord, v grid.Cell) error {
	if !c.Valid() {
		return grid.Wrap("set", g.name, grid.ErrOutOfRange)
	}
	if err := setCell(ctx, g.store.db, g.store.q, g.name, c, v); err != nil {
		return grid.Wrap("set", g.name, err)
	}
	return nil
}

func (g *sheet) AppendRow(ctx context.Context, values []grid.Cell) error {
	tx, err := g.store.db.BeginTx(ctx, nil)
	if err != nil {
		return grid.Wrap("append", g.name, err)
	}
	defer tx.Rollback()

	var last int
	if err := tx.QueryRowContext(ctx, g.store.q(qLastRow), g.name).Scan(&last); err != nil {
		return grid.Wrap("append", g.name, err)
	}
	for i, v := range values {
		if err := setCell(ctx, tx, g.store.q, g.name, grid.At(last+1, i+1), v); err != nil {
			return grid.Wrap("append", g.name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return grid.Wrap("append", g.name, err)
	}
	return nil
}

func (g *sheet) Clear(ctx context.Context) error {
	if _, err := g.store.db.ExecContext(ctx, g.store.q(qClearSheet), g.name); err != nil {
		return grid.Wrap("clear", g.name, err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func setCell(ctx context.Context, db execer, q func(string) string, sheet string, c grid.Coord, v grid.Cell) error {
	if v.IsEmpty() {
		_, err := db.ExecContext(ctx, q(qDeleteCell), sheet, c.Row, c.Col)
		return err
	}

	var num sql.NullFloat64
	var txt sql.NullString
	if n, ok := v.Float(); ok {
		num = sql.NullFloat64{Float64: n, Valid: true}
	} else {
		txt = sql.NullString{String: v.String(), Valid: true}
	}
	_, err := db.ExecContext(ctx, q(qUpsertCell), sheet, c.Row, c.Col, num, txt)
	return err
}

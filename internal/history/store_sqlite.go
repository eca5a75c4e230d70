package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS histories (
		id           TEXT PRIMARY KEY,
		user_id      TEXT NOT NULL,
		username     TEXT,
		question     TEXT NOT NULL,
		parse_result TEXT NOT NULL,
		solution     TEXT NOT NULL,
		created_at   INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_histories_user_created ON histories (user_id, created_at DESC)`,
}

// SQLiteStore is a SQLite-backed Store implementation. created_at is kept
// as Unix milliseconds.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating when needed) the database at path and
// migrates it. Pass ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the histories table when missing.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	for _, stmt := range sqliteSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate histories: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// HealthCheck verifies the database is reachable.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Save(ctx context.Context, rec Record) (Record, error) {
	rec, err := prepare(rec)
	if err != nil {
		return Record{}, err
	}
	parseResult, solution, err := encodeBodies(rec)
	if err != nil {
		return Record{}, err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO histories (id, user_id, username, question, parse_result, solution, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.UserID,
		nullIfEmpty(rec.Username),
		rec.Question,
		string(parseResult),
		string(solution),
		rec.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return Record{}, fmt.Errorf("insert history: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStore) List(ctx context.Context, userID string, page, limit int) (Page, error) {
	page, limit, offset := bounds(page, limit)
	out := Page{Records: []Record{}, Page: page, Limit: limit}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM histories WHERE user_id = ?`,
		userID,
	).Scan(&out.Total); err != nil {
		return Page{}, fmt.Errorf("count histories: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, username, question, parse_result, solution, created_at
		 FROM histories
		 WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		userID,
		limit,
		offset,
	)
	if err != nil {
		return Page{}, fmt.Errorf("query histories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanSQLite(rows)
		if err != nil {
			return Page{}, err
		}
		out.Records = append(out.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return Page{}, fmt.Errorf("iterate histories: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Get(ctx context.Context, userID, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, username, question, parse_result, solution, created_at
		 FROM histories
		 WHERE id = ? AND user_id = ?`,
		id,
		userID,
	)
	rec, err := scanSQLite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

func (s *SQLiteStore) Delete(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM histories WHERE id = ? AND user_id = ?`,
		id,
		userID,
	)
	if err != nil {
		return fmt.Errorf("delete history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete history: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM histories WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear histories: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSQLite(row scanner) (Record, error) {
	var rec Record
	var username sql.NullString
	var parseResult, solution string
	var createdAt int64

	if err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&username,
		&rec.Question,
		&parseResult,
		&solution,
		&createdAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, sql.ErrNoRows
		}
		return Record{}, fmt.Errorf("scan history: %w", err)
	}
	rec.Username = username.String
	rec.CreatedAt = time.UnixMilli(createdAt).UTC()
	if err := decodeBodies(&rec, []byte(parseResult), []byte(solution)); err != nil {
		return Record{}, err
	}
	return rec, nil
}

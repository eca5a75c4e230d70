package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS histories (
		id           TEXT PRIMARY KEY,
		user_id      TEXT NOT NULL,
		username     TEXT,
		question     TEXT NOT NULL,
		parse_result JSONB NOT NULL,
		solution     JSONB NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_histories_user_created ON histories (user_id, created_at DESC)`,
}

// PostgresStore is a PostgreSQL-backed Store implementation.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed history store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

// Migrate creates the histories table when missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate histories: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, rec Record) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rec, err := prepare(rec)
	if err != nil {
		return Record{}, err
	}
	parseResult, solution, err := encodeBodies(rec)
	if err != nil {
		return Record{}, err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO histories (id, user_id, username, question, parse_result, solution, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID,
		rec.UserID,
		nullIfEmpty(rec.Username),
		rec.Question,
		parseResult,
		solution,
		rec.CreatedAt,
	)
	if err != nil {
		return Record{}, fmt.Errorf("insert history: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) List(ctx context.Context, userID string, page, limit int) (Page, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	page, limit, offset := bounds(page, limit)
	out := Page{Records: []Record{}, Page: page, Limit: limit}

	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM histories WHERE user_id = $1`,
		userID,
	).Scan(&out.Total); err != nil {
		return Page{}, fmt.Errorf("count histories: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, username, question, parse_result, solution, created_at
		 FROM histories
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2 OFFSET $3`,
		userID,
		limit,
		offset,
	)
	if err != nil {
		return Page{}, fmt.Errorf("query histories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanPostgres(rows)
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

func (s *PostgresStore) Get(ctx context.Context, userID, id string) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	row := s.pool.QueryRow(ctx,
		`SELECT id, user_id, username, question, parse_result, solution, created_at
		 FROM histories
		 WHERE id = $1 AND user_id = $2`,
		id,
		userID,
	)
	rec, err := scanPostgres(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

func (s *PostgresStore) Delete(ctx context.Context, userID, id string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	cmd, err := s.pool.Exec(ctx,
		`DELETE FROM histories WHERE id = $1 AND user_id = $2`,
		id,
		userID,
	)
	if err != nil {
		return fmt.Errorf("delete history: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Clear(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if _, err := s.pool.Exec(ctx, `DELETE FROM histories WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear histories: %w", err)
	}
	return nil
}

// HealthCheck verifies the database connection is alive.
func (s *PostgresStore) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func scanPostgres(row pgx.Row) (Record, error) {
	var rec Record
	var username *string
	var parseResult, solution []byte

	if err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&username,
		&rec.Question,
		&parseResult,
		&solution,
		&rec.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, pgx.ErrNoRows
		}
		return Record{}, fmt.Errorf("scan history: %w", err)
	}
	if username != nil {
		rec.Username = *username
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	if err := decodeBodies(&rec, parseResult, solution); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func encodeBodies(rec Record) ([]byte, []byte, error) {
	parseResult, err := json.Marshal(rec.ParseResult)
	if err != nil {
		return nil, nil, fmt.Errorf("encode parse result: %w", err)
	}
	solution, err := json.Marshal(rec.Solution)
	if err != nil {
		return nil, nil, fmt.Errorf("encode solution: %w", err)
	}
	return parseResult, solution, nil
}

func decodeBodies(rec *Record, parseResult, solution []byte) error {
	if err := json.Unmarshal(parseResult, &rec.ParseResult); err != nil {
		return fmt.Errorf("decode parse result: %w", err)
	}
	if err := json.Unmarshal(solution, &rec.Solution); err != nil {
		return fmt.Errorf("decode solution: %w", err)
	}
	if rec.Solution.Steps == nil {
		rec.Solution.Steps = []string{}
	}
	return nil
}

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}

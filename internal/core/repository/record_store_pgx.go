package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duynhne/mentorpath-service/internal/core/domain"
)

// PgxRecordStore implements domain.RecordStore on a JSONB table.
type PgxRecordStore struct {
	pool *pgxpool.Pool
}

// NewRecordStore creates a new PgxRecordStore.
func NewRecordStore(pool *pgxpool.Pool) *PgxRecordStore {
	return &PgxRecordStore{pool: pool}
}

// Get returns the record, or (nil, nil) when it does not exist.
func (s *PgxRecordStore) Get(ctx context.Context, collection, key string) (*domain.Record, error) {
	query := `SELECT fields, created_at, updated_at FROM records WHERE collection = $1 AND key = $2`

	rec := domain.Record{Collection: collection, Key: key}
	err := s.pool.QueryRow(ctx, query, collection, key).Scan(&rec.Fields, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get %s/%s: %w", collection, key, err)
	}
	return &rec, nil
}

// Put upserts the record. created_at is only set on insert.
func (s *PgxRecordStore) Put(ctx context.Context, collection, key string, fields map[string]any, opts domain.PutOptions) error {
	query := `
		INSERT INTO records (collection, key, fields) VALUES ($1, $2, $3)
		ON CONFLICT (collection, key) DO UPDATE
		SET fields = EXCLUDED.fields, updated_at = now()
	`
	if opts.Merge {
		query = `
			INSERT INTO records (collection, key, fields) VALUES ($1, $2, $3)
			ON CONFLICT (collection, key) DO UPDATE
			SET fields = records.fields || EXCLUDED.fields, updated_at = now()
		`
	}

	if _, err := s.pool.Exec(ctx, query, collection, key, fields); err != nil {
		return fmt.Errorf("put %s/%s: %w", collection, key, err)
	}
	return nil
}

// Add inserts the record under a random UUID key.
func (s *PgxRecordStore) Add(ctx context.Context, collection string, fields map[string]any) (string, error) {
	key := uuid.NewString()
	query := `INSERT INTO records (collection, key, fields) VALUES ($1, $2, $3)`

	if _, err := s.pool.Exec(ctx, query, collection, key, fields); err != nil {
		return "", fmt.Errorf("add to %s: %w", collection, err)
	}
	return key, nil
}

// List returns every record of the collection, oldest first.
func (s *PgxRecordStore) List(ctx context.Context, collection string) ([]domain.Record, error) {
	query := `SELECT key, fields, created_at, updated_at FROM records WHERE collection = $1 ORDER BY created_at, key`

	rows, err := s.pool.Query(ctx, query, collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Record, error) {
		rec := domain.Record{Collection: collection}
		err := row.Scan(&rec.Key, &rec.Fields, &rec.CreatedAt, &rec.UpdatedAt)
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", collection, err)
	}
	return records, nil
}

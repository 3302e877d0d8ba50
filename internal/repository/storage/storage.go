package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/newsupernova0617/convert-for-you/internal/entities"
)

var ErrNotFound = errors.New("artifact not found")

// Store is the metadata store: one row per produced file. Every status
// transition goes through a single guarded UPDATE so rows can never move
// out of a terminal state.
type Store struct {
	dbpool *pgxpool.Pool
}

func New(ctx context.Context, databaseDSN string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	return &Store{dbpool: pool}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.dbpool.Ping(ctx)
}

func (s *Store) Close() {
	s.dbpool.Close()
}

// Insert records a freshly committed artifact. The caller has already
// uploaded the blob; this is the step that makes it visible.
func (s *Store) Insert(ctx context.Context, a entities.Artifact) error {
	_, err := s.dbpool.Exec(ctx, `
		INSERT INTO files (id, storage_key, kind, created_at, expires_at, status)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.StorageKey, string(a.Kind), a.CreatedAt, a.ExpiresAt, string(a.Status),
	)
	if err != nil {
		return fmt.Errorf("insert artifact %s: %w", a.ID, err)
	}
	return nil
}

// GetActive looks up a row by id filtered to status = active. Expired but
// unswept rows still count as active here; the sweeper is the only thing
// that retires them.
func (s *Store) GetActive(ctx context.Context, id string) (entities.Artifact, error) {
	return s.get(ctx, `
		SELECT id, storage_key, kind, created_at, expires_at, deleted_at, status
		FROM files WHERE id = $1 AND status = $2`,
		id, string(entities.StatusActive),
	)
}

// Get looks a row up regardless of status.
func (s *Store) Get(ctx context.Context, id string) (entities.Artifact, error) {
	return s.get(ctx, `
		SELECT id, storage_key, kind, created_at, expires_at, deleted_at, status
		FROM files WHERE id = $1`,
		id,
	)
}

func (s *Store) get(ctx context.Context, query string, args ...any) (entities.Artifact, error) {
	var a entities.Artifact
	var kind, status string
	err := s.dbpool.QueryRow(ctx, query, args...).Scan(
		&a.ID, &a.StorageKey, &kind, &a.CreatedAt, &a.ExpiresAt, &a.DeletedAt, &status,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return entities.Artifact{}, ErrNotFound
	}
	if err != nil {
		return entities.Artifact{}, fmt.Errorf("query artifact: %w", err)
	}
	a.Kind = entities.Kind(kind)
	a.Status = entities.Status(status)
	return a, nil
}

// Expired returns all active rows whose TTL has elapsed at now.
func (s *Store) Expired(ctx context.Context, now time.Time) ([]entities.Artifact, error) {
	rows, err := s.dbpool.Query(ctx, `
		SELECT id, storage_key, kind, created_at, expires_at, deleted_at, status
		FROM files WHERE status = $1 AND expires_at <= $2
		ORDER BY expires_at`,
		string(entities.StatusActive), now,
	)
	if err != nil {
		return nil, fmt.Errorf("query expired artifacts: %w", err)
	}
	defer rows.Close()

	var out []entities.Artifact
	for rows.Next() {
		var a entities.Artifact
		var kind, status string
		if err := rows.Scan(&a.ID, &a.StorageKey, &kind, &a.CreatedAt, &a.ExpiresAt, &a.DeletedAt, &status); err != nil {
			return nil, fmt.Errorf("scan expired artifact: %w", err)
		}
		a.Kind = entities.Kind(kind)
		a.Status = entities.Status(status)
		out = append(out, a)
	}
	return out, rows.Err()
}

// MarkDeleted transitions active -> deleted, stamping deleted_at.
func (s *Store) MarkDeleted(ctx context.Context, id string, deletedAt time.Time) error {
	return s.transition(ctx, id, entities.StatusDeleted, &deletedAt)
}

// MarkFailed transitions active -> failed after a blob delete failure.
// Terminal: nothing retries a failed row.
func (s *Store) MarkFailed(ctx context.Context, id string) error {
	return s.transition(ctx, id, entities.StatusFailed, nil)
}

// transition applies a guarded status change. The WHERE clause only
// matches active rows, which makes terminal states immutable and repeat
// sweeps no-ops; entities.Transition double-checks the legality.
func (s *Store) transition(ctx context.Context, id string, to entities.Status, deletedAt *time.Time) error {
	if err := entities.Transition(entities.StatusActive, to); err != nil {
		return err
	}

	tag, err := s.dbpool.Exec(ctx, `
		UPDATE files SET status = $1, deleted_at = $2
		WHERE id = $3 AND status = $4`,
		string(to), deletedAt, id, string(entities.StatusActive),
	)
	if err != nil {
		return fmt.Errorf("transition artifact %s to %s: %w", id, to, err)
	}
	if tag.RowsAffected() == 0 {
		current, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return entities.Transition(current.Status, to)
	}
	return nil
}

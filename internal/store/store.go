package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andresmejia3/facegate/internal/corpus"
	"github.com/andresmejia3/facegate/internal/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a named reference does not exist.
var ErrNotFound = errors.New("reference not found")

// Store keeps the reference corpus and the access audit log in PostgreSQL.
// It is safe for concurrent use by the recognition workers.
type Store struct {
	pool *pgxpool.Pool
}

// New establishes a connection pool and ensures the schema is initialized.
func New(ctx context.Context, connString string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	// Initialize schema (Auto-Migration)
	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{pool: pool}, nil
}

// initSchema creates the tables if they don't exist (Auto-Migration).
func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	query := `
		CREATE TABLE IF NOT EXISTS reference_faces (
			id SERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			image BYTEA NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS access_events (
			id BIGSERIAL PRIMARY KEY,
			session TEXT NOT NULL,
			command TEXT NOT NULL,
			box INT[] NOT NULL,
			simulated BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS access_events_created_at_idx ON access_events (created_at DESC);
	`
	_, err := pool.Exec(ctx, query)
	return err
}

// Close terminates every pooled connection.
func (s *Store) Close() {
	s.pool.Close()
}

// AddReference stores an encoded face image under name, replacing any image
// already stored under that name.
func (s *Store) AddReference(ctx context.Context, name string, image []byte) (int, error) {
	if len(image) == 0 {
		return 0, fmt.Errorf("reference %q has no image data", name)
	}
	var id int
	err := s.pool.QueryRow(ctx, `
		INSERT INTO reference_faces (name, image)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET image = EXCLUDED.image, created_at = NOW()
		RETURNING id
	`, name, image).Scan(&id)
	return id, err
}

// ReferenceInfo describes a stored reference without its pixels.
type ReferenceInfo struct {
	ID        int
	Name      string
	Size      int
	CreatedAt time.Time
}

// ListReferences returns every reference ordered by id.
func (s *Store) ListReferences(ctx context.Context) ([]ReferenceInfo, error) {
	rows, err := s.pool.Query(ctx, "SELECT id, name, octet_length(image), created_at FROM reference_faces ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []ReferenceInfo
	for rows.Next() {
		var r ReferenceInfo
		if err := rows.Scan(&r.ID, &r.Name, &r.Size, &r.CreatedAt); err != nil {
			return nil, err
		}
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

// References implements corpus.Source. The table is queried on every call.
func (s *Store) References(ctx context.Context) ([]corpus.Reference, error) {
	rows, err := s.pool.Query(ctx, "SELECT name, image FROM reference_faces ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query reference faces: %w", err)
	}
	defer rows.Close()

	var refs []corpus.Reference
	for rows.Next() {
		var r corpus.Reference
		if err := rows.Scan(&r.Name, &r.Data); err != nil {
			return nil, err
		}
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

// DeleteReference removes the reference stored under name.
func (s *Store) DeleteReference(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM reference_faces WHERE name = $1", name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

// RecordEvent appends a dispatched signal to the audit log.
func (s *Store) RecordEvent(ctx context.Context, ev types.SignalEvent) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO access_events (session, command, box, simulated, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, ev.Session, ev.Command, []int32{int32(ev.Box.X), int32(ev.Box.Y), int32(ev.Box.W), int32(ev.Box.H)}, ev.Simulated, at)
	return err
}

// RecentEvents returns up to limit events, newest first.
func (s *Store) RecentEvents(ctx context.Context, limit int) ([]types.SignalEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT session, command, box, simulated, created_at
		FROM access_events
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.SignalEvent, error) {
		var ev types.SignalEvent
		var box []int32
		if err := row.Scan(&ev.Session, &ev.Command, &box, &ev.Simulated, &ev.At); err != nil {
			return ev, err
		}
		if len(box) == 4 {
			ev.Box = types.BoundingBox{X: int(box[0]), Y: int(box[1]), W: int(box[2]), H: int(box[3])}
		}
		return ev, nil
	})
}

// Reset drops all application tables to clear the database state.
// This is useful for development to force a schema refresh without migrations.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		DROP TABLE IF EXISTS access_events CASCADE;
		DROP TABLE IF EXISTS reference_faces CASCADE;
	`)
	return err
}

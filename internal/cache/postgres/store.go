// Package postgres implements the entity snapshot cache on PostgreSQL,
// for hosted deployments where several reviewers share one cache.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/pauubach/narrassist-sub006/internal/cache"
	"github.com/pauubach/narrassist-sub006/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS entity_snapshots (
	project_id    BIGINT NOT NULL,
	entity_id     BIGINT NOT NULL,
	name          TEXT   NOT NULL,
	entity_type   TEXT   NOT NULL,
	aliases       TEXT[] NOT NULL DEFAULT '{}',
	mention_count INTEGER NOT NULL DEFAULT 0,
	fetched_at    TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (project_id, entity_id)
);
`

// Store implements cache.Store using PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore connects to PostgreSQL with the given DSN and ensures the
// snapshot schema exists.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: failed to connect: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: failed to create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// SaveSnapshot replaces the project's snapshot atomically.
func (s *Store) SaveSnapshot(ctx context.Context, projectID int64, entities []types.Entity) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM entity_snapshots WHERE project_id = $1", projectID); err != nil {
		return fmt.Errorf("postgres: failed to clear snapshot: %w", err)
	}

	now := time.Now().UTC()
	for _, e := range entities {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO entity_snapshots (project_id, entity_id, name, entity_type, aliases, mention_count, fetched_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			projectID, e.ID, e.Name, string(e.Type), pq.Array(e.Aliases), e.MentionCount, now,
		)
		if err != nil {
			return fmt.Errorf("postgres: failed to insert entity %d: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: failed to commit snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the cached entity list for the project.
func (s *Store) LoadSnapshot(ctx context.Context, projectID int64) ([]types.Entity, time.Time, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entity_id, name, entity_type, aliases, mention_count, fetched_at
		 FROM entity_snapshots WHERE project_id = $1 ORDER BY entity_id`,
		projectID,
	)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("postgres: failed to query snapshot: %w", err)
	}
	defer rows.Close()

	var entities []types.Entity
	var fetchedAt time.Time
	for rows.Next() {
		var e types.Entity
		var entityType string
		var aliases pq.StringArray
		if err := rows.Scan(&e.ID, &e.Name, &entityType, &aliases, &e.MentionCount, &fetchedAt); err != nil {
			return nil, time.Time{}, fmt.Errorf("postgres: failed to scan entity: %w", err)
		}
		e.Type = types.EntityType(entityType)
		e.Aliases = aliases
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, fmt.Errorf("postgres: snapshot iteration failed: %w", err)
	}
	if len(entities) == 0 {
		return nil, time.Time{}, cache.ErrNoSnapshot
	}
	return entities, fetchedAt, nil
}

// Invalidate drops the given entities from the snapshot, or the whole
// snapshot when no ids are given.
func (s *Store) Invalidate(ctx context.Context, projectID int64, entityIDs []int64) error {
	if len(entityIDs) == 0 {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM entity_snapshots WHERE project_id = $1", projectID); err != nil {
			return fmt.Errorf("postgres: failed to invalidate snapshot: %w", err)
		}
		return nil
	}

	_, err := s.db.ExecContext(ctx,
		"DELETE FROM entity_snapshots WHERE project_id = $1 AND entity_id = ANY($2)",
		projectID, pq.Array(entityIDs),
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to invalidate entities: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

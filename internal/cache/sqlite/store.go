// Package sqlite implements the entity snapshot cache on SQLite via the
// pure-Go modernc driver, so the CLI needs no cgo toolchain.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/pauubach/narrassist-sub006/internal/cache"
	"github.com/pauubach/narrassist-sub006/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS entity_snapshots (
	project_id    INTEGER NOT NULL,
	entity_id     INTEGER NOT NULL,
	name          TEXT    NOT NULL,
	entity_type   TEXT    NOT NULL,
	aliases       TEXT    NOT NULL DEFAULT '[]',
	mention_count INTEGER NOT NULL DEFAULT 0,
	fetched_at    TIMESTAMP NOT NULL,
	PRIMARY KEY (project_id, entity_id)
);
CREATE INDEX IF NOT EXISTS idx_snapshots_project ON entity_snapshots(project_id);
`

// Store implements cache.Store using SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the snapshot database at the given DSN.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	// SQLite supports a single writer. One open connection serialises
	// writes and avoids SQLITE_BUSY; WAL keeps readers unblocked.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// SaveSnapshot replaces the project's snapshot atomically.
func (s *Store) SaveSnapshot(ctx context.Context, projectID int64, entities []types.Entity) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM entity_snapshots WHERE project_id = ?", projectID); err != nil {
		return fmt.Errorf("sqlite: failed to clear snapshot: %w", err)
	}

	now := time.Now().UTC()
	for _, e := range entities {
		aliases, err := json.Marshal(e.Aliases)
		if err != nil {
			return fmt.Errorf("sqlite: failed to marshal aliases for entity %d: %w", e.ID, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO entity_snapshots (project_id, entity_id, name, entity_type, aliases, mention_count, fetched_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			projectID, e.ID, e.Name, string(e.Type), string(aliases), e.MentionCount, now,
		)
		if err != nil {
			return fmt.Errorf("sqlite: failed to insert entity %d: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: failed to commit snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the cached entity list for the project.
func (s *Store) LoadSnapshot(ctx context.Context, projectID int64) ([]types.Entity, time.Time, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entity_id, name, entity_type, aliases, mention_count, fetched_at
		 FROM entity_snapshots WHERE project_id = ? ORDER BY entity_id`,
		projectID,
	)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("sqlite: failed to query snapshot: %w", err)
	}
	defer rows.Close()

	var entities []types.Entity
	var fetchedAt time.Time
	for rows.Next() {
		var e types.Entity
		var entityType, aliasesJSON string
		if err := rows.Scan(&e.ID, &e.Name, &entityType, &aliasesJSON, &e.MentionCount, &fetchedAt); err != nil {
			return nil, time.Time{}, fmt.Errorf("sqlite: failed to scan entity: %w", err)
		}
		e.Type = types.EntityType(entityType)
		if err := json.Unmarshal([]byte(aliasesJSON), &e.Aliases); err != nil {
			return nil, time.Time{}, fmt.Errorf("sqlite: failed to unmarshal aliases for entity %d: %w", e.ID, err)
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, fmt.Errorf("sqlite: snapshot iteration failed: %w", err)
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
		_, err := s.db.ExecContext(ctx, "DELETE FROM entity_snapshots WHERE project_id = ?", projectID)
		if err != nil {
			return fmt.Errorf("sqlite: failed to invalidate snapshot: %w", err)
		}
		return nil
	}

	placeholders := strings.Repeat("?,", len(entityIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, 0, len(entityIDs)+1)
	args = append(args, projectID)
	for _, id := range entityIDs {
		args = append(args, id)
	}

	query := fmt.Sprintf("DELETE FROM entity_snapshots WHERE project_id = ? AND entity_id IN (%s)", placeholders)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("sqlite: failed to invalidate entities: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Package cache persists the most recently fetched entity snapshot per
// project, so the merge dialog can open with data while offline and the
// wizard can resolve entities between fetches. The snapshot is a cache,
// never a source of truth: invalidation events from the backend drop
// affected rows, and any confirmed merge invalidates the whole project.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/pauubach/narrassist-sub006/pkg/types"
)

// ErrNoSnapshot is returned when no snapshot exists for the project.
var ErrNoSnapshot = errors.New("cache: no snapshot for project")

// Store persists entity snapshots. Implementations live in the sqlite
// and postgres subpackages.
type Store interface {
	// SaveSnapshot replaces the project's snapshot with the given
	// entity list.
	SaveSnapshot(ctx context.Context, projectID int64, entities []types.Entity) error

	// LoadSnapshot returns the project's snapshot and the time it was
	// fetched. Returns ErrNoSnapshot when none exists.
	LoadSnapshot(ctx context.Context, projectID int64) ([]types.Entity, time.Time, error)

	// Invalidate removes the given entities from the project's
	// snapshot. An empty id list drops the whole snapshot.
	Invalidate(ctx context.Context, projectID int64, entityIDs []int64) error

	// Close releases the underlying database handle.
	Close() error
}

package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pauubach/narrassist-sub006/internal/cache"
	"github.com/pauubach/narrassist-sub006/pkg/types"
)

// Needs a running PostgreSQL; set NARRASSIST_TEST_POSTGRES_DSN to run.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("NARRASSIST_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("NARRASSIST_TEST_POSTGRES_DSN not set")
	}
	store, err := NewStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() {
		store.db.Exec("DELETE FROM entity_snapshots WHERE project_id IN (9007, 9008)")
		store.Close()
	})
	return store
}

func TestSnapshotRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entities := []types.Entity{
		{ID: 1, Name: "Juan Pérez", Aliases: []string{"Juanito"}, Type: types.EntityCharacter, MentionCount: 12},
		{ID: 2, Name: "el joven moreno", Type: types.EntityCharacter, MentionCount: 5},
	}
	require.NoError(t, store.SaveSnapshot(ctx, 9007, entities))

	got, _, err := store.LoadSnapshot(ctx, 9007)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Juan Pérez", got[0].Name)
	assert.Equal(t, []string{"Juanito"}, got[0].Aliases)

	require.NoError(t, store.Invalidate(ctx, 9007, []int64{1}))
	got, _, err = store.LoadSnapshot(ctx, 9007)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].ID)

	require.NoError(t, store.Invalidate(ctx, 9007, nil))
	_, _, err = store.LoadSnapshot(ctx, 9007)
	assert.ErrorIs(t, err, cache.ErrNoSnapshot)
}

// Command narrassist-merge is a terminal front-end for the entity-merge
// workflow: it lists a project's entities, previews similarity and
// conflicts for a candidate merge, drives the merge wizard end to end,
// and lists or undoes recorded merges.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/pauubach/narrassist-sub006/internal/backend"
	"github.com/pauubach/narrassist-sub006/internal/cache"
	"github.com/pauubach/narrassist-sub006/internal/cache/postgres"
	"github.com/pauubach/narrassist-sub006/internal/cache/sqlite"
	"github.com/pauubach/narrassist-sub006/internal/config"
	"github.com/pauubach/narrassist-sub006/pkg/types"
)

var (
	cfgPath   string
	projectID int64

	cfg *config.Config
	api *backend.Client
)

var rootCmd = &cobra.Command{
	Use:           "narrassist-merge",
	Short:         "Review, merge and un-merge narrative entities",
	Long:          `narrassist-merge talks to the narrative-assistant API server to reconcile duplicate entities: it previews similarity and attribute conflicts, builds a deterministic merge plan, submits it, and can undo recorded merges.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		if projectID != 0 {
			cfg.Backend.ProjectID = projectID
		}
		api = backend.NewClient(backend.Config{
			BaseURL:           cfg.Backend.BaseURL,
			ProjectID:         cfg.Backend.ProjectID,
			Timeout:           time.Duration(cfg.Backend.TimeoutSeconds) * time.Second,
			RequestsPerSecond: cfg.Backend.RequestsPerSecond,
			Burst:             cfg.Backend.Burst,
		})
		return nil
	},
}

func main() {
	log.SetFlags(0)

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (default: ./narrassist.yaml)")
	rootCmd.PersistentFlags().Int64Var(&projectID, "project", 0, "project id (overrides config)")

	rootCmd.AddCommand(entitiesCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(undoCmd)
	rootCmd.AddCommand(watchCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openCache builds the snapshot store selected in the configuration.
func openCache() (cache.Store, error) {
	switch cfg.Cache.Engine {
	case "postgres":
		return postgres.NewStore(cfg.Cache.PostgresDSN)
	default:
		return sqlite.NewStore(cfg.Cache.Path)
	}
}

// loadEntities fetches the project entity list, refreshing the snapshot
// cache on success and falling back to the cached snapshot when the
// server is unreachable.
func loadEntities(ctx context.Context, store cache.Store) ([]types.Entity, error) {
	entities, err := api.ListEntities(ctx)
	if err == nil {
		if saveErr := store.SaveSnapshot(ctx, cfg.Backend.ProjectID, entities); saveErr != nil {
			log.Printf("warning: failed to refresh entity snapshot: %v", saveErr)
		}
		return entities, nil
	}

	cached, fetchedAt, cacheErr := store.LoadSnapshot(ctx, cfg.Backend.ProjectID)
	if cacheErr != nil {
		return nil, fmt.Errorf("server unreachable (%v) and no cached snapshot (%v)", err, cacheErr)
	}
	log.Printf("warning: server unreachable, using entity snapshot from %s", fetchedAt.Format(time.RFC3339))
	return cached, nil
}

func parseEntityIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid entity id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

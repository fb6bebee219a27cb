package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded merges for the project",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		records, err := api.MergeHistory(ctx)
		if err != nil {
			return err
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("%s\n", cyan(fmt.Sprintf("=== Merge history: %d records ===", len(records))))
		for _, r := range records {
			fmt.Printf("  %4d  entity %d absorbed %v %s\n",
				r.ID, r.PrimaryEntityID, r.MergedEntityIDs,
				gray(fmt.Sprintf("by %s at %s", r.MergedBy, r.CreatedAt.Format(time.RFC3339))),
			)
		}
		return nil
	},
}

var undoCmd = &cobra.Command{
	Use:   "undo <merge-id>",
	Short: "Reverse a recorded merge",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		ids, err := parseEntityIDs(args)
		if err != nil {
			return fmt.Errorf("invalid merge id %q", args[0])
		}

		restored, err := api.UndoMerge(ctx, ids[0])
		if err != nil {
			return err
		}

		store, err := openCache()
		if err == nil {
			defer store.Close()
			if err := store.Invalidate(ctx, cfg.Backend.ProjectID, nil); err != nil {
				log.Printf("warning: failed to invalidate entity snapshot: %v", err)
			}
		}

		green := color.New(color.FgGreen, color.Bold).SprintFunc()
		fmt.Printf("%s merge %d undone, restored entities %v\n", green("OK:"), ids[0], restored)
		return nil
	},
}

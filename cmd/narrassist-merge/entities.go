package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var entitiesCmd = &cobra.Command{
	Use:   "entities",
	Short: "List the project's entities",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		store, err := openCache()
		if err != nil {
			return err
		}
		defer store.Close()

		entities, err := loadEntities(ctx, store)
		if err != nil {
			return err
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("%s\n", cyan(fmt.Sprintf("=== Project %d: %d entities ===", cfg.Backend.ProjectID, len(entities))))
		for _, e := range entities {
			line := fmt.Sprintf("  %4d  %-12s %s", e.ID, e.Type, e.Name)
			if len(e.Aliases) > 0 {
				line += gray(" (" + strings.Join(e.Aliases, ", ") + ")")
			}
			line += gray(fmt.Sprintf("  %d mentions", e.MentionCount))
			fmt.Println(line)
		}
		return nil
	},
}

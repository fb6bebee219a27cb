package main

import (
	"context"
	"fmt"
	"log"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pauubach/narrassist-sub006/internal/backend"
	"github.com/pauubach/narrassist-sub006/internal/merge"
	"github.com/pauubach/narrassist-sub006/pkg/types"
)

var previewCmd = &cobra.Command{
	Use:   "preview <entity-id> <entity-id> [entity-id...]",
	Short: "Preview similarity and conflicts for a candidate merge",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		ids, err := parseEntityIDs(args)
		if err != nil {
			return err
		}

		store, err := openCache()
		if err != nil {
			return err
		}
		defer store.Close()

		entities, err := loadEntities(ctx, store)
		if err != nil {
			return err
		}
		selected, err := resolveSelection(entities, ids)
		if err != nil {
			return err
		}

		analysis, err := api.Analyze(ctx, ids)
		if err != nil {
			// Last rung of the ladder: lexical similarity computed
			// locally, no conflict detection.
			log.Printf("warning: server analysis unavailable, computing name similarity locally: %v", err)
			analysis = &backend.Analysis{
				Pairs:  merge.LocalPairs(selected),
				Source: backend.SourceLocal,
			}
		}

		printAnalysis(selected, analysis)
		return nil
	},
}

// resolveSelection maps the requested ids onto the entity list,
// preserving argument order.
func resolveSelection(entities []types.Entity, ids []int64) ([]types.Entity, error) {
	byID := make(map[int64]types.Entity, len(entities))
	for _, e := range entities {
		byID[e.ID] = e
	}
	selected := make([]types.Entity, 0, len(ids))
	for _, id := range ids {
		e, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("entity %d not found in project %d", id, cfg.Backend.ProjectID)
		}
		selected = append(selected, e)
	}
	return selected, nil
}

func entityName(entities []types.Entity, id int64) string {
	for _, e := range entities {
		if e.ID == id {
			return e.Name
		}
	}
	return fmt.Sprintf("#%d", id)
}

func printAnalysis(selected []types.Entity, analysis *backend.Analysis) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Printf("%s\n", cyan("=== Similarity ==="))
	if analysis.Source == backend.SourceLocal {
		fmt.Printf("  %s\n", yellow("computed locally from names only; server analysis unavailable"))
	}
	for _, pair := range analysis.Pairs {
		band := merge.Classify(pair)
		paint := gray
		switch band {
		case types.BandCompatible:
			paint = green
		case types.BandReview:
			paint = yellow
		case types.BandDifferent:
			paint = red
		}
		fmt.Printf("  %s ↔ %s  %.3f %s\n",
			entityName(selected, pair.EntityAID),
			entityName(selected, pair.EntityBID),
			pair.CombinedScore,
			paint(string(band)),
		)
	}

	if len(analysis.Conflicts) > 0 {
		fmt.Printf("\n%s\n", cyan("=== Attribute conflicts ==="))
		for _, c := range analysis.Conflicts {
			paint := gray
			switch c.Severity {
			case types.SeverityHigh:
				paint = red
			case types.SeverityMedium:
				paint = yellow
			case types.SeverityLow:
				paint = green
			}
			fmt.Printf("  %s %s/%s\n", paint(string(c.Severity)), c.Category, c.AttributeName)
			for _, v := range c.ConflictingValues {
				fmt.Printf("      %q %s\n", v.Value, gray(fmt.Sprintf("from %s (%.0f%%)", v.SourceEntityName, v.Confidence*100)))
			}
		}
	}

	summary := merge.Summarize(analysis.Pairs, analysis.Conflicts)
	reason := analysis.Reason
	if reason == "" {
		reason = summary.Reason
	}
	rec := analysis.Recommendation
	if rec == "" {
		rec = summary.Recommendation
	}

	fmt.Printf("\n%s\n", cyan("=== Recommendation ==="))
	if summary.AnalysisPending {
		fmt.Printf("  %s\n", yellow("not yet analyzed"))
		return
	}
	fmt.Printf("  %s %s\n", string(rec), gray("("+reason+")"))
	if analysis.SuggestedCanonicalName != "" {
		fmt.Printf("  suggested canonical name: %s\n", analysis.SuggestedCanonicalName)
	}
}

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pauubach/narrassist-sub006/internal/backend"
	"github.com/pauubach/narrassist-sub006/internal/merge"
)

var (
	mergePrimaryName string
	mergeAssumeYes   bool
)

var mergeCmd = &cobra.Command{
	Use:   "merge <entity-id> <entity-id> [entity-id...]",
	Short: "Merge entities into one, after previewing the plan",
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

		wiz := merge.NewWizard(nil)
		wiz.Open(entities, ids)
		if err := wiz.BeginNaming(); err != nil {
			return err
		}

		primary := mergePrimaryName
		if primary == "" {
			primary = wiz.DefaultPrimaryName()
			if primary == "" {
				return errors.New("no primary name could be suggested; pass --primary-name")
			}
		}
		wiz.SetPrimaryName(primary)

		requestID, err := wiz.BeginReview()
		if err != nil {
			return err
		}

		analysis, err := api.Analyze(ctx, ids)
		if err != nil {
			log.Printf("warning: server analysis unavailable, computing name similarity locally: %v", err)
			analysis = &backend.Analysis{
				Pairs:  merge.LocalPairs(selected),
				Source: backend.SourceLocal,
			}
			wiz.ApplyAnalysis(requestID, analysis.Pairs, nil, "", true)
		} else {
			wiz.ApplyAnalysis(requestID, analysis.Pairs, analysis.Conflicts, analysis.SuggestedCanonicalName, false)
		}

		// The user's explicit choice always wins; when they gave none,
		// surface a diverging server suggestion rather than silently
		// racing the two defaults.
		if mergePrimaryName == "" && analysis.SuggestedCanonicalName != "" && analysis.SuggestedCanonicalName != primary {
			log.Printf("note: server suggests canonical name %q (using %q; pass --primary-name to override)",
				analysis.SuggestedCanonicalName, primary)
		}

		plan, err := wiz.Plan()
		if err != nil {
			return err
		}

		printAnalysis(selected, analysis)

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		red := color.New(color.FgRed, color.Bold).SprintFunc()
		fmt.Printf("\n%s\n", cyan("=== Merge plan ==="))
		fmt.Printf("  canonical name:  %s\n", plan.CanonicalName)
		fmt.Printf("  primary entity:  %d (%s)\n", plan.PrimaryEntityID, entityName(selected, plan.PrimaryEntityID))
		fmt.Printf("  absorbing:       %v\n", plan.AbsorbedEntityIDs)
		fmt.Printf("  aliases:         %s\n", strings.Join(plan.Aliases, ", "))
		fmt.Printf("  total mentions:  ~%d (server recomputes after merge)\n", plan.TotalMentionCount)
		if plan.HasCriticalConflicts {
			fmt.Printf("  %s\n", red(fmt.Sprintf("%d conflicts, some critical", plan.ConflictCount)))
		} else if plan.ConflictCount > 0 {
			fmt.Printf("  %d conflicts, none critical\n", plan.ConflictCount)
		}

		if !mergeAssumeYes && !confirm("Proceed with merge?") {
			wiz.Close()
			fmt.Println("Aborted.")
			return nil
		}

		plan, err = wiz.BeginSubmit()
		if err != nil {
			return err
		}

		result, submitErr := api.SubmitMerge(ctx, plan)
		wiz.FinishSubmit(submitErr)
		if submitErr != nil {
			var rejection *backend.SubmissionError
			if errors.As(submitErr, &rejection) {
				return fmt.Errorf("merge rejected by server: %s (selection preserved, re-run to retry)", rejection.Message)
			}
			return fmt.Errorf("merge submission failed: %w (selection preserved, re-run to retry)", submitErr)
		}

		if err := store.Invalidate(ctx, cfg.Backend.ProjectID, nil); err != nil {
			log.Printf("warning: failed to invalidate entity snapshot: %v", err)
		}

		green := color.New(color.FgGreen, color.Bold).SprintFunc()
		fmt.Printf("\n%s merged %d entities into %d\n", green("OK:"), result.MergedCount+1, result.MergedEntityID)
		return nil
	},
}

func init() {
	mergeCmd.Flags().StringVar(&mergePrimaryName, "primary-name", "", "canonical name for the merged entity (default: best suggestion)")
	mergeCmd.Flags().BoolVarP(&mergeAssumeYes, "yes", "y", false, "skip the confirmation prompt")
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N] ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

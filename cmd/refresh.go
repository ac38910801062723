package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"datakit/core/config"
	"datakit/core/reconcile"
	"datakit/feature/stories"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	refreshDryRun    bool
	refreshStreaming bool
	refreshLimit     int
	refreshSource    string
	refreshID        int64
	refreshYes       bool
)

// refreshCmd reconciles the mirror against the source once.
var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Reconcile the story mirror against the source",
	Long: `Fetches the source and reconciles the local mirror against it.

Stories missing from the source are deleted from the mirror. When the pass would
delete stories you are asked to confirm unless --yes is given.

Examples:
  # Show what would change
  refresh --dry-run

  # Apply record by record
  refresh --streaming --yes

  # Restore the mirror from the exported snapshot
  refresh --source snapshot

  # Refresh a single story, leaving the others alone
  refresh --id 8863`,
	RunE: runRefresh,
}

func init() {
	refreshCmd.Flags().BoolVar(&refreshDryRun, "dry-run", false, "Compute the changes without writing")
	refreshCmd.Flags().BoolVar(&refreshStreaming, "streaming", false, "Commit each change on its own instead of one transaction")
	refreshCmd.Flags().IntVar(&refreshLimit, "limit", 0, "Number of top stories to mirror (overrides source.limit)")
	refreshCmd.Flags().StringVar(&refreshSource, "source", "", "Source to read (hackernews, snapshot)")
	refreshCmd.Flags().Int64Var(&refreshID, "id", 0, "Refresh a single story by id")
	refreshCmd.Flags().BoolVar(&refreshYes, "yes", false, "Auto-confirm deletions (non-interactive)")

	RootCmd.AddCommand(refreshCmd)
}

func runRefresh(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := bootstrap(ctx, func(cfg *config.Config) {
		if refreshLimit > 0 {
			cfg.Source.Limit = refreshLimit
		}
		if refreshSource != "" {
			cfg.Source.Kind = refreshSource
		}
		if refreshStreaming {
			cfg.Sync.Mode = string(reconcile.ModeStreaming)
		}
	})
	if err != nil {
		return err
	}
	defer a.close()

	if refreshID != 0 {
		res, err := a.service.RefreshOne(ctx, refreshID)
		if err != nil {
			return err
		}
		for _, out := range res.Outcomes {
			a.logger.Info("Story refreshed",
				zap.Int64("id", out.Key),
				zap.String("action", string(out.Op)),
				zap.String("message", out.Message()))
		}
		return nil
	}

	a.logger.Info("Planning refresh...", zap.String("source", a.cfg.Source.Kind))
	plan, err := a.service.Plan(ctx, a.service.Mode())
	if err != nil {
		return err
	}
	printReport(a.logger, plan.Report)

	if refreshDryRun {
		a.logger.Info("Dry-run mode: No changes were made.")
		return nil
	}
	if plan.Report.Changed() == 0 {
		a.logger.Info("Mirror is up to date.")
		return nil
	}
	if plan.Report.Deleted > 0 && !confirmDeletion(plan.Report.Deleted) {
		a.logger.Warn("Operation cancelled by user. No changes were made.")
		return nil
	}

	report, err := a.service.Apply(ctx, plan)
	printReport(a.logger, report)
	return err
}

// printReport logs a refresh report with a sample of its failures.
func printReport(l *zap.Logger, r *stories.Report) {
	l.Info("Refresh report",
		zap.String("source", r.Source),
		zap.String("mode", string(r.Mode)),
		zap.Bool("dry_run", r.DryRun),
		zap.Int("fetched", r.Fetched),
		zap.Int("inserted", r.Inserted),
		zap.Int("updated", r.Updated),
		zap.Int("deleted", r.Deleted),
		zap.Int("unchanged", r.Unchanged),
		zap.Int("skipped", r.Skipped),
	)

	maxShow := min(5, len(r.Failures))
	for _, f := range r.Failures[:maxShow] {
		l.Warn("Refresh failure", zap.String("reason", f))
	}
	if len(r.Failures) > maxShow {
		l.Info("Additional failures not shown", zap.Int("count", len(r.Failures)-maxShow))
	}
}

// confirmDeletion prompts the user for confirmation or uses the --yes flag.
func confirmDeletion(n int) bool {
	if refreshYes {
		fmt.Println("\n✓ Auto-confirmed via --yes flag")
		return true
	}

	fmt.Printf("\n⚠️  %d stories will be deleted. Type 'yes' to confirm: ", n)
	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.TrimSpace(response) == "yes"
}

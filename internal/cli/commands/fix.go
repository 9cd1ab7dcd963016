package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/scribe-archive/scribe/internal/audit"
)

var fixCmd = &cobra.Command{
	Use:   "fix <stalled|paths|transcripts|mark|hebrew>",
	Short: "Audit-driven idempotent repairs",
}

var fixDryRun bool

func init() {
	fixCmd.PersistentFlags().BoolVar(&fixDryRun, "dry-run", false, "report what would change without writing")

	fixCmd.AddCommand(&cobra.Command{
		Use:   "stalled",
		Short: "Reset stages stuck in_progress past the stalled timeout",
		Run: runWithApp(func(ctx context.Context, app *App, cmd *cobra.Command, args []string) (int, error) {
			if fixDryRun {
				stalled, err := app.Store.ListStalled(time.Duration(app.Settings.StalledTimeoutMinutes) * time.Minute)
				if err != nil {
					return exitFatal, err
				}
				fmt.Printf("Would reset %d stalled file(s)\n", len(stalled))
				return exitOK, nil
			}
			counts, err := app.Pipeline.ResetStalled(0)
			if err != nil {
				return exitFatal, err
			}
			fmt.Printf("Reset %d stalled file(s)\n", counts.Total)
			return exitOK, nil
		}),
	})

	fixCmd.AddCommand(&cobra.Command{
		Use:   "paths",
		Short: "Re-materialize missing source links in the artifact layout",
		Run: runWithApp(func(ctx context.Context, app *App, cmd *cobra.Command, args []string) (int, error) {
			records, err := app.Store.ListAll()
			if err != nil {
				return exitFatal, err
			}
			fixed := 0
			for _, rec := range records {
				if fixDryRun {
					continue
				}
				if _, err := app.Layout.MaterializeSource(rec.OriginalPath, rec.SafeFilename); err != nil {
					app.Log.Warn().Err(err).Str("file_id", rec.FileID).Msg("could not materialize source")
					continue
				}
				fixed++
			}
			fmt.Printf("Materialized %d source(s)\n", fixed)
			return exitOK, nil
		}),
	})

	fixCmd.AddCommand(&cobra.Command{
		Use:   "transcripts",
		Short: "Reconcile transcript artifacts with their tracked status",
		Run:   runFilteredFix(func(f audit.Finding) bool { return f.Language == "transcript" }),
	})

	fixCmd.AddCommand(&cobra.Command{
		Use:   "mark",
		Short: "Promote disk-valid artifacts whose store status lags behind",
		Run:   runFilteredFix(func(f audit.Finding) bool { return f.Status == audit.Valid }),
	})

	fixCmd.AddCommand(&cobra.Command{
		Use:   "hebrew",
		Short: "Reset placeholder or non-RTL Hebrew translations",
		Run:   runFilteredFix(func(f audit.Finding) bool { return f.Language == "he" }),
	})
}

// runFilteredFix audits, keeps the findings the filter accepts, and
// applies the standard fixes to those.
func runFilteredFix(keep func(audit.Finding) bool) func(*cobra.Command, []string) {
	return runWithApp(func(ctx context.Context, app *App, cmd *cobra.Command, args []string) (int, error) {
		result, err := app.Auditor.Run()
		if err != nil {
			return exitFatal, err
		}
		filtered := &audit.Result{Checked: result.Checked}
		for _, f := range result.Findings {
			if keep(f) {
				filtered.Findings = append(filtered.Findings, f)
			}
		}
		report, err := app.Auditor.Fix(filtered, fixDryRun)
		if err != nil {
			return exitFatal, err
		}
		verb := "Applied"
		if fixDryRun {
			verb = "Would apply"
		}
		fmt.Printf("%s %d fix(es)\n", verb, report.Total())
		return exitOK, nil
	})
}

package commands

import (
	"context"
	"fmt"

	"github.com/gookit/color"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Audit artifacts against tracked status, optionally applying fixes",
	Run: runWithApp(func(ctx context.Context, app *App, cmd *cobra.Command, args []string) (int, error) {
		autoFix, _ := cmd.Flags().GetBool("auto-fix")
		reportOnly, _ := cmd.Flags().GetBool("report-only")

		result, err := app.Auditor.Run()
		if err != nil {
			return exitFatal, err
		}

		issues := result.Issues()
		fmt.Printf("Audited %d file(s): %d issue(s)\n", result.Checked, len(issues))
		for _, f := range issues {
			label := f.Language
			if label == "" {
				label = "-"
			}
			fmt.Printf("  %-11s %-10s %s  %s\n", f.Status, label, f.Path, f.Detail)
		}

		if reportOnly || !autoFix {
			if len(issues) > 0 {
				return exitRecoverable, nil
			}
			return exitOK, nil
		}

		report, err := app.Auditor.Fix(result, false)
		if err != nil {
			return exitFatal, err
		}
		color.Greenf("Applied %d fix(es): %d placeholder resets, %d missing marked failed, %d promoted to completed\n",
			report.Total(), report.PlaceholderReset, report.MissingFailed, report.DiskCompleted)
		return exitOK, nil
	}),
}

func init() {
	verifyCmd.Flags().Bool("auto-fix", false, "apply the idempotent status fixes")
	verifyCmd.Flags().Bool("report-only", false, "never mutate, only report")
}

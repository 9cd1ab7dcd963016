package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scribe-archive/scribe/internal/engine"
	"github.com/scribe-archive/scribe/internal/pipeline"
)

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Reset and re-run problem files",
	Run: runWithApp(func(ctx context.Context, app *App, cmd *cobra.Command, args []string) (int, error) {
		fileIDs, _ := cmd.Flags().GetString("file-ids")
		multiplier, _ := cmd.Flags().GetFloat64("timeout-multiplier")
		maxRetries, _ := cmd.Flags().GetInt("max-retries")

		pipe := app.Pipeline
		if multiplier > 1 || maxRetries > 0 {
			// Problem files get more generous limits for this run only.
			settings := app.Settings
			if multiplier > 1 {
				settings.APITimeoutSeconds = int(float64(settings.APITimeoutSeconds) * multiplier)
				settings.ItemTimeoutMinutes = int(float64(settings.ItemTimeoutMinutes) * multiplier)
			}
			if maxRetries > 0 {
				settings.APIRetries = maxRetries
			}
			transcriber := engine.NewTranscriber(app.Store, app.Layout, app.sttProvider(), settings, app.Log)
			translator := engine.NewTranslator(app.Store, app.Layout, app.Registry, app.polisher(), settings, app.Log)
			pipe = pipeline.New(app.Store, app.Layout, app.Extractor, transcriber, translator, settings, app.Log)
		}

		res, err := pipe.RetryProblematic(ctx, splitCSV(fileIDs), 0)
		if err != nil {
			return exitFatal, err
		}
		fmt.Printf("retry: %d processed, %d failed\n", res.Processed, res.Failed)
		if res.Failed > 0 {
			return exitRecoverable, nil
		}
		return exitOK, nil
	}),
}

func init() {
	retryCmd.Flags().String("file-ids", "", "comma-separated file ids (default: all identified problem files)")
	retryCmd.Flags().Float64("timeout-multiplier", 2.0, "scale per-call and per-item timeouts for this run")
	retryCmd.Flags().Int("max-retries", 0, "override the per-call retry budget")
}

package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Reset stalled stages and optionally restart the pools",
	Run: runWithApp(func(ctx context.Context, app *App, cmd *cobra.Command, args []string) (int, error) {
		timeout, _ := cmd.Flags().GetInt("timeout")
		noAutoRestart, _ := cmd.Flags().GetBool("no-auto-restart")

		counts, err := app.Pipeline.ResetStalled(timeout)
		if err != nil {
			return exitFatal, err
		}
		fmt.Printf("Reset %d stalled file(s) (transcription: %d", counts.Total, counts.Transcription)
		for _, lang := range []string{"en", "de", "he"} {
			fmt.Printf(", %s: %d", lang, counts.Translation[lang])
		}
		fmt.Println(")")

		if noAutoRestart || counts.Total == 0 {
			return exitOK, nil
		}

		failed := 0
		if counts.Transcription > 0 {
			res := app.Pipeline.RunTranscription(ctx, app.Settings.TranscriptionWorkers, app.Settings.BatchSize)
			failed += res.Failed
		}
		var langs []string
		for lang, n := range counts.Translation {
			if n > 0 {
				langs = append(langs, lang)
			}
		}
		if len(langs) > 0 {
			for _, res := range app.Pipeline.RunTranslations(ctx, langs, app.Settings.TranslationWorkers, app.Settings.BatchSize) {
				failed += res.Failed
			}
		}
		if failed > 0 {
			return exitRecoverable, nil
		}
		return exitOK, nil
	}),
}

func init() {
	restartCmd.Flags().Int("timeout", 0, "minutes after which in_progress counts as stalled (default from config)")
	restartCmd.Flags().Bool("no-auto-restart", false, "reset statuses only, do not run pools")
}

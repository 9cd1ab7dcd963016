package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run one-shot batches of the named stages until drained",
	Run: runWithApp(func(ctx context.Context, app *App, cmd *cobra.Command, args []string) (int, error) {
		transcription, _ := cmd.Flags().GetBool("transcription")
		translation, _ := cmd.Flags().GetString("translation")
		workers, _ := cmd.Flags().GetInt("workers")
		batchSize, _ := cmd.Flags().GetInt("batch-size")

		if !transcription && translation == "" {
			return exitFatal, fmt.Errorf("nothing to start: pass --transcription and/or --translation LANGS")
		}

		failed := 0
		if transcription {
			if workers <= 0 {
				workers = app.Settings.TranscriptionWorkers
			}
			res := app.Pipeline.RunTranscription(ctx, workers, batchSize)
			fmt.Printf("transcription: %d processed, %d failed\n", res.Processed, res.Failed)
			failed += res.Failed
		}

		if translation != "" {
			langs := splitCSV(translation)
			if workers <= 0 {
				workers = app.Settings.TranslationWorkers
			}
			results := app.Pipeline.RunTranslations(ctx, langs, workers, batchSize)
			for _, lang := range langs {
				res := results[lang]
				fmt.Printf("translation_%s: %d processed, %d failed\n", lang, res.Processed, res.Failed)
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
	startCmd.Flags().Bool("transcription", false, "start the transcription pool")
	startCmd.Flags().String("translation", "", "comma-separated target languages to translate")
	startCmd.Flags().Int("workers", 0, "worker count per pool (default from config)")
	startCmd.Flags().Int("batch-size", 0, "claim batch size (default from config)")
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

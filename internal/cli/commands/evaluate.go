package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scribe-archive/scribe/internal/store"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score completed translations with the LLM quality judge",
	Run: runWithApp(func(ctx context.Context, app *App, cmd *cobra.Command, args []string) (int, error) {
		lang, _ := cmd.Flags().GetString("language")
		limit, _ := cmd.Flags().GetInt("limit")

		if app.Settings.APIKeys.OpenAI == "" {
			return exitFatal, fmt.Errorf("quality evaluation requires an OpenAI API key")
		}

		records, err := app.Store.ListAll()
		if err != nil {
			return exitFatal, err
		}
		evaluator := app.NewEvaluator()

		evaluated, failed := 0, 0
		for _, rec := range records {
			if ctx.Err() != nil {
				break
			}
			if limit > 0 && evaluated >= limit {
				break
			}
			if rec.TranslationStatus[lang] != store.StageCompleted {
				continue
			}
			score, err := evaluator.EvaluateFile(ctx, rec, lang)
			if err != nil {
				app.Log.Warn().Err(err).Str("file_id", rec.FileID).Msg("evaluation failed")
				failed++
				continue
			}
			fmt.Printf("%s  %s  %.1f/10\n", rec.FileID[:8], rec.SafeFilename, score)
			evaluated++
		}
		fmt.Printf("Evaluated %d translation(s), %d failed\n", evaluated, failed)
		if failed > 0 {
			return exitRecoverable, nil
		}
		return exitOK, nil
	}),
}

func init() {
	evaluateCmd.Flags().String("language", "he", "target language to evaluate")
	evaluateCmd.Flags().Int("limit", 0, "evaluate at most this many files (0 = all)")
}

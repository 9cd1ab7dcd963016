package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/scribe-archive/scribe/internal/media"
	"github.com/scribe-archive/scribe/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print aggregate pipeline counts per stage",
	Run: runWithApp(func(ctx context.Context, app *App, cmd *cobra.Command, args []string) (int, error) {
		detailed, _ := cmd.Flags().GetBool("detailed")
		format, _ := cmd.Flags().GetString("format")

		summary, err := app.Store.SummaryStatistics()
		if err != nil {
			return exitFatal, err
		}

		switch format {
		case "json":
			if err := printStatusJSON(summary); err != nil {
				return exitFatal, err
			}
		case "markdown":
			printStatusMarkdown(summary)
		default:
			printStatusText(summary)
		}

		if detailed {
			if err := printDetailed(app); err != nil {
				return exitFatal, err
			}
		}
		return exitOK, nil
	}),
}

func init() {
	statusCmd.Flags().Bool("detailed", false, "list individual files and their stage statuses")
	statusCmd.Flags().String("format", "text", "output format: text, json or markdown")
}

func printStatusText(summary *store.Summary) {
	fmt.Printf("Tracked files: %d (%s of media, %s total)\n\n",
		summary.TotalFiles,
		media.FormatDuration(summary.TotalDuration),
		humanize.Bytes(uint64(summary.TotalSize)))

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Stage", "Not Started", "In Progress", "Completed", "Failed"})
	for _, stage := range stageOrder(summary) {
		counts := summary.StageCounts[stage]
		table.Append([]string{
			stage,
			fmt.Sprint(counts[store.StageNotStarted]),
			fmt.Sprint(counts[store.StageInProgress]),
			fmt.Sprint(counts[store.StageCompleted]),
			fmt.Sprint(counts[store.StageFailed]),
		})
	}
	table.Render()

	if len(summary.ErrorCounts) > 0 {
		fmt.Println("\nLogged errors by stage:")
		for _, stage := range sortedKeys(summary.ErrorCounts) {
			fmt.Printf("  %-18s %d\n", stage, summary.ErrorCounts[stage])
		}
	}
}

func printStatusJSON(summary *store.Summary) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"total_files":       summary.TotalFiles,
		"status_counts":     summary.StatusCounts,
		"stage_counts":      summary.StageCounts,
		"media_type_counts": summary.MediaTypeCounts,
		"error_counts":      summary.ErrorCounts,
		"language_counts":   summary.LanguageCounts,
		"total_duration":    summary.TotalDuration,
		"total_size":        summary.TotalSize,
	})
}

func printStatusMarkdown(summary *store.Summary) {
	fmt.Printf("## Pipeline status\n\n")
	fmt.Printf("Tracked files: **%d**\n\n", summary.TotalFiles)
	fmt.Println("| Stage | Not started | In progress | Completed | Failed |")
	fmt.Println("|---|---|---|---|---|")
	for _, stage := range stageOrder(summary) {
		counts := summary.StageCounts[stage]
		fmt.Printf("| %s | %d | %d | %d | %d |\n",
			stage,
			counts[store.StageNotStarted],
			counts[store.StageInProgress],
			counts[store.StageCompleted],
			counts[store.StageFailed])
	}
}

func printDetailed(app *App) error {
	records, err := app.Store.ListAll()
	if err != nil {
		return err
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"File ID", "Name", "Overall", "Transcription", "EN", "DE", "HE"})
	for _, rec := range records {
		table.Append([]string{
			rec.FileID[:8],
			rec.SafeFilename,
			rec.Status,
			rec.TranscriptionStatus,
			rec.TranslationStatus["en"],
			rec.TranslationStatus["de"],
			rec.TranslationStatus["he"],
		})
	}
	fmt.Println()
	table.Render()
	return nil
}

func stageOrder(summary *store.Summary) []string {
	preferred := []string{"transcription", "translation_en", "translation_de", "translation_he"}
	var out []string
	for _, s := range preferred {
		if _, ok := summary.StageCounts[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

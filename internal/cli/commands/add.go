package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add <path>...",
	Short: "Register media files or scan directories into the pipeline",
	Args:  cobra.MinimumNArgs(1),
	Run: runWithApp(func(ctx context.Context, app *App, cmd *cobra.Command, args []string) (int, error) {
		limit, _ := cmd.Flags().GetInt("limit")

		added := 0
		for _, path := range args {
			info, err := os.Stat(path)
			if err != nil {
				return exitRecoverable, fmt.Errorf("cannot access %s: %w", path, err)
			}
			if info.IsDir() {
				ids, err := app.Scanner.ScanDirectory(ctx, path, limit)
				if err != nil {
					return exitRecoverable, err
				}
				added += len(ids)
			} else {
				if _, err := app.Scanner.AddFile(ctx, path); err != nil {
					return exitRecoverable, err
				}
				added++
			}
		}
		fmt.Printf("Registered %d new file(s)\n", added)
		return exitOK, nil
	}),
}

func init() {
	addCmd.Flags().Int("limit", 0, "stop scanning a directory after this many media files are found, tracked ones included (0 = no limit)")
}

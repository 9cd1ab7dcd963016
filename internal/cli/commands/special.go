package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var specialCmd = &cobra.Command{
	Use:   "special",
	Short: "Run the special-case handlers over identified problem files",
	Run: runWithApp(func(ctx context.Context, app *App, cmd *cobra.Command, args []string) (int, error) {
		fileIDs, _ := cmd.Flags().GetString("file-ids")

		handled, err := app.Pipeline.SpecialCaseProcessing(ctx, splitCSV(fileIDs))
		if err != nil {
			return exitFatal, err
		}
		total := 0
		for class, n := range handled {
			fmt.Printf("%-22s %d handled\n", class, n)
			total += n
		}
		if total == 0 {
			fmt.Println("No special-case files to handle")
		}
		return exitOK, nil
	}),
}

func init() {
	specialCmd.Flags().String("file-ids", "", "comma-separated file ids (default: all identified problem files)")
}

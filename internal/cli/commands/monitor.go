package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/scribe-archive/scribe/internal/pipeline"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run the foreground monitor: stall recovery plus automatic pool restarts",
	Run: runWithApp(func(ctx context.Context, app *App, cmd *cobra.Command, args []string) (int, error) {
		checkInterval, _ := cmd.Flags().GetInt("check-interval")
		restartInterval, _ := cmd.Flags().GetInt("restart-interval")
		noAutoRestart, _ := cmd.Flags().GetBool("no-auto-restart")

		err := app.Pipeline.Monitor(ctx, pipeline.MonitorOptions{
			CheckInterval:   time.Duration(checkInterval) * time.Second,
			RestartInterval: time.Duration(restartInterval) * time.Second,
			AutoRestart:     !noAutoRestart,
		})
		if err != nil {
			return exitRecoverable, err
		}
		return exitOK, nil
	}),
}

func init() {
	monitorCmd.Flags().Int("check-interval", 0, "seconds between stall checks (default from config)")
	monitorCmd.Flags().Int("restart-interval", 0, "seconds between restart passes (default from config)")
	monitorCmd.Flags().Bool("no-auto-restart", false, "only reset stalled work, never restart pools")
}

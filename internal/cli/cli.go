package cli

import (
	"fmt"
	"os"

	"github.com/scribe-archive/scribe/internal/cli/commands"
)

func Run() {
	if err := commands.RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
}

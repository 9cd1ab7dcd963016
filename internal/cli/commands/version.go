package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scribe-archive/scribe/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(version.GetInfo())
	},
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-check/internal/config"
)

// Build metadata variables, set by -ldflags at compile time.
var (
	Version   = "dev"
	CommitSHA = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and default detector backend",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("face-check %s\n", Version)
		fmt.Printf("  Commit: %s\n", CommitSHA)
		fmt.Printf("  Built:  %s\n", BuildDate)
		fmt.Printf("  Default backend: %s\n", config.DefaultDetectorConfig().Backend)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

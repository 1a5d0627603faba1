package cmd

import (
	"runtime"

	"github.com/spf13/cobra"
)

var (
	// Version is set at build time
	Version = "dev"
	// BuildTime is set at build time
	BuildTime = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display SnowBank version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("SnowBank version %s\n", Version)
		cmd.Printf("Built at: %s\n", BuildTime)
		cmd.Printf("Go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

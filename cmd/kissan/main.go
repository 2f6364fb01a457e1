package main

import (
	"fmt"
	"os"

	"github.com/kissan-ai/kissan/pkg/config"
	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "kissan",
		Short:        "Kissan - crop and market advice for farmers",
		Long:         "Kissan answers farming questions, typed, dictated or with a crop photo, in Urdu, Punjabi, Sindhi, Pashto or English.",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath(), "path to config file")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newChatCmd(&configPath))
	cmd.AddCommand(newThemeCmd(&configPath))
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "kissan %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}

package main

import (
	"fmt"

	"github.com/kissan-ai/kissan/pkg/config"
	"github.com/kissan-ai/kissan/pkg/state"
	"github.com/spf13/cobra"
)

func newThemeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:       "theme [dark|light]",
		Short:     "Toggle or set the display mode",
		Long:      "With no argument, switches between dark and light. The choice is saved and used by the next chat.",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{string(state.DisplayDark), string(state.DisplayLight)},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			prefs := state.NewPreferences(cfg.WorkspacePath())

			var mode state.DisplayMode
			if len(args) == 1 {
				mode = state.DisplayMode(args[0])
				err = prefs.SetDisplayMode(mode)
			} else {
				mode, err = prefs.Toggle()
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Display mode: %s\n", mode)
			return nil
		},
	}
}

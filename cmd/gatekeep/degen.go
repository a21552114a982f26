package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var degenCmd = &cobra.Command{
	Use:       "degen [on|off]",
	Short:     "Show or set degen mode for a user",
	Long:      "Degen mode executes transfers and swaps without asking for confirmation first.",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"on", "off"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		st, err := openStore(cfg, logger)
		if err != nil {
			return err
		}
		defer st.Close()
		ctx := cmd.Context()

		prefs, err := st.GetPreferences(ctx, userID)
		if err != nil {
			return err
		}
		if len(args) == 1 {
			prefs.UserID = userID
			prefs.DegenMode = args[0] == "on"
			if err := st.SavePreferences(ctx, prefs); err != nil {
				return err
			}
		}
		state := "off"
		if prefs.DegenMode {
			state = "on"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "degen mode for %s: %s\n", userID, state)
		return nil
	},
}

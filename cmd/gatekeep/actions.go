package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "List scheduled actions for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		st, err := openStore(cfg, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		actions, err := st.ListActions(cmd.Context(), userID)
		if err != nil {
			return err
		}
		for _, a := range actions {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  every %ds  next %s  %s\n",
				a.ID, a.FrequencySecs, a.NextRunAt.Local().Format("2006-01-02 15:04"), a.Description)
		}
		return nil
	},
}

package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jg-phare/gatekeep/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history [conversation-id]",
	Short: "List conversations, or print one conversation",
	Args:  cobra.MaximumNArgs(1),
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
		out := cmd.OutOrStdout()

		if len(args) == 0 {
			convs, err := st.ListConversations(ctx, userID)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tUPDATED\tMODEL\tTITLE")
			for _, c := range convs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.ID, c.UpdatedAt.Local().Format(time.DateTime), c.Model, c.Title)
			}
			return w.Flush()
		}

		conv, err := st.GetConversation(ctx, args[0])
		if err != nil {
			return err
		}
		if conv.UserID != userID {
			return fmt.Errorf("conversation %s belongs to another user", conv.ID)
		}
		msgs, err := st.GetMessages(ctx, conv.ID)
		if err != nil {
			return err
		}
		for _, m := range msgs {
			printMessage(cmd, m)
		}
		return nil
	},
}

func printMessage(cmd *cobra.Command, m types.Message) {
	out := cmd.OutOrStdout()
	if m.Content != "" {
		fmt.Fprintf(out, "%s: %s\n", m.Role, m.Content)
	}
	for _, inv := range m.ToolInvocations {
		args, _ := json.Marshal(inv.Args)
		result := "pending"
		if inv.Result != nil {
			b, _ := json.Marshal(inv.Result)
			result = string(b)
		}
		fmt.Fprintf(out, "  %s(%s) -> %s\n", inv.ToolName, args, result)
	}
}

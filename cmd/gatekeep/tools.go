package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jg-phare/gatekeep/pkg/tools"
)

var toolsJSON bool

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tool catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		directory := tools.NewStaticTokenDirectory()
		wallet, err := newWallet(cmd.Context(), cfg.Wallet, directory)
		if err != nil {
			return err
		}
		registry, err := tools.DefaultRegistry(tools.Deps{
			Directory: directory,
			Quotes:    &tools.StaticQuotes{Prices: tools.DefaultPrices},
			Wallet:    wallet,
			Scheduler: &tools.MemoryScheduler{},
		}, tools.WithDisabled(cfg.Permission.DisabledTools...))
		if err != nil {
			return err
		}

		if toolsJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(registry.ToolDefinitions(registry.Names()))
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tCONFIRM\tDESCRIPTION")
		for _, name := range registry.Names() {
			t, err := registry.Get(name)
			if err != nil {
				return err
			}
			confirm := ""
			if t.RequiresConfirmation() {
				confirm = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", name, confirm, firstLine(t.Description()))
		}
		return w.Flush()
	},
}

func init() {
	toolsCmd.Flags().BoolVar(&toolsJSON, "json", false, "Print OpenAI function definitions")
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}

// Command gatekeep is a DeFi chat assistant whose value-moving tools only run
// after the user confirms them in a later turn.
//
// Usage:
//
//	gatekeep chat --user alice
//	gatekeep serve --addr 127.0.0.1:8787
//	gatekeep serve --stdio --user alice
//	gatekeep tools
//	gatekeep history --user alice [conversation-id]
//	gatekeep degen on --user alice
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jg-phare/gatekeep/pkg/config"
	"github.com/jg-phare/gatekeep/pkg/logging"
)

var (
	// Global flags
	configPath string
	verbose    bool
	userID     string

	cfg    *config.Config
	logger *zap.Logger
	level  zap.AtomicLevel
)

var rootCmd = &cobra.Command{
	Use:   "gatekeep",
	Short: "Confirmation-gated DeFi chat assistant",
	Long: `gatekeep chats with an OpenAI-compatible model that can look up tokens,
prices and balances, and move funds from an in-memory wallet.

Transfers and swaps never run in the turn that proposes them. The assistant
asks first, and the action runs only after you answer yes on a later turn.
Degen mode skips the question.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		lvl := cfg.Logging.Level
		if verbose {
			lvl = zapcore.DebugLevel.String()
		}
		logger, level, err = logging.New(lvl, cfg.Logging.Format)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func defaultConfigPath() string {
	if p := os.Getenv("GATEKEEP_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "gatekeep.yaml"
	}
	return filepath.Join(home, ".gatekeep", "config.yaml")
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to the YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", os.Getenv("USER"), "Acting user id")

	rootCmd.AddCommand(chatCmd, serveCmd, toolsCmd, historyCmd, degenCmd, actionsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func requireUser() error {
	if userID == "" {
		return fmt.Errorf("a user id is required (--user)")
	}
	return nil
}

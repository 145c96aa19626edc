package cmd

import (
	"github.com/router-for-me/SnippetRelay/internal/config"
	"github.com/spf13/cobra"
)

// Execute runs the relay CLI.
func Execute() error {
	return newRootCmd().Execute()
}

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "relay",
		Short:         "Metered LLM relay with snippet summarization",
		Long:          "relay authenticates bearer tokens, enforces per-plan token quotas, forwards requests to an OpenAI-compatible API and records token usage.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to config.yaml (default: ./config.yaml when present)")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newConfigCmd(),
		newTokenCmd(opts),
	)
	return rootCmd
}

func (o *rootOptions) load() (config.AppConfig, error) {
	return config.Load(o.configPath)
}

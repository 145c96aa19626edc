package cmd

import (
	"fmt"

	"github.com/router-for-me/SnippetRelay/internal/app"
	"github.com/spf13/cobra"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the users, plans and usage_events tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if errMigrate := app.Migrate(cmd.Context(), cfg); errMigrate != nil {
				return errMigrate
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return err
		},
	}
}

package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/router-for-me/SnippetRelay/internal/app"
	"github.com/router-for-me/SnippetRelay/internal/logging"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			closer, errLog := logging.Setup(cfg.Logging)
			if errLog != nil {
				return errLog
			}
			defer closer.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if errRun := app.RunServer(ctx, cfg); errRun != nil {
				log.WithError(errRun).Error("server stopped")
				return errRun
			}
			return nil
		},
	}
}

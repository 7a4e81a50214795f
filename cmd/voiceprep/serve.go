package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/example/voiceprep/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the preprocessing HTTP server",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			svc, closeSvc, err := buildService(cfg)
			if err != nil {
				return err
			}
			defer closeSvc()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return server.New(cfg, svc).Start(ctx)
		},
	}

	return cmd
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/RezaEskandarii/postfire/app"
	"github.com/RezaEskandarii/postfire/types/config"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "postfire",
		Short:         "Schedules social posts and publishes them across platforms",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(dispatchCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(eventsCmd())
	return rootCmd
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// buildContainer reads POSTFIRE_* configuration and wires every dependency.
func buildContainer(ctx context.Context) (*app.Container, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	return app.NewContainer(ctx, cfg)
}

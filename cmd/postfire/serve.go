package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/RezaEskandarii/postfire/app"
)

func serveCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the dispatcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			c, err := buildContainer(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			if migrate {
				if err := c.Migrate(ctx); err != nil {
					return err
				}
			}
			return runServices(ctx, c, true)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply the database schema before starting")
	return cmd
}

func dispatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dispatch",
		Short: "Run only the dispatcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			c, err := buildContainer(ctx)
			if err != nil {
				return err
			}
			defer c.Close()
			return runServices(ctx, c, false)
		},
	}
}

// runServices blocks until ctx is done or one service fails, then stops the rest.
func runServices(ctx context.Context, c *app.Container, withAPI bool) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.Dispatcher.Start(ctx) })
	if withAPI && c.Config.APIPort > 0 {
		g.Go(func() error { return c.API.Serve(ctx) })
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	if err == nil {
		c.Log.Info().Msg("shutdown complete")
	}
	return err
}

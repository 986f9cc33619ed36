package main

import (
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			c, err := buildContainer(ctx)
			if err != nil {
				return err
			}
			defer c.Close()
			return c.Migrate(ctx)
		},
	}
}

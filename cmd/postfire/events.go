package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/RezaEskandarii/postfire/internal/message_broaker"
)

func eventsCmd() *cobra.Command {
	var queue string
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print post lifecycle events from the event queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			c, err := buildContainer(ctx)
			if err != nil {
				return err
			}
			defer c.Close()
			if c.MessageBroker == nil {
				return errors.New("no event broker configured, set POSTFIRE_RABBITMQ_URL")
			}

			out := cmd.OutOrStdout()
			return message_broaker.ConsumePostEvents(ctx, c.MessageBroker, queue, c.Log, func(_ context.Context, e message_broaker.PostEvent) error {
				_, err := fmt.Fprintf(out, "%s  %-22s %s status=%s retries=%d\n",
					e.OccurredAt.Format(time.RFC3339), e.Type, e.ScheduledPostID, e.Status, e.RetryCount)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&queue, "queue", "", "queue to read, defaults to the configured one")
	return cmd
}

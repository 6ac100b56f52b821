package cli

import (
	"context"
	"errors"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/mq"
	"github.com/shaiso/Relay/internal/telemetry"
)

// NewEventsCmd создаёт группу команд для журнала выполнений.
func NewEventsCmd(outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Execution history events",
	}

	cmd.AddCommand(newEventsTailCmd(outputFn))

	return cmd
}

func newEventsTailCmd(outputFn func() *Output) *cobra.Command {
	var amqpURL string
	var workflow string

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Follow execution events published to RabbitMQ",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			ctx := cmd.Context()

			if amqpURL == "" {
				amqpURL = os.Getenv("RABBITMQ_URL")
			}
			if amqpURL == "" {
				amqpURL = mq.DefaultURL()
			}

			logger := telemetry.NewLogger(os.Stderr, telemetry.LogLevel(), "text")

			conn, err := mq.Dial(ctx, mq.ConnectionConfig{
				URL:    amqpURL,
				Name:   "relay-cli-tail",
				Logger: logger,
			})
			if err != nil {
				return err
			}
			defer conn.Close()

			pattern := tailPattern(workflow)
			tail := mq.NewTail(conn, mq.TailConfig{
				Pattern: pattern,
				Handler: printEvent(out),
				Logger:  logger,
				OnSubscribe: func(queue mq.Queue) {
					out.Info("tailing %s on %s (Ctrl+C to stop)", pattern, queue)
				},
			})

			err = tail.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&amqpURL, "amqp-url", "", "RabbitMQ URL (default: $RABBITMQ_URL)")
	cmd.Flags().StringVar(&workflow, "workflow", "", "Only events of this workflow")

	return cmd
}

func tailPattern(workflow string) mq.RoutingKey {
	if workflow == "" {
		return mq.RoutingKeyAllExecutions
	}
	return mq.RoutingKey("execution." + workflow + ".*")
}

func printEvent(out *Output) mq.EventHandler {
	return func(ctx context.Context, event domain.ExecutionEvent) error {
		if out.JSONMode() {
			out.JSON(event)
			return nil
		}

		out.Line(
			event.Timestamp.Format("15:04:05.000"),
			event.ExecutionID,
			strconv.Itoa(event.Seq),
			string(event.Type),
			valueOrDash(event.StepID),
			valueOrDash(event.ErrorKind),
		)
		return nil
	}
}

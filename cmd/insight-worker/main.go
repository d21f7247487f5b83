// Package main provides the insight worker, which answers queries requested over the event bus.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dukex/insight/pkg/channels/kafka"
	"github.com/dukex/insight/pkg/cmd"
	"github.com/dukex/insight/pkg/eventbus"
	"github.com/dukex/insight/pkg/log"
	"github.com/dukex/insight/pkg/observer"
	"github.com/dukex/insight/pkg/otelhelper"
	"github.com/dukex/insight/pkg/redissink"
	"github.com/dukex/insight/pkg/services"
	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "insight-worker",
		EnableShellCompletion: true,
		Usage:                 "Start a worker that answers queries from the event bus",
		Flags: append(cmd.BackendFlags(),
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "kafka",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma-separated Kafka brokers",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.IntFlag{
				Name:    "max-concurrent",
				Usage:   "Maximum executions running at once",
				Value:   8,
				Sources: cli.EnvVars("MAX_CONCURRENT"),
			},
		),
		Action: run,
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Setup(command.String("log-level"), command.String("log-format"))

	workerID := command.String("worker-id")
	if workerID == "" {
		workerID = "worker-" + uuid.New().String()[:8]
	}

	logger := log.WithModule("insight-worker").With("worker_id", workerID)
	logger.InfoContext(ctx, "Initializing Insight Worker")

	if command.Bool("otel") {
		provider, err := otelhelper.NewTracerProvider(ctx, "insight-worker")
		if err != nil {
			return err
		}

		defer func() {
			_ = provider.Shutdown(context.Background())
		}()
	}

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), kafka.ParseBrokers(command.String("kafka-brokers")), "insight-worker", logger)
	if err != nil {
		return err
	}

	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	b, closeBackends, err := cmd.NewBackends(ctx, cmd.BackendConfigFromCommand(command), logger)
	defer func() {
		_ = closeBackends()
	}()

	if err != nil {
		return err
	}

	extra := []observer.Observer{eventbus.NewForwarder(eventBus, logger)}

	if url := command.String("redis-url"); url != "" {
		client, err := redissink.NewClient(ctx, url)
		if err != nil {
			return err
		}
		defer client.Close()

		extra = append(extra, redissink.New(client, logger))
	}

	if command.Bool("otel") {
		extra = append(extra, otelhelper.NewTracingObserver(otelhelper.Tracer("insight-worker")))
	}

	engine, err := cmd.NewEngine(cmd.NewRegistry(logger), b, cmd.Observers{Extra: extra}, workerID, logger)
	if err != nil {
		return err
	}

	worker := NewWorkerManager(workerID, services.NewQuery(engine, logger), eventBus, int64(command.Int("max-concurrent")), logger)
	if err := worker.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logger.InfoContext(ctx, "Shutting down worker...")
	worker.Wait()

	return nil
}

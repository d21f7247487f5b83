package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/dukex/insight/pkg/broadcast"
	"github.com/dukex/insight/pkg/channels/kafka"
	"github.com/dukex/insight/pkg/cmd"
	"github.com/dukex/insight/pkg/eventbus"
	"github.com/dukex/insight/pkg/log"
	"github.com/dukex/insight/pkg/observer"
	"github.com/dukex/insight/pkg/otelhelper"
	"github.com/dukex/insight/pkg/redissink"
	"github.com/dukex/insight/pkg/services"
	"github.com/dukex/insight/pkg/tracker"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func main() {
	flags := append(cmd.BackendFlags(), cmd.RetentionFlags()...)
	flags = append(flags,
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "Port to run the API server on",
			Value:   defaultPort,
			Sources: cli.EnvVars("PORT"),
		},
		&cli.IntFlag{
			Name:    "max-concurrent",
			Usage:   "Maximum executions running at once (0 for no cap)",
			Value:   32,
			Sources: cli.EnvVars("MAX_CONCURRENT"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Forward lifecycle events to this event bus (gochannel, kafka); empty disables forwarding",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringFlag{
			Name:    "kafka-brokers",
			Usage:   "Comma-separated Kafka brokers",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
	)

	command := &cli.Command{
		Name:                  "insight-api",
		Usage:                 "Answer questions over HTTP and stream their progress",
		EnableShellCompletion: true,
		Flags:                 flags,
		Action:                run,
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

	logger := log.WithModule("insight-api")
	logger.InfoContext(ctx, "Initializing Insight API")

	if command.Bool("otel") {
		provider, err := otelhelper.NewTracerProvider(ctx, "insight-api")
		if err != nil {
			return err
		}

		defer func() {
			_ = provider.Shutdown(context.Background())
		}()
	}

	b, closeBackends, err := cmd.NewBackends(ctx, cmd.BackendConfigFromCommand(command), logger)
	defer func() {
		_ = closeBackends()
	}()

	if err != nil {
		return err
	}

	var extra []observer.Observer

	if provider := command.String("event-bus"); provider != "" {
		eventBus, err := cmd.NewEventBus(provider, kafka.ParseBrokers(command.String("kafka-brokers")), "insight-api", logger)
		if err != nil {
			return err
		}

		defer func() {
			if err := eventBus.Close(); err != nil {
				logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
			}
		}()

		extra = append(extra, eventbus.NewForwarder(eventBus, logger))
	}

	if url := command.String("redis-url"); url != "" {
		client, err := redissink.NewClient(ctx, url)
		if err != nil {
			return err
		}
		defer client.Close()

		extra = append(extra, redissink.New(client, logger))
	}

	if command.Bool("otel") {
		extra = append(extra, otelhelper.NewTracingObserver(otelhelper.Tracer("insight-api")))
	}

	executions := tracker.NewRegistry(logger)
	broadcaster := broadcast.New(logger)

	engine, err := cmd.NewEngine(cmd.NewRegistry(logger), b, cmd.Observers{
		Tracker:     tracker.New(executions, logger),
		Broadcaster: broadcaster,
		Extra:       extra,
	}, "", logger)
	if err != nil {
		return err
	}

	queries := services.NewQuery(engine, logger, services.WithMaxConcurrent(int64(command.Int("max-concurrent"))))

	retention, schedule := cmd.Retention(command)
	if err := executions.StartEviction(schedule, retention, queries.Results()); err != nil {
		return err
	}
	defer executions.Stop()

	api := NewAPI(logger, queries, executions, broadcaster)
	app := api.App()

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down API...")

		if err := app.Shutdown(); err != nil {
			logger.Error("Failed to shut down API", "error", err)
		}
	}()

	err = app.Listen(":" + strconv.Itoa(command.Int("port")))
	if err != nil {
		logger.ErrorContext(ctx, "Failed to start API", "error", err)

		return err
	}

	queries.Wait()

	return nil
}

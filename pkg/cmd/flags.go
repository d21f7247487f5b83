package cmd

import (
	"time"

	"github.com/dukex/insight/pkg/tracker"
	cli "github.com/urfave/cli/v3"
)

// BackendFlags are the flags shared by every binary that runs the query engine.
func BackendFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "Log format (text, json, tint)",
			Value:   "text",
			Sources: cli.EnvVars("LOG_FORMAT"),
		},
		&cli.StringFlag{
			Name:    "openai-api-key",
			Usage:   "API key of the OpenAI-compatible generation backend",
			Sources: cli.EnvVars("OPENAI_API_KEY"),
		},
		&cli.StringFlag{
			Name:    "openai-base-url",
			Usage:   "Base URL of the OpenAI-compatible generation backend",
			Sources: cli.EnvVars("OPENAI_BASE_URL"),
		},
		&cli.StringFlag{
			Name:    "openai-model",
			Usage:   "Chat model used by every node",
			Sources: cli.EnvVars("OPENAI_MODEL"),
		},
		&cli.StringFlag{
			Name:    "query-backend-url",
			Usage:   "Base URL of the HTTP structured-query backend",
			Sources: cli.EnvVars("QUERY_BACKEND_URL"),
		},
		&cli.StringFlag{
			Name:    "retrieval-backend-url",
			Usage:   "Base URL of the HTTP document-retrieval backend",
			Sources: cli.EnvVars("RETRIEVAL_BACKEND_URL"),
		},
		&cli.StringFlag{
			Name:    "chart-backend-url",
			Usage:   "Base URL of the chart rendering service",
			Sources: cli.EnvVars("CHART_BACKEND_URL"),
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "PostgreSQL URL; answers structured queries directly instead of the HTTP backend",
			Sources: cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "Redis URL; publishes progress frames on Redis pub/sub",
			Sources: cli.EnvVars("REDIS_URL"),
		},
		&cli.BoolFlag{
			Name:    "otel",
			Usage:   "Export traces over OTLP/HTTP",
			Sources: cli.EnvVars("OTEL_ENABLED"),
		},
	}
}

// RetentionFlags configure how long finished executions stay inspectable.
func RetentionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.DurationFlag{
			Name:    "retention-ttl",
			Usage:   "How long completed executions stay inspectable",
			Value:   tracker.DefaultRetention,
			Sources: cli.EnvVars("RETENTION_TTL"),
		},
		&cli.StringFlag{
			Name:    "eviction-schedule",
			Usage:   "Cron schedule of the eviction sweep",
			Value:   tracker.DefaultEvictionSchedule,
			Sources: cli.EnvVars("EVICTION_SCHEDULE"),
		},
	}
}

func BackendConfigFromCommand(command *cli.Command) BackendConfig {
	return BackendConfig{
		OpenAIAPIKey:        command.String("openai-api-key"),
		OpenAIBaseURL:       command.String("openai-base-url"),
		OpenAIModel:         command.String("openai-model"),
		QueryBackendURL:     command.String("query-backend-url"),
		RetrievalBackendURL: command.String("retrieval-backend-url"),
		ChartBackendURL:     command.String("chart-backend-url"),
		DatabaseURL:         command.String("database-url"),
	}
}

// Retention returns the configured retention window and eviction schedule.
func Retention(command *cli.Command) (time.Duration, string) {
	return command.Duration("retention-ttl"), command.String("eviction-schedule")
}

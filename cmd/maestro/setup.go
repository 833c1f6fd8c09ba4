package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/dukex/maestro/pkg/cmd"
	"github.com/dukex/maestro/pkg/engine"
	"github.com/dukex/maestro/pkg/models"
	"github.com/dukex/maestro/pkg/otelhelper"
	"github.com/dukex/maestro/pkg/state"
)

func engineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "State store URL (file://<dir>, redis://<addr>, memory)",
			Value:   "file://./data",
			Sources: cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus provider (gochannel, kafka)",
			Value:   "gochannel",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.IntFlag{
			Name:    "max-concurrency",
			Usage:   "Maximum nodes executing at once",
			Value:   4,
			Sources: cli.EnvVars("MAX_CONCURRENCY"),
		},
		&cli.DurationFlag{
			Name:    "workflow-timeout",
			Usage:   "Abort the run after this duration (0 disables)",
			Sources: cli.EnvVars("WORKFLOW_TIMEOUT"),
		},
		&cli.StringFlag{
			Name:    "failure-policy",
			Usage:   "What a node failure does to the run (fail_fast, continue)",
			Value:   "fail_fast",
			Sources: cli.EnvVars("FAILURE_POLICY"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
		&cli.BoolFlag{
			Name:    "tracing",
			Usage:   "Export run and node spans over OTLP/HTTP (endpoint from OTEL_EXPORTER_OTLP_ENDPOINT)",
			Sources: cli.EnvVars("OTEL_TRACING"),
		},
	}
}

// buildEngine assembles the store, state manager, capability registry and
// event bus behind one engine instance. The returned cleanup closes what was
// opened.
func buildEngine(ctx context.Context, command *cli.Command, logger *slog.Logger) (*engine.Engine, func()) {
	// The global tracer provider must be installed before the engine captures
	// its tracer.
	if command.Bool("tracing") {
		if _, err := otelhelper.NewTracer(ctx, "maestro"); err != nil {
			logger.WarnContext(ctx, "Failed to initialize tracing, spans disabled", "error", err)
		}
	}

	store := cmd.NewPersistence(command.String("database-url"))
	states := state.NewManager(store, logger)
	registry := cmd.NewRegistry(logger)
	eventBus := cmd.NewEventBus(command.String("event-bus"), logger)

	config := engine.Config{
		MaxConcurrency:  int(command.Int("max-concurrency")),
		WorkflowTimeout: command.Duration("workflow-timeout"),
		FailurePolicy:   engine.FailurePolicy(command.String("failure-policy")),
	}

	cleanup := func() {
		if err := eventBus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}

		if err := store.Close(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}

	return engine.NewEngine(states, registry, eventBus, logger, config), cleanup
}

// report prints the terminal state as indented JSON and logs the outcome. The
// run error is not fatal to the CLI: the state itself says what happened.
func report(ctx context.Context, logger *slog.Logger, st *models.ExecutionState, runErr error) error {
	if runErr != nil {
		logger.ErrorContext(ctx, "run did not complete", "run_id", st.RunID, "status", st.Status, "error", runErr)
	} else {
		logger.InfoContext(ctx, "run completed", "run_id", st.RunID, "duration", durationOf(st))
	}

	encoded, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode final state: %w", err)
	}

	fmt.Fprintln(os.Stdout, string(encoded))

	if runErr != nil {
		return cli.Exit("", 1)
	}

	return nil
}

func durationOf(st *models.ExecutionState) time.Duration {
	if st.FinishedAt == nil {
		return 0
	}

	return st.FinishedAt.Sub(st.CreatedAt)
}

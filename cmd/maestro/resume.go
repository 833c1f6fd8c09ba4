package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"

	"github.com/dukex/maestro/pkg/log"
)

func NewResumeCommand() *cli.Command {
	flags := append(engineFlags(),
		&cli.StringFlag{
			Name:     "run-id",
			Usage:    "Run to resume",
			Required: true,
			Sources:  cli.EnvVars("RUN_ID"),
		},
		&cli.StringFlag{
			Name:    "checkpoint-id",
			Usage:   "Checkpoint to resume from (latest when omitted)",
			Sources: cli.EnvVars("CHECKPOINT_ID"),
		},
	)

	return &cli.Command{
		Name:  "resume",
		Usage: "Continue a run from a persisted checkpoint",
		Flags: flags,
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("maestro")
			logger.InfoContext(ctx, "Resuming run", "run_id", command.String("run-id"))

			eng, cleanup := buildEngine(ctx, command, logger)
			defer cleanup()

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			st, runErr := eng.Resume(ctx, command.String("run-id"), command.String("checkpoint-id"))
			if st == nil {
				return cli.Exit(fmt.Sprintf("resume failed to start: %v", runErr), 1)
			}

			return report(ctx, logger, st, runErr)
		},
	}
}

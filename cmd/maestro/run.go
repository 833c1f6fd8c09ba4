package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"

	"github.com/dukex/maestro/pkg/definition"
	"github.com/dukex/maestro/pkg/log"
)

func NewRunCommand() *cli.Command {
	flags := append(engineFlags(),
		&cli.StringFlag{
			Name:    "inputs",
			Usage:   "Run inputs as a JSON object, merged over the definition's variables",
			Sources: cli.EnvVars("RUN_INPUTS"),
		},
	)

	return &cli.Command{
		Name:      "run",
		Usage:     "Execute a workflow definition to a terminal state",
		ArgsUsage: "<definition-file>",
		Flags:     flags,
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			path := command.Args().First()
			if path == "" {
				return cli.Exit("missing definition file argument", 1)
			}

			def, err := definition.Load(path)
			if err != nil {
				return cli.Exit(fmt.Sprintf("invalid definition: %v", err), 1)
			}

			inputs, err := parseInputs(command.String("inputs"))
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}

			logger := log.WithModule("maestro")
			logger.InfoContext(ctx, "Initializing Maestro", "workflow", def.Metadata.Name)

			eng, cleanup := buildEngine(ctx, command, logger)
			defer cleanup()

			// Ctrl-C cancels the run cooperatively; in-flight nodes drain.
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			st, runErr := eng.Run(ctx, def, inputs)
			if st == nil {
				return cli.Exit(fmt.Sprintf("run failed to start: %v", runErr), 1)
			}

			return report(ctx, logger, st, runErr)
		},
	}
}

func parseInputs(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}

	inputs := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &inputs); err != nil {
		return nil, fmt.Errorf("invalid --inputs JSON: %w", err)
	}

	return inputs, nil
}

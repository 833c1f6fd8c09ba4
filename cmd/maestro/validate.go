package main

import (
	"context"
	"fmt"

	cli "github.com/urfave/cli/v3"

	"github.com/dukex/maestro/pkg/definition"
	"github.com/dukex/maestro/pkg/log"
)

func NewValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Validate a workflow definition file without executing it",
		ArgsUsage: "<definition-file>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
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

			fmt.Printf("%s: valid (%d nodes, entry %q)\n", def.Metadata.Name, len(def.Nodes), def.EntryNode)

			return nil
		},
	}
}

package main

import (
	"context"
	"fmt"
	"strings"

	cli "github.com/urfave/cli/v3"

	"github.com/dukex/maestro/pkg/dag"
	"github.com/dukex/maestro/pkg/definition"
	"github.com/dukex/maestro/pkg/log"
)

func NewInspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Print the dependency graph, topological order and execution levels of a definition",
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

			d, err := dag.Build(def, dag.WithLogger(log.WithModule("inspect")))
			if err != nil {
				return cli.Exit(fmt.Sprintf("invalid graph: %v", err), 1)
			}

			fmt.Printf("workflow: %s\n", def.Metadata.Name)
			fmt.Printf("entry: %s\n", def.EntryNode)
			fmt.Printf("topological order: %s\n", strings.Join(d.TopologicalOrder(), " -> "))

			fmt.Println("execution levels:")

			for i, level := range d.ExecutionLevels() {
				fmt.Printf("  %d: %s\n", i, strings.Join(level, ", "))
			}

			if unreachable := d.Unreachable(); len(unreachable) > 0 {
				fmt.Printf("unreachable from entry: %s\n", strings.Join(unreachable, ", "))
			}

			return nil
		},
	}
}

package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:                  "maestro",
		EnableShellCompletion: true,
		Usage:                 "Validate, inspect and execute workflow definitions",
		Commands: []*cli.Command{
			NewValidateCommand(),
			NewInspectCommand(),
			NewRunCommand(),
			NewResumeCommand(),
		},
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}

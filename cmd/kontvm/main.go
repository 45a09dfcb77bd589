// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command kontvm is the reference host for the kont virtual machine: it
// runs named demo programs from a YAML run configuration and offers an
// interactive shell for poking at a live VM.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	app := &cli.Command{
		Name:  "kontvm",
		Usage: "An algebraic-effects virtual machine",
		Commands: []*cli.Command{
			runCommand,  // kontvm run
			replCommand, // kontvm repl
			listCommand, // kontvm list
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "Run a named program under a run configuration",
	ArgsUsage: "<program>",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "YAML run configuration (seed env/store, trace toggle)",
		},
		&cli.BoolFlag{
			Name:  "trace",
			Usage: "Record and print the capture log",
		},
	},
	Action: func(ctx context.Context, cmd *cli.Command) error {
		name := cmd.Args().First()
		if name == "" {
			return fmt.Errorf("kontvm run: missing program name (try `kontvm list`)")
		}
		cfg := DefaultConfig()
		if path := cmd.String("config"); path != "" {
			loaded, err := LoadConfig(path)
			if err != nil {
				return err
			}
			cfg = loaded
		}
		if cmd.Bool("trace") {
			cfg.Trace = true
		}
		return runProgram(ctx, name, cfg, os.Stdout)
	},
}

var listCommand = &cli.Command{
	Name:  "list",
	Usage: "List the built-in demo programs",
	Action: func(ctx context.Context, cmd *cli.Command) error {
		for _, p := range programCatalog() {
			fmt.Fprintf(os.Stdout, "%-16s %s\n", p.Name, p.Usage)
		}
		return nil
	},
}

var replCommand = &cli.Command{
	Name:  "repl",
	Usage: "Interactive shell over a live VM",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "YAML run configuration applied to the session VM",
		},
	},
	Action: func(ctx context.Context, cmd *cli.Command) error {
		cfg := DefaultConfig()
		if path := cmd.String("config"); path != "" {
			loaded, err := LoadConfig(path)
			if err != nil {
				return err
			}
			cfg = loaded
		}
		return runREPL(ctx, cfg)
	},
}

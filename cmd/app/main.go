// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"codeberg.org/clubedagente/backoffice/internal/config"
	"codeberg.org/clubedagente/backoffice/internal/server"
	"github.com/urfave/cli/v3"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func newCommand() *cli.Command {
	return &cli.Command{
		Name:           "backoffice",
		Usage:          "Clube da Gente back-office",
		Version:        fmt.Sprintf("%s (built %s)", Version, BuildTime),
		Flags:          []cli.Flag{config.ConfigFlag()},
		DefaultCommand: "serve",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the web application",
				Flags:  config.Flags(),
				Action: server.Run,
			},
			migrateCommand(),
			accountCommand(),
		},
	}
}

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

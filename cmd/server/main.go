// Copyright 2025 Parkwise Labs
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"log"
	"os"

	"github.com/parkwise/accounts/internal/config"
	"github.com/parkwise/accounts/internal/database"
	"github.com/parkwise/accounts/internal/server"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:   "accounts",
		Usage:  "Start the accounts service",
		Flags:  config.Flags(),
		Action: server.Run,
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "Manage schema migrations",
				Commands: []*cli.Command{
					{
						Name:   "up",
						Usage:  "Apply all pending migrations",
						Action: migrateUp,
					},
					{
						Name:   "down",
						Usage:  "Roll back the most recent migration",
						Action: migrateDown,
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

// migrateUp applies pending migrations; Open runs them as part of setup.
func migrateUp(_ context.Context, cmd *cli.Command) error {
	db, err := database.Open(cmd.String("database-dsn"))
	if err != nil {
		return err
	}
	return db.Close()
}

func migrateDown(_ context.Context, cmd *cli.Command) error {
	db, err := database.Open(cmd.String("database-dsn"))
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	return database.MigrateDown(db.DB)
}

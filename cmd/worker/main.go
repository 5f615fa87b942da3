// Command worker runs the reminder scheduler and its operator commands.
package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
)

func main() {
	app := newApp(prometheus.DefaultRegisterer)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

// newApp builds the command tree. Worker metrics are registered with reg.
func newApp(reg prometheus.Registerer) *cli.App {
	return &cli.App{
		Name:  "worker",
		Usage: "vaccination and food depletion reminder worker",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "memory",
				Usage:   "use in-memory stores instead of PostgreSQL",
				EnvVars: []string{"WORKER_MEMORY"},
			},
			&cli.BoolFlag{
				Name:    "migrate",
				Usage:   "create the schema before starting",
				EnvVars: []string{"DB_AUTO_MIGRATE"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "log output format: json or text",
				Value:   "json",
				EnvVars: []string{"LOG_FORMAT"},
			},
			&cli.StringFlag{
				Name:    "feeding-table",
				Usage:   "YAML file with the weight-to-grams feeding table",
				EnvVars: []string{"FEEDING_TABLE_PATH"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the scheduler with health and metrics endpoints",
				Action: func(c *cli.Context) error { return serve(c, reg) },
			},
			{
				Name:  "scan",
				Usage: "run one tick, or a single scan, and exit",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "only",
						Usage: "pending, vaccinations or feeding",
					},
				},
				Action: func(c *cli.Context) error { return scan(c, reg) },
			},
			{
				Name:  "stuck",
				Usage: "list due PENDING notifications older than STUCK_AFTER",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "older-than",
						Usage: "override STUCK_AFTER",
					},
				},
				Action: func(c *cli.Context) error { return stuck(c, reg) },
			},
			{
				Name:      "inbox",
				Usage:     "list a user's in-app notifications, newest first",
				ArgsUsage: "USER_ID",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "maximum number of items",
						Value: 20,
					},
				},
				Action: func(c *cli.Context) error { return inbox(c, reg) },
			},
			{
				Name:      "renew",
				Usage:     "start a new package cycle for a feeding plan",
				ArgsUsage: "PLAN_ID",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:     "grams",
						Usage:    "size of the new package in grams",
						Required: true,
					},
					&cli.TimestampFlag{
						Name:   "start",
						Usage:  "first day of the new package (default today)",
						Layout: "2006-01-02",
					},
				},
				Action: func(c *cli.Context) error { return renew(c, reg) },
			},
			{
				Name:  "migrate",
				Usage: "manage the database schema",
				Subcommands: []*cli.Command{
					{
						Name:   "up",
						Usage:  "create tables and indexes",
						Action: func(c *cli.Context) error { return migrate(c, true) },
					},
					{
						Name:   "down",
						Usage:  "drop all reminder tables",
						Action: func(c *cli.Context) error { return migrate(c, false) },
					},
				},
			},
		},
		DefaultCommand: "serve",
	}
}

// Command ordermartctl administers the ordermart database: schema
// migrations, clients, groups and weekly reports.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

// Version indicates the current version of the tool.
var Version = "1.0.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "ordermartctl",
		Usage:   "manage the ordermart database",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "./config/local.yml",
				Usage:   "path to the config file",
				EnvVars: []string{"CONFIG_PATH"},
			},
			&cli.StringFlag{
				Name:    "dsn",
				Aliases: []string{"d"},
				Usage:   "data source name, overrides the config file",
			},
		},
		Commands: []*cli.Command{
			migrateCommand(),
			clientCommand(),
			groupCommand(),
			reportCommand(),
		},
	}
}

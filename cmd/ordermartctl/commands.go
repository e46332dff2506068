package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/KretovDmitry/ordermart/internal/auth"
	"github.com/KretovDmitry/ordermart/internal/models/client"
	"github.com/KretovDmitry/ordermart/internal/week"
	"github.com/KretovDmitry/ordermart/migrations"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
)

const dateLayout = "Mon 02.01.2006"

func migrateCommand() *cli.Command {
	migrate := func(fn func(dsn string) error, done string) cli.ActionFunc {
		return func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if err = fn(cfg.DSN); err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.App.Writer, done)
			return err
		}
	}

	return &cli.Command{
		Name:  "migrate",
		Usage: "manage the database schema",
		Subcommands: []*cli.Command{
			{
				Name:   "up",
				Usage:  "apply all pending migrations",
				Action: migrate(migrations.Up, "schema is up to date"),
			},
			{
				Name:   "down",
				Usage:  "roll back all migrations",
				Action: migrate(migrations.Down, "schema is rolled back"),
			},
			{
				Name:  "version",
				Usage: "print the current schema version",
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}

					version, dirty, err := migrations.Version(cfg.DSN)
					if err != nil {
						return err
					}

					if dirty {
						_, err = fmt.Fprintf(c.App.Writer, "%d (dirty)\n", version)
						return err
					}
					_, err = fmt.Fprintln(c.App.Writer, version)
					return err
				},
			},
		},
	}
}

func clientCommand() *cli.Command {
	return &cli.Command{
		Name:  "client",
		Usage: "manage clients",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "create a client",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Required: true},
					&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Required: true, EnvVars: []string{"CLIENT_PASSWORD"}},
					&cli.StringFlag{Name: "first-name"},
					&cli.StringFlag{Name: "last-name"},
					&cli.BoolFlag{Name: "staff", Usage: "allow the client to manage orders"},
					&cli.BoolFlag{Name: "customer", Usage: "add the client to the customer group"},
				},
				Action: withEnv(func(c *cli.Context, e *env) error {
					created, err := e.auth.CreateClient(c.Context, auth.CreateClientParams{
						Username:  c.String("username"),
						Password:  c.String("password"),
						FirstName: c.String("first-name"),
						LastName:  c.String("last-name"),
						Staff:     c.Bool("staff"),
						Customer:  c.Bool("customer"),
					})
					if err != nil {
						return err
					}

					_, err = fmt.Fprintf(c.App.Writer, "created client %d %s\n", created.ID, created.Username)
					return err
				}),
			},
			{
				Name:  "list",
				Usage: "list all clients",
				Action: withEnv(func(c *cli.Context, e *env) error {
					clients, err := e.auth.ListClients(c.Context)
					if err != nil {
						return err
					}
					return printClients(c.App.Writer, clients)
				}),
			},
		},
	}
}

func groupCommand() *cli.Command {
	return &cli.Command{
		Name:  "group",
		Usage: "manage client groups",
		Subcommands: []*cli.Command{
			{
				Name:  "add",
				Usage: "add a client to a group, creating the group if needed",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Required: true},
					&cli.StringFlag{Name: "group", Aliases: []string{"g"}, Required: true},
				},
				Action: withEnv(func(c *cli.Context, e *env) error {
					username, group := c.String("username"), c.String("group")
					if err := e.auth.AddToGroup(c.Context, username, group); err != nil {
						return err
					}

					_, err := fmt.Fprintf(c.App.Writer, "added %s to %s\n", username, group)
					return err
				}),
			},
		},
	}
}

func reportCommand() *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "print the per-day order summary of a week",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "week", Aliases: []string{"w"}, Usage: "ISO week, e.g. 2024-W03; defaults to the current week"},
		},
		Action: withEnv(func(c *cli.Context, e *env) error {
			w, err := parseWeek(c.String("week"), week.Of(e.orders.Today()))
			if err != nil {
				return err
			}

			summary, err := e.orders.Report(c.Context, w)
			if err != nil {
				return err
			}

			stored, err := e.orders.StoredTotal(c.Context, w)
			if err != nil {
				return err
			}

			if !stored.Equal(summary.Total) {
				e.logger.Warnf("week %s: stored total %s differs from aggregated %s",
					w, stored.StringFixed(2), summary.Total.StringFixed(2))
			}

			return printSummary(c.App.Writer, w, summary)
		}),
	}
}

// parseWeek is stricter than the web form: an explicit label must be valid.
func parseWeek(label string, current week.Week) (week.Week, error) {
	if label == "" {
		return current, nil
	}

	w, ok := week.Parse(label)
	if !ok {
		return week.Week{}, fmt.Errorf("invalid week %q, want YYYY-Www", label)
	}

	return w, nil
}

func printSummary(out io.Writer, w week.Week, s week.Summary) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "Week %s\n", w)
	fmt.Fprintln(tw, "DAY\tCLIENTS\tTOTAL")
	for _, d := range s.Days {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Date.Format(dateLayout), d.ClientsLabel(), money(d.Total))
	}
	fmt.Fprintf(tw, "Total\t%s\t%s\n", s.ClientsLabel(), money(s.Total))

	return tw.Flush()
}

func printClients(out io.Writer, clients []*client.Client) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "ID\tUSERNAME\tNAME\tSTAFF\tACTIVE")
	for _, c := range clients {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%t\n", c.ID, c.Username, c.DisplayName(), c.IsStaff, c.IsActive)
	}

	return tw.Flush()
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

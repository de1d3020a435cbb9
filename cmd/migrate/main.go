package main

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"procurement-service/migrations"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	dsn string
	dir string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply database migrations for the procurement service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.dsn, "dsn", os.Getenv("DATABASE_URL"), "postgres DSN (defaults to $DATABASE_URL)")
	cmd.PersistentFlags().StringVar(&opts.dir, "dir", "", "read migrations from this directory instead of the embedded set")

	cmd.AddCommand(
		newActionCmd(opts, "up", "Apply all pending migrations", goose.Up),
		newActionCmd(opts, "down", "Roll back the latest migration", goose.Down),
		newActionCmd(opts, "redo", "Roll back and reapply the latest migration", goose.Redo),
		newActionCmd(opts, "status", "Print the status of every migration", goose.Status),
		newVersionCmd(opts),
	)
	return cmd
}

func newActionCmd(opts *options, use, short string, action func(db *sql.DB, dir string, o ...goose.OptionsFunc) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, dir, err := opts.open()
			if err != nil {
				return err
			}
			defer db.Close()
			return action(db, dir)
		},
	}
}

func newVersionCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the current database version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := opts.open()
			if err != nil {
				return err
			}
			defer db.Close()

			v, err := goose.GetDBVersion(db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d\n", v)
			return nil
		},
	}
}

func (o *options) open() (*sql.DB, string, error) {
	if strings.TrimSpace(o.dsn) == "" {
		return nil, "", errors.New("dsn required (--dsn or DATABASE_URL)")
	}
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, "", err
	}

	dir := o.dir
	if dir == "" {
		goose.SetBaseFS(migrations.EmbeddedFS)
		dir = "."
	} else {
		goose.SetBaseFS(nil)
	}

	db, err := sql.Open("postgres", o.dsn)
	if err != nil {
		return nil, "", err
	}
	return db, dir, nil
}

package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/postgate/postgate/internal/gatesrv/config"
	"github.com/postgate/postgate/internal/gatesrv/db/dbmanager"
	"github.com/postgate/postgate/internal/gatesrv/db/migrations"
	"github.com/postgate/postgate/internal/gatesrv/db/postgresql"
	"github.com/postgate/postgate/internal/gatesrv/tenant"
)

var (
	createDbMaxRows   int
	createDbDedicated string
)

var createDbCmd = &cobra.Command{
	Use:   "create-db <name>",
	Short: "Create a new tenant database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCreateDb(cmd.Context(), args[0])
	},
}

func init() {
	createDbCmd.Flags().IntVar(&createDbMaxRows, "max-rows", 1000, "maximum rows per query")
	createDbCmd.Flags().StringVar(&createDbDedicated, "dedicated", "",
		"use a dedicated connection string instead of schema isolation")
}

func runCreateDb(ctx context.Context, name string) error {
	prov, cleanup, err := openProvisioner(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if createDbDedicated != "" {
		t, perr := prov.CreateDedicatedTenant(ctx, name, createDbDedicated, createDbMaxRows)
		if perr != nil {
			return perr
		}
		fmt.Println(t.ID)
		return nil
	}

	t, perr := prov.CreateSharedTenant(ctx, name, createDbMaxRows)
	if perr != nil {
		return perr
	}
	fmt.Println(t.ID)
	color.New(color.Faint).Fprintf(colorErr, "Schema: %s\n", t.Backend.SchemaName())
	return nil
}

// openProvisioner loads config, connects to the host database, ensures the
// schema is migrated, and returns a provisioner plus its cleanup.
func openProvisioner(ctx context.Context) (*tenant.Provisioner, func(), error) {
	if err := config.LoadConfig(configFile); err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	pool, err := dbmanager.NewPostgresqlPool(config.Config().DatabaseURL, dbmanager.Options{})
	if err != nil {
		return nil, nil, fmt.Errorf("opening host database: %w", err)
	}
	if err := dbmanager.Ping(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("host database unreachable: %w", err)
	}
	if err := migrations.Run(ctx, dbmanager.DB(pool)); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	store := postgresql.NewStore(dbmanager.DB(pool))
	prov := tenant.NewProvisioner(dbmanager.DB(pool), store)
	return prov, func() { pool.Close() }, nil
}

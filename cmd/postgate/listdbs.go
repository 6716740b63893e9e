package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/postgate/postgate/internal/gatesrv/config"
	"github.com/postgate/postgate/internal/gatesrv/db/dbmanager"
	"github.com/postgate/postgate/internal/gatesrv/db/postgresql"
	"github.com/postgate/postgate/internal/gatesrv/gatecommon"
)

var listDbsCmd = &cobra.Command{
	Use:   "list-dbs",
	Short: "List tenant databases",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runListDbs(cmd.Context())
	},
}

func runListDbs(ctx context.Context) error {
	if err := config.LoadConfig(configFile); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	pool, err := dbmanager.NewPostgresqlPool(config.Config().DatabaseURL, dbmanager.Options{})
	if err != nil {
		return fmt.Errorf("opening host database: %w", err)
	}
	defer pool.Close()
	store := postgresql.NewStore(dbmanager.DB(pool))

	tenants, lerr := store.ListTenants(ctx)
	if lerr != nil {
		return lerr
	}

	bold := color.New(color.Bold)
	for _, t := range tenants {
		bold.Printf("%s", t.ID)
		switch t.Backend.Kind() {
		case gatecommon.BackendShared:
			fmt.Printf("  %-20s schema=%s max_rows=%d\n", t.Name, t.Backend.SchemaName(), t.MaxRows)
		case gatecommon.BackendDedicated:
			fmt.Printf("  %-20s dedicated max_rows=%d\n", t.Name, t.MaxRows)
		}
	}
	return nil
}

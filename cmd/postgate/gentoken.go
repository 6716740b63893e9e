package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/postgate/postgate/internal/common/uuid"
	"github.com/postgate/postgate/internal/gatesrv/config"
	"github.com/postgate/postgate/internal/gatesrv/db/dberror"
	"github.com/postgate/postgate/internal/gatesrv/db/dbmanager"
	"github.com/postgate/postgate/internal/gatesrv/db/models"
	"github.com/postgate/postgate/internal/gatesrv/db/postgresql"
	"github.com/postgate/postgate/internal/gatesrv/gatecommon"
	"github.com/postgate/postgate/internal/gatesrv/token"
)

// colorErr is where human-readable CLI output goes; stdout stays reserved
// for the machine-readable values (ids and secrets).
var colorErr = os.Stderr

var genTokenPermissions string

var genTokenCmd = &cobra.Command{
	Use:   "gen-token <database-id> [name]",
	Short: "Generate a token for a tenant database",
	Long: "Generate a token for a tenant database. The plaintext secret is " +
		"printed once and cannot be recovered. An existing token with the " +
		"same name is replaced.",
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := "default"
		if len(args) > 1 {
			name = args[1]
		}
		return runGenToken(cmd.Context(), args[0], name)
	},
}

func init() {
	genTokenCmd.Flags().StringVar(&genTokenPermissions, "permissions",
		"SELECT,INSERT,UPDATE,DELETE",
		"comma-separated permissions (SELECT,INSERT,UPDATE,DELETE,CREATE,ALTER,DROP)")
}

func runGenToken(ctx context.Context, databaseID, name string) error {
	dbID, err := uuid.Parse(databaseID)
	if err != nil {
		return fmt.Errorf("invalid database ID: %s", databaseID)
	}

	ops, err := parsePermissions(genTokenPermissions)
	if err != nil {
		return err
	}

	if err := config.LoadConfig(configFile); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	pool, err := dbmanager.NewPostgresqlPool(config.Config().DatabaseURL, dbmanager.Options{})
	if err != nil {
		return fmt.Errorf("opening host database: %w", err)
	}
	defer pool.Close()
	store := postgresql.NewStore(dbmanager.DB(pool))

	secret, merr := token.Mint()
	if merr != nil {
		return merr
	}
	tok := &models.Token{
		TenantID:   dbID,
		Name:       name,
		Hash:       token.Hash(secret),
		Prefix:     token.Prefix(secret),
		Operations: ops,
	}

	cerr := store.CreateToken(ctx, tok)
	if errors.Is(cerr, dberror.ErrAlreadyExists) {
		// Replace the existing token of that name.
		if derr := deleteNamedToken(ctx, store, dbID, name); derr != nil {
			return derr
		}
		cerr = store.CreateToken(ctx, tok)
	}
	if cerr != nil {
		return cerr
	}

	fmt.Println(secret)
	color.New(color.Faint).Fprintf(colorErr, "Token ID: %s\n", tok.ID)
	return nil
}

func deleteNamedToken(ctx context.Context, store *postgresql.Store, dbID uuid.UUID, name string) error {
	tokens, err := store.ListTokens(ctx, dbID)
	if err != nil {
		return err
	}
	for _, t := range tokens {
		if t.Name == name {
			if _, derr := store.DeleteToken(ctx, t.ID); derr != nil {
				return derr
			}
			return nil
		}
	}
	return nil
}

func parsePermissions(s string) ([]gatecommon.Operation, error) {
	var ops []gatecommon.Operation
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		op, err := gatecommon.ParseOperation(part)
		if err != nil {
			return nil, fmt.Errorf("invalid permission: %s", part)
		}
		ops = append(ops, op)
	}
	if len(ops) == 0 {
		return nil, fmt.Errorf("at least one permission is required")
	}
	return ops, nil
}

func printError(err error) {
	color.New(color.FgRed).Fprintf(colorErr, "Error: %v\n", err)
}

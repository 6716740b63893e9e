package executor

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postgate/postgate/internal/gatesrv/db/dbmanager"
	"github.com/postgate/postgate/internal/gatesrv/db/migrations"
	"github.com/postgate/postgate/internal/gatesrv/db/postgresql"
	"github.com/postgate/postgate/internal/gatesrv/gatecommon"
	"github.com/postgate/postgate/internal/gatesrv/sqlvalidator"
	"github.com/postgate/postgate/internal/gatesrv/tenant"
)

// newTestExecutor provisions a throwaway shared tenant and returns an
// executor plus the policy addressing it. Skipped without DATABASE_URL.
func newTestExecutor(t *testing.T, maxRows int, queryTimeout time.Duration) (context.Context, *Executor, *gatecommon.Policy) {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := log.Logger.WithContext(context.Background())
	pool, err := dbmanager.NewPostgresqlPool(dsn, dbmanager.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })
	require.NoError(t, migrations.Run(ctx, dbmanager.DB(pool)))

	store := postgresql.NewStore(dbmanager.DB(pool))
	prov := tenant.NewProvisioner(dbmanager.DB(pool), store)

	tn, perr := prov.CreateSharedTenant(ctx, "exectest", maxRows)
	require.Nil(t, perr)
	t.Cleanup(func() { prov.DeleteTenant(ctx, tn.ID) })

	provider := dbmanager.NewProvider(pool, dbmanager.Options{})
	exec := New(provider, queryTimeout, nil)

	policy := &gatecommon.Policy{
		TenantID:   tn.ID,
		TenantName: tn.Name,
		Backend:    tn.Backend,
		MaxRows:    tn.MaxRows,
		Operations: gatecommon.NewOperationSet(gatecommon.AllOperations...),
	}
	return ctx, exec, policy
}

func mustValidate(t *testing.T, sql string) *sqlvalidator.ParsedQuery {
	t.Helper()
	parsed, err := sqlvalidator.ValidateQuery(sql, gatecommon.OperationSet{})
	require.Nil(t, err)
	return parsed
}

func TestExecuteSelectLiteral(t *testing.T) {
	ctx, exec, policy := newTestExecutor(t, 10, 30*time.Second)

	result, err := exec.Execute(ctx, policy, mustValidate(t, "SELECT 1 AS x"), nil)
	require.Nil(t, err)
	assert.Equal(t, 1, result.RowCount)
	require.Len(t, result.Rows, 1)
	assert.EqualValues(t, 1, result.Rows[0]["x"])
}

func TestExecuteScopedLifecycle(t *testing.T) {
	ctx, exec, policy := newTestExecutor(t, 10, 30*time.Second)

	_, err := exec.Execute(ctx, policy, mustValidate(t, "CREATE TABLE things (id int, label text)"), nil)
	require.Nil(t, err)

	_, err = exec.Execute(ctx, policy,
		mustValidate(t, "INSERT INTO things (id, label) VALUES ($1, $2)"),
		[]any{json.Number("1"), "first"})
	require.Nil(t, err)

	result, err := exec.Execute(ctx, policy, mustValidate(t, "SELECT id, label FROM things"), nil)
	require.Nil(t, err)
	assert.Equal(t, 1, result.RowCount)
	assert.EqualValues(t, 1, result.Rows[0]["id"])
	assert.Equal(t, "first", result.Rows[0]["label"])
}

func TestExecuteRowCapBoundary(t *testing.T) {
	ctx, exec, policy := newTestExecutor(t, 2, 30*time.Second)

	_, err := exec.Execute(ctx, policy, mustValidate(t, "CREATE TABLE capped (n int)"), nil)
	require.Nil(t, err)
	_, err = exec.Execute(ctx, policy,
		mustValidate(t, "INSERT INTO capped SELECT generate_series(1, 5)"), nil)
	require.Nil(t, err)

	// Exactly the cap succeeds.
	result, err := exec.Execute(ctx, policy, mustValidate(t, "SELECT n FROM capped LIMIT 2"), nil)
	require.Nil(t, err)
	assert.Equal(t, 2, result.RowCount)

	// One beyond the cap fails with no rows returned.
	_, err = exec.Execute(ctx, policy, mustValidate(t, "SELECT n FROM capped"), nil)
	assert.ErrorIs(t, err, ErrRowLimitExceeded)
}

func TestExecuteStatementTimeout(t *testing.T) {
	ctx, exec, policy := newTestExecutor(t, 10, 200*time.Millisecond)

	// The executor does not validate; drive it directly with a sleep.
	parsed := &sqlvalidator.ParsedQuery{
		SQL:         "SELECT pg_sleep(5)",
		Operation:   gatecommon.OpSelect,
		ReturnsRows: true,
	}
	_, err := exec.Execute(ctx, policy, parsed, nil)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestExecuteDatabaseError(t *testing.T) {
	ctx, exec, policy := newTestExecutor(t, 10, 30*time.Second)

	_, err := exec.Execute(ctx, policy, mustValidate(t, "SELECT * FROM does_not_exist"), nil)
	assert.ErrorIs(t, err, ErrDatabase)
}

func TestExecuteRollbackOnError(t *testing.T) {
	ctx, exec, policy := newTestExecutor(t, 10, 30*time.Second)

	_, err := exec.Execute(ctx, policy, mustValidate(t, "CREATE TABLE rollbacks (n int)"), nil)
	require.Nil(t, err)

	// A failing insert leaves nothing behind.
	_, err = exec.Execute(ctx, policy,
		mustValidate(t, "INSERT INTO rollbacks SELECT 1/0"), nil)
	require.NotNil(t, err)

	result, err := exec.Execute(ctx, policy, mustValidate(t, "SELECT count(*) AS c FROM rollbacks"), nil)
	require.Nil(t, err)
	assert.EqualValues(t, 0, result.Rows[0]["c"])
}

func TestHelpersVisibleInTenantScope(t *testing.T) {
	ctx, exec, policy := newTestExecutor(t, 10, 30*time.Second)

	_, err := exec.Execute(ctx, policy, mustValidate(t, "CREATE TABLE listed (n int)"), nil)
	require.Nil(t, err)

	result, err := exec.Execute(ctx, policy,
		mustValidate(t, "SELECT * FROM postgate_helpers.list_tables()"), nil)
	require.Nil(t, err)
	require.Equal(t, 1, result.RowCount)
	assert.Equal(t, "listed", result.Rows[0]["table_name"])
}

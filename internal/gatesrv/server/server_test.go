package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postgate/postgate/internal/common/apperrors"
	"github.com/postgate/postgate/internal/common/uuid"
	"github.com/postgate/postgate/internal/gatesrv/config"
	"github.com/postgate/postgate/internal/gatesrv/db/dbtest"
	"github.com/postgate/postgate/internal/gatesrv/db/models"
	"github.com/postgate/postgate/internal/gatesrv/executor"
	"github.com/postgate/postgate/internal/gatesrv/gatecommon"
	"github.com/postgate/postgate/internal/gatesrv/sqlvalidator"
	"github.com/postgate/postgate/internal/gatesrv/token"
)

// stubExecutor returns canned results or errors and records invocations.
type stubExecutor struct {
	result   *executor.QueryResult
	err      apperrors.Error
	lastSQL  string
	lastOp   gatecommon.Operation
	executed int
}

func (s *stubExecutor) Execute(ctx context.Context, policy *gatecommon.Policy, parsed *sqlvalidator.ParsedQuery, params []any) (*executor.QueryResult, apperrors.Error) {
	s.executed++
	s.lastSQL = parsed.SQL
	s.lastOp = parsed.Operation
	if s.err != nil {
		return nil, s.err
	}
	if s.result != nil {
		return s.result, nil
	}
	return &executor.QueryResult{Rows: []map[string]any{}, RowCount: 0}, nil
}

type testEnv struct {
	server *GateServer
	exec   *stubExecutor
	secret string
}

func newTestEnv(t *testing.T, ops []gatecommon.Operation) *testEnv {
	t.Helper()
	config.TestInit(&config.ConfigParam{})

	store := dbtest.NewStubStore()
	secret, merr := token.Mint()
	require.Nil(t, merr)

	tenant := &models.Tenant{
		ID:      uuid.New(),
		Name:    "app",
		Backend: gatecommon.SharedBackend("tenant_0123456789abcdef0123456789abcdef_app"),
		MaxRows: 100,
	}
	tok := &models.Token{
		ID:         uuid.New(),
		TenantID:   tenant.ID,
		Name:       "default",
		Hash:       token.Hash(secret),
		Prefix:     token.Prefix(secret),
		Operations: ops,
	}
	store.Add(tenant, tok)

	exec := &stubExecutor{}
	srv, err := CreateNewServer(store, exec)
	require.NoError(t, err)
	srv.MountHandlers()

	return &testEnv{server: srv, exec: exec, secret: secret}
}

func (e *testEnv) do(method, path, body, authHeader, contentType string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.server.Router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	var envelope struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Code, envelope.Error
}

func TestHealthNoAuth(t *testing.T) {
	env := newTestEnv(t, gatecommon.DefaultOperations)
	rec := env.do(http.MethodGet, "/health", "", "", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestQuerySuccess(t *testing.T) {
	env := newTestEnv(t, gatecommon.DefaultOperations)
	env.exec.result = &executor.QueryResult{
		Rows:     []map[string]any{{"x": 1}},
		RowCount: 1,
	}

	rec := env.do(http.MethodPost, "/query",
		`{"sql":"SELECT 1 AS x"}`, "Bearer "+env.secret, "application/json")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"rows":[{"x":1}],"row_count":1}`, rec.Body.String())
	assert.Equal(t, gatecommon.OpSelect, env.exec.lastOp)
}

func TestQueryMissingAuth(t *testing.T) {
	env := newTestEnv(t, gatecommon.DefaultOperations)
	rec := env.do(http.MethodPost, "/query", `{"sql":"SELECT 1"}`, "", "application/json")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	code, _ := decodeError(t, rec)
	assert.Equal(t, "UNAUTHORIZED", code)
	assert.Zero(t, env.exec.executed)
}

func TestQueryNonHexToken(t *testing.T) {
	env := newTestEnv(t, gatecommon.DefaultOperations)
	bad := "pg_" + strings.Repeat("zz", 32)
	rec := env.do(http.MethodPost, "/query", `{"sql":"SELECT 1"}`, "Bearer "+bad, "application/json")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	code, _ := decodeError(t, rec)
	assert.Equal(t, "UNAUTHORIZED", code)
}

func TestQueryRequiresJSONContentType(t *testing.T) {
	env := newTestEnv(t, gatecommon.DefaultOperations)
	rec := env.do(http.MethodPost, "/query", `{"sql":"SELECT 1"}`, "Bearer "+env.secret, "text/plain")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, env.exec.executed)
}

func TestQueryMultipleStatements(t *testing.T) {
	env := newTestEnv(t, gatecommon.DefaultOperations)
	rec := env.do(http.MethodPost, "/query",
		`{"sql":"SELECT 1; DROP TABLE t","params":[]}`, "Bearer "+env.secret, "application/json")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	code, _ := decodeError(t, rec)
	assert.Equal(t, "PARSE_ERROR", code)
	assert.Zero(t, env.exec.executed)
}

func TestQueryQualifiedName(t *testing.T) {
	env := newTestEnv(t, gatecommon.DefaultOperations)
	rec := env.do(http.MethodPost, "/query",
		`{"sql":"SELECT * FROM public.postgate_tokens"}`, "Bearer "+env.secret, "application/json")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	code, msg := decodeError(t, rec)
	assert.Equal(t, "PARSE_ERROR", code)
	// Validator messages never leak schema names.
	assert.NotContains(t, msg, "public")
}

func TestQueryOperationDenied(t *testing.T) {
	env := newTestEnv(t, []gatecommon.Operation{gatecommon.OpSelect, gatecommon.OpInsert})
	rec := env.do(http.MethodPost, "/query",
		`{"sql":"CREATE TABLE t (x int)"}`, "Bearer "+env.secret, "application/json")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	code, msg := decodeError(t, rec)
	assert.Equal(t, "PARSE_ERROR", code)
	assert.Contains(t, msg, "CREATE")
	assert.Zero(t, env.exec.executed)
}

func TestQueryRowLimitExceeded(t *testing.T) {
	env := newTestEnv(t, gatecommon.DefaultOperations)
	env.exec.err = executor.ErrRowLimitExceeded.Msg("row limit exceeded (max: 100)")

	rec := env.do(http.MethodPost, "/query",
		`{"sql":"SELECT * FROM t"}`, "Bearer "+env.secret, "application/json")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	code, _ := decodeError(t, rec)
	assert.Equal(t, "ROW_LIMIT_EXCEEDED", code)
}

func TestQueryTimeout(t *testing.T) {
	env := newTestEnv(t, gatecommon.DefaultOperations)
	env.exec.err = executor.ErrTimeout

	rec := env.do(http.MethodPost, "/query",
		`{"sql":"SELECT * FROM t"}`, "Bearer "+env.secret, "application/json")

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	code, _ := decodeError(t, rec)
	assert.Equal(t, "TIMEOUT", code)
}

func TestQueryDatabaseError(t *testing.T) {
	env := newTestEnv(t, gatecommon.DefaultOperations)
	env.exec.err = executor.ErrDatabase.Msg(`database error: relation "t" does not exist`)

	rec := env.do(http.MethodPost, "/query",
		`{"sql":"INSERT INTO t VALUES (1)"}`, "Bearer "+env.secret, "application/json")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	code, _ := decodeError(t, rec)
	assert.Equal(t, "DATABASE_ERROR", code)
}

func TestUnknownEndpoint(t *testing.T) {
	env := newTestEnv(t, gatecommon.DefaultOperations)
	rec := env.do(http.MethodGet, "/nope", "", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWrongMethod(t *testing.T) {
	env := newTestEnv(t, gatecommon.DefaultOperations)
	rec := env.do(http.MethodGet, "/query", "", "Bearer "+env.secret, "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestQueryMalformedBody(t *testing.T) {
	env := newTestEnv(t, gatecommon.DefaultOperations)
	rec := env.do(http.MethodPost, "/query", `{"sql":`, "Bearer "+env.secret, "application/json")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, env.exec.executed)
}

package v1

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txchain/internal/core/apperror"
	"txchain/internal/core/flow"
	"txchain/internal/core/proxy"
	"txchain/internal/core/tx"
	"txchain/internal/domain/ledger"
	"txchain/internal/infrastructure/http/v1/dto"
	"txchain/internal/infrastructure/http/v1/middleware"
	"txchain/internal/infrastructure/metrics"
	"txchain/internal/infrastructure/storage/sqlstore"
	"txchain/internal/metadata"
	"txchain/pkg/logger"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()

	ctx := context.Background()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := sqlstore.OpenSQLite(ctx, fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlstore.Close(db) })

	res := sqlstore.NewTxResource(db)
	repo := sqlstore.NewAccountRepo(res)
	require.NoError(t, repo.Migrate(ctx))

	reg := prometheus.NewRegistry()
	collector, err := metrics.NewCollector(reg)
	require.NoError(t, err)

	d := proxy.NewDispatcher(metadata.NewRegistry(nil),
		proxy.Logging(),
		collector.Interceptor(),
		tx.NewInterceptor(res, tx.WithObserver(collector)),
	)
	svc, err := ledger.NewService(repo, d)
	require.NoError(t, err)

	return NewRouter(RouterConfig{
		Logger:   logger.NewNop(),
		Ledger:   svc,
		Registry: d.Registry(),
		Ping: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})
}

func doJSON(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func openAccount(t *testing.T, r http.Handler, owner, balance string) string {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/api/v1/accounts", fmt.Sprintf(`{"owner":%q,"balance":%q}`, owner, balance))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode(t, w)["id"].(string)
}

func TestRouter_Health(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/health/live", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestRouter_TransferFlow(t *testing.T) {
	r := newTestRouter(t)

	alice := openAccount(t, r, "alice", "100")
	bob := openAccount(t, r, "bob", "0")

	w := doJSON(t, r, http.MethodPost, "/api/v1/transfers",
		fmt.Sprintf(`{"from":%q,"to":%q,"amount":"25.5"}`, alice, bob))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "74.5", body["from"].(map[string]any)["balance"])
	assert.Equal(t, "25.5", body["to"].(map[string]any)["balance"])

	w = doJSON(t, r, http.MethodGet, "/api/v1/accounts/"+alice+"/entries", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode(t, w)["totalCount"])
}

func TestRouter_FailedTransferIsRolledBack(t *testing.T) {
	r := newTestRouter(t)

	alice := openAccount(t, r, "alice", "100")

	w := doJSON(t, r, http.MethodPost, "/api/v1/transfers",
		fmt.Sprintf(`{"from":%q,"to":"nobody","amount":10}`, alice))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperror.CodeNotFound, decode(t, w)["code"])

	w = doJSON(t, r, http.MethodGet, "/api/v1/accounts/"+alice, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "100", decode(t, w)["balance"])
}

func TestRouter_Errors(t *testing.T) {
	r := newTestRouter(t)
	alice := openAccount(t, r, "alice", "5")
	bob := openAccount(t, r, "bob", "0")

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"malformed body", http.MethodPost, "/api/v1/accounts", `{`, http.StatusBadRequest, apperror.CodeValidation},
		{"missing owner", http.MethodPost, "/api/v1/accounts", `{"balance":"1"}`, http.StatusBadRequest, apperror.CodeValidation},
		{"negative balance", http.MethodPost, "/api/v1/accounts", `{"owner":"x","balance":"-1"}`, http.StatusBadRequest, apperror.CodeValidation},
		{"unknown account", http.MethodGet, "/api/v1/accounts/nope", "", http.StatusNotFound, apperror.CodeNotFound},
		{"insufficient funds", http.MethodPost, "/api/v1/transfers",
			fmt.Sprintf(`{"from":%q,"to":%q,"amount":"6"}`, alice, bob), http.StatusUnprocessableEntity, apperror.CodeInsufficientFunds},
		{"zero amount", http.MethodPost, "/api/v1/transfers",
			fmt.Sprintf(`{"from":%q,"to":%q,"amount":"0"}`, alice, bob), http.StatusBadRequest, apperror.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, r, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, decode(t, w)["code"])
		})
	}
}

func TestRouter_MetaTargets(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/v1/meta/targets/"+ledger.TargetTransfer, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["transactional"])

	w = doJSON(t, r, http.MethodGet, "/api/v1/meta/targets", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, len(ledger.Targets()), decode(t, w)["totalCount"])

	w = doJSON(t, r, http.MethodGet, "/api/v1/meta/targets/unknown", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_Metrics(t *testing.T) {
	r := newTestRouter(t)
	openAccount(t, r, "alice", "1")

	w := doJSON(t, r, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `txchain_transactions_total{outcome="committed"} 1`)
	assert.Contains(t, w.Body.String(), "txchain_invocation_duration_seconds")
}

func TestRouter_RequestIDAndFlow(t *testing.T) {
	r := newTestRouter(t)

	var flows []string
	r.GET("/flow-id", func(c *gin.Context) {
		flows = append(flows, flow.GetID(c.Request.Context()))
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/flow-id", nil)
	req.Header.Set(middleware.HeaderRequestID, "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-1", w.Header().Get(middleware.HeaderRequestID))
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderTraceID))

	doJSON(t, r, http.MethodGet, "/flow-id", "")

	require.Len(t, flows, 2)
	assert.NotEmpty(t, flows[0])
	assert.NotEqual(t, flows[0], flows[1], "every request gets its own flow")
}

func TestRouter_PanicRecovered(t *testing.T) {
	r := newTestRouter(t)
	r.GET("/boom", func(*gin.Context) { panic("boom") })

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set(middleware.HeaderRequestID, "req-boom")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, apperror.CodeInternal, body.Code)
	assert.Equal(t, "req-boom", body.Details["request_id"])
	assert.NotContains(t, w.Body.String(), "panic: boom", "cause must not leak")
}

func TestRouter_ErrorResponseShape(t *testing.T) {
	r := newTestRouter(t)
	r.GET("/dup", func(c *gin.Context) {
		_ = c.Error(apperror.NewDuplicate("account", "id", "a-1").WithCause(fmt.Errorf("unique violation")))
	})

	w := doJSON(t, r, http.MethodGet, "/dup", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	var body dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, apperror.CodeDuplicate, body.Code)
	assert.Equal(t, "a-1", body.Details["value"])
	assert.NotContains(t, w.Body.String(), "unique violation")
}

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/holdpay/holdpay/internal/clock"
	"github.com/holdpay/holdpay/internal/config"
	"github.com/holdpay/holdpay/internal/guard"
	"github.com/holdpay/holdpay/internal/identity"
	"github.com/holdpay/holdpay/internal/migration"
	obsmetrics "github.com/holdpay/holdpay/internal/observability/metrics"
	"github.com/holdpay/holdpay/internal/outbox"
	paymentrepo "github.com/holdpay/holdpay/internal/payment/repository"
	paymentservice "github.com/holdpay/holdpay/internal/payment/service"
	refundrepo "github.com/holdpay/holdpay/internal/refund/repository"
	refundservice "github.com/holdpay/holdpay/internal/refund/service"
	"github.com/holdpay/holdpay/internal/server"
	tokenservice "github.com/holdpay/holdpay/internal/token/service"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testEnv struct {
	httpSrv *httptest.Server
	db      *gorm.DB
}

func startEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, migration.Run(db))

	fakeClock := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	cfg := config.Config{SpenderID: "holdpay-engine", RateLimitPerSecond: 25, RateLimitBurst: 50}
	seed := "alice-token=alice,shop-token=shop,admin-token=admin"
	require.NoError(t, migration.SeedTokens(context.Background(), db, seed, fakeClock))

	node, err := outbox.NewNode()
	require.NoError(t, err)
	bus := outbox.NewBus()
	emitter := outbox.NewEmitter(outbox.Params{
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fakeClock,
		Bus:   bus,
	})
	g := guard.New(guard.Params{
		DB:   db,
		Log:  zap.NewNop(),
		Auth: identity.NewAuthenticator(),
	})
	policy := config.NewStaticPolicyHolder(config.DefaultPolicy())

	tokens := tokenservice.New(tokenservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		Cfg:   cfg,
		Clock: fakeClock,
	})
	payments := paymentservice.New(paymentservice.Params{
		DB:     db,
		Log:    zap.NewNop(),
		Clock:  fakeClock,
		Policy: policy,
		Guard:  g,
		Outbox: emitter,
		Repo:   paymentrepo.Provide(),
	})
	refunds := refundservice.New(refundservice.Params{
		DB:         db,
		Log:        zap.NewNop(),
		Clock:      fakeClock,
		Policy:     policy,
		Guard:      g,
		Outbox:     emitter,
		Transferor: tokens,
		Repo:       refundrepo.Provide(),
	})

	engine := server.NewEngine(obsmetrics.NewRegistry())
	srv := server.NewServer(server.ServerParams{
		Gin:        engine,
		Cfg:        cfg,
		Log:        zap.NewNop(),
		Resolver:   identity.NewResolver(db),
		Guard:      g,
		PaymentSvc: payments,
		RefundSvc:  refunds,
		TokenSvc:   tokens,
	})

	httpSrv := httptest.NewServer(srv.Engine())
	t.Cleanup(httpSrv.Close)

	return &testEnv{httpSrv: httpSrv, db: db}
}

type apiResponse struct {
	status int
	body   map[string]any
}

func (e *testEnv) do(t *testing.T, method, path, token string, payload any) apiResponse {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, e.httpSrv.URL+path, body)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("X-Api-Token", token)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	decoded := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), "body: %s", raw)
	}

	return apiResponse{status: resp.StatusCode, body: decoded}
}

func data(resp apiResponse) map[string]any {
	d, _ := resp.body["data"].(map[string]any)
	return d
}

func errorCode(resp apiResponse) int {
	e, _ := resp.body["error"].(map[string]any)
	code, _ := e["code"].(float64)
	return int(code)
}

func TestHealthAndMetrics(t *testing.T) {
	env := startEnv(t)

	resp, err := http.Get(env.httpSrv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(env.httpSrv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPaymentLifecycleOverHTTP(t *testing.T) {
	env := startEnv(t)

	// Anonymous and unknown-token callers are turned away at the door.
	resp := env.do(t, http.MethodPost, "/v1/payments", "", map[string]any{})
	require.Equal(t, http.StatusUnauthorized, resp.status)
	resp = env.do(t, http.MethodPost, "/v1/payments", "bogus-token", map[string]any{})
	require.Equal(t, http.StatusUnauthorized, resp.status)

	resp = env.do(t, http.MethodPost, "/v1/admin/initialize", "admin-token", map[string]any{"admin": "admin"})
	require.Equal(t, http.StatusCreated, resp.status)

	// Initialization is single-shot.
	resp = env.do(t, http.MethodPost, "/v1/admin/initialize", "admin-token", map[string]any{"admin": "other"})
	require.Equal(t, http.StatusConflict, resp.status)

	resp = env.do(t, http.MethodPost, "/v1/payments", "alice-token", map[string]any{
		"customer": "alice",
		"merchant": "shop",
		"amount":   "1000",
		"token":    "usdc",
	})
	require.Equal(t, http.StatusCreated, resp.status)
	require.Equal(t, float64(1), data(resp)["id"])

	resp = env.do(t, http.MethodGet, "/v1/payments/1", "", nil)
	require.Equal(t, http.StatusOK, resp.status)
	require.Equal(t, "pending", data(resp)["status"])

	// Merchants cannot complete; only the admin can.
	resp = env.do(t, http.MethodPost, "/v1/payments/1/complete", "shop-token", nil)
	require.Equal(t, http.StatusForbidden, resp.status)
	require.Equal(t, 4, errorCode(resp))

	resp = env.do(t, http.MethodPost, "/v1/payments/1/complete", "admin-token", nil)
	require.Equal(t, http.StatusOK, resp.status)
	require.Equal(t, "completed", data(resp)["status"])

	resp = env.do(t, http.MethodPost, "/v1/payments/1/complete", "admin-token", nil)
	require.Equal(t, http.StatusConflict, resp.status)
	require.Equal(t, 3, errorCode(resp))

	resp = env.do(t, http.MethodGet, "/v1/customers/alice/payments?limit=10", "", nil)
	require.Equal(t, http.StatusOK, resp.status)

	resp = env.do(t, http.MethodGet, "/v1/merchants/shop/payments/count", "", nil)
	require.Equal(t, http.StatusOK, resp.status)
	require.Equal(t, float64(1), data(resp)["count"])

	resp = env.do(t, http.MethodGet, "/v1/payments/42", "", nil)
	require.Equal(t, http.StatusNotFound, resp.status)
	require.Equal(t, 1, errorCode(resp))
}

func TestRefundSettlementOverHTTP(t *testing.T) {
	env := startEnv(t)

	resp := env.do(t, http.MethodPost, "/v1/admin/initialize", "admin-token", map[string]any{"admin": "admin"})
	require.Equal(t, http.StatusCreated, resp.status)

	resp = env.do(t, http.MethodPost, "/v1/payments", "alice-token", map[string]any{
		"customer": "alice",
		"merchant": "shop",
		"amount":   "1000",
		"token":    "usdc",
	})
	require.Equal(t, http.StatusCreated, resp.status)

	resp = env.do(t, http.MethodPost, "/v1/tokens/mint", "admin-token", map[string]any{
		"token":  "usdc",
		"to":     "shop",
		"amount": "10000",
	})
	require.Equal(t, http.StatusOK, resp.status)

	resp = env.do(t, http.MethodPost, "/v1/refunds", "shop-token", map[string]any{
		"payment_id": 1,
		"customer":   "alice",
		"amount":     "1000",
		"token":      "usdc",
		"reason":     "damaged goods",
	})
	require.Equal(t, http.StatusCreated, resp.status)
	require.Equal(t, float64(1), data(resp)["id"])

	resp = env.do(t, http.MethodPost, "/v1/refunds/1/approve", "admin-token", nil)
	require.Equal(t, http.StatusOK, resp.status)
	require.Equal(t, "approved", data(resp)["status"])

	// No allowance yet: settlement fails and the refund stays approved.
	resp = env.do(t, http.MethodPost, "/v1/refunds/1/process", "admin-token", nil)
	require.Equal(t, http.StatusUnprocessableEntity, resp.status)
	require.Equal(t, 5, errorCode(resp))

	resp = env.do(t, http.MethodGet, "/v1/refunds/1", "", nil)
	require.Equal(t, http.StatusOK, resp.status)
	require.Equal(t, "approved", data(resp)["status"])

	resp = env.do(t, http.MethodPost, "/v1/tokens/approve", "shop-token", map[string]any{
		"token":  "usdc",
		"amount": "1000",
	})
	require.Equal(t, http.StatusOK, resp.status)

	resp = env.do(t, http.MethodPost, "/v1/refunds/1/process", "admin-token", nil)
	require.Equal(t, http.StatusOK, resp.status)
	require.Equal(t, "processed", data(resp)["status"])

	resp = env.do(t, http.MethodGet, "/v1/tokens/usdc/balances/shop", "", nil)
	require.Equal(t, http.StatusOK, resp.status)
	require.Equal(t, "9000", data(resp)["balance"])

	resp = env.do(t, http.MethodGet, "/v1/tokens/usdc/balances/alice", "", nil)
	require.Equal(t, http.StatusOK, resp.status)
	require.Equal(t, "1000", data(resp)["balance"])

	resp = env.do(t, http.MethodGet, "/v1/tokens/usdc/allowances/shop", "", nil)
	require.Equal(t, http.StatusOK, resp.status)
	require.Equal(t, "0", data(resp)["allowance"])

	// Processing again: no longer approved.
	resp = env.do(t, http.MethodPost, "/v1/refunds/1/process", "admin-token", nil)
	require.Equal(t, http.StatusConflict, resp.status)
	require.Equal(t, 6, errorCode(resp))

	resp = env.do(t, http.MethodGet, "/v1/payments/1/refunds/count", "", nil)
	require.Equal(t, http.StatusOK, resp.status)
	require.Equal(t, float64(1), data(resp)["count"])
}

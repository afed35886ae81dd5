package httpserver

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/lobbyrelay/internal/auth"
	"github.com/pscheid92/lobbyrelay/internal/lobby"
	"github.com/pscheid92/lobbyrelay/internal/platform/config"
	"github.com/pscheid92/lobbyrelay/internal/session"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("httpserver-test-secret")

type testServerOptions struct {
	healthChecks []HealthCheck
	clock        clockwork.Clock
	configure    func(*config.Config)
}

type testServerOption func(*testServerOptions)

func withHealthChecks(checks ...HealthCheck) testServerOption {
	return func(o *testServerOptions) { o.healthChecks = checks }
}

func withClock(clock clockwork.Clock) testServerOption {
	return func(o *testServerOptions) { o.clock = clock }
}

func withConfig(fn func(*config.Config)) testServerOption {
	return func(o *testServerOptions) { o.configure = fn }
}

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:                  "test",
		Port:                    "0",
		PublicHost:              "relay.example.com",
		FanOutCapacity:          100,
		FanInCapacity:           100,
		ViewerMinInterval:       100 * time.Millisecond,
		ViewerMaxMessageBytes:   1000,
		MalformedPayloadPolicy:  "close",
		MaxWebSocketConnections: 100,
		MaxConnectionsPerIP:     100,
		LobbyCreateRate:         100,
		LobbyCreateBurst:        100,
		AllowedOrigins:          "*",
		ShutdownTimeout:         time.Second,
	}
}

func newTestServer(t *testing.T, opts ...testServerOption) (*Server, *lobby.Registry) {
	t.Helper()

	o := testServerOptions{clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(&o)
	}

	cfg := testConfig()
	if o.configure != nil {
		o.configure(cfg)
	}

	registry := lobby.NewRegistry(cfg.FanOutCapacity, cfg.FanInCapacity)
	sessionConfig := session.Config{
		Clock:           o.clock,
		Verifier:        auth.NewTokenVerifier(testSecret, o.clock),
		MinInterval:     cfg.ViewerMinInterval,
		MaxMessageBytes: cfg.ViewerMaxMessageBytes,
		MalformedPolicy: session.MalformedClose,
	}

	srv := NewServer(cfg, registry, sessionConfig, prometheus.NewRegistry(), o.healthChecks)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv, registry
}

// serve exposes srv over a real listener for WebSocket tests.
func serve(t *testing.T, srv *Server) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(srv.echo)
	t.Cleanup(ts.Close)
	return ts
}

func wsURL(ts *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + path
}

func dial(t *testing.T, ts *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, path), nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// dialStatus attempts an upgrade that is expected to fail and returns the HTTP status.
func dialStatus(t *testing.T, ts *httptest.Server, path string) int {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, path), nil)
	if conn != nil {
		_ = conn.Close()
	}
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	return resp.StatusCode
}

func signToken(t *testing.T, userID string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(testSecret)
	require.NoError(t, err)
	return signed
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	return string(data)
}

func doRequest(srv *Server, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = testRemoteAddr
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/lobbyrelay/internal/adapter/metrics"
	"github.com/pscheid92/lobbyrelay/internal/domain"
	"github.com/pscheid92/lobbyrelay/internal/lobby"
	"github.com/pscheid92/lobbyrelay/internal/platform/config"
	"github.com/pscheid92/lobbyrelay/internal/relay"
	"github.com/pscheid92/lobbyrelay/internal/session"
)

type lobbyRegistry interface {
	Create(name domain.LobbyName) (domain.CapabilityKey, error)
	PairAsProducer(name domain.LobbyName, key domain.CapabilityKey) (*relay.Pair, error)
	AttachAsViewer(name domain.LobbyName) (*relay.ViewerHandle, error)
	Remove(name domain.LobbyName)
	Stats() lobby.Stats
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	registry      lobbyRegistry
	sessionConfig session.Config
	upgrader      websocket.Upgrader
	limits        *ConnectionLimits

	promRegistry *prometheus.Registry
	httpMetrics  *metrics.HTTPMetrics
	wsMetrics    *metrics.WebSocketMetrics
	healthChecks []HealthCheck
	clock        clockwork.Clock
	startTime    time.Time

	// Sessions outlive their HTTP request; they hang off baseCtx instead.
	baseCtx        context.Context
	cancelSessions context.CancelFunc
	mu             sync.Mutex
	closing        bool
	sessions       sync.WaitGroup
}

func NewServer(cfg *config.Config, registry lobbyRegistry, sessionConfig session.Config, promRegistry *prometheus.Registry, healthChecks []HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newRequestValidator()

	clock := sessionConfig.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
		sessionConfig.Clock = clock
	}

	baseCtx, cancel := context.WithCancel(context.Background())

	srv := &Server{
		echo:          e,
		config:        cfg,
		registry:      registry,
		sessionConfig: sessionConfig,
		upgrader: websocket.Upgrader{
			CheckOrigin: newCheckOrigin(cfg.Origins()),
		},
		limits:         NewConnectionLimits(int64(cfg.MaxWebSocketConnections), cfg.MaxConnectionsPerIP),
		promRegistry:   promRegistry,
		healthChecks:   healthChecks,
		clock:          clock,
		startTime:      clock.Now(),
		baseCtx:        baseCtx,
		cancelSessions: cancel,
	}
	if promRegistry != nil {
		srv.httpMetrics = metrics.NewHTTPMetrics(promRegistry)
		srv.wsMetrics = metrics.NewWebSocketMetrics(promRegistry)
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests, then ends every running session with
// a going-away close and waits for them until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	err := s.echo.Shutdown(ctx)
	s.cancelSessions()

	drained := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-ctx.Done():
		return fmt.Errorf("failed to drain sessions: %w", ctx.Err())
	}

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// trackSession registers a running session. It fails once Shutdown began.
func (s *Server) trackSession() (func(), bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closing {
		return nil, false
	}
	s.sessions.Add(1)
	return s.sessions.Done, true
}

func (s *Server) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

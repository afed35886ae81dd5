package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pscheid92/lobbyrelay/internal/adapter/metrics"
)

func (s *Server) registerRoutes() {
	s.echo.Use(correlationMiddleware)
	s.echo.Use(s.setupRequestLoggerMiddleware())
	s.echo.Use(middleware.Recover())
	s.echo.Use(ErrorHandlingMiddleware(s.httpMetrics))
	s.echo.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            63072000, // 2 years; only sent over HTTPS
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		ReferrerPolicy:        "no-referrer",
	}))
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  s.config.Origins(),
		AllowMethods:  []string{http.MethodGet, http.MethodPost},
		ExposeHeaders: []string{echo.HeaderLocation},
	}))
	if s.httpMetrics != nil {
		s.echo.Use(s.httpMetrics.Middleware())
	}

	s.echo.GET("/", s.handleLanding)

	s.registerHealthRoutes()
	s.registerLobbyRoutes()

	if s.promRegistry != nil {
		s.echo.GET("/metrics", echo.WrapHandler(metrics.Handler(s.promRegistry)))
	}
}

func (s *Server) registerLobbyRoutes() {
	createLimiter := newRateLimiter(s.config.LobbyCreateRate, s.config.LobbyCreateBurst)

	s.echo.POST("/lobby/new", s.handleCreateLobby, createLimiter)
	s.echo.GET("/lobby/connect/streamer", s.handleConnectStreamer)
	s.echo.GET("/lobby/connect", s.handleConnectViewer)
}

func (s *Server) handleLanding(c echo.Context) error {
	return c.String(http.StatusOK, "I am online!")
}

func (s *Server) setupRequestLoggerMiddleware() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			slog.InfoContext(c.Request().Context(), "Request", attrs...)
			return nil
		},
	})
}

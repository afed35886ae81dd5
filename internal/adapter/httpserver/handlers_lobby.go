package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/lobbyrelay/internal/domain"
	"github.com/pscheid92/lobbyrelay/internal/platform/correlation"
	apperrors "github.com/pscheid92/lobbyrelay/internal/platform/errors"
	"github.com/pscheid92/lobbyrelay/internal/session"
)

// handleCreateLobby registers a lobby and hands its capability key to the
// caller, both as the body and inside the streamer connect URL.
func (s *Server) handleCreateLobby(c echo.Context) error {
	params := lobbyParams{User: c.QueryParam("user")}
	if err := c.Validate(params); err != nil {
		return err
	}

	name := domain.LobbyName(params.User)
	key, err := s.registry.Create(name)
	if err != nil {
		return apperrors.FromDomain(err).WithField("lobby", params.User)
	}

	slog.InfoContext(c.Request().Context(), "Lobby created", "lobby", name)

	c.Response().Header().Set(echo.HeaderLocation, s.streamerURL(name, key))
	if err := c.String(http.StatusCreated, string(key)); err != nil {
		return fmt.Errorf("failed to write lobby key: %w", err)
	}
	return nil
}

func (s *Server) streamerURL(name domain.LobbyName, key domain.CapabilityKey) string {
	return "ws://" + s.config.PublicHost + "/lobby/connect/streamer?user=" +
		url.QueryEscape(string(name)) + "&key=" + url.QueryEscape(string(key))
}

// handleConnectStreamer claims the producer slot, then upgrades. Every
// rejection happens before the upgrade so the client sees a plain HTTP status.
func (s *Server) handleConnectStreamer(c echo.Context) error {
	params := streamerParams{User: c.QueryParam("user"), Key: c.QueryParam("key")}
	if err := c.Validate(params); err != nil {
		s.wsMetrics.Rejected(string(domain.RoleStreamer), "invalid_request")
		return err
	}

	release, err := s.acquireConnection(c, domain.RoleStreamer)
	if err != nil {
		return err
	}
	defer release()

	name := domain.LobbyName(params.User)
	pair, err := s.registry.PairAsProducer(name, domain.CapabilityKey(params.Key))
	if err != nil {
		s.wsMetrics.Rejected(string(domain.RoleStreamer), rejectionReason(err))
		return apperrors.FromDomain(err).WithField("lobby", params.User)
	}

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.registry.Remove(name)
		slog.InfoContext(c.Request().Context(), "Streamer upgrade failed", "lobby", name, "error", err)
		return nil
	}

	done, ok := s.trackSession()
	if !ok {
		s.registry.Remove(name)
		_ = conn.Close()
		return nil
	}
	defer done()
	defer s.wsMetrics.Connected(string(domain.RoleStreamer))()

	ctx := s.sessionContext(c, domain.RoleStreamer)
	_ = session.NewStreamer(s.sessionConfig, name, conn, pair, s.registry).Run(ctx)
	return nil
}

// handleConnectViewer attaches a viewer to a lobby whose streamer is connected.
func (s *Server) handleConnectViewer(c echo.Context) error {
	params := lobbyParams{User: c.QueryParam("user")}
	if err := c.Validate(params); err != nil {
		s.wsMetrics.Rejected(string(domain.RoleViewer), "invalid_request")
		return err
	}

	release, err := s.acquireConnection(c, domain.RoleViewer)
	if err != nil {
		return err
	}
	defer release()

	name := domain.LobbyName(params.User)
	handle, err := s.registry.AttachAsViewer(name)
	if err != nil {
		s.wsMetrics.Rejected(string(domain.RoleViewer), rejectionReason(err))
		return apperrors.FromDomain(err).WithField("lobby", params.User)
	}

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		handle.Detach()
		slog.DebugContext(c.Request().Context(), "Viewer upgrade failed", "lobby", name, "error", err)
		return nil
	}

	done, ok := s.trackSession()
	if !ok {
		handle.Detach()
		_ = conn.Close()
		return nil
	}
	defer done()
	defer s.wsMetrics.Connected(string(domain.RoleViewer))()

	ctx := s.sessionContext(c, domain.RoleViewer)
	_ = session.NewViewer(s.sessionConfig, name, conn, handle).Run(ctx)
	return nil
}

// acquireConnection applies the global and per-IP caps.
func (s *Server) acquireConnection(c echo.Context, role domain.Role) (func(), error) {
	if s.isClosing() {
		s.wsMetrics.Rejected(string(role), "shutting_down")
		return nil, apperrors.UnavailableError("Server is shutting down")
	}

	ip := c.RealIP()
	ok, reason := s.limits.Acquire(ip)
	if !ok {
		s.wsMetrics.Rejected(string(role), string(reason))
		return nil, apperrors.UnavailableError("Too many connections").WithField("reason", string(reason))
	}
	return func() { s.limits.Release(ip) }, nil
}

// sessionContext detaches the session from the request while keeping its
// correlation ID for logging.
func (s *Server) sessionContext(c echo.Context, role domain.Role) context.Context {
	ctx := s.baseCtx
	if id, ok := correlation.ID(c.Request().Context()); ok {
		ctx = correlation.WithID(ctx, id)
	}
	return correlation.WithAttrs(ctx, slog.String("role", string(role)))
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrLobbyNotFound):
		return "lobby_not_found"
	case errors.Is(err, domain.ErrStreamerNotConnected):
		return "streamer_not_connected"
	case errors.Is(err, domain.ErrInvalidKey):
		return "invalid_key"
	case errors.Is(err, domain.ErrStreamerConnected):
		return "streamer_connected"
	default:
		return "internal"
	}
}

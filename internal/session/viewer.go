package session

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/pscheid92/lobbyrelay/internal/auth"
	"github.com/pscheid92/lobbyrelay/internal/domain"
	"github.com/pscheid92/lobbyrelay/internal/ratelimit"
	"github.com/pscheid92/lobbyrelay/internal/relay"
)

// Viewer is one consumer attached to a lobby.
type Viewer struct {
	*link
	name     domain.LobbyName
	handle   *relay.ViewerHandle
	limiter  *ratelimit.IntervalLimiter
	auth     *auth.Authenticator
	policy   MalformedPolicy
	recorder Recorder
	maxBytes int
}

// NewViewer binds an attached viewer handle to the viewer's connection.
func NewViewer(cfg Config, name domain.LobbyName, connection Conn, handle *relay.ViewerHandle) *Viewer {
	cfg = cfg.withDefaults()
	return &Viewer{
		link:     newLink(connection, cfg.Clock),
		name:     name,
		handle:   handle,
		limiter:  ratelimit.NewIntervalLimiter(cfg.Clock, cfg.MinInterval),
		auth:     auth.NewAuthenticator(cfg.Verifier, cfg.MaxMessageBytes),
		policy:   cfg.MalformedPolicy,
		recorder: cfg.Recorder,
		maxBytes: cfg.MaxMessageBytes,
	}
}

// Run relays until the viewer leaves, the streamer leaves, or ctx is cancelled.
func (v *Viewer) Run(ctx context.Context) error {
	defer v.handle.Detach()

	slog.DebugContext(ctx, "Viewer connected", "lobby", v.name)
	if err := v.run(ctx, v.downstreamPump, v.upstreamPump); err != nil {
		slog.InfoContext(ctx, "Viewer connection failed", "lobby", v.name, "error", err)
		return err
	}
	slog.DebugContext(ctx, "Viewer disconnected", "lobby", v.name)
	return nil
}

// downstreamPump forwards streamer frames to the viewer. A lagging viewer
// loses the overwritten frames and carries on.
func (v *Viewer) downstreamPump(ctx context.Context) error {
	for {
		msg, err := v.handle.Next(ctx)
		if lagged, ok := errors.AsType[*relay.LaggedError](err); ok {
			v.recorder.Dropped(DropLagged, lagged.Skipped)
			slog.DebugContext(ctx, "Viewer lagged", "lobby", v.name, "skipped", lagged.Skipped)
			continue
		}
		if errors.Is(err, relay.ErrClosed) {
			v.reason.set(websocket.CloseNormalClosure, "streamer disconnected")
			return nil
		}
		if err != nil {
			return quiet(ctx, err)
		}

		if err := v.writer.send(ctx, msg); err != nil {
			return quiet(ctx, err)
		}
		v.recorder.Relayed(Downstream)
	}
}

// upstreamPump filters viewer frames through the rate limiter and the
// authenticator before they reach the streamer.
func (v *Viewer) upstreamPump(ctx context.Context) error {
	for {
		messageType, data, ok, err := v.read(ctx, v.maxBytes)
		if !ok {
			return err
		}

		if !v.limiter.Allow() {
			v.recorder.Dropped(DropRateLimited, 1)
			continue
		}

		verdict, err := v.auth.Process(relay.Message{Type: messageType, Data: data})
		if err != nil {
			if v.onMalformed(ctx, err) {
				return nil
			}
			continue
		}
		v.record(ctx, verdict)
		if !verdict.Forward {
			continue
		}

		err = v.handle.Send(ctx, verdict.Message)
		switch {
		case err == nil:
			v.recorder.Relayed(Upstream)
		case errors.Is(err, relay.ErrClosed):
			// The downstream pump ends the session once it drains.
		default:
			return quiet(ctx, err)
		}
	}
}

// onMalformed applies the malformed payload policy and reports whether the
// session must end.
func (v *Viewer) onMalformed(ctx context.Context, err error) bool {
	v.recorder.Dropped(DropMalformed, 1)
	if v.policy == MalformedDrop {
		slog.DebugContext(ctx, "Dropped malformed payload", "lobby", v.name, "error", err)
		return false
	}
	slog.InfoContext(ctx, "Closing viewer on malformed payload", "lobby", v.name, "error", err)
	v.reason.set(websocket.CloseUnsupportedData, "malformed payload")
	return true
}

func (v *Viewer) record(ctx context.Context, verdict auth.Verdict) {
	if verdict.AuthErr != nil {
		v.recorder.Auth("failure")
		slog.DebugContext(ctx, "Viewer authentication failed", "lobby", v.name, "error", verdict.AuthErr)
	}

	switch verdict.Reason {
	case auth.ReasonAuthenticated:
		v.recorder.Auth("success")
		identity, _ := v.auth.Identity()
		slog.InfoContext(ctx, "Viewer authenticated", "lobby", v.name, "user_id", identity.UserID)
	case auth.ReasonOversized:
		v.recorder.Dropped(DropOversized, 1)
	case auth.ReasonUnauthenticated:
		v.recorder.Dropped(DropUnauthenticated, 1)
	}
}

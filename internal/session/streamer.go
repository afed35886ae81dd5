package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pscheid92/lobbyrelay/internal/domain"
	"github.com/pscheid92/lobbyrelay/internal/relay"
)

// LobbyRemover releases a lobby when its streamer leaves.
type LobbyRemover interface {
	Remove(name domain.LobbyName)
}

// Streamer is the producer side of a lobby.
type Streamer struct {
	*link
	name     domain.LobbyName
	pair     *relay.Pair
	registry LobbyRemover
	recorder Recorder
}

// NewStreamer binds a paired lobby to the producer's connection.
func NewStreamer(cfg Config, name domain.LobbyName, connection Conn, pair *relay.Pair, registry LobbyRemover) *Streamer {
	cfg = cfg.withDefaults()
	return &Streamer{
		link:     newLink(connection, cfg.Clock),
		name:     name,
		pair:     pair,
		registry: registry,
		recorder: cfg.Recorder,
	}
}

// Run relays until the producer disconnects or ctx is cancelled. On return
// the lobby is removed from the registry, which disconnects every viewer.
func (s *Streamer) Run(ctx context.Context) error {
	defer s.registry.Remove(s.name)

	slog.InfoContext(ctx, "Streamer connected", "lobby", s.name)
	if err := s.run(ctx, s.readPump, s.writePump); err != nil {
		slog.InfoContext(ctx, "Streamer connection failed", "lobby", s.name, "error", err)
		return err
	}
	slog.InfoContext(ctx, "Streamer disconnected", "lobby", s.name, "viewers", s.pair.Viewers())
	return nil
}

// readPump publishes every producer frame to the viewers.
func (s *Streamer) readPump(ctx context.Context) error {
	for {
		messageType, data, ok, err := s.read(ctx, 0)
		if !ok {
			return err
		}

		_, err = s.pair.Publish(relay.Message{Type: messageType, Data: data})
		switch {
		case err == nil:
			s.recorder.Relayed(Downstream)
		case errors.Is(err, relay.ErrNoSubscribers):
		case errors.Is(err, relay.ErrClosed):
			return nil
		default:
			return fmt.Errorf("publish: %w", err)
		}
	}
}

// writePump delivers viewer frames to the producer in arrival order.
func (s *Streamer) writePump(ctx context.Context) error {
	inbound := s.pair.Inbound()
	for {
		msg, err := inbound.Receive(ctx)
		if err != nil {
			if errors.Is(err, relay.ErrClosed) {
				return nil
			}
			return quiet(ctx, err)
		}
		if err := s.writer.send(ctx, msg); err != nil {
			return quiet(ctx, err)
		}
	}
}

package lobby

import (
	"crypto/subtle"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pscheid92/lobbyrelay/internal/domain"
	"github.com/pscheid92/lobbyrelay/internal/relay"
	"github.com/samber/lo"
)

// Lobby is one game session: the key that claims it and, while a streamer
// is attached, its relay pair.
type Lobby struct {
	key  domain.CapabilityKey
	pair *relay.Pair
}

// Stats is a point-in-time summary of the registry.
type Stats struct {
	Lobbies int
	Paired  int
}

// Registry maps lobby names to lobbies.
type Registry struct {
	mu             sync.RWMutex
	lobbies        map[domain.LobbyName]*Lobby
	fanOutCapacity int
	fanInCapacity  int
	newKey         func() domain.CapabilityKey
}

// NewRegistry creates an empty registry. Pairs it installs use the given bounds.
func NewRegistry(fanOutCapacity, fanInCapacity int) *Registry {
	return &Registry{
		lobbies:        make(map[domain.LobbyName]*Lobby),
		fanOutCapacity: fanOutCapacity,
		fanInCapacity:  fanInCapacity,
		newKey: func() domain.CapabilityKey {
			return domain.CapabilityKey(uuid.NewString())
		},
	}
}

// Create registers a new lobby and returns the key required to claim it.
func (r *Registry) Create(name domain.LobbyName) (domain.CapabilityKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.lobbies[name]; exists {
		return "", fmt.Errorf("create lobby %q: %w", name, domain.ErrLobbyExists)
	}

	key := r.newKey()
	r.lobbies[name] = &Lobby{key: key}
	return key, nil
}

// PairAsProducer validates key and installs a fresh relay pair for the
// lobby. Lookup, check and install happen under one write lock, so at most
// one streamer can ever succeed per lobby lifetime.
func (r *Registry) PairAsProducer(name domain.LobbyName, key domain.CapabilityKey) (*relay.Pair, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.lobbies[name]
	if !ok {
		return nil, fmt.Errorf("pair lobby %q: %w", name, domain.ErrLobbyNotFound)
	}
	if subtle.ConstantTimeCompare([]byte(key), []byte(l.key)) != 1 {
		return nil, fmt.Errorf("pair lobby %q: %w", name, domain.ErrInvalidKey)
	}
	if l.pair != nil {
		return nil, fmt.Errorf("pair lobby %q: %w", name, domain.ErrStreamerConnected)
	}

	l.pair = relay.NewPair(r.fanOutCapacity, r.fanInCapacity)
	return l.pair, nil
}

// AttachAsViewer subscribes a viewer to the lobby's pair. The subscription is
// taken under the read lock so it cannot race with Remove.
func (r *Registry) AttachAsViewer(name domain.LobbyName) (*relay.ViewerHandle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.lobbies[name]
	if !ok {
		return nil, fmt.Errorf("attach lobby %q: %w", name, domain.ErrLobbyNotFound)
	}
	if l.pair == nil {
		return nil, fmt.Errorf("attach lobby %q: %w", name, domain.ErrStreamerNotConnected)
	}
	return l.pair.Attach(), nil
}

// Remove evicts the lobby and closes its pair, which every attached viewer
// observes as closure. Removing an absent lobby is a no-op.
func (r *Registry) Remove(name domain.LobbyName) {
	r.mu.Lock()
	l, ok := r.lobbies[name]
	delete(r.lobbies, name)
	r.mu.Unlock()

	if ok && l.pair != nil {
		l.pair.Close()
	}
}

// Exists reports whether a lobby is registered under name.
func (r *Registry) Exists(name domain.LobbyName) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.lobbies[name]
	return ok
}

// Stats counts registered lobbies and those with a streamer attached.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lobbies := lo.Values(r.lobbies)
	return Stats{
		Lobbies: len(lobbies),
		Paired:  lo.CountBy(lobbies, func(l *Lobby) bool { return l.pair != nil }),
	}
}

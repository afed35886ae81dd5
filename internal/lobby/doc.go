// Package lobby holds the registry of active lobbies.
//
// A lobby is created with a capability key, claimed once by a streamer (which
// installs its relay.Pair), joined by any number of viewers, and removed when
// the streamer leaves. One RWMutex guards the whole map and is only held for
// bookkeeping, never across connection I/O.
package lobby

// Package domain defines the core vocabulary shared by the relay packages.
//
// Lobby names, capability keys, viewer identities and the sentinel errors
// returned by the lobby registry live here. No implementation code.
package domain

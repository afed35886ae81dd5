package domain

// LobbyName is the caller-chosen key a lobby is registered under.
type LobbyName string

// CapabilityKey is the secret a streamer presents to claim a lobby.
type CapabilityKey string

// Role distinguishes the two sides of a lobby connection.
type Role string

const (
	RoleStreamer Role = "streamer"
	RoleViewer   Role = "viewer"
)

// Identity is the verified user behind a viewer connection.
type Identity struct {
	UserID string
}

package domain

import "errors"

var (
	// ErrLobbyNotFound means no lobby is registered under the name.
	ErrLobbyNotFound = errors.New("lobby not found")
	// ErrStreamerNotConnected means the lobby exists but no streamer has claimed it yet.
	ErrStreamerNotConnected = errors.New("streamer not connected")
	ErrInvalidKey           = errors.New("invalid capability key")
	ErrLobbyExists          = errors.New("lobby already exists")
	ErrStreamerConnected    = errors.New("streamer already connected")
)

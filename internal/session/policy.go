package session

import "fmt"

// MalformedPolicy decides what happens when an authenticated viewer sends a
// frame that is not a JSON object.
type MalformedPolicy string

const (
	// MalformedClose ends the viewer's session with close code 1003.
	MalformedClose MalformedPolicy = "close"
	// MalformedDrop discards the frame and keeps the session open.
	MalformedDrop MalformedPolicy = "drop"
)

// ParseMalformedPolicy accepts "close" or "drop". Empty means close.
func ParseMalformedPolicy(s string) (MalformedPolicy, error) {
	switch MalformedPolicy(s) {
	case "", MalformedClose:
		return MalformedClose, nil
	case MalformedDrop:
		return MalformedDrop, nil
	default:
		return "", fmt.Errorf("unknown malformed payload policy %q", s)
	}
}

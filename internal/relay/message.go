package relay

import "errors"

var (
	// ErrClosed is returned by reads and writes on a closed Topic or Queue.
	ErrClosed = errors.New("relay closed")
	// ErrNoSubscribers is returned by Publish when nobody is listening.
	// The message is discarded; callers treat this as a successful broadcast.
	ErrNoSubscribers = errors.New("no subscribers")
)

// Message is one frame relayed verbatim. Type carries the transport's frame
// type (text or binary) so it can be reproduced on the other side.
type Message struct {
	Type int
	Data []byte
}

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/lobbyrelay/internal/relay"
)

const (
	writeDeadline     = 5 * time.Second
	pingInterval      = 30 * time.Second
	pongDeadline      = 60 * time.Second
	messageBufferSize = 16
)

var errWriterStopped = errors.New("connection writer stopped")

// connWriter owns every data write on a connection. Control frames go
// through WriteControl, which gorilla allows concurrently.
type connWriter struct {
	connection  Conn
	clock       clockwork.Clock
	sendChannel chan relay.Message
	doneChannel chan struct{}
	exited      chan struct{}
	stopOnce    sync.Once
	err         error
}

func newConnWriter(connection Conn, clock clockwork.Clock) *connWriter {
	cw := &connWriter{
		connection:  connection,
		clock:       clock,
		sendChannel: make(chan relay.Message, messageBufferSize),
		doneChannel: make(chan struct{}),
		exited:      make(chan struct{}),
	}
	cw.configurePongHandler()
	go cw.run()
	return cw
}

func (cw *connWriter) run() {
	defer close(cw.exited)

	ticker := cw.clock.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-cw.sendChannel:
			if err := cw.write(msg); err != nil {
				cw.err = err
				return
			}
		case <-ticker.Chan():
			cw.updateWriteDeadline()
			if err := cw.connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				cw.err = fmt.Errorf("write ping: %w", err)
				return
			}
		case <-cw.doneChannel:
			cw.flush()
			return
		}
	}
}

// flush writes whatever is still buffered, giving up on the first error.
func (cw *connWriter) flush() {
	for {
		select {
		case msg := <-cw.sendChannel:
			if err := cw.write(msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (cw *connWriter) write(msg relay.Message) error {
	cw.updateWriteDeadline()
	if err := cw.connection.WriteMessage(msg.Type, msg.Data); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// send queues msg for writing. It waits while the buffer is full.
func (cw *connWriter) send(ctx context.Context, msg relay.Message) error {
	select {
	case <-cw.exited:
		return errWriterStopped
	default:
	}

	select {
	case cw.sendChannel <- msg:
		return nil
	case <-cw.exited:
		return errWriterStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stop flushes buffered messages and waits for the writer to exit.
func (cw *connWriter) stop() {
	cw.stopOnce.Do(func() { close(cw.doneChannel) })
	<-cw.exited
}

// Err reports why the writer exited on its own. Only valid after exit.
func (cw *connWriter) Err() error {
	return cw.err
}

// closeConnection stops the writer, sends a close frame and closes the socket.
func (cw *connWriter) closeConnection(code int, reason string) {
	cw.stop()
	msg := websocket.FormatCloseMessage(code, reason)
	_ = cw.connection.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeDeadline))
	_ = cw.connection.Close()
}

func (cw *connWriter) configurePongHandler() {
	cw.extendReadDeadline()
	cw.connection.SetPongHandler(func(string) error {
		cw.extendReadDeadline()
		return nil
	})
}

// Socket deadlines are checked against the wall clock, never the injected one.
func (cw *connWriter) updateWriteDeadline() {
	_ = cw.connection.SetWriteDeadline(time.Now().Add(writeDeadline))
}

// extendReadDeadline must only be called from the reading goroutine.
func (cw *connWriter) extendReadDeadline() {
	_ = cw.connection.SetReadDeadline(time.Now().Add(pongDeadline))
}

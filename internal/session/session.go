package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/lobbyrelay/internal/auth"
	"golang.org/x/sync/errgroup"
)

// Traffic directions reported to a Recorder.
const (
	Downstream = "downstream"
	Upstream   = "upstream"
)

// Drop reasons reported to a Recorder.
const (
	DropRateLimited     = "rate_limited"
	DropOversized       = "oversized"
	DropUnauthenticated = "unauthenticated"
	DropMalformed       = "malformed"
	DropLagged          = "lagged"
)

// Recorder receives relay traffic counts. *metrics.RelayMetrics implements it.
type Recorder interface {
	Relayed(direction string)
	Dropped(reason string, n uint64)
	Auth(result string)
}

type nopRecorder struct{}

func (nopRecorder) Relayed(string)         {}
func (nopRecorder) Dropped(string, uint64) {}
func (nopRecorder) Auth(string)            {}

const (
	defaultMinInterval     = 100 * time.Millisecond
	defaultMaxMessageBytes = 1000
)

// Config holds what every session needs besides its connection.
type Config struct {
	Clock           clockwork.Clock
	Recorder        Recorder
	Verifier        auth.Verifier
	MinInterval     time.Duration
	MaxMessageBytes int
	MalformedPolicy MalformedPolicy
}

func (c Config) withDefaults() Config {
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Recorder == nil {
		c.Recorder = nopRecorder{}
	}
	if c.MinInterval <= 0 {
		c.MinInterval = defaultMinInterval
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = defaultMaxMessageBytes
	}
	if c.MalformedPolicy == "" {
		c.MalformedPolicy = MalformedClose
	}
	return c
}

// closeReason keeps the first close code any pump asks for.
type closeReason struct {
	once sync.Once
	code int
	text string
}

func (r *closeReason) set(code int, text string) {
	r.once.Do(func() {
		r.code = code
		r.text = text
	})
}

func (r *closeReason) get() (int, string) {
	r.set(websocket.CloseNormalClosure, "")
	return r.code, r.text
}

// link is the connection plumbing shared by both session kinds.
type link struct {
	connection Conn
	writer     *connWriter
	reason     closeReason
}

func newLink(connection Conn, clock clockwork.Clock) *link {
	return &link{
		connection: connection,
		writer:     newConnWriter(connection, clock),
	}
}

// run starts pumps and blocks until all of them return. The first pump to
// return cancels the others. Cancellation of ctx itself closes with 1001.
func (l *link) run(ctx context.Context, pumps ...func(context.Context) error) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	for _, pump := range pumps {
		g.Go(func() error {
			defer cancel()
			return pump(gctx)
		})
	}

	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-l.writer.exited:
			cancel()
		}
		if ctx.Err() != nil {
			l.reason.set(websocket.CloseGoingAway, "server shutting down")
		}
		l.writer.closeConnection(l.reason.get())
		return l.writer.Err()
	})

	return g.Wait()
}

// read returns the next data frame. A nil error with ok false means the
// session is over and nothing went wrong. With a positive limit at most
// limit+1 bytes of the frame are kept and the rest is discarded, so an
// oversized frame still reads as oversized without being buffered whole.
func (l *link) read(ctx context.Context, limit int) (messageType int, data []byte, ok bool, err error) {
	messageType, r, err := l.connection.NextReader()
	if err == nil {
		data, err = readFrame(r, limit)
	}
	if err != nil {
		if ctx.Err() != nil || isPeerGone(err) {
			return 0, nil, false, nil
		}
		return 0, nil, false, err
	}
	l.writer.extendReadDeadline()
	return messageType, data, true, nil
}

func readFrame(r io.Reader, limit int) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, int64(limit)+1))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return nil, err
	}
	return data, nil
}

func isPeerGone(err error) bool {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return true
	}
	return errors.Is(err, websocket.ErrCloseSent)
}

// quiet turns errors caused by the session ending into nil.
func quiet(ctx context.Context, err error) error {
	if err == nil || ctx.Err() != nil || errors.Is(err, errWriterStopped) {
		return nil
	}
	return err
}

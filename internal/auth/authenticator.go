package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pscheid92/lobbyrelay/internal/domain"
	"github.com/pscheid92/lobbyrelay/internal/relay"
)

// ErrMalformedPayload is returned when an authenticated viewer sends a
// message that is not a JSON object.
var ErrMalformedPayload = errors.New("malformed payload")

const userIDField = "userId"

// legacyMarker lets unauthenticated clients that never granted identity
// access still reach the streamer with their own token message.
var legacyMarker = []byte("jwt")

// Verifier validates a signed identity token.
type Verifier interface {
	Verify(token string) (domain.Identity, error)
}

// Reason labels the outcome of processing one message.
type Reason string

const (
	ReasonOversized       Reason = "oversized"
	ReasonAuthenticated   Reason = "authenticated"
	ReasonUnauthenticated Reason = "unauthenticated"
	ReasonLegacy          Reason = "legacy"
	ReasonStamped         Reason = "stamped"
	ReasonMalformed       Reason = "malformed"
)

// Verdict says whether a message goes upstream and in what form.
type Verdict struct {
	Forward bool
	Message relay.Message
	Reason  Reason
	// AuthErr is the verification failure for unauthenticated messages that looked like auth attempts.
	AuthErr error
}

type authMessage struct {
	Token *string `json:"token"`
	JWT   *string `json:"jwt"`
}

// Authenticator is the per-viewer state machine:
// Unauthenticated -> Authenticated(identity). There is no reject state.
type Authenticator struct {
	verifier       Verifier
	maxMessageSize int
	identity       *domain.Identity
}

// NewAuthenticator creates an unauthenticated state machine. Messages longer
// than maxMessageSize bytes are discarded.
func NewAuthenticator(verifier Verifier, maxMessageSize int) *Authenticator {
	return &Authenticator{verifier: verifier, maxMessageSize: maxMessageSize}
}

// Identity returns the verified identity, if any.
func (a *Authenticator) Identity() (domain.Identity, bool) {
	if a.identity == nil {
		return domain.Identity{}, false
	}
	return *a.identity, true
}

// Process applies one message to the state machine. A non-nil error is only
// returned for an authenticated message that cannot be rewritten; what to do
// with it is the caller's decision.
func (a *Authenticator) Process(msg relay.Message) (Verdict, error) {
	if len(msg.Data) > a.maxMessageSize {
		return Verdict{Reason: ReasonOversized}, nil
	}

	if a.identity == nil {
		return a.authenticate(msg), nil
	}

	data, err := stampUserID(msg.Data, a.identity.UserID)
	if err != nil {
		return Verdict{Reason: ReasonMalformed}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	return Verdict{
		Forward: true,
		Message: relay.Message{Type: msg.Type, Data: data},
		Reason:  ReasonStamped,
	}, nil
}

func (a *Authenticator) authenticate(msg relay.Message) Verdict {
	token, ok := parseAuthMessage(msg.Data)

	var authErr error
	if ok {
		identity, err := a.verifier.Verify(token)
		if err == nil {
			a.identity = &identity
			return Verdict{Reason: ReasonAuthenticated}
		}
		authErr = err
	}

	if bytes.Contains(msg.Data, legacyMarker) {
		return Verdict{Forward: true, Message: msg, Reason: ReasonLegacy, AuthErr: authErr}
	}
	return Verdict{Reason: ReasonUnauthenticated, AuthErr: authErr}
}

func parseAuthMessage(data []byte) (string, bool) {
	var m authMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return "", false
	}
	switch {
	case m.Token != nil && *m.Token != "":
		return *m.Token, true
	case m.JWT != nil && *m.JWT != "":
		return *m.JWT, true
	default:
		return "", false
	}
}

// stampUserID sets userId on a JSON object, overwriting any value the client
// sent. Other values keep their bytes apart from insignificant whitespace.
func stampUserID(data []byte, userID string) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	if fields == nil {
		return nil, errors.New("decode message: not an object")
	}

	id, err := marshalUnescaped(userID)
	if err != nil {
		return nil, fmt.Errorf("encode user id: %w", err)
	}
	fields[userIDField] = id

	out, err := marshalUnescaped(fields)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return out, nil
}

// marshalUnescaped is json.Marshal without the HTML escaping of <, > and &.
func marshalUnescaped(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

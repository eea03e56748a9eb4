package chat

import (
	"errors"
	"fmt"
)

// Precondition errors, raised synchronously to the caller and never queued.
var (
	ErrAlreadyConnected = errors.New("chat is already connected")
	ErrNotConnected     = errors.New("chat is not connected")
	ErrSelfWhisper      = errors.New("cannot whisper yourself")
)

// ErrUnexpectedAck is a protocol invariant violation: the server resolved
// more sends than were in flight.
var ErrUnexpectedAck = errors.New("ack received with no message awaiting confirmation")

// InvalidMessageError indicates outbound content outside the [1, 512]
// character-length range. Length counts characters, not bytes.
type InvalidMessageError struct {
	Length int
}

func (e *InvalidMessageError) Error() string {
	return fmt.Sprintf("message length %d outside inclusive range [1, %d]", e.Length, MaxMessageLength)
}

// AnonymousConnectionError indicates an operation that requires
// credentials was attempted on an anonymous connection.
type AnonymousConnectionError struct {
	Op string
}

func (e *AnonymousConnectionError) Error() string {
	return fmt.Sprintf("%s: connection is anonymous, no auth token provided", e.Op)
}

// AnonymousSessionError indicates an operation that requires a session id
// was attempted without one.
type AnonymousSessionError struct {
	Op string
}

func (e *AnonymousSessionError) Error() string {
	return fmt.Sprintf("%s: session is anonymous, no session id provided", e.Op)
}

// InvalidAuthTokenError indicates the auth token failed shape validation.
type InvalidAuthTokenError struct {
	Token string
}

func (e *InvalidAuthTokenError) Error() string {
	return fmt.Sprintf(
		"invalid auth token %q: expected a %d character alphanumeric string; "+
			"disable validation in the config if you believe this is a mistake",
		e.Token, authTokenLength,
	)
}

// PolicyError guards actions with real-world consequences on a live
// public chat. The message is deliberately verbose.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string {
	return e.Reason +
		"\nwhispers reach real people on a live public chat; enable them in the" +
		" config only if you understand the consequences, and expect no sympathy" +
		" if the account gets banned"
}

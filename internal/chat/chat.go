package chat

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/dggchat/internal/api"
	"github.com/vovakirdan/dggchat/internal/proto"
)

// State is the supervisor's connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

const authTokenLength = 64

// Backend is the REST collaborator surface the engine consumes.
type Backend interface {
	UserInfo(ctx context.Context) (*api.Profile, error)
	ChatHistory(ctx context.Context) ([]string, error)
	MessagesUnread(ctx context.Context) (map[string]int, error)
	MessagesInbox(ctx context.Context, user string, count int) ([]api.PrivateMessage, error)
}

// Options configures the chat engine. Feature toggles live here, passed
// in at construction, so the engine carries no ambient state.
type Options struct {
	// URL of the chat websocket, e.g. wss://destiny.gg/ws.
	URL string
	// AuthToken authenticates the connection; empty means anonymous.
	AuthToken string
	// SessionID enables profile and inbox endpoints.
	SessionID string
	// ValidateAuthToken checks the token's shape before use.
	ValidateAuthToken bool
	// HandleHistory replays the most recent messages before connecting.
	HandleHistory bool
	// HandleUnreadWhispers replays unread whispers before connecting.
	HandleUnreadWhispers bool
	// MarkAsRead marks a whisper read in the backend after handling it.
	MarkAsRead bool
	// EnableWhispers allows sending whispers to eligible users.
	EnableWhispers bool
	// ReconnectDelay spaces automatic reconnection attempts.
	ReconnectDelay time.Duration
	// BootstrapWait is the grace period Connect allows the transport.
	BootstrapWait time.Duration
	// Throttle tunes the outbound send throttle.
	Throttle ThrottleConfig
}

// Chat supervises the websocket lifecycle and glues the inbound frame
// path to the dispatcher and the outbound path to the throttle.
type Chat struct {
	opts       Options
	log        *zerolog.Logger
	backend    Backend
	dispatcher *Dispatcher
	throttle   *Throttle

	mu          sync.Mutex
	state       State
	conn        *websocket.Conn
	cancel      context.CancelFunc
	done        chan struct{}
	profile     *api.Profile
	whisperable map[string]struct{}
}

// New builds a chat engine. The backend may be nil for a purely
// anonymous, read-only connection.
func New(opts Options, backend Backend, logger *zerolog.Logger) (*Chat, error) {
	if opts.AuthToken != "" && opts.ValidateAuthToken && !AuthTokenIsValid(opts.AuthToken) {
		return nil, &InvalidAuthTokenError{Token: opts.AuthToken}
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.BootstrapWait <= 0 {
		opts.BootstrapWait = DefaultBootstrapWait
	}

	c := &Chat{
		opts:        opts,
		log:         logger,
		backend:     backend,
		dispatcher:  NewDispatcher(logger),
		whisperable: make(map[string]struct{}),
	}
	c.throttle = NewThrottle(opts.Throttle, c.writeFrame, logger)
	return c, nil
}

// AuthTokenIsValid reports whether token has the expected shape: a
// 64 character alphanumeric string.
func AuthTokenIsValid(token string) bool {
	if len(token) != authTokenLength {
		return false
	}
	for _, r := range token {
		if !isAlnum(r) {
			return false
		}
	}
	return true
}

func isAlnum(r rune) bool {
	return r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'
}

// MessageIsValid reports whether outbound content has length, counted
// in characters, in the inclusive range [1, MaxMessageLength].
func MessageIsValid(msg string) bool {
	n := utf8.RuneCountInString(msg)
	return n > 0 && n <= MaxMessageLength
}

// On registers a handler for an event kind in the primary table.
func (c *Chat) On(kind proto.Kind, h Handler) {
	c.dispatcher.Register(kind, h)
}

// OnFallback registers a handler in the backup table, consulted only
// when no primary handler exists for a kind.
func (c *Chat) OnFallback(kind proto.Kind, h Handler) {
	c.dispatcher.RegisterFallback(kind, h)
}

// State returns the current connection state.
func (c *Chat) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Profile returns the profile loaded for the connection's credentials,
// or nil for anonymous connections.
func (c *Chat) Profile() *api.Profile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profile
}

// ThrottleFactor returns the current send throttle factor.
func (c *Chat) ThrottleFactor() float64 {
	return c.throttle.Factor()
}

// UpdateProfile refreshes the profile from the backend. Useful on flair
// or subscriber status changes.
func (c *Chat) UpdateProfile(ctx context.Context) error {
	if c.opts.AuthToken == "" && c.opts.SessionID == "" {
		return &AnonymousConnectionError{Op: "update profile"}
	}
	profile, err := c.backend.UserInfo(ctx)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	c.mu.Lock()
	c.profile = profile
	c.mu.Unlock()
	c.log.Info().Str("nick", profile.Nick).Msg("profile updated")
	return nil
}

// SendChatMessage queues a public chat message for a paced send.
func (c *Chat) SendChatMessage(content string) error {
	if !MessageIsValid(content) {
		return &InvalidMessageError{Length: utf8.RuneCountInString(content)}
	}
	payload, err := proto.FormatFrame(proto.KindChatMessage, proto.ChatMessagePayload{Data: content})
	if err != nil {
		return err
	}
	c.log.Debug().Str("payload", payload).Msg("enqueueing chat message")
	c.throttle.Enqueue(payload)
	return nil
}

// SendWhisper queues a private message to user. Whispers are guarded:
// they require credentials, whispers enabled in the options, and the
// target to have whispered this connection first.
func (c *Chat) SendWhisper(user, content string) error {
	if !MessageIsValid(content) {
		return &InvalidMessageError{Length: utf8.RuneCountInString(content)}
	}
	if c.opts.AuthToken == "" && c.opts.SessionID == "" {
		return &AnonymousConnectionError{Op: "send whisper"}
	}

	c.mu.Lock()
	self := c.profile != nil && c.profile.Nick == user
	_, eligible := c.whisperable[user]
	c.mu.Unlock()

	if self {
		return ErrSelfWhisper
	}
	if !c.opts.EnableWhispers || !eligible {
		return &PolicyError{Reason: fmt.Sprintf("cannot send whispers to %q", user)}
	}

	payload, err := proto.FormatFrame(proto.KindWhisper, proto.WhisperPayload{Nick: user, Data: content})
	if err != nil {
		return err
	}
	c.log.Info().Str("user", user).Msg("enqueueing whisper")
	c.throttle.Enqueue(payload)
	return nil
}

// GetUnreadWhispers retrieves unread whispers per user, marking them as
// read in the backend.
func (c *Chat) GetUnreadWhispers(ctx context.Context) (map[string][]api.PrivateMessage, error) {
	if c.opts.SessionID == "" {
		return nil, &AnonymousSessionError{Op: "get unread whispers"}
	}
	unread, err := c.backend.MessagesUnread(ctx)
	if err != nil {
		return nil, err
	}
	messages := make(map[string][]api.PrivateMessage, len(unread))
	for user, count := range unread {
		inbox, err := c.backend.MessagesInbox(ctx, user, count)
		if err != nil {
			return nil, err
		}
		messages[user] = inbox
	}
	return messages, nil
}

// Connect starts the transport and the send loop in the background and
// returns after a short bootstrap grace period. Errors raised within the
// grace period, including bootstrap failures and a connection already
// running, are returned to the caller.
func (c *Chat) Connect(ctx context.Context) error {
	errs := make(chan error, 1)
	go func() {
		err := c.RunForever(ctx)
		if err != nil {
			c.log.Error().Err(err).Msg("chat stopped")
		}
		errs <- err
	}()

	select {
	case err := <-errs:
		return err
	case <-time.After(c.opts.BootstrapWait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunForever connects to chat and blocks, reconnecting automatically on
// transport drops until Disconnect is called or ctx is cancelled.
func (c *Chat) RunForever(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.state = StateConnecting
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	defer func() {
		cancel()
		c.mu.Lock()
		c.state = StateDisconnected
		c.conn = nil
		c.cancel = nil
		c.mu.Unlock()
		close(done)
	}()

	if err := c.bootstrap(ctx); err != nil {
		return err
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := c.throttle.Run(ctx); err != nil && ctx.Err() == nil {
			c.log.Error().Err(err).Msg("send loop stopped")
		}
	}()
	defer wg.Wait()

	for {
		err := c.runConnection(ctx)
		if ctx.Err() != nil {
			c.log.Info().Msg("disconnected")
			return nil
		}
		c.log.Warn().Err(err).
			Dur("delay", c.opts.ReconnectDelay).
			Msg("connection dropped, reconnecting")

		select {
		case <-time.After(c.opts.ReconnectDelay):
		case <-ctx.Done():
			c.log.Info().Msg("disconnected")
			return nil
		}
	}
}

// Disconnect signals both loops to stop, closes the transport and waits
// until they have exited.
func (c *Chat) Disconnect() error {
	c.mu.Lock()
	if c.state == StateDisconnected || c.cancel == nil {
		c.mu.Unlock()
		return ErrNotConnected
	}
	c.log.Info().Msg("disconnecting")
	cancel := c.cancel
	conn := c.conn
	done := c.done
	c.mu.Unlock()

	cancel()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "disconnect")
	}
	<-done
	return nil
}

// bootstrap loads the profile and replays unread whispers and history
// before the live connection starts.
func (c *Chat) bootstrap(ctx context.Context) error {
	if c.opts.AuthToken != "" && c.backend != nil {
		if err := c.UpdateProfile(ctx); err != nil {
			return err
		}
	}
	if c.opts.HandleUnreadWhispers {
		if err := c.replayUnreadWhispers(ctx); err != nil {
			return err
		}
	}
	if c.opts.HandleHistory {
		if err := c.replayHistory(ctx); err != nil {
			return err
		}
	}
	c.dispatcher.Flush()
	return nil
}

// replayUnreadWhispers dispatches unread whispers as if they had just
// arrived on the wire.
func (c *Chat) replayUnreadWhispers(ctx context.Context) error {
	if c.opts.SessionID == "" {
		return &AnonymousConnectionError{Op: "handle unread whispers"}
	}
	c.log.Info().Msg("handling unread whispers")

	unread, err := c.GetUnreadWhispers(ctx)
	if err != nil {
		return err
	}
	for _, whispers := range unread {
		for _, w := range whispers {
			frame, err := w.AsWireFrame()
			if err != nil {
				c.log.Warn().Err(err).Msg("skipping malformed whisper")
				continue
			}
			ev, err := proto.ParseFrame(frame)
			if err != nil {
				continue
			}
			c.dispatcher.Invoke(ev.Kind, ev)
		}
	}
	return nil
}

// replayHistory dispatches the most recent chat messages from before the
// connection.
func (c *Chat) replayHistory(ctx context.Context) error {
	c.log.Info().Msg("handling history")

	history, err := c.backend.ChatHistory(ctx)
	if err != nil {
		return fmt.Errorf("fetch history: %w", err)
	}
	for _, frame := range history {
		ev, err := proto.ParseFrame(frame)
		if err != nil {
			continue
		}
		c.dispatcher.Invoke(ev.Kind, ev)
	}
	return nil
}

// runConnection dials the websocket and pumps inbound frames until the
// connection drops or ctx is cancelled.
func (c *Chat) runConnection(ctx context.Context) error {
	opts := &websocket.DialOptions{}
	if c.opts.AuthToken != "" {
		opts.HTTPHeader = http.Header{"Cookie": []string{"authtoken=" + c.opts.AuthToken}}
	}

	conn, _, err := websocket.Dial(ctx, c.opts.URL, opts)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.opts.URL, err)
	}
	conn.SetReadLimit(1 << 20)

	c.mu.Lock()
	c.conn = conn
	c.state = StateConnected
	c.mu.Unlock()
	c.log.Info().Str("url", c.opts.URL).Msg("connected")

	err = c.readLoop(ctx, conn)

	c.mu.Lock()
	c.conn = nil
	if c.state == StateConnected {
		c.state = StateConnecting
	}
	c.mu.Unlock()

	_ = conn.Close(websocket.StatusNormalClosure, "closing")
	c.dispatcher.Invoke(proto.KindSocketClosed, &proto.Event{Kind: proto.KindSocketClosed})
	c.dispatcher.Flush()
	return err
}

// readLoop is the inbound-frame path: read, parse, glue, dispatch.
func (c *Chat) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				c.dispatcher.Invoke(proto.KindSocketError, &proto.Event{Kind: proto.KindSocketError, Err: err})
				c.dispatcher.Flush()
			}
			return err
		}
		if err := c.handleFrame(ctx, string(data)); err != nil {
			return err
		}
	}
}

// handleFrame processes one raw inbound frame. The returned error is a
// protocol invariant violation and terminates the connection.
func (c *Chat) handleFrame(ctx context.Context, raw string) error {
	ev, err := proto.ParseFrame(raw)
	if err != nil {
		c.log.Warn().Err(err).Str("frame", raw).Msg("dropping unparseable frame")
		return nil
	}

	c.log.Debug().Str("kind", string(ev.Kind)).Msg("received frame")

	c.dispatcher.Invoke(proto.KindBeforeEveryMessage, ev)

	if ev.Kind.IsAckRelevant() {
		if err := c.throttle.HandleAck(ev); err != nil {
			c.log.Error().Err(err).Msg("protocol invariant violated")
			c.dispatcher.Invoke(proto.KindSocketError, &proto.Event{Kind: proto.KindSocketError, Err: err})
			c.dispatcher.Flush()
			return err
		}
	}

	if ev.Kind == proto.KindWhisper && c.opts.EnableWhispers {
		c.mu.Lock()
		c.whisperable[ev.Sender()] = struct{}{}
		c.mu.Unlock()
		c.log.Info().Str("user", ev.Sender()).Msg("user available to whisper")
	}

	if ev.Kind == proto.KindChatMessage {
		c.mu.Lock()
		nick := ""
		if c.profile != nil {
			nick = c.profile.Nick
		}
		c.mu.Unlock()
		if nick != "" && strings.Contains(ev.Content, nick) {
			c.dispatcher.Invoke(proto.KindMention, ev)
		}
	}

	if ev.Kind == proto.KindWhisper && c.opts.MarkAsRead && c.backend != nil {
		if _, err := c.backend.MessagesInbox(ctx, ev.Sender(), 1); err != nil {
			c.log.Warn().Err(err).Str("user", ev.Sender()).Msg("mark as read failed")
		}
	}

	c.dispatcher.Invoke(ev.Kind, ev)
	c.dispatcher.Invoke(proto.KindAfterEveryMessage, ev)
	c.dispatcher.Flush()
	return nil
}

// writeFrame transmits one payload over the current connection.
func (c *Chat) writeFrame(ctx context.Context, payload string) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return conn.Write(ctx, websocket.MessageText, []byte(payload))
}

package chat

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/dggchat/internal/proto"
)

// MaxMessageLength is the inclusive upper bound on outbound content.
const MaxMessageLength = 512

// Throttle defaults. The server's rate limit is undocumented; the delay
// covers its observed 300ms window plus network overhead, and the base
// factor sits above 1 so a single throttle event is already visible.
const (
	DefaultThrottleDelay  = 200 * time.Millisecond
	DefaultResetWindow    = 600 * time.Second
	DefaultBaseFactor     = 1.1
	DefaultMaxFactor      = 16
	DefaultReconnectDelay = 3 * time.Second
	DefaultBootstrapWait  = time.Second
)

// ThrottleConfig is the explicit configuration of the send throttle.
type ThrottleConfig struct {
	// BaseDelay is multiplied by the current factor to space sends.
	BaseDelay time.Duration
	// ResetWindow is the quiet period after which the factor resets.
	ResetWindow time.Duration
	// BaseFactor is the factor's floor and reset value.
	BaseFactor float64
	// MaxFactor caps the factor so worst-case delay stays bounded.
	MaxFactor float64
	// AutoResend requeues a throttled payload at the front.
	AutoResend bool
	// AntiThrottleBot, when set, is a nick whispered "0" after every
	// send so the server acks messages that otherwise go silent.
	AntiThrottleBot string
}

// DefaultThrottleConfig returns the empirically tuned defaults.
func DefaultThrottleConfig() ThrottleConfig {
	return ThrottleConfig{
		BaseDelay:   DefaultThrottleDelay,
		ResetWindow: DefaultResetWindow,
		BaseFactor:  DefaultBaseFactor,
		MaxFactor:   DefaultMaxFactor,
	}
}

// SendFunc transmits one formatted payload over the transport.
type SendFunc func(ctx context.Context, payload string) error

// Throttle owns the outbound queue and paces sends to respect the
// server's rate limit. At most one send awaits an ack at any time; the
// ack is correlated to that single outstanding send, as the wire
// protocol carries no sequence numbers.
type Throttle struct {
	cfg  ThrottleConfig
	log  *zerolog.Logger
	send SendFunc
	now  func() time.Time

	mu       sync.Mutex
	queue    []string
	unacked  []string
	factor   float64
	lastAck  time.Time
	nextSend time.Time
	wake     chan struct{}
}

// NewThrottle builds a throttle that transmits via send.
func NewThrottle(cfg ThrottleConfig, send SendFunc, logger *zerolog.Logger) *Throttle {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultThrottleDelay
	}
	if cfg.ResetWindow <= 0 {
		cfg.ResetWindow = DefaultResetWindow
	}
	if cfg.BaseFactor <= 0 {
		cfg.BaseFactor = DefaultBaseFactor
	}
	if cfg.MaxFactor <= 0 {
		cfg.MaxFactor = DefaultMaxFactor
	}
	return &Throttle{
		cfg:    cfg,
		log:    logger,
		send:   send,
		now:    time.Now,
		factor: cfg.BaseFactor,
		wake:   make(chan struct{}, 1),
	}
}

// Factor returns the current throttle factor.
func (t *Throttle) Factor() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.factor
}

// QueueLen returns the number of payloads awaiting send.
func (t *Throttle) QueueLen() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queue)
}

// Enqueue appends a formatted payload to the send queue. Never blocks.
func (t *Throttle) Enqueue(payload string) {
	t.mu.Lock()
	t.queue = append(t.queue, payload)
	t.mu.Unlock()
	t.signal()
}

func (t *Throttle) requeueFront(payload string) {
	t.mu.Lock()
	t.queue = append([]string{payload}, t.queue...)
	t.mu.Unlock()
	t.signal()
}

func (t *Throttle) signal() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// Run is the send-scheduling loop. It suspends while the queue is empty
// or a send awaits its ack, sleeps until the scheduled send time, then
// transmits exactly one payload. Returns when ctx is cancelled.
func (t *Throttle) Run(ctx context.Context) error {
	for {
		t.mu.Lock()
		blocked := len(t.queue) == 0 || len(t.unacked) > 0
		delay := t.nextSend.Sub(t.now())
		t.mu.Unlock()

		switch {
		case blocked:
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.wake:
			}
		case delay > 0:
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			case <-t.wake:
				timer.Stop()
			}
		default:
			t.sendNext(ctx)
		}
	}
}

// sendNext pops one payload, transmits it and moves it into the
// unhandled-ack slot. A transport failure puts the payload back and
// backs off one throttle period.
func (t *Throttle) sendNext(ctx context.Context) {
	t.mu.Lock()
	if len(t.queue) == 0 || len(t.unacked) > 0 {
		t.mu.Unlock()
		return
	}
	payload := t.queue[0]
	t.queue = t.queue[1:]
	t.mu.Unlock()

	t.log.Debug().Str("payload", payload).Msg("sending payload")

	if err := t.send(ctx, payload); err != nil {
		t.log.Error().Err(err).Msg("send failed, requeueing payload")
		t.mu.Lock()
		t.queue = append(t.queue, payload)
		t.nextSend = t.now().Add(t.currentDelay())
		t.mu.Unlock()
		return
	}

	t.mu.Lock()
	t.unacked = append(t.unacked, payload)
	t.nextSend = t.now().Add(t.currentDelay())
	t.mu.Unlock()

	if t.cfg.AntiThrottleBot != "" {
		t.sendAntiThrottle(ctx)
	}
}

// sendAntiThrottle whispers the companion bot so the pending send gets a
// correlated server response.
func (t *Throttle) sendAntiThrottle(ctx context.Context) {
	payload, err := proto.FormatFrame(proto.KindWhisper, proto.WhisperPayload{
		Nick: t.cfg.AntiThrottleBot,
		Data: "0",
	})
	if err != nil {
		t.log.Error().Err(err).Msg("format anti-throttle payload")
		return
	}
	if err := t.send(ctx, payload); err != nil {
		t.log.Error().Err(err).Msg("anti-throttle send failed")
		return
	}
	t.mu.Lock()
	t.unacked = append(t.unacked, payload)
	t.mu.Unlock()
}

// HandleAck resolves the oldest in-flight send against an ack-relevant
// inbound event and reschedules the next send. An ack with nothing in
// flight violates the protocol invariant and is returned as
// ErrUnexpectedAck.
func (t *Throttle) HandleAck(e *proto.Event) error {
	t.mu.Lock()

	if len(t.unacked) == 0 {
		t.mu.Unlock()
		return ErrUnexpectedAck
	}
	payload := t.unacked[0]
	t.unacked = t.unacked[1:]

	now := t.now()
	if !t.lastAck.IsZero() && now.Sub(t.lastAck) >= t.cfg.ResetWindow {
		t.log.Info().Msg("resetting throttle factor")
		t.factor = t.cfg.BaseFactor
	}

	var resend bool
	if e.Kind == proto.KindErrorMessage {
		switch e.Content {
		case "throttled":
			t.log.Warn().Float64("factor", t.factor).Msg("connection throttled")
			t.factor = min(t.cfg.MaxFactor, 2*t.factor)
			resend = t.cfg.AutoResend
		case "duplicate":
			// benign resend race, strictly gentler penalty than throttling
			t.log.Warn().Msg("duplicate message")
			t.factor = min(t.cfg.MaxFactor, 1+t.factor)
		}
	} else {
		t.lastAck = now
	}

	t.nextSend = now.Add(t.currentDelay())
	t.mu.Unlock()

	if resend {
		t.requeueFront(payload)
	}
	t.signal()
	return nil
}

// currentDelay derives the spacing to the next send. Callers hold t.mu.
func (t *Throttle) currentDelay() time.Duration {
	return time.Duration(t.factor * float64(t.cfg.BaseDelay))
}

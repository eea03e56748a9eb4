package chat

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/dggchat/internal/proto"
)

// Handler reacts to a single event. Returned errors are collected and
// surfaced as a HANDLER_ERROR batch; they never interrupt sibling
// handlers or the connection.
type Handler func(e *proto.Event) error

// registration pairs a handler with its identity so that registering the
// same function twice stays a no-op.
type registration struct {
	fn  Handler
	key uintptr
}

// Dispatcher routes events to registered handlers. Kinds without an
// entry in the primary table fall back to a secondary table; kinds
// absent from both are recorded as unhandled, which is not an error.
type Dispatcher struct {
	log *zerolog.Logger

	mu      sync.Mutex
	primary map[proto.Kind][]registration
	backup  map[proto.Kind][]registration
	errs    []error
}

// NewDispatcher builds a dispatcher with empty handler tables.
func NewDispatcher(logger *zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		log:     logger,
		primary: make(map[proto.Kind][]registration),
		backup:  make(map[proto.Kind][]registration),
	}
}

// Register adds a handler to the primary table for kind. Handlers for
// the same kind run in registration order; registering the identical
// function again is a no-op.
func (d *Dispatcher) Register(kind proto.Kind, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.primary[kind] = appendRegistration(d.primary[kind], h)
}

// RegisterFallback adds a handler to the backup table, consulted only
// when the primary table has no entry for a kind.
func (d *Dispatcher) RegisterFallback(kind proto.Kind, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.backup[kind] = appendRegistration(d.backup[kind], h)
}

func appendRegistration(regs []registration, h Handler) []registration {
	key := reflect.ValueOf(h).Pointer()
	for _, r := range regs {
		if r.key == key {
			return regs
		}
	}
	return append(regs, registration{fn: h, key: key})
}

// Dispatch runs the full pipeline for a wire event: the before hook,
// the kind's handlers, the after hook, then the collected-failure flush.
// It never panics past its boundary.
func (d *Dispatcher) Dispatch(e *proto.Event) {
	d.Invoke(proto.KindBeforeEveryMessage, e)
	d.Invoke(e.Kind, e)
	d.Invoke(proto.KindAfterEveryMessage, e)
	d.Flush()
}

// Invoke runs the handlers registered for kind, containing any failure.
// The primary table wins; the backup table is consulted only when the
// primary has no entry.
func (d *Dispatcher) Invoke(kind proto.Kind, e *proto.Event) {
	d.mu.Lock()
	regs := d.primary[kind]
	if len(regs) == 0 {
		regs = d.backup[kind]
	}
	d.mu.Unlock()

	if len(regs) == 0 {
		if !kind.IsSynthetic() {
			d.log.Warn().Str("kind", string(kind)).Msg("event kind not handled")
		}
		return
	}

	for _, r := range regs {
		if err := d.call(r.fn, e); err != nil {
			d.mu.Lock()
			d.errs = append(d.errs, fmt.Errorf("%s handler: %w", kind, err))
			d.mu.Unlock()
		}
	}
}

func (d *Dispatcher) call(h Handler, e *proto.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(e)
}

// Flush fires the HANDLER_ERROR batch event with every failure collected
// since the previous flush, then clears the collection. Failures raised
// inside HANDLER_ERROR handlers accumulate for the next flush.
func (d *Dispatcher) Flush() {
	d.mu.Lock()
	if len(d.errs) == 0 {
		d.mu.Unlock()
		return
	}
	batch := d.errs
	d.errs = nil
	d.mu.Unlock()

	d.Invoke(proto.KindHandlerError, &proto.Event{
		Kind:        proto.KindHandlerError,
		HandlerErrs: batch,
	})
}

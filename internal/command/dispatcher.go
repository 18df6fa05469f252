package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrNoHandler is returned by Dispatch when nothing subscribed to a command.
var ErrNoHandler = errors.New("no handler for command")

// Handler handles one command.
type Handler func(ctx context.Context, cmd Command) error

// Dispatcher routes commands to handlers by kind. Handlers for a kind run in
// subscription order on the dispatching goroutine.
type Dispatcher struct {
	handlers map[string][]Handler
	logger   *slog.Logger
	mu       sync.RWMutex
}

// NewDispatcher creates a dispatcher. logger may be nil.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

// On subscribes fn to commands of type C.
func On[C Command](d *Dispatcher, fn func(ctx context.Context, cmd C) error) {
	var zero C
	d.Subscribe(zero.Kind(), func(ctx context.Context, cmd Command) error {
		c, ok := cmd.(C)
		if !ok {
			return fmt.Errorf("command %s: unexpected type %T", cmd.Kind(), cmd)
		}
		return fn(ctx, c)
	})
}

// Subscribe adds an untyped handler for kind.
func (d *Dispatcher) Subscribe(kind string, h Handler) {
	d.mu.Lock()
	d.handlers[kind] = append(d.handlers[kind], h)
	d.mu.Unlock()
}

// Dispatch runs every handler subscribed to cmd. All handlers run even if an
// earlier one fails; the errors are joined.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) error {
	d.mu.RLock()
	hs := append([]Handler(nil), d.handlers[cmd.Kind()]...)
	d.mu.RUnlock()

	if len(hs) == 0 {
		d.log().Warn("unhandled command", "kind", cmd.Kind())
		return fmt.Errorf("%w: %s", ErrNoHandler, cmd.Kind())
	}

	d.log().Debug("dispatch", "kind", cmd.Kind(), "handlers", len(hs))
	var errs []error
	for _, h := range hs {
		if err := h(ctx, cmd); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) log() *slog.Logger {
	if d.logger != nil {
		return d.logger
	}
	return slog.Default()
}

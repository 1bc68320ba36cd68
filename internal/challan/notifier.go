package challan

import (
	"context"
	"errors"
	"sync"
)

// ErrDropped reports that an event was discarded instead of delivered.
var ErrDropped = errors.New("challan notification dropped")

// Notifier delivers violation events to the ticketing collaborator.
// Implementations must not block; a failed delivery is reported and the
// event is gone.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, ev Event) error

func (f NotifierFunc) Notify(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Discard is a Notifier that accepts and forgets every event.
type Discard struct{}

func (Discard) Notify(context.Context, Event) error { return nil }

// ChanNotifier hands events to an in-process consumer over a buffered channel.
// When the buffer is full the event is dropped.
type ChanNotifier struct {
	mu     sync.RWMutex
	ch     chan Event
	closed bool
}

// NewChanNotifier returns a notifier buffering up to size events.
func NewChanNotifier(size int) *ChanNotifier {
	return &ChanNotifier{ch: make(chan Event, size)}
}

// Events returns the channel consumers receive from. It is closed by Close.
func (n *ChanNotifier) Events() <-chan Event { return n.ch }

func (n *ChanNotifier) Notify(ctx context.Context, ev Event) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return ErrDropped
	}
	select {
	case n.ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrDropped
	}
}

// Close stops delivery and closes the event channel.
func (n *ChanNotifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.closed {
		n.closed = true
		close(n.ch)
	}
}

package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/booking-engine/booking"
)

// ErrQueueFull is returned when the async queue cannot take another event.
var ErrQueueFull = errors.New("notification queue full")

// ErrClosed is returned by Notify after Close.
var ErrClosed = errors.New("notifier closed")

const defaultSendTimeout = 10 * time.Second

// Async hands events to a background worker so slow sinks never delay the
// request that produced them. Events that do not fit in the queue are dropped.
type Async struct {
	next    booking.Notifier
	queue   chan booking.Event
	logger  *zap.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewAsync(next booking.Notifier, size int, logger *zap.Logger) *Async {
	if logger == nil {
		logger = zap.NewNop()
	}
	if size < 1 {
		size = 1
	}
	a := &Async{
		next:    next,
		queue:   make(chan booking.Event, size),
		logger:  logger,
		timeout: defaultSendTimeout,
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) Notify(_ context.Context, e booking.Event) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}
	select {
	case a.queue <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

func (a *Async) run() {
	defer close(a.done)
	for e := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		if err := a.next.Notify(ctx, e); err != nil {
			a.logger.Warn("notification delivery failed",
				zap.String("type", string(e.Type)),
				zap.String("booking_id", string(e.BookingID)),
				zap.Error(err),
			)
		}
		cancel()
	}
}

// Close stops accepting events and waits until the queue is drained or ctx
// is done.
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

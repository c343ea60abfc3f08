// Package notify delivers booking events to loggers, brokers and chats.
//
// Every notifier implements booking.Notifier. The service calls Notify after
// a transition commits and only logs a returned error, so a broken sink never
// rolls back a booking.
package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/warp/booking-engine/booking"
)

// Log writes each event as one structured log line.
type Log struct {
	logger *zap.Logger
}

func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger}
}

func (l *Log) Notify(_ context.Context, e booking.Event) error {
	l.logger.Info("booking event",
		zap.String("type", string(e.Type)),
		zap.String("booking_id", string(e.BookingID)),
		zap.String("learner_id", string(e.LearnerID)),
		zap.String("tutor_id", string(e.TutorID)),
		zap.String("status", string(e.Status)),
		zap.String("actor", string(e.Actor)),
		zap.String("amount", e.Amount),
		zap.String("reason", e.Reason),
		zap.Time("at", e.At),
	)
	return nil
}

// Multi fans an event out to every notifier. All sinks are attempted and
// their errors joined.
type Multi []booking.Notifier

func (m Multi) Notify(ctx context.Context, e booking.Event) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

package worker

import (
	"context"
	"time"

	"github.com/Domenick1991/aerobound/internal/kafka"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type EventSource interface {
	ConsumeBookingEvents(ctx context.Context, handler func(context.Context, kafka.BookingEvent) error) error
}

type Notifier interface {
	Send(ctx context.Context, event kafka.BookingEvent) error
}

// Sweeper re-checks bookings stuck in pending.
type Sweeper interface {
	SweepPending(ctx context.Context, olderThan time.Duration) (int, error)
}

type Worker struct {
	events     EventSource
	notifier   Notifier
	sweeper    Sweeper
	interval   time.Duration
	pendingAge time.Duration
	log        *logrus.Entry
}

func New(events EventSource, notifier Notifier, sweeper Sweeper, interval, pendingAge time.Duration, log *logrus.Entry) *Worker {
	return &Worker{
		events:     events,
		notifier:   notifier,
		sweeper:    sweeper,
		interval:   interval,
		pendingAge: pendingAge,
		log:        log.WithField("component", "worker"),
	}
}

// Run consumes notification events and sweeps pending bookings until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return w.events.ConsumeBookingEvents(ctx, func(ctx context.Context, event kafka.BookingEvent) error {
			if err := w.notifier.Send(ctx, event); err != nil {
				w.log.WithError(err).WithField("booking_id", event.BookingID).Warn("failed to send notification")
			}
			return nil
		})
	})

	g.Go(func() error {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				w.sweep(ctx)
			}
		}
	})

	return g.Wait()
}

func (w *Worker) sweep(ctx context.Context) {
	updated, err := w.sweeper.SweepPending(ctx, w.pendingAge)
	if err != nil {
		w.log.WithError(err).Error("pending sweep failed")
		return
	}
	if updated > 0 {
		w.log.WithField("updated", updated).Info("pending sweep updated bookings")
	}
}

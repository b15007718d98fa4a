package billing

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// ReservationJournal is a Journal that can also be queried, letting the reaper
// release stock held by carts that no longer exist in memory.
type ReservationJournal interface {
	Journal
	Stale(ctx context.Context, before time.Time) ([]string, error)
	Reservations(ctx context.Context, cartID string) (map[string]int, error)
}

// Reaper cancels carts that have been idle longer than the TTL, returning their
// stock to the catalog.
type Reaper struct {
	registry *Registry
	journal  ReservationJournal
	stock    Reserver
	ttl      time.Duration
	recorder Recorder
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewReaper(registry *Registry, journal ReservationJournal, stock Reserver, ttl time.Duration, recorder Recorder, log logrus.FieldLogger) *Reaper {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Reaper{
		registry: registry,
		journal:  journal,
		stock:    stock,
		ttl:      ttl,
		recorder: recorder,
		log:      log,
		now:      time.Now,
	}
}

func (r *Reaper) Run(ctx context.Context, interval time.Duration) {
	if r.ttl <= 0 || interval <= 0 {
		r.log.Info("cart reaper disabled")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil {
				r.log.WithError(err).Warn("cart sweep incomplete")
			}
		}
	}
}

// Sweep reaps idle carts once and reports how many it cancelled.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	cutoff := r.now().Add(-r.ttl)
	reaped := 0

	for _, cart := range r.registry.Idle(cutoff) {
		warnings, ok := cart.cancelIfIdle(ctx, cutoff)
		if !ok {
			continue
		}
		r.registry.remove(cart.id)
		reaped++
		r.log.WithFields(logrus.Fields{
			"cart_id":  cart.id,
			"warnings": len(warnings),
		}).Info("idle cart reaped")
	}

	var sweepErr error
	if r.journal != nil {
		orphans, err := r.reapOrphans(ctx, cutoff)
		reaped += orphans
		sweepErr = err
	}

	if reaped > 0 {
		r.recorder.CartsReaped(ctx, reaped)
	}
	r.log.WithFields(logrus.Fields{
		"reaped":     reaped,
		"open_carts": r.registry.Len(),
	}).Debug("cart sweep finished")
	return reaped, sweepErr
}

func (r *Reaper) reapOrphans(ctx context.Context, cutoff time.Time) (int, error) {
	stale, err := r.journal.Stale(ctx, cutoff)
	if err != nil {
		return 0, &StoreUnavailableError{Op: "list stale carts", Err: err}
	}

	reaped := 0
	for _, cartID := range stale {
		if r.registry.Has(cartID) {
			continue
		}

		held, err := r.journal.Reservations(ctx, cartID)
		if err != nil {
			r.log.WithField("cart_id", cartID).WithError(err).Warn("failed to read reservation journal")
			continue
		}
		for productID, amount := range held {
			if amount <= 0 {
				continue
			}
			if _, err := r.stock.Release(ctx, productID, amount); err != nil {
				r.log.WithFields(logrus.Fields{
					"event":      "stock_release_failed",
					"cart_id":    cartID,
					"product_id": productID,
					"amount":     amount,
				}).WithError(err).Warn("failed to release orphaned reservation")
			}
		}
		if err := r.journal.Forget(ctx, cartID); err != nil {
			r.log.WithField("cart_id", cartID).WithError(err).Warn("failed to drop reservation journal")
			continue
		}

		reaped++
		r.log.WithFields(logrus.Fields{
			"cart_id":  cartID,
			"products": len(held),
		}).Info("orphaned cart reaped")
	}
	return reaped, nil
}

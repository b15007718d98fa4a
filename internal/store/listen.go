package store

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

const (
	productsChannel = "products_changed"
	billsChannel    = "bills_changed"

	listenerPingInterval = 90 * time.Second
)

// subscribe LISTENs on a NOTIFY channel and emits a fresh snapshot from load
// after every burst of notifications and after every reconnect. The first
// snapshot is sent before subscribe returns.
func subscribe[T any](ctx context.Context, dsn, channel string, log logrus.FieldLogger, load func(context.Context) (T, error)) (<-chan T, error) {
	log = log.WithField("channel", channel)

	listener := pq.NewListener(dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.WithError(err).WithField("listener_event", ev).Warn("listener connection event")
		}
	})
	if err := listener.Listen(channel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("listen %s: %w", channel, err)
	}

	initial, err := load(ctx)
	if err != nil {
		listener.Close()
		return nil, err
	}

	out := make(chan T, 1)
	out <- initial

	go func() {
		defer close(out)
		defer listener.Close()

		ticker := time.NewTicker(listenerPingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := listener.Ping(); err != nil {
					log.WithError(err).Warn("listener ping failed")
				}
				continue
			case <-listener.Notify:
			}

		drain:
			for {
				select {
				case <-listener.Notify:
				default:
					break drain
				}
			}

			snapshot, err := load(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.WithError(err).Warn("failed to load snapshot")
				continue
			}

			select {
			case out <- snapshot:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

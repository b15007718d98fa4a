package billing

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Registry holds the open carts of this process.
type Registry struct {
	catalog ProductReader
	stock   Reserver
	journal Journal
	log     logrus.FieldLogger

	mu    sync.RWMutex
	carts map[string]*Cart
}

func NewRegistry(catalog ProductReader, stock Reserver, journal Journal, log logrus.FieldLogger) *Registry {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Registry{
		catalog: catalog,
		stock:   stock,
		journal: journal,
		log:     log,
		carts:   make(map[string]*Cart),
	}
}

func (r *Registry) Open(ctx context.Context) *Cart {
	cart := NewCart(uuid.NewString(), r.catalog, r.stock, r.journal, r.log)

	r.mu.Lock()
	r.carts[cart.id] = cart
	r.mu.Unlock()

	cart.mu.Lock()
	cart.touchLocked(ctx)
	cart.mu.Unlock()

	r.log.WithField("cart_id", cart.id).Debug("cart opened")
	return cart
}

func (r *Registry) Get(id string) (*Cart, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cart, ok := r.carts[id]
	if !ok {
		return nil, &NotFoundError{Resource: "cart", ID: id}
	}
	return cart, nil
}

func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.carts[id]
	return ok
}

// Cancel releases the cart's reservations and forgets the cart.
func (r *Registry) Cancel(ctx context.Context, id string) ([]Warning, error) {
	r.mu.Lock()
	cart, ok := r.carts[id]
	delete(r.carts, id)
	r.mu.Unlock()

	if !ok {
		return nil, &NotFoundError{Resource: "cart", ID: id}
	}
	return cart.Cancel(ctx), nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.carts)
}

// Idle returns the carts whose last activity is before the cutoff. Each cart's
// lock is taken only after the registry lock is released.
func (r *Registry) Idle(before time.Time) []*Cart {
	r.mu.RLock()
	carts := make([]*Cart, 0, len(r.carts))
	for _, cart := range r.carts {
		carts = append(carts, cart)
	}
	r.mu.RUnlock()

	var idle []*Cart
	for _, cart := range carts {
		if cart.LastActivity().Before(before) {
			idle = append(idle, cart)
		}
	}
	return idle
}

func (r *Registry) remove(id string) {
	r.mu.Lock()
	delete(r.carts, id)
	r.mu.Unlock()
}

package billing

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/safar/stockbill/internal/database"
	"github.com/safar/stockbill/internal/models"
)

type memoryCatalog struct {
	mu       sync.Mutex
	products map[string]*models.Product
	failWith error
}

func newMemoryCatalog(products ...models.Product) *memoryCatalog {
	c := &memoryCatalog{products: make(map[string]*models.Product)}
	for i := range products {
		p := products[i]
		c.products[p.ID] = &p
	}
	return c
}

func (c *memoryCatalog) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failWith != nil {
		return nil, c.failWith
	}
	p, ok := c.products[id]
	if !ok {
		return nil, database.ErrProductNotFound
	}
	out := *p
	return &out, nil
}

func (c *memoryCatalog) ReserveStock(ctx context.Context, id string, amount int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failWith != nil {
		return 0, c.failWith
	}
	p, ok := c.products[id]
	if !ok {
		return 0, database.ErrProductNotFound
	}
	if p.Quantity < amount {
		return 0, &database.InsufficientStockError{ProductID: id, Requested: amount, Available: p.Quantity}
	}
	p.Quantity -= amount
	return p.Quantity, nil
}

func (c *memoryCatalog) ReleaseStock(ctx context.Context, id string, amount int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failWith != nil {
		return 0, c.failWith
	}
	p, ok := c.products[id]
	if !ok {
		return 0, database.ErrProductNotFound
	}
	p.Quantity += amount
	return p.Quantity, nil
}

func (c *memoryCatalog) quantity(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.products[id].Quantity
}

func (c *memoryCatalog) remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.products, id)
}

func (c *memoryCatalog) setFailure(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failWith = err
}

type memoryLedger struct {
	mu        sync.Mutex
	bills     []*models.Bill
	retired   []string
	failures  []error
	scanError error
}

func (l *memoryLedger) ListBillNumbers(ctx context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.scanError != nil {
		return nil, l.scanError
	}
	numbers := make([]string, 0, len(l.bills)+len(l.retired))
	for _, b := range l.bills {
		numbers = append(numbers, b.BillNumber)
	}
	return append(numbers, l.retired...), nil
}

func (l *memoryLedger) CreateBill(ctx context.Context, bill *models.Bill) (*models.Bill, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.failures) > 0 {
		err := l.failures[0]
		l.failures = l.failures[1:]
		return nil, err
	}
	for _, existing := range l.bills {
		if existing.BillNumberValue == bill.BillNumberValue {
			return nil, database.ErrDuplicateBillNumber
		}
	}

	stored := *bill
	stored.ID = bill.BillNumber
	stored.CreatedAt = time.Now()
	l.bills = append(l.bills, &stored)
	return &stored, nil
}

func (l *memoryLedger) seed(numbers ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, n := range numbers {
		value, _ := ParseBillNumber("MPS", n)
		l.bills = append(l.bills, &models.Bill{BillNumber: n, BillNumberValue: value})
	}
}

// delete drops a bill the way the stores do: its number is retired, not freed.
func (l *memoryLedger) delete(number string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, b := range l.bills {
		if b.BillNumber == number {
			l.bills = append(l.bills[:i], l.bills[i+1:]...)
			l.retired = append(l.retired, number)
			return true
		}
	}
	return false
}

func (l *memoryLedger) get(number string) *models.Bill {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, b := range l.bills {
		if b.BillNumber == number {
			return b
		}
	}
	return nil
}

func (l *memoryLedger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.bills)
}

type memoryJournal struct {
	mu      sync.Mutex
	held    map[string]map[string]int
	touched map[string]time.Time
	now     func() time.Time
}

func newMemoryJournal() *memoryJournal {
	return &memoryJournal{
		held:    make(map[string]map[string]int),
		touched: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (j *memoryJournal) Record(ctx context.Context, cartID, productID string, delta int) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.held[cartID] == nil {
		j.held[cartID] = make(map[string]int)
	}
	j.held[cartID][productID] += delta
	if j.held[cartID][productID] <= 0 {
		delete(j.held[cartID], productID)
	}
	j.touched[cartID] = j.now()
	return nil
}

func (j *memoryJournal) Touch(ctx context.Context, cartID string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.touched[cartID] = j.now()
	return nil
}

func (j *memoryJournal) Forget(ctx context.Context, cartID string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.held, cartID)
	delete(j.touched, cartID)
	return nil
}

func (j *memoryJournal) Stale(ctx context.Context, before time.Time) ([]string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var ids []string
	for id, at := range j.touched {
		if at.Before(before) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (j *memoryJournal) Reservations(ctx context.Context, cartID string) (map[string]int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	held := make(map[string]int, len(j.held[cartID]))
	for id, qty := range j.held[cartID] {
		held[id] = qty
	}
	return held, nil
}

type recordingRenderer struct {
	rendered chan *models.Bill
	err      error
}

func (r *recordingRenderer) Render(ctx context.Context, bill *models.Bill) error {
	r.rendered <- bill
	return r.err
}

var errStoreDown = errors.New("connection refused")

func product(id, name, price string, qty int) models.Product {
	return models.Product{ID: id, Name: name, Price: decimal.RequireFromString(price), Quantity: qty}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

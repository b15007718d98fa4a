package api

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/safar/stockbill/internal/database"
	"github.com/safar/stockbill/internal/models"
	"github.com/safar/stockbill/internal/store"
)

var errBackendDown = errors.New("connection refused")

type memoryCatalog struct {
	mu       sync.Mutex
	products map[string]*models.Product
}

func newMemoryCatalog() *memoryCatalog {
	return &memoryCatalog{products: make(map[string]*models.Product)}
}

func (c *memoryCatalog) CreateProduct(ctx context.Context, p models.Product) (*models.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(p.Variations) > 0 && p.Quantity == 0 {
		p.Quantity = p.Variations.TotalQuantity()
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	c.products[p.ID] = &p
	out := p
	return &out, nil
}

func (c *memoryCatalog) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.products[id]
	if !ok {
		return nil, database.ErrProductNotFound
	}
	out := *p
	return &out, nil
}

func (c *memoryCatalog) DeleteProduct(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.products[id]; !ok {
		return database.ErrProductNotFound
	}
	delete(c.products, id)
	return nil
}

func (c *memoryCatalog) ReserveStock(ctx context.Context, id string, amount int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

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

	p, ok := c.products[id]
	if !ok {
		return 0, database.ErrProductNotFound
	}
	p.Quantity += amount
	return p.Quantity, nil
}

func (c *memoryCatalog) ListProducts(ctx context.Context, page, pageSize int) (*store.OffsetPage, error) {
	all := c.all()
	start := (page - 1) * pageSize
	if start > len(all) {
		start = len(all)
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return &store.OffsetPage{
		Items:      all[start:end],
		Total:      int64(len(all)),
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (len(all) + pageSize - 1) / pageSize,
	}, nil
}

func (c *memoryCatalog) Subscribe(ctx context.Context) (<-chan []models.Product, error) {
	out := make(chan []models.Product, 1)
	out <- c.all()
	return out, nil
}

func (c *memoryCatalog) all() []models.Product {
	c.mu.Lock()
	defer c.mu.Unlock()

	products := make([]models.Product, 0, len(c.products))
	for _, p := range c.products {
		products = append(products, *p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	return products
}

func (c *memoryCatalog) quantity(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.products[id].Quantity
}

type memoryLedger struct {
	mu      sync.Mutex
	bills   []models.Bill
	retired []string
	failing bool
}

func (l *memoryLedger) CreateBill(ctx context.Context, bill *models.Bill) (*models.Bill, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.failing {
		return nil, errBackendDown
	}
	for _, b := range l.bills {
		if b.BillNumberValue == bill.BillNumberValue {
			return nil, database.ErrDuplicateBillNumber
		}
	}
	created := *bill
	created.ID = uuid.NewString()
	created.CreatedAt = time.Now()
	l.bills = append(l.bills, created)
	return &created, nil
}

func (l *memoryLedger) GetBill(ctx context.Context, id string) (*models.Bill, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, b := range l.bills {
		if b.ID == id {
			out := b
			return &out, nil
		}
	}
	return nil, database.ErrBillNotFound
}

func (l *memoryLedger) DeleteBill(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, b := range l.bills {
		if b.ID == id {
			l.bills = append(l.bills[:i], l.bills[i+1:]...)
			l.retired = append(l.retired, b.BillNumber)
			return nil
		}
	}
	return database.ErrBillNotFound
}

func (l *memoryLedger) ListBillNumbers(ctx context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	numbers := make([]string, 0, len(l.bills)+len(l.retired))
	for _, b := range l.bills {
		numbers = append(numbers, b.BillNumber)
	}
	return append(numbers, l.retired...), nil
}

func (l *memoryLedger) ListBills(ctx context.Context, cursor string, limit int) (*store.CursorPage, error) {
	after, err := store.DecodeCursor(cursor)
	if err != nil {
		return nil, err
	}

	var bills []models.Bill
	for _, b := range l.recent() {
		if b.BillNumberValue < after.NumberValue {
			bills = append(bills, b)
		}
	}
	if len(bills) > limit+1 {
		bills = bills[:limit+1]
	}
	return store.NextPage(bills, limit, func(b models.Bill) int64 { return b.BillNumberValue }), nil
}

func (l *memoryLedger) Subscribe(ctx context.Context) (<-chan []models.Bill, error) {
	out := make(chan []models.Bill, 1)
	out <- l.recent()
	return out, nil
}

func (l *memoryLedger) recent() []models.Bill {
	l.mu.Lock()
	defer l.mu.Unlock()

	bills := append([]models.Bill(nil), l.bills...)
	sort.Slice(bills, func(i, j int) bool { return bills[i].BillNumberValue > bills[j].BillNumberValue })
	return bills
}

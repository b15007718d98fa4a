package store

import (
	"context"
	"database/sql"

	"github.com/sirupsen/logrus"

	"github.com/safar/stockbill/internal/models"
)

const liveBillLimit = 100

// Catalog binds the product functions to one database.
type Catalog struct {
	db  *sql.DB
	dsn string
	log logrus.FieldLogger
}

func NewCatalog(db *sql.DB, dsn string, log logrus.FieldLogger) *Catalog {
	return &Catalog{db: db, dsn: dsn, log: log}
}

func (c *Catalog) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	return GetProduct(ctx, c.db, id)
}

func (c *Catalog) ReserveStock(ctx context.Context, productID string, amount int) (int, error) {
	return ReserveStock(ctx, c.db, productID, amount)
}

func (c *Catalog) ReleaseStock(ctx context.Context, productID string, amount int) (int, error) {
	return ReleaseStock(ctx, c.db, productID, amount)
}

func (c *Catalog) CreateProduct(ctx context.Context, p models.Product) (*models.Product, error) {
	return CreateProduct(ctx, c.db, p)
}

func (c *Catalog) DeleteProduct(ctx context.Context, id string) error {
	return DeleteProduct(ctx, c.db, id)
}

func (c *Catalog) ListProducts(ctx context.Context, page, pageSize int) (*OffsetPage, error) {
	return ListProducts(ctx, c.db, page, pageSize)
}

func (c *Catalog) Subscribe(ctx context.Context) (<-chan []models.Product, error) {
	return subscribe(ctx, c.dsn, productsChannel, c.log, func(ctx context.Context) ([]models.Product, error) {
		return AllProducts(ctx, c.db)
	})
}

type Ledger struct {
	db  *sql.DB
	dsn string
	log logrus.FieldLogger
}

func NewLedger(db *sql.DB, dsn string, log logrus.FieldLogger) *Ledger {
	return &Ledger{db: db, dsn: dsn, log: log}
}

func (l *Ledger) CreateBill(ctx context.Context, bill *models.Bill) (*models.Bill, error) {
	return CreateBill(ctx, l.db, bill)
}

func (l *Ledger) GetBill(ctx context.Context, id string) (*models.Bill, error) {
	return GetBill(ctx, l.db, id)
}

func (l *Ledger) DeleteBill(ctx context.Context, id string) error {
	return DeleteBill(ctx, l.db, id)
}

func (l *Ledger) ListBillNumbers(ctx context.Context) ([]string, error) {
	return ListBillNumbers(ctx, l.db)
}

func (l *Ledger) ListBills(ctx context.Context, cursor string, limit int) (*CursorPage, error) {
	return ListBillsCursor(ctx, l.db, cursor, limit)
}

func (l *Ledger) Subscribe(ctx context.Context) (<-chan []models.Bill, error) {
	return subscribe(ctx, l.dsn, billsChannel, l.log, func(ctx context.Context) ([]models.Bill, error) {
		return RecentBills(ctx, l.db, liveBillLimit)
	})
}

type Analytics struct {
	db *sql.DB
}

func NewAnalytics(db *sql.DB) *Analytics {
	return &Analytics{db: db}
}

func (a *Analytics) Summary(ctx context.Context) (*models.SalesSummary, error) {
	return SalesSummary(ctx, a.db)
}

func (a *Analytics) Daily(ctx context.Context, from, to string) ([]models.DailySales, error) {
	return DailySales(ctx, a.db, from, to)
}

func (a *Analytics) TopProducts(ctx context.Context, limit int) ([]models.ProductSales, error) {
	return TopProducts(ctx, a.db, limit)
}

func (a *Analytics) LowStock(ctx context.Context, threshold int) ([]models.Product, error) {
	return LowStockProducts(ctx, a.db, threshold)
}

func (a *Analytics) InventoryValue(ctx context.Context) (*models.InventoryValue, error) {
	return InventoryValue(ctx, a.db)
}

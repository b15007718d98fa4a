package billing

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/safar/stockbill/internal/models"
)

var tracer = otel.Tracer("github.com/safar/stockbill/internal/billing")

type ProductReader interface {
	GetProduct(ctx context.Context, id string) (*models.Product, error)
}

// Catalog is the product store. ReserveStock and ReleaseStock must each be a
// single atomic read-check-write against one product and return the remaining
// quantity.
type Catalog interface {
	ProductReader
	ReserveStock(ctx context.Context, productID string, amount int) (int, error)
	ReleaseStock(ctx context.Context, productID string, amount int) (int, error)
}

// Reserver is the reservation strategy carts delegate to.
type Reserver interface {
	Reserve(ctx context.Context, productID string, amount int) (int, error)
	Release(ctx context.Context, productID string, amount int) (int, error)
	Adjust(ctx context.Context, productID string, oldAmount, newAmount int) error
}

type Recorder interface {
	StockReserved(ctx context.Context, amount int)
	StockReleased(ctx context.Context, amount int)
	ReleaseFailed(ctx context.Context)
	BillCommitted(ctx context.Context, total decimal.Decimal)
	CartsReaped(ctx context.Context, n int)
}

type nopRecorder struct{}

func (nopRecorder) StockReserved(context.Context, int) {}
func (nopRecorder) StockReleased(context.Context, int) {}
func (nopRecorder) ReleaseFailed(context.Context) {}
func (nopRecorder) BillCommitted(context.Context, decimal.Decimal) {}
func (nopRecorder) CartsReaped(context.Context, int) {}

type Engine struct {
	catalog  Catalog
	log      logrus.FieldLogger
	recorder Recorder
}

func NewEngine(catalog Catalog, log logrus.FieldLogger, recorder Recorder) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Engine{catalog: catalog, log: log, recorder: recorder}
}

func (e *Engine) Reserve(ctx context.Context, productID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, validationf("quantity", "quantity must be greater than 0")
	}

	ctx, span := tracer.Start(ctx, "stock.reserve", trace.WithAttributes(
		attribute.String("product.id", productID),
		attribute.Int("stock.amount", amount),
	))
	defer span.End()

	remaining, err := e.catalog.ReserveStock(ctx, productID, amount)
	if err != nil {
		err = translateStoreError("reserve stock", productID, amount, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	e.recorder.StockReserved(ctx, amount)
	e.log.WithFields(logrus.Fields{
		"product_id": productID,
		"amount":     amount,
		"remaining":  remaining,
	}).Debug("stock reserved")

	return remaining, nil
}

// Release returns stock to a product. Callers in cleanup paths treat the error
// as a warning rather than failing.
func (e *Engine) Release(ctx context.Context, productID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, validationf("quantity", "quantity must be greater than 0")
	}

	ctx, span := tracer.Start(ctx, "stock.release", trace.WithAttributes(
		attribute.String("product.id", productID),
		attribute.Int("stock.amount", amount),
	))
	defer span.End()

	remaining, err := e.catalog.ReleaseStock(ctx, productID, amount)
	if err != nil {
		err = translateStoreError("release stock", productID, amount, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.recorder.ReleaseFailed(ctx)
		return 0, err
	}

	e.recorder.StockReleased(ctx, amount)
	e.log.WithFields(logrus.Fields{
		"product_id": productID,
		"amount":     amount,
		"remaining":  remaining,
	}).Debug("stock released")

	return remaining, nil
}

func (e *Engine) Adjust(ctx context.Context, productID string, oldAmount, newAmount int) error {
	delta := newAmount - oldAmount
	switch {
	case delta > 0:
		_, err := e.Reserve(ctx, productID, delta)
		return err
	case delta < 0:
		_, err := e.Release(ctx, productID, -delta)
		return err
	default:
		return nil
	}
}

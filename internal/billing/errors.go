package billing

import (
	"errors"
	"fmt"

	"github.com/safar/stockbill/internal/database"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindInsufficientStock
	KindNotFound
	KindStoreUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindInsufficientStock:
		return "insufficient_stock"
	case KindNotFound:
		return "not_found"
	case KindStoreUnavailable:
		return "store_unavailable"
	default:
		return "unknown"
	}
}

// ValidationError reports malformed or missing user input. No side effects have
// happened when it is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	name := e.ProductName
	if name == "" {
		name = e.ProductID
	}
	return fmt.Sprintf("only %d items of %s available in stock (requested %d)", e.Available, name, e.Requested)
}

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error {
	return e.Err
}

// Warning is a best-effort failure that did not abort the operation that hit it,
// typically a stock release against a product deleted mid-session.
type Warning struct {
	ProductID string `json:"product_id"`
	Amount    int    `json:"amount"`
	Message   string `json:"message"`
}

func KindOf(err error) Kind {
	var (
		validationErr  *ValidationError
		stockErr       *InsufficientStockError
		notFoundErr    *NotFoundError
		unavailableErr *StoreUnavailableError
	)
	switch {
	case err == nil:
		return KindUnknown
	case errors.As(err, &validationErr):
		return KindValidation
	case errors.As(err, &stockErr):
		return KindInsufficientStock
	case errors.As(err, &notFoundErr):
		return KindNotFound
	case errors.As(err, &unavailableErr):
		return KindStoreUnavailable
	default:
		return KindUnknown
	}
}

func translateStoreError(op, productID string, requested int, err error) error {
	if KindOf(err) != KindUnknown {
		return err
	}

	var stockErr *database.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		return &InsufficientStockError{
			ProductID: productID,
			Requested: requested,
			Available: stockErr.Available,
		}
	case errors.Is(err, database.ErrProductNotFound):
		return &NotFoundError{Resource: "product", ID: productID}
	default:
		return &StoreUnavailableError{Op: op, Err: err}
	}
}

func validationf(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

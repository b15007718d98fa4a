package billing

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/safar/stockbill/internal/database"
	"github.com/safar/stockbill/internal/models"
)

const (
	billDateLayout = "2006-01-02"
	renderTimeout  = 30 * time.Second
)

type BillWriter interface {
	CreateBill(ctx context.Context, bill *models.Bill) (*models.Bill, error)
}

// Renderer produces a printable artifact for a persisted bill. It runs after the
// commit has completed and its failure never affects the bill.
type Renderer interface {
	Render(ctx context.Context, bill *models.Bill) error
}

type CommitterOptions struct {
	MaxAttempts int
	Renderer    Renderer
	Recorder    Recorder
	Logger      logrus.FieldLogger
}

type Committer struct {
	numbers     *Numberer
	ledger      BillWriter
	renderer    Renderer
	recorder    Recorder
	log         logrus.FieldLogger
	maxAttempts int

	renders sync.WaitGroup
}

func NewCommitter(numbers *Numberer, ledger BillWriter, opts CommitterOptions) *Committer {
	c := &Committer{
		numbers:     numbers,
		ledger:      ledger,
		renderer:    opts.Renderer,
		recorder:    opts.Recorder,
		log:         opts.Logger,
		maxAttempts: opts.MaxAttempts,
	}
	if c.recorder == nil {
		c.recorder = nopRecorder{}
	}
	if c.log == nil {
		c.log = logrus.StandardLogger()
	}
	if c.maxAttempts < 1 {
		c.maxAttempts = 1
	}
	return c
}

// Commit turns the cart into a persisted bill. Stock was reserved while the cart
// was built, so nothing is decremented here. On any failure the cart is left
// exactly as it was and the call can be retried.
func (c *Committer) Commit(ctx context.Context, cart *Cart) (*models.Bill, error) {
	ctx, span := tracer.Start(ctx, "bill.commit", trace.WithAttributes(
		attribute.String("cart.id", cart.id),
	))
	defer span.End()

	bill, err := c.commit(ctx, cart)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("bill.number", bill.BillNumber))
	return bill, nil
}

func (c *Committer) commit(ctx context.Context, cart *Cart) (*models.Bill, error) {
	cart.mu.Lock()
	defer cart.mu.Unlock()

	if err := cart.openLocked(); err != nil {
		return nil, err
	}
	if err := cart.validateLocked(); err != nil {
		return nil, err
	}
	draft := cart.billDraftLocked()
	log := cart.log

	var (
		bill *models.Bill
		err  error
	)
	for attempt := 1; ; attempt++ {
		number, value, nextErr := c.numbers.Next(ctx)
		if nextErr != nil {
			return nil, nextErr
		}

		candidate := *draft
		candidate.BillNumber = number
		candidate.BillNumberValue = value

		bill, err = c.ledger.CreateBill(ctx, &candidate)
		if err == nil {
			break
		}
		if errors.Is(err, database.ErrDuplicateBillNumber) && attempt < c.maxAttempts {
			log.WithFields(logrus.Fields{
				"bill_number": number,
				"attempt":     attempt,
			}).Warn("bill number taken, renumbering")
			continue
		}
		return nil, &StoreUnavailableError{Op: "persist bill", Err: err}
	}

	cart.forget(ctx)
	cart.clearLocked()

	c.recorder.BillCommitted(ctx, bill.Total)
	log.WithFields(logrus.Fields{
		"bill_number": bill.BillNumber,
		"amount":      bill.Total.String(),
		"items":       len(bill.Items),
	}).Info("bill committed")

	c.render(ctx, bill)
	return bill, nil
}

func (c *Committer) render(ctx context.Context, bill *models.Bill) {
	if c.renderer == nil {
		return
	}

	snapshot := *bill
	snapshot.Items = append([]models.BillItem(nil), bill.Items...)

	c.renders.Add(1)
	go func() {
		defer c.renders.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), renderTimeout)
		defer cancel()

		if err := c.renderer.Render(ctx, &snapshot); err != nil {
			c.log.WithField("bill_number", snapshot.BillNumber).WithError(err).Warn("failed to render bill")
		}
	}()
}

// Wait blocks until every render started by Commit has returned.
func (c *Committer) Wait() {
	c.renders.Wait()
}

func (c *Cart) validateLocked() error {
	if len(c.lines) == 0 {
		return validationf("items", "add at least one item to the bill")
	}
	if strings.TrimSpace(c.customer.FullName) == "" {
		return validationf("full_name", "customer name is required")
	}
	if c.customer.Date == "" {
		return validationf("date", "bill date is required")
	}
	if _, err := time.Parse(billDateLayout, c.customer.Date); err != nil {
		return validationf("date", "bill date must be in YYYY-MM-DD format")
	}
	return nil
}

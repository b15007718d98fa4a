package billing

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/safar/stockbill/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Journal mirrors the stock each cart holds so that reservations can be
// released after a crash. Implementations must tolerate being called for carts
// they have never seen.
type Journal interface {
	Record(ctx context.Context, cartID, productID string, delta int) error
	Touch(ctx context.Context, cartID string) error
	Forget(ctx context.Context, cartID string) error
}

type Line struct {
	Ref       string          `json:"ref"`
	ProductID string          `json:"product_id,omitempty"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	AdHoc     bool            `json:"ad_hoc"`
}

func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Customer struct {
	FullName string `json:"full_name"`
	Date     string `json:"date"`
	Address  string `json:"address"`
	Phone    string `json:"phone"`
}

type CartView struct {
	ID         string          `json:"id"`
	Lines      []Line          `json:"lines"`
	Customer   Customer        `json:"customer"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Discount   decimal.Decimal `json:"discount"`
	FinalTotal decimal.Decimal `json:"final_total"`
	GSTRate    decimal.Decimal `json:"gst_rate"`
	GSTAmount  decimal.Decimal `json:"gst_amount"`
	GrandTotal decimal.Decimal `json:"grand_total"`
	Due        *string         `json:"due"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Cart is one billing session. All operations on a cart are serialized by its
// mutex, including the store calls they make.
type Cart struct {
	id      string
	catalog ProductReader
	stock   Reserver
	journal Journal
	log     logrus.FieldLogger
	now     func() time.Time

	mu       sync.Mutex
	lines    []*Line
	customer Customer
	discount decimal.Decimal
	gstRate  decimal.Decimal
	due      *string
	warnings []Warning
	touched  time.Time
	closed   bool
}

func NewCart(id string, catalog ProductReader, stock Reserver, journal Journal, log logrus.FieldLogger) *Cart {
	if log == nil {
		log = logrus.StandardLogger()
	}
	c := &Cart{
		id:      id,
		catalog: catalog,
		stock:   stock,
		journal: journal,
		log:     log.WithField("cart_id", id),
		now:     time.Now,
	}
	c.touched = c.now()
	return c
}

func (c *Cart) ID() string {
	return c.id
}

func (c *Cart) AddCatalogLine(ctx context.Context, productID string, qty int) (Line, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return Line{}, validationf("product_id", "please select a product")
	}
	if qty <= 0 {
		return Line{}, validationf("quantity", "quantity must be greater than 0")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.openLocked(); err != nil {
		return Line{}, err
	}

	product, err := c.catalog.GetProduct(ctx, productID)
	if err != nil {
		return Line{}, translateStoreError("look up product", productID, qty, err)
	}

	if _, err := c.stock.Reserve(ctx, productID, qty); err != nil {
		var stockErr *InsufficientStockError
		if errors.As(err, &stockErr) {
			stockErr.ProductName = product.Name
		}
		return Line{}, err
	}
	c.record(ctx, productID, qty)

	line := c.catalogLineLocked(productID)
	if line != nil {
		line.Quantity += qty
	} else {
		line = &Line{
			Ref:       productID,
			ProductID: productID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Quantity:  qty,
		}
		c.lines = append(c.lines, line)
	}
	c.touchLocked(ctx)

	c.log.WithFields(logrus.Fields{
		"product_id": productID,
		"amount":     qty,
	}).Info("catalog line added")

	return *line, nil
}

// AddAdHocLine adds a line for an item outside the catalog. Ad-hoc lines never
// touch stock. Adding a name that already exists, ignoring case, increases the
// quantity of the existing line.
func (c *Cart) AddAdHocLine(ctx context.Context, name string, qty int, price decimal.Decimal) (Line, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Line{}, validationf("name", "item name is required")
	}
	if qty <= 0 {
		return Line{}, validationf("quantity", "quantity must be greater than 0")
	}
	if !price.IsPositive() {
		return Line{}, validationf("price", "price must be greater than 0")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.openLocked(); err != nil {
		return Line{}, err
	}

	for _, line := range c.lines {
		if line.AdHoc && strings.EqualFold(line.Name, name) {
			line.Quantity += qty
			c.touchLocked(ctx)
			return *line, nil
		}
	}

	line := &Line{
		Ref:       "adhoc-" + uuid.NewString(),
		Name:      name,
		UnitPrice: price,
		Quantity:  qty,
		AdHoc:     true,
	}
	c.lines = append(c.lines, line)
	c.touchLocked(ctx)

	return *line, nil
}

// UpdateLineQuantity sets a line's quantity, reserving or releasing only the
// difference. A quantity of zero or less removes the line.
func (c *Cart) UpdateLineQuantity(ctx context.Context, ref string, qty int) (Line, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.openLocked(); err != nil {
		return Line{}, err
	}

	idx := c.indexLocked(ref)
	if idx < 0 {
		return Line{}, &NotFoundError{Resource: "cart line", ID: ref}
	}
	if qty <= 0 {
		removed := *c.lines[idx]
		c.removeLocked(ctx, idx)
		removed.Quantity = 0
		return removed, nil
	}

	line := c.lines[idx]
	if line.AdHoc {
		line.Quantity = qty
		c.touchLocked(ctx)
		return *line, nil
	}

	old := line.Quantity
	if err := c.stock.Adjust(ctx, line.ProductID, old, qty); err != nil {
		if qty > old {
			var stockErr *InsufficientStockError
			if errors.As(err, &stockErr) {
				stockErr.ProductName = line.Name
			}
			return Line{}, err
		}
		c.warnLocked(line.ProductID, old-qty, err)
	}
	c.record(ctx, line.ProductID, qty-old)
	line.Quantity = qty
	c.touchLocked(ctx)

	return *line, nil
}

func (c *Cart) RemoveLine(ctx context.Context, ref string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.indexLocked(ref)
	if idx < 0 {
		return &NotFoundError{Resource: "cart line", ID: ref}
	}
	c.removeLocked(ctx, idx)
	return nil
}

func (c *Cart) SetCustomer(ctx context.Context, customer Customer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.customer = trimCustomer(customer)
	c.touchLocked(ctx)
}

func (c *Cart) SetDiscount(ctx context.Context, discount decimal.Decimal) error {
	if err := checkDiscount(discount); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.discount = discount
	c.touchLocked(ctx)
	return nil
}

func (c *Cart) SetGSTRate(ctx context.Context, rate decimal.Decimal) error {
	if err := checkGSTRate(rate); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.gstRate = rate
	c.touchLocked(ctx)
	return nil
}

func (c *Cart) SetDue(ctx context.Context, due string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setDueLocked(due)
	c.touchLocked(ctx)
}

// Terms is one customer form submission. Nil fields keep their current value.
type Terms struct {
	Customer Customer
	Discount *decimal.Decimal
	GSTRate  *decimal.Decimal
	Due      *string
}

// SetTerms applies a whole form or nothing: every field is checked before the
// cart changes.
func (c *Cart) SetTerms(ctx context.Context, terms Terms) error {
	if terms.Discount != nil {
		if err := checkDiscount(*terms.Discount); err != nil {
			return err
		}
	}
	if terms.GSTRate != nil {
		if err := checkGSTRate(*terms.GSTRate); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if terms.Discount != nil {
		c.discount = *terms.Discount
	}
	if terms.GSTRate != nil {
		c.gstRate = *terms.GSTRate
	}
	if terms.Due != nil {
		c.setDueLocked(*terms.Due)
	}
	c.customer = trimCustomer(terms.Customer)
	c.touchLocked(ctx)
	return nil
}

func (c *Cart) setDueLocked(due string) {
	if due = strings.TrimSpace(due); due == "" {
		c.due = nil
	} else {
		c.due = &due
	}
}

func trimCustomer(customer Customer) Customer {
	return Customer{
		FullName: strings.TrimSpace(customer.FullName),
		Date:     strings.TrimSpace(customer.Date),
		Address:  strings.TrimSpace(customer.Address),
		Phone:    strings.TrimSpace(customer.Phone),
	}
}

func checkDiscount(discount decimal.Decimal) error {
	if discount.IsNegative() {
		return validationf("discount", "discount must not be negative")
	}
	return nil
}

func checkGSTRate(rate decimal.Decimal) error {
	if rate.IsNegative() {
		return validationf("gst_rate", "GST rate must not be negative")
	}
	return nil
}

func (c *Cart) Lines() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.linesLocked()
}

func (c *Cart) Subtotal() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subtotalLocked()
}

func (c *Cart) FinalTotal() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finalTotalLocked()
}

func (c *Cart) View() CartView {
	c.mu.Lock()
	defer c.mu.Unlock()

	final := c.finalTotalLocked()
	gst := c.gstAmountLocked(final)
	view := CartView{
		ID:         c.id,
		Lines:      c.linesLocked(),
		Customer:   c.customer,
		Subtotal:   c.subtotalLocked(),
		Discount:   c.discount,
		FinalTotal: final,
		GSTRate:    c.gstRate,
		GSTAmount:  gst,
		GrandTotal: final.Add(gst),
		UpdatedAt:  c.touched,
	}
	if c.due != nil {
		due := *c.due
		view.Due = &due
	}
	return view
}

// DrainWarnings returns and clears the warnings collected since the last call.
func (c *Cart) DrainWarnings() []Warning {
	c.mu.Lock()
	defer c.mu.Unlock()

	warnings := c.warnings
	c.warnings = nil
	return warnings
}

func (c *Cart) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.touched
}

// Clear resets the cart without releasing stock. It is used after a successful
// commit, when the reserved stock has become a sale.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
}

// Cancel releases every catalog reservation the cart holds and closes the
// cart. Release failures are returned as warnings.
func (c *Cart) Cancel(ctx context.Context) []Warning {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelLocked(ctx)
}

func (c *Cart) cancelIfIdle(ctx context.Context, cutoff time.Time) ([]Warning, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || !c.touched.Before(cutoff) {
		return nil, false
	}
	return c.cancelLocked(ctx), true
}

func (c *Cart) cancelLocked(ctx context.Context) []Warning {
	if c.closed {
		return nil
	}

	for _, line := range c.lines {
		if line.AdHoc {
			continue
		}
		if _, err := c.stock.Release(ctx, line.ProductID, line.Quantity); err != nil {
			c.warnLocked(line.ProductID, line.Quantity, err)
		}
	}
	c.forget(ctx)

	warnings := c.warnings
	c.clearLocked()
	c.closed = true
	c.log.WithField("warnings", len(warnings)).Info("cart cancelled")
	return warnings
}

func (c *Cart) openLocked() error {
	if c.closed {
		return &NotFoundError{Resource: "cart", ID: c.id}
	}
	return nil
}

func (c *Cart) removeLocked(ctx context.Context, idx int) {
	line := c.lines[idx]
	if !line.AdHoc {
		if _, err := c.stock.Release(ctx, line.ProductID, line.Quantity); err != nil {
			c.warnLocked(line.ProductID, line.Quantity, err)
		}
		c.record(ctx, line.ProductID, -line.Quantity)
	}
	c.lines = append(c.lines[:idx], c.lines[idx+1:]...)
	c.touchLocked(ctx)
}

func (c *Cart) warnLocked(productID string, amount int, err error) {
	c.log.WithFields(logrus.Fields{
		"event":      "stock_release_failed",
		"product_id": productID,
		"amount":     amount,
	}).WithError(err).Warn("failed to release reserved stock")

	c.warnings = append(c.warnings, Warning{
		ProductID: productID,
		Amount:    amount,
		Message:   err.Error(),
	})
}

func (c *Cart) record(ctx context.Context, productID string, delta int) {
	if c.journal == nil || delta == 0 {
		return
	}
	if err := c.journal.Record(ctx, c.id, productID, delta); err != nil {
		c.log.WithField("product_id", productID).WithError(err).Warn("failed to journal reservation")
	}
}

func (c *Cart) forget(ctx context.Context) {
	if c.journal == nil {
		return
	}
	if err := c.journal.Forget(ctx, c.id); err != nil {
		c.log.WithError(err).Warn("failed to drop reservation journal")
	}
}

func (c *Cart) touchLocked(ctx context.Context) {
	c.touched = c.now()
	if c.journal == nil {
		return
	}
	if err := c.journal.Touch(ctx, c.id); err != nil {
		c.log.WithError(err).Debug("failed to touch reservation journal")
	}
}

func (c *Cart) clearLocked() {
	c.lines = nil
	c.customer = Customer{}
	c.discount = decimal.Zero
	c.gstRate = decimal.Zero
	c.due = nil
	c.warnings = nil
	c.touched = c.now()
}

func (c *Cart) catalogLineLocked(productID string) *Line {
	for _, line := range c.lines {
		if !line.AdHoc && line.ProductID == productID {
			return line
		}
	}
	return nil
}

func (c *Cart) indexLocked(ref string) int {
	for i, line := range c.lines {
		if line.Ref == ref {
			return i
		}
	}
	return -1
}

func (c *Cart) linesLocked() []Line {
	lines := make([]Line, len(c.lines))
	for i, line := range c.lines {
		lines[i] = *line
	}
	return lines
}

func (c *Cart) subtotalLocked() decimal.Decimal {
	subtotal := decimal.Zero
	for _, line := range c.lines {
		subtotal = subtotal.Add(line.Subtotal())
	}
	return subtotal
}

func (c *Cart) finalTotalLocked() decimal.Decimal {
	total := c.subtotalLocked().Sub(c.discount)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

func (c *Cart) gstAmountLocked(finalTotal decimal.Decimal) decimal.Decimal {
	if c.gstRate.IsZero() {
		return decimal.Zero
	}
	return finalTotal.Mul(c.gstRate).Div(hundred).Round(2)
}

func (c *Cart) billDraftLocked() *models.Bill {
	final := c.finalTotalLocked()
	gst := c.gstAmountLocked(final)

	items := make([]models.BillItem, len(c.lines))
	for i, line := range c.lines {
		items[i] = models.BillItem{
			ProductID:   line.ProductID,
			ProductName: line.Name,
			Price:       line.UnitPrice,
			Quantity:    line.Quantity,
			Subtotal:    line.Subtotal(),
		}
	}

	bill := &models.Bill{
		FullName:  c.customer.FullName,
		Date:      c.customer.Date,
		Address:   c.customer.Address,
		Phone:     c.customer.Phone,
		Discount:  c.discount,
		GSTRate:   c.gstRate,
		GSTAmount: gst,
		Items:     items,
		Subtotal:  c.subtotalLocked(),
		Total:     final.Add(gst),
	}
	if c.due != nil {
		due := *c.due
		bill.Due = &due
	}
	return bill
}

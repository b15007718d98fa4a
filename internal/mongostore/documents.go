package mongostore

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/safar/stockbill/internal/models"
)

type productDoc struct {
	ID          string               `bson:"_id"`
	Name        string               `bson:"name"`
	Category    string               `bson:"category"`
	Subcategory string               `bson:"subcategory"`
	Price       primitive.Decimal128 `bson:"price"`
	Quantity    int                  `bson:"quantity"`
	Variations  []variationDoc       `bson:"variations"`
	CreatedAt   time.Time            `bson:"created_at"`
	UpdatedAt   time.Time            `bson:"updated_at"`
}

type variationDoc struct {
	Size     string               `bson:"size"`
	Price    primitive.Decimal128 `bson:"price"`
	Quantity int                  `bson:"quantity"`
}

type billDoc struct {
	ID              string               `bson:"_id"`
	BillNumber      string               `bson:"bill_number"`
	BillNumberValue int64                `bson:"bill_number_value"`
	FullName        string               `bson:"full_name"`
	Date            string               `bson:"date"`
	Address         string               `bson:"address"`
	Phone           string               `bson:"phone"`
	Discount        primitive.Decimal128 `bson:"discount"`
	GSTRate         primitive.Decimal128 `bson:"gst_rate"`
	GSTAmount       primitive.Decimal128 `bson:"gst_amount"`
	Due             *string              `bson:"due"`
	Items           []billItemDoc        `bson:"items"`
	Subtotal        primitive.Decimal128 `bson:"subtotal"`
	Total           primitive.Decimal128 `bson:"total"`
	CreatedAt       time.Time            `bson:"created_at"`
}

type billItemDoc struct {
	ProductID   string               `bson:"product_id,omitempty"`
	ProductName string               `bson:"product_name"`
	Price       primitive.Decimal128 `bson:"price"`
	Quantity    int                  `bson:"quantity"`
	Subtotal    primitive.Decimal128 `bson:"subtotal"`
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("convert %s to decimal128: %w", d, err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) decimal.Decimal {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}

// decimals converts several values at once and reports the first failure.
type decimals struct {
	err error
}

func (c *decimals) to(d decimal.Decimal) primitive.Decimal128 {
	if c.err != nil {
		return primitive.Decimal128{}
	}
	v, err := toDecimal128(d)
	c.err = err
	return v
}

func newProductDoc(p models.Product) (productDoc, error) {
	var conv decimals
	doc := productDoc{
		ID:          p.ID,
		Name:        p.Name,
		Category:    p.Category,
		Subcategory: p.Subcategory,
		Price:       conv.to(p.Price),
		Quantity:    p.Quantity,
		Variations:  make([]variationDoc, 0, len(p.Variations)),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	for _, v := range p.Variations {
		doc.Variations = append(doc.Variations, variationDoc{
			Size:     v.Size,
			Price:    conv.to(v.Price),
			Quantity: v.Quantity,
		})
	}
	return doc, conv.err
}

func (d productDoc) model() models.Product {
	p := models.Product{
		ID:          d.ID,
		Name:        d.Name,
		Category:    d.Category,
		Subcategory: d.Subcategory,
		Price:       fromDecimal128(d.Price),
		Quantity:    d.Quantity,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	for _, v := range d.Variations {
		p.Variations = append(p.Variations, models.Variation{
			Size:     v.Size,
			Price:    fromDecimal128(v.Price),
			Quantity: v.Quantity,
		})
	}
	return p
}

func newBillDoc(b models.Bill) (billDoc, error) {
	var conv decimals
	doc := billDoc{
		ID:              b.ID,
		BillNumber:      b.BillNumber,
		BillNumberValue: b.BillNumberValue,
		FullName:        b.FullName,
		Date:            b.Date,
		Address:         b.Address,
		Phone:           b.Phone,
		Discount:        conv.to(b.Discount),
		GSTRate:         conv.to(b.GSTRate),
		GSTAmount:       conv.to(b.GSTAmount),
		Due:             b.Due,
		Items:           make([]billItemDoc, 0, len(b.Items)),
		Subtotal:        conv.to(b.Subtotal),
		Total:           conv.to(b.Total),
		CreatedAt:       b.CreatedAt,
	}
	for _, item := range b.Items {
		doc.Items = append(doc.Items, billItemDoc{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Price:       conv.to(item.Price),
			Quantity:    item.Quantity,
			Subtotal:    conv.to(item.Subtotal),
		})
	}
	return doc, conv.err
}

func (d billDoc) model() models.Bill {
	b := models.Bill{
		ID:              d.ID,
		BillNumber:      d.BillNumber,
		BillNumberValue: d.BillNumberValue,
		FullName:        d.FullName,
		Date:            d.Date,
		Address:         d.Address,
		Phone:           d.Phone,
		Discount:        fromDecimal128(d.Discount),
		GSTRate:         fromDecimal128(d.GSTRate),
		GSTAmount:       fromDecimal128(d.GSTAmount),
		Due:             d.Due,
		Items:           make([]models.BillItem, 0, len(d.Items)),
		Subtotal:        fromDecimal128(d.Subtotal),
		Total:           fromDecimal128(d.Total),
		CreatedAt:       d.CreatedAt,
	}
	for _, item := range d.Items {
		b.Items = append(b.Items, models.BillItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Price:       fromDecimal128(item.Price),
			Quantity:    item.Quantity,
			Subtotal:    fromDecimal128(item.Subtotal),
		})
	}
	return b
}

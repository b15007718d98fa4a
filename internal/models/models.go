package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Subcategory string          `json:"subcategory,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Variations  Variations      `json:"variations,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Variation is a sized sub-record of a product. The quantities of all variations
// sum to the product's displayed total.
type Variation struct {
	Size     string          `json:"size"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

type Variations []Variation

func (v Variations) TotalQuantity() int {
	total := 0
	for _, variation := range v {
		total += variation.Quantity
	}
	return total
}

func (v Variations) Value() (driver.Value, error) {
	if v == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(v)
}

func (v *Variations) Scan(src interface{}) error {
	var data []byte
	switch s := src.(type) {
	case nil:
		*v = nil
		return nil
	case []byte:
		data = s
	case string:
		data = []byte(s)
	default:
		return fmt.Errorf("scan variations: unsupported type %T", src)
	}
	return json.Unmarshal(data, v)
}

type Bill struct {
	ID              string          `json:"id"`
	BillNumber      string          `json:"bill_number"`
	BillNumberValue int64           `json:"bill_number_value"`
	FullName        string          `json:"full_name"`
	Date            string          `json:"date"`
	Address         string          `json:"address"`
	Phone           string          `json:"phone"`
	Discount        decimal.Decimal `json:"discount"`
	GSTRate         decimal.Decimal `json:"gst_rate"`
	GSTAmount       decimal.Decimal `json:"gst_amount"`
	Due             *string         `json:"due"`
	Items           []BillItem      `json:"items"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Total           decimal.Decimal `json:"total"`
	CreatedAt       time.Time       `json:"created_at"`
}

type BillItem struct {
	ProductID   string          `json:"product_id,omitempty"`
	ProductName string          `json:"product_name"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type SalesSummary struct {
	TotalSales decimal.Decimal `json:"total_sales"`
	BillCount  int64           `json:"bill_count"`
}

type DailySales struct {
	Date      string          `json:"date"`
	Total     decimal.Decimal `json:"total"`
	BillCount int64           `json:"bill_count"`
}

type ProductSales struct {
	ProductID    string          `json:"product_id"`
	ProductName  string          `json:"product_name"`
	Quantity     int64           `json:"quantity"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	BillCount    int64           `json:"bill_count"`
}

type InventoryValue struct {
	TotalValue decimal.Decimal `json:"total_value"`
	Products   []ProductValue  `json:"products"`
}

type ProductValue struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Value     decimal.Decimal `json:"value"`
}

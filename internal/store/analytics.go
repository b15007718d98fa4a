package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/safar/stockbill/internal/models"
)

func SalesSummary(ctx context.Context, db *sql.DB) (*models.SalesSummary, error) {
	summary := &models.SalesSummary{}

	err := db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(total), 0), COUNT(*) FROM bills`).Scan(&summary.TotalSales, &summary.BillCount)
	if err != nil {
		return nil, fmt.Errorf("sales summary: %w", err)
	}

	return summary, nil
}

// DailySales groups bills by their bill date. Empty bounds are open.
func DailySales(ctx context.Context, db *sql.DB, from, to string) ([]models.DailySales, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT date, SUM(total), COUNT(*)
		 FROM bills
		 WHERE ($1 = '' OR date >= $1)
		   AND ($2 = '' OR date <= $2)
		 GROUP BY date
		 ORDER BY date`,
		from, to)
	if err != nil {
		return nil, fmt.Errorf("daily sales: %w", err)
	}
	defer rows.Close()

	days := []models.DailySales{}
	for rows.Next() {
		var day models.DailySales
		if err := rows.Scan(&day.Date, &day.Total, &day.BillCount); err != nil {
			return nil, fmt.Errorf("scan daily sales: %w", err)
		}
		days = append(days, day)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return days, nil
}

// TopProducts ranks sold items by quantity. Ad-hoc items are grouped by name
// with an empty product ID.
func TopProducts(ctx context.Context, db *sql.DB, limit int) ([]models.ProductSales, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT COALESCE(product_id, ''), product_name, SUM(quantity), SUM(subtotal), COUNT(DISTINCT bill_id)
		 FROM bill_items
		 GROUP BY COALESCE(product_id, ''), product_name
		 ORDER BY SUM(quantity) DESC, product_name
		 LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("top products: %w", err)
	}
	defer rows.Close()

	sales := []models.ProductSales{}
	for rows.Next() {
		var s models.ProductSales
		if err := rows.Scan(&s.ProductID, &s.ProductName, &s.Quantity, &s.TotalRevenue, &s.BillCount); err != nil {
			return nil, fmt.Errorf("scan product sales: %w", err)
		}
		sales = append(sales, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return sales, nil
}

func LowStockProducts(ctx context.Context, db *sql.DB, threshold int) ([]models.Product, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE quantity <= $1 ORDER BY quantity, name`,
		threshold)
	if err != nil {
		return nil, fmt.Errorf("low stock products: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

func InventoryValue(ctx context.Context, db *sql.DB) (*models.InventoryValue, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, quantity, price * quantity AS value
		 FROM products
		 ORDER BY value DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("inventory value: %w", err)
	}
	defer rows.Close()

	inventory := &models.InventoryValue{TotalValue: decimal.Zero, Products: []models.ProductValue{}}
	for rows.Next() {
		var pv models.ProductValue
		if err := rows.Scan(&pv.ProductID, &pv.Name, &pv.Quantity, &pv.Value); err != nil {
			return nil, fmt.Errorf("scan inventory value: %w", err)
		}
		inventory.TotalValue = inventory.TotalValue.Add(pv.Value)
		inventory.Products = append(inventory.Products, pv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return inventory, nil
}

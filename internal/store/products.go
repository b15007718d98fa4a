package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/stockbill/internal/database"
	"github.com/safar/stockbill/internal/models"
)

const productColumns = `id, name, category, subcategory, price, quantity, variations, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner, product *models.Product) error {
	return row.Scan(
		&product.ID,
		&product.Name,
		&product.Category,
		&product.Subcategory,
		&product.Price,
		&product.Quantity,
		&product.Variations,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
}

func CreateProduct(ctx context.Context, db *sql.DB, p models.Product) (*models.Product, error) {
	if len(p.Variations) > 0 && p.Quantity == 0 {
		p.Quantity = p.Variations.TotalQuantity()
	}

	product := &models.Product{}
	query := `
		INSERT INTO products (name, category, subcategory, price, quantity, variations, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING ` + productColumns

	err := scanProduct(db.QueryRowContext(ctx, query,
		p.Name, p.Category, p.Subcategory, p.Price, p.Quantity, p.Variations), product)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	return product, nil
}

func GetProduct(ctx context.Context, db *sql.DB, id string) (*models.Product, error) {
	product := &models.Product{}

	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	err := scanProduct(db.QueryRowContext(ctx, query, id), product)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return product, nil
}

func DeleteProduct(ctx context.Context, db *sql.DB, id string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrProductNotFound
	}

	return nil
}

// ReserveStock decrements a product's quantity by amount under a row lock. The
// check and the write happen in one transaction, so two callers can never both
// take the last units.
func ReserveStock(ctx context.Context, db *sql.DB, productID string, amount int) (int, error) {
	var remaining int

	err := database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var available int
		err := tx.QueryRowContext(ctx,
			`SELECT quantity FROM products WHERE id = $1 FOR UPDATE`,
			productID).Scan(&available)
		if err != nil {
			if err == sql.ErrNoRows {
				return database.ErrProductNotFound
			}
			return fmt.Errorf("lock product: %w", err)
		}

		if available < amount {
			return &database.InsufficientStockError{
				ProductID: productID,
				Requested: amount,
				Available: available,
			}
		}

		err = tx.QueryRowContext(ctx,
			`UPDATE products
			 SET quantity = quantity - $1,
			     updated_at = NOW()
			 WHERE id = $2
			 RETURNING quantity`,
			amount, productID).Scan(&remaining)
		if err != nil {
			return fmt.Errorf("decrement stock: %w", err)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return remaining, nil
}

func ReleaseStock(ctx context.Context, db *sql.DB, productID string, amount int) (int, error) {
	var remaining int

	err := db.QueryRowContext(ctx,
		`UPDATE products
		 SET quantity = quantity + $1,
		     updated_at = NOW()
		 WHERE id = $2
		 RETURNING quantity`,
		amount, productID).Scan(&remaining)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, database.ErrProductNotFound
		}
		return 0, fmt.Errorf("increment stock: %w", err)
	}

	return remaining, nil
}

func ListProducts(ctx context.Context, db *sql.DB, page, pageSize int) (*OffsetPage, error) {
	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `
		SELECT ` + productColumns + `
		FROM products
		ORDER BY name, id
		LIMIT $1 OFFSET $2`

	rows, err := db.QueryContext(ctx, query, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products, err := scanProducts(rows)
	if err != nil {
		return nil, err
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}

	return &OffsetPage{
		Items:      products,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

func AllProducts(ctx context.Context, db *sql.DB) ([]models.Product, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

func scanProducts(rows *sql.Rows) ([]models.Product, error) {
	products := []models.Product{}
	for rows.Next() {
		var product models.Product
		if err := scanProduct(rows, &product); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return products, nil
}

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/stockbill/internal/database"
	"github.com/safar/stockbill/internal/models"
)

const (
	billColumns = `id, bill_number, bill_number_value, full_name, date, address, phone,
		discount, gst_rate, gst_amount, due, subtotal, total, created_at`

	billNumberConstraint = "bills_bill_number_value_key"
)

func scanBill(row rowScanner, bill *models.Bill) error {
	var due sql.NullString
	err := row.Scan(
		&bill.ID,
		&bill.BillNumber,
		&bill.BillNumberValue,
		&bill.FullName,
		&bill.Date,
		&bill.Address,
		&bill.Phone,
		&bill.Discount,
		&bill.GSTRate,
		&bill.GSTAmount,
		&due,
		&bill.Subtotal,
		&bill.Total,
		&bill.CreatedAt,
	)
	if err != nil {
		return err
	}
	if due.Valid {
		bill.Due = &due.String
	}
	return nil
}

// CreateBill writes the bill header and its items in one transaction. A taken
// bill number is reported as ErrDuplicateBillNumber so the caller can renumber.
func CreateBill(ctx context.Context, db *sql.DB, bill *models.Bill) (*models.Bill, error) {
	created := &models.Bill{}

	err := database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var due sql.NullString
		if bill.Due != nil {
			due = sql.NullString{String: *bill.Due, Valid: true}
		}

		err := scanBill(tx.QueryRowContext(ctx,
			`INSERT INTO bills (bill_number, bill_number_value, full_name, date, address, phone,
			                    discount, gst_rate, gst_amount, due, subtotal, total, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
			 RETURNING `+billColumns,
			bill.BillNumber, bill.BillNumberValue, bill.FullName, bill.Date, bill.Address, bill.Phone,
			bill.Discount, bill.GSTRate, bill.GSTAmount, due, bill.Subtotal, bill.Total), created)
		if err != nil {
			if database.IsUniqueViolation(err, billNumberConstraint) {
				return database.ErrDuplicateBillNumber
			}
			return fmt.Errorf("create bill: %w", err)
		}

		for i, item := range bill.Items {
			var productID sql.NullString
			if item.ProductID != "" {
				productID = sql.NullString{String: item.ProductID, Valid: true}
			}

			_, err = tx.ExecContext(ctx,
				`INSERT INTO bill_items (bill_id, position, product_id, product_name, price, quantity, subtotal)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				created.ID, i, productID, item.ProductName, item.Price, item.Quantity, item.Subtotal)
			if err != nil {
				return fmt.Errorf("create bill item: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	created.Items = append([]models.BillItem(nil), bill.Items...)
	return created, nil
}

func GetBill(ctx context.Context, db *sql.DB, id string) (*models.Bill, error) {
	bill := &models.Bill{}

	err := scanBill(db.QueryRowContext(ctx, `SELECT `+billColumns+` FROM bills WHERE id = $1`, id), bill)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrBillNotFound
		}
		return nil, fmt.Errorf("get bill: %w", err)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT product_id, product_name, price, quantity, subtotal
		 FROM bill_items
		 WHERE bill_id = $1
		 ORDER BY position`,
		id)
	if err != nil {
		return nil, fmt.Errorf("get bill items: %w", err)
	}
	defer rows.Close()

	items := []models.BillItem{}
	for rows.Next() {
		var (
			item      models.BillItem
			productID sql.NullString
		)
		err := rows.Scan(
			&productID,
			&item.ProductName,
			&item.Price,
			&item.Quantity,
			&item.Subtotal,
		)
		if err != nil {
			return nil, fmt.Errorf("scan bill item: %w", err)
		}
		item.ProductID = productID.String
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	bill.Items = items

	return bill, nil
}

// DeleteBill removes a bill and its items and retires its number. Stock sold on
// the bill is not returned to the catalog.
func DeleteBill(ctx context.Context, db *sql.DB, id string) error {
	return database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var (
			number string
			value  int64
		)
		err := tx.QueryRowContext(ctx,
			`DELETE FROM bills WHERE id = $1 RETURNING bill_number, bill_number_value`, id).
			Scan(&number, &value)
		if err != nil {
			if err == sql.ErrNoRows {
				return database.ErrBillNotFound
			}
			return fmt.Errorf("delete bill: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO retired_bill_numbers (bill_number, bill_number_value)
			 VALUES ($1, $2)
			 ON CONFLICT (bill_number) DO NOTHING`,
			number, value)
		if err != nil {
			return fmt.Errorf("retire bill number: %w", err)
		}

		return nil
	})
}

// ListBillNumbers returns every bill number ever issued, live or retired.
// Numbering takes the maximum over this full scan.
func ListBillNumbers(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT bill_number FROM bills
		 UNION ALL
		 SELECT bill_number FROM retired_bill_numbers`)
	if err != nil {
		return nil, fmt.Errorf("list bill numbers: %w", err)
	}
	defer rows.Close()

	var numbers []string
	for rows.Next() {
		var number string
		if err := rows.Scan(&number); err != nil {
			return nil, fmt.Errorf("scan bill number: %w", err)
		}
		numbers = append(numbers, number)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return numbers, nil
}

func ListBillsCursor(ctx context.Context, db *sql.DB, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	query := `
		SELECT ` + billColumns + `
		FROM bills
		WHERE bill_number_value < $1
		ORDER BY bill_number_value DESC
		LIMIT $2`

	rows, err := db.QueryContext(ctx, query, cursorData.NumberValue, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	defer rows.Close()

	bills, err := scanBills(rows)
	if err != nil {
		return nil, err
	}

	return NextPage(bills, limit, func(b models.Bill) int64 { return b.BillNumberValue }), nil
}

// RecentBills returns the newest bills without their items.
func RecentBills(ctx context.Context, db *sql.DB, limit int) ([]models.Bill, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+billColumns+` FROM bills ORDER BY bill_number_value DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent bills: %w", err)
	}
	defer rows.Close()

	return scanBills(rows)
}

func scanBills(rows *sql.Rows) ([]models.Bill, error) {
	bills := []models.Bill{}
	for rows.Next() {
		var bill models.Bill
		if err := scanBill(rows, &bill); err != nil {
			return nil, fmt.Errorf("scan bill: %w", err)
		}
		bills = append(bills, bill)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return bills, nil
}

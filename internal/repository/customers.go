package repository

import (
	"context"
	"fmt"

	"github.com/jmehdipour/utility-billing/internal/model"
	"github.com/jmoiron/sqlx"
)

const customerColumns = `customer_id, first_name, last_name, phone_number, email,
       service_address, city, zip_code, account_status, created_at, updated_at`

func (r queries) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	var rows []model.Customer
	err := sqlx.SelectContext(ctx, r.q, &rows, `
		SELECT `+customerColumns+`
		  FROM customers
		 ORDER BY customer_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	return rows, nil
}

func (r queries) GetCustomer(ctx context.Context, id string) (*model.Customer, error) {
	var c model.Customer
	err := sqlx.GetContext(ctx, r.q, &c, `
		SELECT `+customerColumns+`
		  FROM customers
		 WHERE customer_id = ? LIMIT 1
	`, id)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get customer %s: %w", id, err)
	}
	return &c, nil
}

func (t *mysqlTx) InsertCustomer(ctx context.Context, c model.Customer) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO customers
		    (customer_id, first_name, last_name, phone_number, email,
		     service_address, city, zip_code, account_status, created_at, updated_at)
		VALUES
		    (?, ?, ?, ?, ?, ?, ?, ?, ?, NOW(), NOW())
	`, c.ID, c.FirstName, c.LastName, c.PhoneNumber, c.Email,
		c.ServiceAddress, c.City, c.ZipCode, c.Status)
	if err != nil {
		return fmt.Errorf("insert customer %s: %w", c.ID, err)
	}
	return nil
}

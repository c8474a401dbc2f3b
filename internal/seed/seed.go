// Package seed holds the demo dataset loaded by `ubms seed` and by the
// in-memory store driver.
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/jmehdipour/utility-billing/internal/idgen"
	"github.com/jmehdipour/utility-billing/internal/model"
	"github.com/jmehdipour/utility-billing/internal/repository/memory"
)

type Dataset struct {
	Customers []model.Customer
	Accounts  []model.Account
	Meters    []model.Meter
	Charges   []model.Charge
	Bills     []model.Bill
}

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func dayp(y int, m time.Month, d int) *time.Time {
	t := day(y, m, d)
	return &t
}

// DefaultCharges is the tariff every fresh install starts from.
func DefaultCharges() []model.Charge {
	now := time.Now().UTC().Truncate(time.Second)
	return []model.Charge{
		{UtilityType: model.UtilityElectricity, RatePerUnit: decimal.RequireFromString("18.50"),
			FixedCharge: decimal.NewFromInt(500), TaxPercentage: decimal.NewFromInt(15), ServiceFee: decimal.NewFromInt(100), UpdatedAt: now},
		{UtilityType: model.UtilityGas, RatePerUnit: decimal.NewFromInt(12),
			FixedCharge: decimal.NewFromInt(300), TaxPercentage: decimal.NewFromInt(10), ServiceFee: decimal.NewFromInt(50), UpdatedAt: now},
		{UtilityType: model.UtilityWater, RatePerUnit: decimal.NewFromInt(8),
			FixedCharge: decimal.NewFromInt(200), TaxPercentage: decimal.NewFromInt(5), ServiceFee: decimal.NewFromInt(20), UpdatedAt: now},
	}
}

// Demo returns a small deterministic dataset.
func Demo() Dataset {
	created := day(2024, time.January, 10)
	customer := func(n int64, first, last, phone, email, addr, city, zip string, st model.CustomerStatus) model.Customer {
		return model.Customer{
			ID: idgen.Format(idgen.EntityCustomer, n), FirstName: first, LastName: last,
			PhoneNumber: phone, Email: email, ServiceAddress: addr, City: city, ZipCode: zip,
			Status: st, CreatedAt: created, UpdatedAt: created,
		}
	}
	account := func(n, owner int64, start time.Time, balance string) model.Account {
		return model.Account{
			ID: idgen.Format(idgen.EntityAccount, n), CustomerID: idgen.Format(idgen.EntityCustomer, owner),
			ServiceStartDate: start, BillingCycle: model.BillingCycleMonthly,
			Balance: decimal.RequireFromString(balance), CreatedAt: start,
		}
	}
	bill := func(id string, acc int64, issued time.Time, amount string, st model.BillStatus) model.Bill {
		due := issued.AddDate(0, 0, 15)
		return model.Bill{
			ID: id, AccountID: idgen.Format(idgen.EntityAccount, acc), IssueDate: issued,
			DueDate: &due, Amount: decimal.RequireFromString(amount), Status: st,
		}
	}

	return Dataset{
		Customers: []model.Customer{
			customer(1, "Amina", "Rahman", "+8801711000001", "amina@example.com", "12 Lake Road", "Dhaka", "1205", model.CustomerActive),
			customer(2, "Jonas", "Berg", "+4670000002", "jonas@example.com", "4 Harbour St", "Stockholm", "11122", model.CustomerActive),
			customer(3, "Lucia", "Moreno", "+34600000003", "lucia@example.com", "88 Calle Mayor", "Madrid", "28013", model.CustomerSuspended),
		},
		Accounts: []model.Account{
			account(1, 1, day(2024, time.January, 10), "0"),
			account(2, 2, day(2024, time.February, 1), "1250.00"),
			account(3, 2, day(2024, time.June, 1), "0"),
			account(4, 3, day(2024, time.March, 15), "430.75"),
		},
		Meters: []model.Meter{
			{ID: idgen.Format(idgen.EntityMeter, 1), AccountID: idgen.Format(idgen.EntityAccount, 1),
				UtilityType: model.UtilityElectricity, Status: model.MeterActive, InstalledAt: day(2024, time.January, 12)},
			{ID: idgen.Format(idgen.EntityMeter, 2), AccountID: idgen.Format(idgen.EntityAccount, 2),
				UtilityType: model.UtilityGas, Status: model.MeterActive, InstalledAt: day(2024, time.February, 3)},
			{ID: idgen.Format(idgen.EntityMeter, 3), AccountID: idgen.Format(idgen.EntityAccount, 4),
				UtilityType: model.UtilityWater, Status: model.MeterInactive, InstalledAt: day(2024, time.March, 16),
				RemovedAt: dayp(2024, time.September, 1)},
		},
		Charges: DefaultCharges(),
		Bills: []model.Bill{
			bill("BILL-0001", 1, day(2024, time.February, 1), "2817.50", model.BillPaid),
			bill("BILL-0002", 1, day(2024, time.March, 1), "3112.25", model.BillPaid),
			bill("BILL-0003", 2, day(2024, time.March, 1), "1250.00", model.BillOverdue),
			bill("BILL-0004", 4, day(2024, time.April, 1), "430.75", model.BillUnpaid),
		},
	}
}

// ApplyMemory loads d into an in-memory store.
func ApplyMemory(st *memory.Store, d Dataset) {
	for _, c := range d.Customers {
		st.PutCustomer(c)
	}
	for _, a := range d.Accounts {
		st.PutAccount(a)
	}
	for _, m := range d.Meters {
		st.PutMeter(m)
	}
	for _, c := range d.Charges {
		st.PutCharge(c)
	}
	for _, b := range d.Bills {
		st.PutBill(b)
	}
}

// ApplyMySQL upserts d in one transaction and raises the id sequences to at
// least the seeded identifiers. Running it twice is harmless.
func ApplyMySQL(ctx context.Context, db *sqlx.DB, d Dataset) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, c := range d.Customers {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO customers
    (customer_id, first_name, last_name, phone_number, email,
     service_address, city, zip_code, account_status, created_at, updated_at)
VALUES
    (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    first_name = VALUES(first_name),
    last_name  = VALUES(last_name),
    account_status = VALUES(account_status),
    updated_at = VALUES(updated_at)
`, c.ID, c.FirstName, c.LastName, c.PhoneNumber, c.Email,
			c.ServiceAddress, c.City, c.ZipCode, c.Status, c.CreatedAt, c.UpdatedAt); err != nil {
			return fmt.Errorf("seed customer %s: %w", c.ID, err)
		}
	}

	for _, a := range d.Accounts {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO accounts
    (account_id, customer_id, service_start_date, billing_cycle, balance, created_at)
VALUES
    (?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE balance = VALUES(balance)
`, a.ID, a.CustomerID, a.ServiceStartDate, a.BillingCycle, a.Balance, a.CreatedAt); err != nil {
			return fmt.Errorf("seed account %s: %w", a.ID, err)
		}
	}

	for _, m := range d.Meters {
		if _, err := tx.ExecContext(ctx, `
INSERT IGNORE INTO meters
    (meter_id, account_id, utility_type, status, installed_at, removed_at, request_id)
VALUES
    (?, ?, ?, ?, ?, ?, ?)
`, m.ID, m.AccountID, m.UtilityType.String(), m.Status, m.InstalledAt, m.RemovedAt, m.RequestID); err != nil {
			return fmt.Errorf("seed meter %s: %w", m.ID, err)
		}
	}

	// existing tariffs are left alone so an admin's edits survive a re-seed
	for _, c := range d.Charges {
		if _, err := tx.ExecContext(ctx, `
INSERT IGNORE INTO charges
    (utility_type, rate_per_unit, fixed_charge, tax_percentage, service_fee, updated_at)
VALUES
    (?, ?, ?, ?, ?, ?)
`, c.UtilityType.String(), c.RatePerUnit, c.FixedCharge, c.TaxPercentage, c.ServiceFee, c.UpdatedAt); err != nil {
			return fmt.Errorf("seed charge %s: %w", c.UtilityType, err)
		}
	}

	for _, b := range d.Bills {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO bills
    (bill_id, account_id, issue_date, due_date, amount, status)
VALUES
    (?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE status = VALUES(status)
`, b.ID, b.AccountID, b.IssueDate, b.DueDate, b.Amount, b.Status); err != nil {
			return fmt.Errorf("seed bill %s: %w", b.ID, err)
		}
	}

	for entity, last := range d.lastValues() {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO id_sequences (entity, last_value) VALUES (?, ?)
ON DUPLICATE KEY UPDATE last_value = GREATEST(last_value, VALUES(last_value))
`, entity.String(), last); err != nil {
			return fmt.Errorf("seed sequence %s: %w", entity, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	return nil
}

// lastValues returns the highest seeded number per sequenced entity.
func (d Dataset) lastValues() map[idgen.Entity]int64 {
	out := make(map[idgen.Entity]int64)
	track := func(e idgen.Entity, id string) {
		n, err := idgen.Parse(e, id)
		if err == nil && n > out[e] {
			out[e] = n
		}
	}
	for _, c := range d.Customers {
		track(idgen.EntityCustomer, c.ID)
	}
	for _, a := range d.Accounts {
		track(idgen.EntityAccount, a.ID)
	}
	for _, m := range d.Meters {
		track(idgen.EntityMeter, m.ID)
	}
	return out
}

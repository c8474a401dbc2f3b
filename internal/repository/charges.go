package repository

import (
	"context"
	"fmt"

	"github.com/jmehdipour/utility-billing/internal/model"
	"github.com/jmoiron/sqlx"
)

const chargeColumns = `utility_type, rate_per_unit, fixed_charge, tax_percentage, service_fee, updated_at`

func (r queries) ListCharges(ctx context.Context) ([]model.Charge, error) {
	rows := []model.Charge{}
	err := sqlx.SelectContext(ctx, r.q, &rows, `
		SELECT `+chargeColumns+`
		  FROM charges
		 ORDER BY FIELD(utility_type, 'Electricity', 'Gas', 'Water'), utility_type
	`)
	if err != nil {
		return nil, fmt.Errorf("list charges: %w", err)
	}
	return rows, nil
}

func (t *mysqlTx) GetChargeForUpdate(ctx context.Context, utility model.UtilityType) (*model.Charge, error) {
	var c model.Charge
	err := t.tx.GetContext(ctx, &c, `
		SELECT `+chargeColumns+`
		  FROM charges
		 WHERE utility_type = ?
		   FOR UPDATE
	`, utility.String())
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock charge %s: %w", utility, err)
	}
	return &c, nil
}

func (t *mysqlTx) UpdateCharge(ctx context.Context, c model.Charge) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE charges
		   SET rate_per_unit = ?, fixed_charge = ?, tax_percentage = ?, service_fee = ?, updated_at = NOW()
		 WHERE utility_type = ?
	`, c.RatePerUnit, c.FixedCharge, c.TaxPercentage, c.ServiceFee, c.UtilityType.String())
	if err != nil {
		return fmt.Errorf("update charge %s: %w", c.UtilityType, err)
	}
	return nil
}

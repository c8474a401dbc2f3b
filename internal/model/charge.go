package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Charge is the current rate row of one utility type.
type Charge struct {
	UtilityType   UtilityType     `db:"utility_type"   json:"UtilityType"`
	RatePerUnit   decimal.Decimal `db:"rate_per_unit"  json:"RatePerUnit"`
	FixedCharge   decimal.Decimal `db:"fixed_charge"   json:"FixedCharge"`
	TaxPercentage decimal.Decimal `db:"tax_percentage" json:"TaxPercentage"`
	ServiceFee    decimal.Decimal `db:"service_fee"    json:"ServiceFee"`
	UpdatedAt     time.Time       `db:"updated_at"     json:"UpdatedAt"`
}

// ChargeUpdate is a partial update matched by UtilityType; nil fields keep the stored value.
type ChargeUpdate struct {
	UtilityType   UtilityType      `json:"UtilityType"`
	RatePerUnit   *decimal.Decimal `json:"RatePerUnit,omitempty"`
	FixedCharge   *decimal.Decimal `json:"FixedCharge,omitempty"`
	TaxPercentage *decimal.Decimal `json:"TaxPercentage,omitempty"`
	ServiceFee    *decimal.Decimal `json:"ServiceFee,omitempty"`
}

// Apply returns c with the non-nil fields of u.
func (u ChargeUpdate) Apply(c Charge) Charge {
	if u.RatePerUnit != nil {
		c.RatePerUnit = *u.RatePerUnit
	}
	if u.FixedCharge != nil {
		c.FixedCharge = *u.FixedCharge
	}
	if u.TaxPercentage != nil {
		c.TaxPercentage = *u.TaxPercentage
	}
	if u.ServiceFee != nil {
		c.ServiceFee = *u.ServiceFee
	}
	return c
}

// UpdateResult reports which items of a charge batch were written and which
// named a utility with no charge row and were left alone.
type UpdateResult struct {
	Updated []UtilityType `json:"updated"`
	Skipped []UtilityType `json:"skipped"`
}

// Quote is an estimated bill for a number of consumed units.
type Quote struct {
	UtilityType UtilityType     `json:"UtilityType"`
	Units       decimal.Decimal `json:"Units"`
	Usage       decimal.Decimal `json:"Usage"`
	FixedCharge decimal.Decimal `json:"FixedCharge"`
	ServiceFee  decimal.Decimal `json:"ServiceFee"`
	Subtotal    decimal.Decimal `json:"Subtotal"`
	Tax         decimal.Decimal `json:"Tax"`
	Total       decimal.Decimal `json:"Total"`
}

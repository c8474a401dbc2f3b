package charges

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jmehdipour/utility-billing/internal/metrics"
	"github.com/jmehdipour/utility-billing/internal/model"
	"github.com/jmehdipour/utility-billing/internal/repository"
)

var hundred = decimal.NewFromInt(100)

// Cache is a read-through cache of the whole charge table. Every Invalidate
// moves the cache to a new version; Set must drop rows read under an older
// version so a slow reader cannot put rates back after an update.
type Cache interface {
	Get(ctx context.Context) (charges []model.Charge, version int64, hit bool, err error)
	Set(ctx context.Context, version int64, charges []model.Charge) error
	Invalidate(ctx context.Context) error
}

// Service is the charge table: one mutable rate row per utility type.
type Service struct {
	store repository.Store
	cache Cache
	log   *zap.Logger
}

// New constructs the charge service; cache may be nil.
func New(store repository.Store, cache Cache, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, cache: cache, log: log}
}

// GetCharges returns the rate rows in display order (Electricity, Gas, Water).
func (s *Service) GetCharges(ctx context.Context) ([]model.Charge, error) {
	var (
		version int64
		fill    bool
	)
	if s.cache != nil {
		cached, v, ok, err := s.cache.Get(ctx)
		switch {
		case err != nil:
			s.log.Warn("charges cache read failed", zap.Error(err))
		case ok:
			return cached, nil
		default:
			version, fill = v, true
		}
	}

	rows, err := s.store.ListCharges(ctx)
	if err != nil {
		return nil, model.StoreError("get charges", err)
	}

	if fill {
		if err := s.cache.Set(ctx, version, rows); err != nil {
			s.log.Warn("charges cache fill failed", zap.Error(err))
		}
	}
	return rows, nil
}

// UpdateCharges applies the valid items of the batch in one transaction. An
// item naming a utility without a charge row is skipped and reported; an
// invalid value anywhere rejects the whole batch.
func (s *Service) UpdateCharges(ctx context.Context, updates []model.ChargeUpdate) (model.UpdateResult, error) {
	if err := ValidateUpdates(updates); err != nil {
		metrics.ChargeUpdates.WithLabelValues("rejected").Inc()
		return model.UpdateResult{}, err
	}

	var res model.UpdateResult
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		res = model.UpdateResult{}
		for _, u := range updates {
			if !u.UtilityType.Valid() {
				res.Skipped = append(res.Skipped, u.UtilityType)
				continue
			}
			cur, err := tx.GetChargeForUpdate(ctx, u.UtilityType)
			if err != nil {
				return err
			}
			if cur == nil {
				res.Skipped = append(res.Skipped, u.UtilityType)
				continue
			}
			if err := tx.UpdateCharge(ctx, u.Apply(*cur)); err != nil {
				return err
			}
			res.Updated = append(res.Updated, u.UtilityType)
		}
		return nil
	})
	if err != nil {
		if model.IsValidation(err) {
			metrics.ChargeUpdates.WithLabelValues("rejected").Inc()
		} else {
			metrics.ChargeUpdates.WithLabelValues("error").Inc()
		}
		return model.UpdateResult{}, model.StoreError("update charges", err)
	}
	metrics.ChargeUpdates.WithLabelValues("ok").Inc()

	if s.cache != nil && len(res.Updated) > 0 {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.log.Error("charges cache invalidation failed", zap.Error(err))
		}
	}

	for _, u := range res.Skipped {
		s.log.Warn("charge update skipped", zap.String("utility_type", string(u)))
	}
	s.log.Info("charges updated", zap.Int("updated", len(res.Updated)), zap.Int("skipped", len(res.Skipped)))
	return res, nil
}

// ValidateUpdates rejects the batch if any item carries an invalid value or
// names the same utility twice. Unknown utilities pass; they are skipped at
// apply time.
func ValidateUpdates(updates []model.ChargeUpdate) error {
	if len(updates) == 0 {
		return model.ValidationError{Field: "charges", Message: "empty batch"}
	}

	seen := make(map[model.UtilityType]bool, len(updates))
	for _, u := range updates {
		if seen[u.UtilityType] {
			return model.ValidationError{Field: "UtilityType", Message: fmt.Sprintf("%s listed twice", u.UtilityType)}
		}
		seen[u.UtilityType] = true

		fields := []struct {
			name string
			v    *decimal.Decimal
		}{
			{"RatePerUnit", u.RatePerUnit},
			{"FixedCharge", u.FixedCharge},
			{"TaxPercentage", u.TaxPercentage},
			{"ServiceFee", u.ServiceFee},
		}
		for _, f := range fields {
			if f.v != nil && f.v.IsNegative() {
				return fmt.Errorf("%w: %s.%s is negative (%s)", model.ErrInvalidChargeValue, u.UtilityType, f.name, f.v)
			}
		}
		if u.TaxPercentage != nil && u.TaxPercentage.GreaterThan(hundred) {
			return fmt.Errorf("%w: %s.TaxPercentage exceeds 100 (%s)", model.ErrInvalidChargeValue, u.UtilityType, u.TaxPercentage)
		}
	}
	return nil
}

// Quote estimates the bill of units consumed at the current rate of utility.
func (s *Service) Quote(ctx context.Context, utility model.UtilityType, units decimal.Decimal) (model.Quote, error) {
	if !utility.Valid() {
		return model.Quote{}, model.InvalidUtility("UtilityType", utility)
	}
	if units.IsNegative() {
		return model.Quote{}, fmt.Errorf("%w: %s", model.ErrInvalidUsage, units)
	}

	rows, err := s.GetCharges(ctx)
	if err != nil {
		return model.Quote{}, err
	}
	for _, c := range rows {
		if c.UtilityType == utility {
			return Compute(c, units), nil
		}
	}
	return model.Quote{}, fmt.Errorf("%w: no charge row for %s", model.ErrUnknownUtility, utility)
}

// Compute prices units against c:
// subtotal = units*rate + fixed + fee, tax = subtotal*tax%/100, rounded to cents.
func Compute(c model.Charge, units decimal.Decimal) model.Quote {
	usage := units.Mul(c.RatePerUnit)
	subtotal := usage.Add(c.FixedCharge).Add(c.ServiceFee)
	tax := subtotal.Mul(c.TaxPercentage).Div(hundred)

	return model.Quote{
		UtilityType: c.UtilityType,
		Units:       units,
		Usage:       usage.Round(2),
		FixedCharge: c.FixedCharge,
		ServiceFee:  c.ServiceFee,
		Subtotal:    subtotal.Round(2),
		Tax:         tax.Round(2),
		Total:       subtotal.Add(tax).Round(2),
	}
}

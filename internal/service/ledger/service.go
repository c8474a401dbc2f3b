// Package ledger is the read-only view of issued bills.
package ledger

import (
	"context"

	"go.uber.org/zap"

	"github.com/jmehdipour/utility-billing/internal/model"
	"github.com/jmehdipour/utility-billing/internal/repository"
)

// Service reads bills from the replica when one is configured and falls back
// to the primary store when the replica query fails.
type Service struct {
	primary repository.BillReader
	replica repository.BillReader
	log     *zap.Logger
}

// New constructs the ledger; replica may be nil.
func New(primary, replica repository.BillReader, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{primary: primary, replica: replica, log: log}
}

// GetBills lists the bills of accountID, or every bill when accountID is "",
// newest issue date first.
func (s *Service) GetBills(ctx context.Context, accountID string) ([]model.Bill, error) {
	if s.replica != nil {
		rows, err := s.replica.ListBills(ctx, accountID)
		if err == nil {
			return rows, nil
		}
		s.log.Warn("bill replica unavailable, reading primary", zap.String("account_id", accountID), zap.Error(err))
	}

	rows, err := s.primary.ListBills(ctx, accountID)
	if err != nil {
		return nil, model.StoreError("get bills", err)
	}
	if rows == nil {
		rows = []model.Bill{}
	}
	return rows, nil
}

// GetBillsForCustomer lists the bills of every account of customerID.
func (s *Service) GetBillsForCustomer(ctx context.Context, customerID string) ([]model.Bill, error) {
	if s.replica != nil {
		rows, err := s.replica.ListBillsByCustomer(ctx, customerID)
		if err == nil {
			return rows, nil
		}
		s.log.Warn("bill replica unavailable, reading primary", zap.String("customer_id", customerID), zap.Error(err))
	}

	rows, err := s.primary.ListBillsByCustomer(ctx, customerID)
	if err != nil {
		return nil, model.StoreError("get customer bills", err)
	}
	if rows == nil {
		rows = []model.Bill{}
	}
	return rows, nil
}

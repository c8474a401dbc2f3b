// Package directory answers which accounts and meters a customer holds and
// provisions or retires meters.
package directory

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jmehdipour/utility-billing/internal/idgen"
	"github.com/jmehdipour/utility-billing/internal/metrics"
	"github.com/jmehdipour/utility-billing/internal/model"
	"github.com/jmehdipour/utility-billing/internal/repository"
)

type Service struct {
	store repository.Store
	log   *zap.Logger
}

func New(store repository.Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, log: log}
}

// Details is everything the directory knows about one customer.
type Details struct {
	Customer model.Customer  `json:"customer"`
	Accounts []model.Account `json:"accounts"`
	Meters   []model.Meter   `json:"meters"`
}

// GetAccountsFor returns the accounts of customerID; none is an empty slice.
func (s *Service) GetAccountsFor(ctx context.Context, customerID string) ([]model.Account, error) {
	rows, err := s.store.ListAccountsByCustomer(ctx, customerID)
	if err != nil {
		return nil, model.StoreError("list accounts", err)
	}
	if rows == nil {
		rows = []model.Account{}
	}
	return rows, nil
}

// GetMetersFor returns the meters on any account of customerID.
func (s *Service) GetMetersFor(ctx context.Context, customerID string) ([]model.Meter, error) {
	rows, err := s.store.ListMetersByCustomer(ctx, customerID)
	if err != nil {
		return nil, model.StoreError("list meters", err)
	}
	if rows == nil {
		rows = []model.Meter{}
	}
	return rows, nil
}

func (s *Service) CustomerDetails(ctx context.Context, customerID string) (Details, error) {
	c, err := s.store.GetCustomer(ctx, customerID)
	if err != nil {
		return Details{}, model.StoreError("get customer", err)
	}
	if c == nil {
		return Details{}, fmt.Errorf("%w: %s", model.ErrUnknownCustomer, customerID)
	}

	accounts, err := s.GetAccountsFor(ctx, customerID)
	if err != nil {
		return Details{}, err
	}
	meters, err := s.GetMetersFor(ctx, customerID)
	if err != nil {
		return Details{}, err
	}
	return Details{Customer: *c, Accounts: accounts, Meters: meters}, nil
}

// CreateMeter installs a new active meter on accountID.
func (s *Service) CreateMeter(ctx context.Context, accountID string, utility model.UtilityType) (model.Meter, error) {
	if !utility.Valid() {
		return model.Meter{}, model.InvalidUtility("UtilityType", utility)
	}

	var m model.Meter
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		m, err = CreateMeterTx(ctx, tx, accountID, utility, nil, time.Now().UTC())
		return err
	})
	if err != nil {
		return model.Meter{}, model.StoreError("create meter", err)
	}
	metrics.IDsAllocated.WithLabelValues(string(idgen.EntityMeter)).Inc()

	s.log.Info("meter created",
		zap.String("meter_id", m.ID),
		zap.String("account_id", accountID),
		zap.String("utility_type", string(utility)),
	)
	return m, nil
}

// CreateMeterTx allocates and inserts a meter inside tx. requestID links the
// meter to the request that provisioned it and may be nil.
func CreateMeterTx(ctx context.Context, tx repository.Tx, accountID string, utility model.UtilityType, requestID *string, at time.Time) (model.Meter, error) {
	acc, err := tx.GetAccount(ctx, accountID)
	if err != nil {
		return model.Meter{}, err
	}
	if acc == nil {
		return model.Meter{}, fmt.Errorf("%w: %s", model.ErrUnknownAccount, accountID)
	}

	id, err := tx.NextID(ctx, idgen.EntityMeter)
	if err != nil {
		return model.Meter{}, fmt.Errorf("allocate meter id: %w", err)
	}

	m := model.Meter{
		ID:          id,
		AccountID:   accountID,
		UtilityType: utility,
		Status:      model.MeterActive,
		InstalledAt: at,
		RequestID:   requestID,
	}
	if err := tx.InsertMeter(ctx, m); err != nil {
		return model.Meter{}, fmt.Errorf("insert meter: %w", err)
	}
	return m, nil
}

// DeactivateMetersTx retires every active meter of utility held by
// customerID and returns them as they are after the update.
func DeactivateMetersTx(ctx context.Context, tx repository.Tx, customerID string, utility model.UtilityType, at time.Time) ([]model.Meter, error) {
	active, err := tx.ListActiveMetersForUpdate(ctx, customerID, utility)
	if err != nil {
		return nil, fmt.Errorf("lock active meters: %w", err)
	}
	if len(active) == 0 {
		return nil, nil
	}

	ids := make([]string, len(active))
	for i, m := range active {
		ids[i] = m.ID
	}
	if err := tx.DeactivateMeters(ctx, ids, at); err != nil {
		return nil, fmt.Errorf("deactivate meters: %w", err)
	}

	for i := range active {
		removed := at
		active[i].Status = model.MeterInactive
		active[i].RemovedAt = &removed
	}
	return active, nil
}

package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jmehdipour/utility-billing/internal/idgen"
	"github.com/jmehdipour/utility-billing/internal/model"
)

type tx struct {
	store *Store
	st    *state
	now   time.Time
}

func (t *tx) NextID(_ context.Context, entity idgen.Entity) (string, error) {
	if err := t.store.fault("NextID"); err != nil {
		return "", err
	}
	last, err := t.lastValue(entity)
	if err != nil {
		return "", err
	}
	next := last + 1
	t.st.sequences[entity] = next
	return idgen.Format(entity, next), nil
}

func (t *tx) ReserveID(_ context.Context, entity idgen.Entity, id string) error {
	n, err := idgen.Parse(entity, id)
	if err != nil {
		return nil
	}
	last, err := t.lastValue(entity)
	if err != nil {
		return err
	}
	if n > last {
		t.st.sequences[entity] = n
	}
	return nil
}

// lastValue seeds an unused counter from the highest stored id carrying the
// entity prefix. Free-form ids are skipped; a prefixed id that does not parse
// fails with model.ErrMalformedIdentifier.
func (t *tx) lastValue(entity idgen.Entity) (int64, error) {
	if v := t.st.sequences[entity]; v > 0 {
		return v, nil
	}
	var ids []string
	switch entity {
	case idgen.EntityCustomer:
		for id := range t.st.customers {
			ids = append(ids, id)
		}
	case idgen.EntityAccount:
		for id := range t.st.accounts {
			ids = append(ids, id)
		}
	case idgen.EntityRequest:
		for id := range t.st.requests {
			ids = append(ids, id)
		}
	case idgen.EntityMeter:
		for id := range t.st.meters {
			ids = append(ids, id)
		}
	default:
		return 0, fmt.Errorf("unknown sequence entity %q", entity)
	}
	sort.Strings(ids)
	var last int64
	for _, id := range ids {
		if !idgen.HasPrefix(entity, id) {
			continue
		}
		n, err := idgen.Parse(entity, id)
		if err != nil {
			return 0, err
		}
		if n > last {
			last = n
		}
	}
	return last, nil
}

func (t *tx) GetCustomer(_ context.Context, id string) (*model.Customer, error) {
	return getCustomer(t.st, id), nil
}

func (t *tx) InsertCustomer(_ context.Context, c model.Customer) error {
	if err := t.store.fault("InsertCustomer"); err != nil {
		return err
	}
	if _, ok := t.st.customers[c.ID]; ok {
		return fmt.Errorf("insert customer %s: duplicate key", c.ID)
	}
	c.CreatedAt, c.UpdatedAt = t.now, t.now
	t.st.customers[c.ID] = c
	return nil
}

func (t *tx) ListAccountsByCustomer(_ context.Context, customerID string) ([]model.Account, error) {
	return accountsOf(t.st, customerID), nil
}

func (t *tx) GetAccount(_ context.Context, id string) (*model.Account, error) {
	return getAccount(t.st, id), nil
}

func (t *tx) InsertAccount(_ context.Context, a model.Account) error {
	if err := t.store.fault("InsertAccount"); err != nil {
		return err
	}
	if _, ok := t.st.customers[a.CustomerID]; !ok {
		return fmt.Errorf("insert account %s: %w", a.ID, model.ErrUnknownCustomer)
	}
	if _, ok := t.st.accounts[a.ID]; ok {
		return fmt.Errorf("insert account %s: duplicate key", a.ID)
	}
	a.CreatedAt = t.now
	t.st.accounts[a.ID] = a
	return nil
}

func (t *tx) InsertMeter(_ context.Context, m model.Meter) error {
	if err := t.store.fault("InsertMeter"); err != nil {
		return err
	}
	if _, ok := t.st.accounts[m.AccountID]; !ok {
		return fmt.Errorf("insert meter %s: %w", m.ID, model.ErrUnknownAccount)
	}
	if _, ok := t.st.meters[m.ID]; ok {
		return fmt.Errorf("insert meter %s: duplicate key", m.ID)
	}
	t.st.meters[m.ID] = m
	return nil
}

func (t *tx) ListActiveMetersForUpdate(_ context.Context, customerID string, utility model.UtilityType) ([]model.Meter, error) {
	owned := make(map[string]bool)
	for _, a := range accountsOf(t.st, customerID) {
		owned[a.ID] = true
	}
	out := []model.Meter{}
	for _, m := range t.st.meters {
		if owned[m.AccountID] && m.UtilityType == utility && m.Status == model.MeterActive {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) DeactivateMeters(_ context.Context, ids []string, at time.Time) error {
	if err := t.store.fault("DeactivateMeters"); err != nil {
		return err
	}
	for _, id := range ids {
		m, ok := t.st.meters[id]
		if !ok {
			continue
		}
		removed := at
		m.Status = model.MeterInactive
		m.RemovedAt = &removed
		t.st.meters[id] = m
	}
	return nil
}

func (t *tx) GetChargeForUpdate(_ context.Context, utility model.UtilityType) (*model.Charge, error) {
	if c, ok := t.st.charges[utility]; ok {
		return &c, nil
	}
	return nil, nil
}

func (t *tx) UpdateCharge(_ context.Context, c model.Charge) error {
	if err := t.store.fault("UpdateCharge"); err != nil {
		return err
	}
	if _, ok := t.st.charges[c.UtilityType]; !ok {
		return fmt.Errorf("update charge %s: %w", c.UtilityType, model.ErrUnknownUtility)
	}
	c.UpdatedAt = t.now
	t.st.charges[c.UtilityType] = c
	return nil
}

func (t *tx) GetRequestForUpdate(_ context.Context, id string) (*model.Request, error) {
	if t.store.requestsMissing {
		return nil, fmt.Errorf("lock request: %w", model.ErrEntityUninitialized)
	}
	if r, ok := t.st.requests[id]; ok {
		return &r, nil
	}
	return nil, nil
}

func (t *tx) InsertRequest(_ context.Context, r model.Request) error {
	if err := t.store.fault("InsertRequest"); err != nil {
		return err
	}
	if t.store.requestsMissing {
		return fmt.Errorf("insert request: %w", model.ErrEntityUninitialized)
	}
	if _, ok := t.st.customers[r.CustomerID]; !ok {
		return fmt.Errorf("insert request %s: %w", r.ID, model.ErrUnknownCustomer)
	}
	if _, ok := t.st.requests[r.ID]; ok {
		return fmt.Errorf("insert request %s: %w", r.ID, model.ErrRequestExists)
	}
	t.st.requests[r.ID] = r
	return nil
}

func (t *tx) UpdateRequestStatus(_ context.Context, id string, status model.RequestStatus, decidedAt time.Time) error {
	if err := t.store.fault("UpdateRequestStatus"); err != nil {
		return err
	}
	r, ok := t.st.requests[id]
	if !ok || r.Status != model.RequestPending {
		return fmt.Errorf("update request %s: %w", id, model.ErrInvalidTransition)
	}
	at := decidedAt
	r.Status = status
	r.DecidedAt = &at
	t.st.requests[id] = r
	return nil
}

func (t *tx) InsertOutbox(_ context.Context, aggregate, aggregateID, topic string, payload []byte) error {
	if err := t.store.fault("InsertOutbox"); err != nil {
		return err
	}
	t.st.outbox = append(t.st.outbox, model.OutboxEvent{
		ID:          int64(len(t.st.outbox) + 1),
		Aggregate:   aggregate,
		AggregateID: aggregateID,
		Topic:       topic,
		Payload:     append([]byte(nil), payload...),
		CreatedAt:   t.now,
	})
	return nil
}

// Package memory is an in-process repository.Store. Transactions are
// serialised by a single lock and applied copy-on-write, so a failed
// transaction leaves no trace.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jmehdipour/utility-billing/internal/idgen"
	"github.com/jmehdipour/utility-billing/internal/model"
	"github.com/jmehdipour/utility-billing/internal/repository"
)

type state struct {
	customers map[string]model.Customer
	accounts  map[string]model.Account
	meters    map[string]model.Meter
	charges   map[model.UtilityType]model.Charge
	bills     map[string]model.Bill
	requests  map[string]model.Request
	sequences map[idgen.Entity]int64
	outbox    []model.OutboxEvent
}

func newState() *state {
	return &state{
		customers: make(map[string]model.Customer),
		accounts:  make(map[string]model.Account),
		meters:    make(map[string]model.Meter),
		charges:   make(map[model.UtilityType]model.Charge),
		bills:     make(map[string]model.Bill),
		requests:  make(map[string]model.Request),
		sequences: make(map[idgen.Entity]int64),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.customers {
		c.customers[k] = v
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.meters {
		c.meters[k] = v
	}
	for k, v := range s.charges {
		c.charges[k] = v
	}
	for k, v := range s.bills {
		c.bills[k] = v
	}
	for k, v := range s.requests {
		c.requests[k] = v
	}
	for k, v := range s.sequences {
		c.sequences[k] = v
	}
	c.outbox = append([]model.OutboxEvent(nil), s.outbox...)
	return c
}

// Store is safe for concurrent use.
type Store struct {
	txMu sync.Mutex   // serialises transactions
	mu   sync.RWMutex // guards st
	st   *state

	faultMu sync.Mutex
	faults  map[string]error

	requestsMissing bool
}

var _ repository.Store = (*Store)(nil)

type Option func(*Store)

// WithoutRequestsTable makes request reads behave like a deployment whose
// requests table was never created.
func WithoutRequestsTable() Option {
	return func(s *Store) { s.requestsMissing = true }
}

func New(opts ...Option) *Store {
	s := &Store{st: newState(), faults: make(map[string]error)}
	for _, o := range opts {
		o(s)
	}
	return s
}

// InjectFault makes the named Tx operation (e.g. "InsertMeter") fail with
// err until ClearFaults is called.
func (s *Store) InjectFault(op string, err error) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.faults[op] = err
}

func (s *Store) ClearFaults() {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.faults = make(map[string]error)
}

func (s *Store) fault(op string) error {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	return s.faults[op]
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	work := s.st.clone()
	s.mu.RUnlock()

	if err := fn(&tx{store: s, st: work, now: time.Now()}); err != nil {
		return err
	}

	s.mu.Lock()
	s.st = work
	s.mu.Unlock()
	return nil
}

func (s *Store) read() *state {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st
}

// Seed helpers bypass the lifecycle; they are meant for tests and demo data.

func (s *Store) PutCustomer(c model.Customer) {
	s.mutate(func(st *state) { st.customers[c.ID] = c })
}

func (s *Store) PutAccount(a model.Account) {
	s.mutate(func(st *state) { st.accounts[a.ID] = a })
}

func (s *Store) PutMeter(m model.Meter) {
	s.mutate(func(st *state) { st.meters[m.ID] = m })
}

func (s *Store) PutCharge(c model.Charge) {
	s.mutate(func(st *state) { st.charges[c.UtilityType] = c })
}

func (s *Store) PutBill(b model.Bill) {
	s.mutate(func(st *state) { st.bills[b.ID] = b })
}

func (s *Store) PutRequest(r model.Request) {
	s.mutate(func(st *state) { st.requests[r.ID] = r })
}

// Outbox returns a copy of the recorded outbox events.
func (s *Store) Outbox() []model.OutboxEvent {
	st := s.read()
	return append([]model.OutboxEvent(nil), st.outbox...)
}

func (s *Store) mutate(fn func(*state)) {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.st.clone()
	fn(work)
	s.st = work
}

// ---- Reader ----

func (s *Store) ListCustomers(context.Context) ([]model.Customer, error) {
	st := s.read()
	out := make([]model.Customer, 0, len(st.customers))
	for _, c := range st.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (*model.Customer, error) {
	return getCustomer(s.read(), id), nil
}

func (s *Store) ListAccountsByCustomer(_ context.Context, customerID string) ([]model.Account, error) {
	return accountsOf(s.read(), customerID), nil
}

func (s *Store) GetAccount(_ context.Context, id string) (*model.Account, error) {
	return getAccount(s.read(), id), nil
}

func (s *Store) ListMetersByCustomer(_ context.Context, customerID string) ([]model.Meter, error) {
	st := s.read()
	owned := make(map[string]bool)
	for _, a := range accountsOf(st, customerID) {
		owned[a.ID] = true
	}
	out := []model.Meter{}
	for _, m := range st.meters {
		if owned[m.AccountID] {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListCharges(context.Context) ([]model.Charge, error) {
	st := s.read()
	out := make([]model.Charge, 0, len(st.charges))
	for _, u := range model.UtilityTypes {
		if c, ok := st.charges[u]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) ListBills(_ context.Context, accountID string) ([]model.Bill, error) {
	st := s.read()
	out := []model.Bill{}
	for _, b := range st.bills {
		if accountID == "" || b.AccountID == accountID {
			out = append(out, b)
		}
	}
	sortBills(out)
	return out, nil
}

func (s *Store) ListBillsByCustomer(_ context.Context, customerID string) ([]model.Bill, error) {
	st := s.read()
	owned := make(map[string]bool)
	for _, a := range accountsOf(st, customerID) {
		owned[a.ID] = true
	}
	out := []model.Bill{}
	for _, b := range st.bills {
		if owned[b.AccountID] {
			out = append(out, b)
		}
	}
	sortBills(out)
	return out, nil
}

func (s *Store) ListRequests(_ context.Context, scope model.RequestScope) ([]model.Request, error) {
	if s.requestsMissing {
		return nil, fmt.Errorf("list requests: %w", model.ErrEntityUninitialized)
	}
	st := s.read()
	out := []model.Request{}
	for _, r := range st.requests {
		if scope.CustomerID != "" && r.CustomerID != scope.CustomerID {
			continue
		}
		if scope.Status != "" && r.Status != scope.Status {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RequestDate.Equal(out[j].RequestDate) {
			return out[i].RequestDate.After(out[j].RequestDate)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) GetRequest(_ context.Context, id string) (*model.Request, error) {
	if s.requestsMissing {
		return nil, fmt.Errorf("get request: %w", model.ErrEntityUninitialized)
	}
	st := s.read()
	if r, ok := st.requests[id]; ok {
		return &r, nil
	}
	return nil, nil
}

func (s *Store) Stats(context.Context) (model.Stats, error) {
	st := s.read()
	out := model.Stats{
		Customers:    int64(len(st.customers)),
		Accounts:     int64(len(st.accounts)),
		UnpaidAmount: decimal.Zero,
	}
	for _, m := range st.meters {
		if m.Status == model.MeterActive {
			out.ActiveMeters++
		}
	}
	for _, r := range st.requests {
		if r.Status == model.RequestPending {
			out.PendingRequests++
		}
	}
	for _, b := range st.bills {
		if b.Status != model.BillPaid {
			out.UnpaidBills++
			out.UnpaidAmount = out.UnpaidAmount.Add(b.Amount)
		}
	}
	return out, nil
}

func getCustomer(st *state, id string) *model.Customer {
	if c, ok := st.customers[id]; ok {
		return &c
	}
	return nil
}

func getAccount(st *state, id string) *model.Account {
	if a, ok := st.accounts[id]; ok {
		return &a
	}
	return nil
}

func accountsOf(st *state, customerID string) []model.Account {
	out := []model.Account{}
	for _, a := range st.accounts {
		if a.CustomerID == customerID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortBills(bills []model.Bill) {
	sort.Slice(bills, func(i, j int) bool {
		if !bills[i].IssueDate.Equal(bills[j].IssueDate) {
			return bills[i].IssueDate.After(bills[j].IssueDate)
		}
		return strings.Compare(bills[i].ID, bills[j].ID) > 0
	})
}

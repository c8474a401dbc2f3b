package repository

import (
	"context"
	"time"

	"github.com/jmehdipour/utility-billing/internal/idgen"
	"github.com/jmehdipour/utility-billing/internal/model"
)

// Reader covers the non-transactional reads of the core. Single-row getters
// return (nil, nil) when the row does not exist.
type Reader interface {
	ListCustomers(ctx context.Context) ([]model.Customer, error)
	GetCustomer(ctx context.Context, id string) (*model.Customer, error)
	ListAccountsByCustomer(ctx context.Context, customerID string) ([]model.Account, error)
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	ListMetersByCustomer(ctx context.Context, customerID string) ([]model.Meter, error)
	ListCharges(ctx context.Context) ([]model.Charge, error)
	ListRequests(ctx context.Context, scope model.RequestScope) ([]model.Request, error)
	GetRequest(ctx context.Context, id string) (*model.Request, error)
	Stats(ctx context.Context) (model.Stats, error)
	BillReader
}

// BillReader is the read side of the bill ledger. It is implemented by the
// primary store and by the ClickHouse read model.
type BillReader interface {
	// ListBills returns bills of accountID, or all bills when accountID is "".
	ListBills(ctx context.Context, accountID string) ([]model.Bill, error)
	ListBillsByCustomer(ctx context.Context, customerID string) ([]model.Bill, error)
}

// Tx is the set of operations available inside WithTx. Everything done
// through one Tx commits or rolls back together.
type Tx interface {
	// NextID allocates the next identifier of entity. The allocation is
	// locked until the transaction ends.
	NextID(ctx context.Context, entity idgen.Entity) (string, error)
	// ReserveID advances the sequence of entity past a caller-supplied id.
	ReserveID(ctx context.Context, entity idgen.Entity, id string) error

	GetCustomer(ctx context.Context, id string) (*model.Customer, error)
	InsertCustomer(ctx context.Context, c model.Customer) error

	ListAccountsByCustomer(ctx context.Context, customerID string) ([]model.Account, error)
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	InsertAccount(ctx context.Context, a model.Account) error

	InsertMeter(ctx context.Context, m model.Meter) error
	ListActiveMetersForUpdate(ctx context.Context, customerID string, utility model.UtilityType) ([]model.Meter, error)
	DeactivateMeters(ctx context.Context, ids []string, at time.Time) error

	GetChargeForUpdate(ctx context.Context, utility model.UtilityType) (*model.Charge, error)
	UpdateCharge(ctx context.Context, c model.Charge) error

	GetRequestForUpdate(ctx context.Context, id string) (*model.Request, error)
	InsertRequest(ctx context.Context, r model.Request) error
	UpdateRequestStatus(ctx context.Context, id string, status model.RequestStatus, decidedAt time.Time) error

	InsertOutbox(ctx context.Context, aggregate, aggregateID, topic string, payload []byte) error
}

// Store is the persistence contract consumed by the services.
type Store interface {
	Reader
	// WithTx runs fn in a transaction. A non-nil error from fn rolls back
	// every write made through the Tx.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
}

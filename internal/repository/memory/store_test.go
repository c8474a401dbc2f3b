package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmehdipour/utility-billing/internal/idgen"
	"github.com/jmehdipour/utility-billing/internal/model"
	"github.com/jmehdipour/utility-billing/internal/repository"
)

func withCustomer(t *testing.T) *Store {
	t.Helper()
	st := New()
	st.PutCustomer(model.Customer{ID: "CUST-0009", FirstName: "Ada", Status: model.CustomerActive})
	st.PutAccount(model.Account{ID: "ACC-0003", CustomerID: "CUST-0009", BillingCycle: model.BillingCycleMonthly})
	return st
}

func TestNextIDContinuesFromStoredRows(t *testing.T) {
	st := withCustomer(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 2; i++ {
		require.NoError(t, st.WithTx(ctx, func(tx repository.Tx) error {
			id, err := tx.NextID(ctx, idgen.EntityCustomer)
			ids = append(ids, id)
			return err
		}))
	}
	assert.Equal(t, []string{"CUST-0010", "CUST-0011"}, ids)
}

func TestFailedTxLeavesNoTrace(t *testing.T) {
	st := withCustomer(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := st.WithTx(ctx, func(tx repository.Tx) error {
		id, err := tx.NextID(ctx, idgen.EntityMeter)
		require.NoError(t, err)
		require.NoError(t, tx.InsertMeter(ctx, model.Meter{ID: id, AccountID: "ACC-0003",
			UtilityType: model.UtilityGas, Status: model.MeterActive, InstalledAt: time.Now()}))
		require.NoError(t, tx.InsertOutbox(ctx, "request", "REQ-0001", "t", []byte(`{}`)))
		return boom
	})
	require.ErrorIs(t, err, boom)

	meters, err := st.ListMetersByCustomer(ctx, "CUST-0009")
	require.NoError(t, err)
	assert.Empty(t, meters)
	assert.Empty(t, st.Outbox())

	// the sequence was rolled back too
	require.NoError(t, st.WithTx(ctx, func(tx repository.Tx) error {
		id, err := tx.NextID(ctx, idgen.EntityMeter)
		assert.Equal(t, "MTR-0001", id)
		return err
	}))
}

func TestInjectedFault(t *testing.T) {
	st := withCustomer(t)
	ctx := context.Background()
	boom := errors.New("disk full")
	st.InjectFault("InsertRequest", boom)

	err := st.WithTx(ctx, func(tx repository.Tx) error {
		return tx.InsertRequest(ctx, model.Request{ID: "REQ-0001", CustomerID: "CUST-0009", Status: model.RequestPending})
	})
	require.ErrorIs(t, err, boom)

	st.ClearFaults()
	err = st.WithTx(ctx, func(tx repository.Tx) error {
		return tx.InsertRequest(ctx, model.Request{ID: "REQ-0001", CustomerID: "CUST-0009", Status: model.RequestPending})
	})
	require.NoError(t, err)
}

func TestReserveIDSkipsPastCallerID(t *testing.T) {
	st := withCustomer(t)
	ctx := context.Background()

	require.NoError(t, st.WithTx(ctx, func(tx repository.Tx) error {
		if err := tx.ReserveID(ctx, idgen.EntityRequest, "REQ-0042"); err != nil {
			return err
		}
		// free-form ids are accepted and ignored
		if err := tx.ReserveID(ctx, idgen.EntityRequest, "manual"); err != nil {
			return err
		}
		id, err := tx.NextID(ctx, idgen.EntityRequest)
		assert.Equal(t, "REQ-0043", id)
		return err
	}))
}

func TestUpdateRequestStatusOnlyFromPending(t *testing.T) {
	st := withCustomer(t)
	ctx := context.Background()
	st.PutRequest(model.Request{ID: "REQ-0001", CustomerID: "CUST-0009", Status: model.RequestRejected})

	err := st.WithTx(ctx, func(tx repository.Tx) error {
		return tx.UpdateRequestStatus(ctx, "REQ-0001", model.RequestApproved, time.Now())
	})
	require.ErrorIs(t, err, model.ErrInvalidTransition)
}

func TestRequestsTableMissing(t *testing.T) {
	st := New(WithoutRequestsTable())

	_, err := st.ListRequests(context.Background(), model.RequestScope{})
	require.ErrorIs(t, err, model.ErrEntityUninitialized)
}

func TestListBillsNewestFirstAndStats(t *testing.T) {
	st := withCustomer(t)
	ctx := context.Background()
	d := func(m time.Month) time.Time { return time.Date(2025, m, 1, 0, 0, 0, 0, time.UTC) }

	st.PutBill(model.Bill{ID: "BILL-0001", AccountID: "ACC-0003", IssueDate: d(1), Amount: decimal.NewFromInt(10), Status: model.BillPaid})
	st.PutBill(model.Bill{ID: "BILL-0002", AccountID: "ACC-0003", IssueDate: d(3), Amount: decimal.NewFromInt(30), Status: model.BillUnpaid})
	st.PutBill(model.Bill{ID: "BILL-0003", AccountID: "ACC-0003", IssueDate: d(2), Amount: decimal.NewFromInt(20), Status: model.BillOverdue})

	bills, err := st.ListBillsByCustomer(ctx, "CUST-0009")
	require.NoError(t, err)
	require.Len(t, bills, 3)
	assert.Equal(t, []string{"BILL-0002", "BILL-0003", "BILL-0001"}, []string{bills[0].ID, bills[1].ID, bills[2].ID})

	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.UnpaidBills)
	assert.True(t, stats.UnpaidAmount.Equal(decimal.NewFromInt(50)))
}

func TestNextIDSkipsFreeFormRequestIDs(t *testing.T) {
	st := withCustomer(t)
	ctx := context.Background()
	st.PutRequest(model.Request{ID: "web-1", CustomerID: "CUST-0009", Status: model.RequestPending})
	st.PutRequest(model.Request{ID: "REQ-0004", CustomerID: "CUST-0009", Status: model.RequestPending})

	require.NoError(t, st.WithTx(ctx, func(tx repository.Tx) error {
		id, err := tx.NextID(ctx, idgen.EntityRequest)
		assert.Equal(t, "REQ-0005", id)
		return err
	}))
}

func TestNextIDMalformedStoredID(t *testing.T) {
	st := New()
	st.PutCustomer(model.Customer{ID: "CUST-00x1", Status: model.CustomerActive})
	ctx := context.Background()

	err := st.WithTx(ctx, func(tx repository.Tx) error {
		_, err := tx.NextID(ctx, idgen.EntityCustomer)
		return err
	})
	require.ErrorIs(t, err, model.ErrMalformedIdentifier)
}

package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmehdipour/utility-billing/internal/model"
	"github.com/jmehdipour/utility-billing/internal/repository/memory"
)

var t0 = time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)

func seed(opts ...memory.Option) *memory.Store {
	st := memory.New(opts...)
	st.PutCustomer(model.Customer{ID: "CUST-0001", FirstName: "Ada", Status: model.CustomerActive})
	st.PutCustomer(model.Customer{ID: "CUST-0002", FirstName: "Alan", Status: model.CustomerActive})
	st.PutAccount(model.Account{ID: "ACC-0002", CustomerID: "CUST-0002"})
	st.PutAccount(model.Account{ID: "ACC-0010", CustomerID: "CUST-0002"})
	return st
}

func pending(id, customerID string, utility model.UtilityType, action model.RequestAction) model.Request {
	return model.Request{
		ID:          id,
		CustomerID:  customerID,
		UtilityType: utility,
		Action:      action,
		Status:      model.RequestPending,
		RequestDate: t0,
	}
}

func envelopes(t *testing.T, st *memory.Store) []model.Envelope {
	t.Helper()
	var out []model.Envelope
	for _, ev := range st.Outbox() {
		var env model.Envelope
		require.NoError(t, json.Unmarshal(ev.Payload, &env))
		assert.Equal(t, DefaultTopic, ev.Topic)
		assert.Equal(t, env.Request.ID, ev.AggregateID)
		out = append(out, env)
	}
	return out
}

func TestSubmitThenList(t *testing.T) {
	st := seed()
	svc := New(st, "", nil)
	ctx := context.Background()

	req, err := svc.Submit(ctx, SubmitInput{CustomerID: "CUST-0002", UtilityType: model.UtilityElectricity, Action: model.ActionConnect})
	require.NoError(t, err)
	assert.Equal(t, "REQ-0001", req.ID)
	assert.Equal(t, model.RequestPending, req.Status)
	assert.False(t, req.RequestDate.After(time.Now()))

	rows, err := svc.List(ctx, model.RequestScope{CustomerID: "CUST-0002"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, req.ID, rows[0].ID)
	assert.Equal(t, model.RequestPending, rows[0].Status)

	envs := envelopes(t, st)
	require.Len(t, envs, 1)
	assert.Equal(t, model.EventRequestSubmitted, envs[0].Type)
	assert.NotEmpty(t, envs[0].ID)
}

func TestSubmitValidation(t *testing.T) {
	testCases := []struct {
		name    string
		in      SubmitInput
		wantErr error
	}{
		{
			name:    "unknown_customer",
			in:      SubmitInput{CustomerID: "CUST-9999", UtilityType: model.UtilityGas},
			wantErr: model.ErrUnknownCustomer,
		},
		{
			name:    "unknown_utility",
			in:      SubmitInput{CustomerID: "CUST-0001", UtilityType: "Steam"},
			wantErr: model.ErrUnknownUtility,
		},
		{
			name: "bad_action",
			in:   SubmitInput{CustomerID: "CUST-0001", UtilityType: model.UtilityGas, Action: "upgrade"},
		},
		{
			name: "missing_customer",
			in:   SubmitInput{UtilityType: model.UtilityGas},
		},
		{
			name:    "prefixed_request_id_out_of_format",
			in:      SubmitInput{RequestID: "REQ-00x1", CustomerID: "CUST-0001", UtilityType: model.UtilityGas},
			wantErr: model.ErrMalformedIdentifier,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			st := seed()
			svc := New(st, "", nil)

			_, err := svc.Submit(context.Background(), tc.in)
			require.Error(t, err)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			}
			if tc.wantErr != model.ErrUnknownCustomer {
				var ve model.ValidationError
				assert.True(t, errors.As(err, &ve))
			}
			assert.Empty(t, st.Outbox())

			rows, err := svc.List(context.Background(), model.RequestScope{})
			require.NoError(t, err)
			assert.Empty(t, rows)
		})
	}
}

func TestSubmitDefaultsActionToConnect(t *testing.T) {
	svc := New(seed(), "", nil)

	req, err := svc.Submit(context.Background(), SubmitInput{CustomerID: "CUST-0001", UtilityType: model.UtilityWater})
	require.NoError(t, err)
	assert.Equal(t, model.ActionConnect, req.Action)
}

func TestSubmitCallerSuppliedID(t *testing.T) {
	st := seed()
	svc := New(st, "", nil)
	ctx := context.Background()
	in := SubmitInput{RequestID: "REQ-0042", CustomerID: "CUST-0001", UtilityType: model.UtilityGas, Action: model.ActionConnect}

	first, err := svc.Submit(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "REQ-0042", first.ID)

	again, err := svc.Submit(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Len(t, st.Outbox(), 1)

	in.Action = model.ActionDisconnect
	_, err = svc.Submit(ctx, in)
	assert.ErrorIs(t, err, model.ErrRequestExists)

	next, err := svc.Submit(ctx, SubmitInput{CustomerID: "CUST-0001", UtilityType: model.UtilityGas})
	require.NoError(t, err)
	assert.Equal(t, "REQ-0043", next.ID)
}

func TestConcurrentSubmitsGetDistinctIDs(t *testing.T) {
	svc := New(seed(), "", nil)
	const n = 50

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = make(map[string]bool, n)
	)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, err := svc.Submit(context.Background(), SubmitInput{CustomerID: "CUST-0001", UtilityType: model.UtilityWater})
			if err != nil {
				errs <- err
				return
			}
			mu.Lock()
			ids[req.ID] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Len(t, ids, n)
	assert.True(t, ids["REQ-0001"])
	assert.True(t, ids["REQ-0050"])
}

func TestListSoftDegrades(t *testing.T) {
	svc := New(seed(memory.WithoutRequestsTable()), "", nil)

	rows, err := svc.List(context.Background(), model.RequestScope{})
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestListScopeAndOrder(t *testing.T) {
	st := seed()
	r1 := pending("REQ-0001", "CUST-0001", model.UtilityGas, model.ActionConnect)
	r2 := pending("REQ-0002", "CUST-0002", model.UtilityGas, model.ActionConnect)
	r2.RequestDate = t0.Add(time.Hour)
	r3 := pending("REQ-0003", "CUST-0002", model.UtilityWater, model.ActionModify)
	r3.Status = model.RequestRejected
	st.PutRequest(r1)
	st.PutRequest(r2)
	st.PutRequest(r3)
	svc := New(st, "", nil)

	rows, err := svc.List(context.Background(), model.RequestScope{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "REQ-0002", rows[0].ID)
	assert.Equal(t, "REQ-0003", rows[1].ID)
	assert.Equal(t, "REQ-0001", rows[2].ID)

	rows, err = svc.List(context.Background(), model.RequestScope{CustomerID: "CUST-0002", Status: model.RequestPending})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "REQ-0002", rows[0].ID)

	_, err = svc.List(context.Background(), model.RequestScope{Status: "Cancelled"})
	var ve model.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestDecideConnectCreatesOneMeter(t *testing.T) {
	st := seed()
	st.PutRequest(pending("REQ-0001", "CUST-0002", model.UtilityElectricity, model.ActionConnect))
	svc := New(st, "", nil)

	d, err := svc.Decide(context.Background(), "REQ-0001", model.RequestApproved)
	require.NoError(t, err)
	assert.Equal(t, model.RequestApproved, d.Request.Status)
	require.NotNil(t, d.Request.DecidedAt)
	require.NotNil(t, d.Meter)
	assert.Equal(t, "ACC-0002", d.Meter.AccountID)
	assert.Equal(t, model.MeterActive, d.Meter.Status)
	require.NotNil(t, d.Meter.RequestID)
	assert.Equal(t, "REQ-0001", *d.Meter.RequestID)

	meters, err := st.ListMetersByCustomer(context.Background(), "CUST-0002")
	require.NoError(t, err)
	assert.Len(t, meters, 1)

	stored, err := st.GetRequest(context.Background(), "REQ-0001")
	require.NoError(t, err)
	assert.Equal(t, model.RequestApproved, stored.Status)

	envs := envelopes(t, st)
	require.Len(t, envs, 1)
	assert.Equal(t, model.EventRequestDecided, envs[0].Type)
	assert.Equal(t, d.Meter.ID, envs[0].MeterID)
}

func TestDecideTerminalIsInvalidTransition(t *testing.T) {
	for _, status := range []model.RequestStatus{model.RequestApproved, model.RequestRejected} {
		t.Run(string(status), func(t *testing.T) {
			st := seed()
			r := pending("REQ-0001", "CUST-0002", model.UtilityGas, model.ActionConnect)
			r.Status = status
			st.PutRequest(r)
			svc := New(st, "", nil)

			_, err := svc.Decide(context.Background(), "REQ-0001", model.RequestApproved)
			assert.ErrorIs(t, err, model.ErrInvalidTransition)

			stored, err := st.GetRequest(context.Background(), "REQ-0001")
			require.NoError(t, err)
			assert.Equal(t, status, stored.Status)

			meters, err := st.ListMetersByCustomer(context.Background(), "CUST-0002")
			require.NoError(t, err)
			assert.Empty(t, meters)
			assert.Empty(t, st.Outbox())
		})
	}
}

func TestDecideRejectsNonTerminalTarget(t *testing.T) {
	st := seed()
	st.PutRequest(pending("REQ-0001", "CUST-0002", model.UtilityGas, model.ActionConnect))
	svc := New(st, "", nil)

	_, err := svc.Decide(context.Background(), "REQ-0001", model.RequestPending)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
}

func TestDecideUnknownRequest(t *testing.T) {
	svc := New(seed(), "", nil)

	_, err := svc.Decide(context.Background(), "REQ-9999", model.RequestRejected)
	assert.ErrorIs(t, err, model.ErrUnknownRequest)
}

func TestDecideRollsBackOnFailure(t *testing.T) {
	for _, op := range []string{"InsertMeter", "UpdateRequestStatus", "InsertOutbox"} {
		t.Run(op, func(t *testing.T) {
			st := seed()
			st.PutRequest(pending("REQ-0001", "CUST-0002", model.UtilityGas, model.ActionConnect))
			st.InjectFault(op, errors.New("connection lost"))
			svc := New(st, "", nil)

			_, err := svc.Decide(context.Background(), "REQ-0001", model.RequestApproved)
			assert.ErrorIs(t, err, model.ErrStoreUnavailable)

			stored, err := st.GetRequest(context.Background(), "REQ-0001")
			require.NoError(t, err)
			assert.Equal(t, model.RequestPending, stored.Status)
			assert.Nil(t, stored.DecidedAt)

			meters, err := st.ListMetersByCustomer(context.Background(), "CUST-0002")
			require.NoError(t, err)
			assert.Empty(t, meters)
			assert.Empty(t, st.Outbox())

			st.ClearFaults()
			d, err := svc.Decide(context.Background(), "REQ-0001", model.RequestApproved)
			require.NoError(t, err)
			assert.Equal(t, "MTR-0001", d.Meter.ID)
		})
	}
}

func TestDecideConnectWithoutAccountIsDeferred(t *testing.T) {
	st := seed()
	st.PutRequest(pending("REQ-0001", "CUST-0001", model.UtilityWater, model.ActionConnect))
	svc := New(st, "", nil)

	_, err := svc.Decide(context.Background(), "REQ-0001", model.RequestApproved)
	assert.ErrorIs(t, err, model.ErrProvisioningDeferred)

	stored, err := st.GetRequest(context.Background(), "REQ-0001")
	require.NoError(t, err)
	assert.Equal(t, model.RequestPending, stored.Status)

	envs := envelopes(t, st)
	require.Len(t, envs, 1)
	assert.Equal(t, model.EventRequestProvisioningDeferred, envs[0].Type)

	d, err := svc.Decide(context.Background(), "REQ-0001", model.RequestRejected)
	require.NoError(t, err)
	assert.Equal(t, model.RequestRejected, d.Request.Status)
	assert.Nil(t, d.Meter)
}

func TestDecideDisconnectDeactivatesMeters(t *testing.T) {
	st := seed()
	st.PutMeter(model.Meter{ID: "MTR-0001", AccountID: "ACC-0002", UtilityType: model.UtilityGas, Status: model.MeterActive})
	st.PutMeter(model.Meter{ID: "MTR-0002", AccountID: "ACC-0010", UtilityType: model.UtilityGas, Status: model.MeterActive})
	st.PutMeter(model.Meter{ID: "MTR-0003", AccountID: "ACC-0002", UtilityType: model.UtilityWater, Status: model.MeterActive})
	st.PutRequest(pending("REQ-0001", "CUST-0002", model.UtilityGas, model.ActionDisconnect))
	svc := New(st, "", nil)

	d, err := svc.Decide(context.Background(), "REQ-0001", model.RequestApproved)
	require.NoError(t, err)
	assert.Len(t, d.DeactivatedMeters, 2)
	assert.Nil(t, d.Meter)

	meters, err := st.ListMetersByCustomer(context.Background(), "CUST-0002")
	require.NoError(t, err)
	for _, m := range meters {
		if m.UtilityType == model.UtilityGas {
			assert.Equal(t, model.MeterInactive, m.Status)
			assert.NotNil(t, m.RemovedAt)
		} else {
			assert.Equal(t, model.MeterActive, m.Status)
		}
	}
}

func TestDecideDisconnectWithoutMeters(t *testing.T) {
	st := seed()
	st.PutRequest(pending("REQ-0001", "CUST-0001", model.UtilityGas, model.ActionDisconnect))
	svc := New(st, "", nil)

	d, err := svc.Decide(context.Background(), "REQ-0001", model.RequestApproved)
	require.NoError(t, err)
	assert.Equal(t, model.RequestApproved, d.Request.Status)
	assert.Empty(t, d.DeactivatedMeters)
}

func TestDecideModifyAndReject(t *testing.T) {
	testCases := []struct {
		name   string
		action model.RequestAction
		status model.RequestStatus
	}{
		{name: "approve_modify", action: model.ActionModify, status: model.RequestApproved},
		{name: "reject_connect", action: model.ActionConnect, status: model.RequestRejected},
		{name: "reject_disconnect", action: model.ActionDisconnect, status: model.RequestRejected},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			st := seed()
			st.PutMeter(model.Meter{ID: "MTR-0001", AccountID: "ACC-0002", UtilityType: model.UtilityGas, Status: model.MeterActive})
			st.PutRequest(pending("REQ-0001", "CUST-0002", model.UtilityGas, tc.action))
			svc := New(st, "", nil)

			d, err := svc.Decide(context.Background(), "REQ-0001", tc.status)
			require.NoError(t, err)
			assert.Equal(t, tc.status, d.Request.Status)
			assert.Nil(t, d.Meter)
			assert.Empty(t, d.DeactivatedMeters)

			meters, err := st.ListMetersByCustomer(context.Background(), "CUST-0002")
			require.NoError(t, err)
			require.Len(t, meters, 1)
			assert.Equal(t, model.MeterActive, meters[0].Status)
		})
	}
}

func TestPrimaryAccountUsesNumericOrder(t *testing.T) {
	assert.True(t, accountLess("ACC-9999", "ACC-10000"))
	assert.True(t, accountLess("ACC-0002", "ACC-0010"))
	assert.False(t, accountLess("ACC-0010", "ACC-0002"))
}

func TestSubmitFreeFormIDDoesNotBlockAllocation(t *testing.T) {
	svc := New(seed(), "", nil)
	ctx := context.Background()

	_, err := svc.Submit(ctx, SubmitInput{RequestID: "web-1", CustomerID: "CUST-0001", UtilityType: model.UtilityGas})
	require.NoError(t, err)

	req, err := svc.Submit(ctx, SubmitInput{CustomerID: "CUST-0001", UtilityType: model.UtilityWater})
	require.NoError(t, err)
	assert.Equal(t, "REQ-0001", req.ID)
}

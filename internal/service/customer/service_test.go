package customer

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmehdipour/utility-billing/internal/model"
	"github.com/jmehdipour/utility-billing/internal/repository/memory"
)

func validInput() SignupInput {
	return SignupInput{
		FirstName:      "Grace",
		LastName:       "Hopper",
		PhoneNumber:    "(555) 010-9999",
		Email:          "Grace@Example.com ",
		ServiceAddress: "1 Navy Way",
		City:           "Arlington",
		ZipCode:        "22201",
	}
}

func TestSignup(t *testing.T) {
	st := memory.New()
	st.PutCustomer(model.Customer{ID: "CUST-0007"})
	svc := New(st, nil)

	res, err := svc.Signup(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, "CUST-0008", res.Customer.ID)
	assert.Equal(t, "ACC-0001", res.Account.ID)
	assert.Equal(t, model.CustomerActive, res.Customer.Status)
	assert.Equal(t, "grace@example.com", res.Customer.Email)
	assert.Equal(t, "5550109999", res.Customer.PhoneNumber)
	assert.Equal(t, model.BillingCycleMonthly, res.Account.BillingCycle)
	assert.True(t, res.Account.Balance.Equal(decimal.Zero))

	accounts, err := st.ListAccountsByCustomer(context.Background(), "CUST-0008")
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
}

func TestSignupValidation(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*SignupInput)
		field  string
	}{
		{name: "missing_first_name", mutate: func(in *SignupInput) { in.FirstName = " " }, field: "FirstName"},
		{name: "bad_email", mutate: func(in *SignupInput) { in.Email = "nope" }, field: "Email"},
		{name: "short_phone", mutate: func(in *SignupInput) { in.PhoneNumber = "12-3" }, field: "PhoneNumber"},
		{name: "long_zip", mutate: func(in *SignupInput) { in.ZipCode = "12345678901" }, field: "ZipCode"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			st := memory.New()
			svc := New(st, nil)
			in := validInput()
			tc.mutate(&in)

			_, err := svc.Signup(context.Background(), in)
			var ve model.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tc.field, ve.Field)

			rows, err := st.ListCustomers(context.Background())
			require.NoError(t, err)
			assert.Empty(t, rows)
		})
	}
}

func TestSignupIsAtomic(t *testing.T) {
	st := memory.New()
	st.InjectFault("InsertAccount", errors.New("lock wait timeout"))
	svc := New(st, nil)

	_, err := svc.Signup(context.Background(), validInput())
	assert.ErrorIs(t, err, model.ErrStoreUnavailable)

	rows, err := st.ListCustomers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)

	st.ClearFaults()
	res, err := svc.Signup(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, "CUST-0001", res.Customer.ID)
}

func TestLogin(t *testing.T) {
	st := memory.New()
	st.PutCustomer(model.Customer{ID: "CUST-0001", FirstName: "Ada"})
	svc := New(st, nil)

	testCases := []struct {
		name       string
		role       string
		customerID string
		wantErr    error
	}{
		{name: "admin", role: "admin"},
		{name: "admin_mixed_case", role: "Admin"},
		{name: "customer", role: "customer", customerID: "CUST-0001"},
		{name: "unknown_customer", role: "customer", customerID: "CUST-0404", wantErr: model.ErrUnknownCustomer},
		{name: "bad_role", role: "root", wantErr: model.ErrInvalidRole},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sess, err := svc.Login(context.Background(), tc.role, tc.customerID)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			if tc.customerID != "" {
				assert.Equal(t, RoleCustomer, sess.Role)
				require.NotNil(t, sess.Customer)
				assert.Equal(t, "Ada", sess.Customer.FirstName)
			} else {
				assert.Equal(t, RoleAdmin, sess.Role)
			}
		})
	}
}

func TestStats(t *testing.T) {
	st := memory.New()
	st.PutCustomer(model.Customer{ID: "CUST-0001"})
	st.PutAccount(model.Account{ID: "ACC-0001", CustomerID: "CUST-0001"})
	st.PutMeter(model.Meter{ID: "MTR-0001", AccountID: "ACC-0001", Status: model.MeterActive})
	st.PutMeter(model.Meter{ID: "MTR-0002", AccountID: "ACC-0001", Status: model.MeterInactive})
	st.PutRequest(model.Request{ID: "REQ-0001", CustomerID: "CUST-0001", Status: model.RequestPending})
	st.PutBill(model.Bill{ID: "B1", AccountID: "ACC-0001", Amount: decimal.RequireFromString("10.50"), Status: model.BillUnpaid})
	st.PutBill(model.Bill{ID: "B2", AccountID: "ACC-0001", Amount: decimal.RequireFromString("4.50"), Status: model.BillOverdue})
	st.PutBill(model.Bill{ID: "B3", AccountID: "ACC-0001", Amount: decimal.RequireFromString("99"), Status: model.BillPaid})
	svc := New(st, nil)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Customers)
	assert.EqualValues(t, 1, stats.Accounts)
	assert.EqualValues(t, 1, stats.ActiveMeters)
	assert.EqualValues(t, 1, stats.PendingRequests)
	assert.EqualValues(t, 2, stats.UnpaidBills)
	assert.Equal(t, "15", stats.UnpaidAmount.String())
}

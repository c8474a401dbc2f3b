package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmehdipour/utility-billing/internal/config"
	"github.com/jmehdipour/utility-billing/internal/model"
	"github.com/jmehdipour/utility-billing/internal/repository/memory"
	"github.com/jmehdipour/utility-billing/internal/service/charges"
	"github.com/jmehdipour/utility-billing/internal/service/customer"
	"github.com/jmehdipour/utility-billing/internal/service/directory"
	"github.com/jmehdipour/utility-billing/internal/service/ledger"
	"github.com/jmehdipour/utility-billing/internal/service/lifecycle"
)

func newTestServer(t *testing.T, st *memory.Store) http.Handler {
	t.Helper()
	svcs := Services{
		Customers: customer.New(st, nil),
		Charges:   charges.New(st, nil, nil),
		Directory: directory.New(st, nil),
		Ledger:    ledger.New(st, nil, nil),
		Lifecycle: lifecycle.New(st, "", nil),
	}
	return NewServer(config.Config{}, st, svcs, nil, nil).Handler()
}

func seeded() *memory.Store {
	st := memory.New()
	st.PutCustomer(model.Customer{ID: "CUST-0001", FirstName: "Ada", Status: model.CustomerActive})
	st.PutCustomer(model.Customer{ID: "CUST-0002", FirstName: "Alan", Status: model.CustomerActive})
	st.PutAccount(model.Account{ID: "ACC-0001", CustomerID: "CUST-0002", BillingCycle: model.BillingCycleMonthly})
	st.PutCharge(model.Charge{
		UtilityType:   model.UtilityElectricity,
		RatePerUnit:   decimal.RequireFromString("18.5"),
		FixedCharge:   decimal.NewFromInt(500),
		TaxPercentage: decimal.NewFromInt(15),
		ServiceFee:    decimal.NewFromInt(100),
	})
	return st
}

func do(t *testing.T, h http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthz(t *testing.T) {
	h := newTestServer(t, seeded())

	rec := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestLoginAndSignup(t *testing.T) {
	h := newTestServer(t, seeded())

	testCases := []struct {
		name string
		body string
		code int
	}{
		{name: "admin", body: `{"role":"admin"}`, code: http.StatusOK},
		{name: "customer", body: `{"role":"customer","customerId":"CUST-0001"}`, code: http.StatusOK},
		{name: "unknown_customer", body: `{"role":"customer","customerId":"CUST-0404"}`, code: http.StatusNotFound},
		{name: "bad_role", body: `{"role":"root"}`, code: http.StatusUnauthorized},
		{name: "missing_role", body: `{}`, code: http.StatusBadRequest},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/login", tc.body)
			assert.Equal(t, tc.code, rec.Code, rec.Body.String())
		})
	}

	rec := do(t, h, http.MethodPost, "/api/signup", `{
		"FirstName":"Grace","LastName":"Hopper","PhoneNumber":"555-010-9999",
		"Email":"grace@example.com","ServiceAddress":"1 Navy Way","City":"Arlington","ZipCode":"22201"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "CUST-0003", body["customerId"])
	assert.Equal(t, "ACC-0002", body["accountId"])

	rec = do(t, h, http.MethodPost, "/api/signup", `{"FirstName":"Grace"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_failed", decode(t, rec)["error"])
}

func TestDirectoryRoutes(t *testing.T) {
	h := newTestServer(t, seeded())

	rec := do(t, h, http.MethodGet, "/api/accounts/CUST-0002", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ACC-0001")

	rec = do(t, h, http.MethodGet, "/api/meters/CUST-0001", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/customer-details/CUST-0404", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/accounts/ACC-0001/bills", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestChargesRoutes(t *testing.T) {
	h := newTestServer(t, seeded())

	rec := do(t, h, http.MethodPut, "/api/charges", `[{"UtilityType":"Electricity","RatePerUnit":"20"}]`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodPut, "/api/charges", `[{"UtilityType":"Electricity","RatePerUnit":"20"}]`, "X-Role", "customer")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, http.MethodPut, "/api/charges", `[{"UtilityType":"electricity","FixedCharge":-5}]`, "X-Role", "admin")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "invalid_charge_value", decode(t, rec)["error"])

	rec = do(t, h, http.MethodPut, "/api/charges", `[{"UtilityType":"Electricity","RatePerUnit":20}]`, "X-Role", "admin")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/charges", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var rows []model.Charge
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.True(t, rows[0].RatePerUnit.Equal(decimal.NewFromInt(20)))
	assert.True(t, rows[0].FixedCharge.Equal(decimal.NewFromInt(500)))

	rec = do(t, h, http.MethodGet, "/api/charges/quote?utility=electricity&units=10", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var q model.Quote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &q))
	// (10*20 + 500 + 100) * 1.15
	assert.Equal(t, "920", q.Total.String())

	rec = do(t, h, http.MethodGet, "/api/charges/quote?utility=electricity&units=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/charges/quote?utility=steam&units=1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "unknown_utility", decode(t, rec)["error"])

	rec = do(t, h, http.MethodGet, "/api/charges/quote?utility=gas&units=1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "unknown_utility", decode(t, rec)["error"])
}

func TestUpdateChargesReportsSkippedItems(t *testing.T) {
	h := newTestServer(t, seeded())

	rec := do(t, h, http.MethodPut, "/api/charges",
		`[{"UtilityType":"Electricity","RatePerUnit":21},{"UtilityType":"Steam","RatePerUnit":1},{"UtilityType":"Gas","RatePerUnit":2}]`,
		"X-Role", "admin")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, []any{"Electricity"}, body["updated"])
	assert.Equal(t, []any{"Steam", "Gas"}, body["skipped"])

	rec = do(t, h, http.MethodGet, "/api/charges", "")
	var rows []model.Charge
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.True(t, rows[0].RatePerUnit.Equal(decimal.NewFromInt(21)))
}

func TestSubmitRejectsBadUtilityAndRequestID(t *testing.T) {
	h := newTestServer(t, seeded())

	rec := do(t, h, http.MethodPost, "/api/requests", `{"CustomerID":"CUST-0002","UtilityType":"Steam"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "unknown_utility", decode(t, rec)["error"])

	rec = do(t, h, http.MethodPost, "/api/requests", `{"RequestID":"REQ-00x1","CustomerID":"CUST-0002","UtilityType":"Gas"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "validation_failed", body["error"])
	assert.Equal(t, "RequestID", body["field"])
}

func TestRequestLifecycleRoutes(t *testing.T) {
	st := seeded()
	h := newTestServer(t, st)

	rec := do(t, h, http.MethodPost, "/api/requests", `{"CustomerID":"CUST-0002","UtilityType":"Gas","Status":"Pending"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/api/requests", `{"CustomerID":"CUST-0404","UtilityType":"Gas"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/requests", `{"CustomerID":"CUST-0002","UtilityType":"Gas","Status":"Approved"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/requests?customer_id=CUST-0002&status=pending", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []model.Request
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "REQ-0001", listed[0].ID)

	rec = do(t, h, http.MethodPut, "/api/requests/REQ-0001/decision", `{"Status":"Approved"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodPut, "/api/requests/REQ-0001/decision", `{"Status":"Approved"}`, "X-Role", "admin")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "MTR-0001")

	rec = do(t, h, http.MethodPut, "/api/requests", `{"RequestID":"REQ-0001","Status":"Rejected"}`, "X-Role", "admin")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_transition", decode(t, rec)["error"])

	rec = do(t, h, http.MethodPut, "/api/requests", `{"RequestID":"REQ-0404","Status":"Rejected"}`, "X-Role", "admin")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDecisionDeferredWithoutAccount(t *testing.T) {
	st := seeded()
	st.PutRequest(model.Request{ID: "REQ-0001", CustomerID: "CUST-0001", UtilityType: model.UtilityWater, Action: model.ActionConnect, Status: model.RequestPending})
	h := newTestServer(t, st)

	rec := do(t, h, http.MethodPut, "/api/requests/REQ-0001/decision", `{"Status":"Approved"}`, "X-Role", "admin")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "provisioning_deferred", decode(t, rec)["error"])
}

func TestListRequestsWithoutTable(t *testing.T) {
	h := newTestServer(t, memory.New(memory.WithoutRequestsTable()))

	rec := do(t, h, http.MethodGet, "/api/requests", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestAdminStats(t *testing.T) {
	h := newTestServer(t, seeded())

	rec := do(t, h, http.MethodGet, "/api/admin/stats", "", "X-Role", "admin")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 2, body["customers"])
	assert.EqualValues(t, 1, body["accounts"])
}

func TestStatusOf(t *testing.T) {
	testCases := []struct {
		err  error
		code int
	}{
		{err: model.ErrUnknownCustomer, code: http.StatusNotFound},
		{err: model.ErrInvalidTransition, code: http.StatusConflict},
		{err: model.ErrProvisioningDeferred, code: http.StatusConflict},
		{err: model.ErrInvalidChargeValue, code: http.StatusUnprocessableEntity},
		{err: fmt.Errorf("lock sequence: %w", model.ErrMalformedIdentifier), code: http.StatusInternalServerError},
		{err: model.ValidationError{Field: "RequestID", Message: "bad format", Err: model.ErrMalformedIdentifier}, code: http.StatusBadRequest},
		{err: model.InvalidUtility("UtilityType", "Steam"), code: http.StatusBadRequest},
		{err: fmt.Errorf("%w: no charge row for Gas", model.ErrUnknownUtility), code: http.StatusNotFound},
		{err: model.StoreError("op", assert.AnError), code: http.StatusServiceUnavailable},
		{err: assert.AnError, code: http.StatusInternalServerError},
	}
	for _, tc := range testCases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			code, _ := statusOf(tc.err)
			assert.Equal(t, tc.code, code)
		})
	}
}

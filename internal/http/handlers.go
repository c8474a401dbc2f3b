package http

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/jmehdipour/utility-billing/internal/service/customer"
)

type handlers struct {
	svcs Services
	log  *zap.Logger
}

type loginReq struct {
	Role       string `json:"role"       validate:"required"`
	CustomerID string `json:"customerId"`
}

func (h *handlers) login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "bad request")
	}
	if err := validatePayload(&req); err != nil {
		return writeError(c, err)
	}

	sess, err := h.svcs.Customers.Login(c.Request().Context(), req.Role, req.CustomerID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"role":    sess.Role,
		"user":    sess.Customer,
	})
}

func (h *handlers) signup(c echo.Context) error {
	var in customer.SignupInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "bad request")
	}

	res, err := h.svcs.Customers.Signup(c.Request().Context(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]any{
		"success":    true,
		"customerId": res.Customer.ID,
		"accountId":  res.Account.ID,
		"customer":   res.Customer,
		"account":    res.Account,
	})
}

func (h *handlers) listCustomers(c echo.Context) error {
	rows, err := h.svcs.Customers.ListCustomers(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, rows)
}

func (h *handlers) getCustomer(c echo.Context) error {
	cu, err := h.svcs.Customers.GetCustomer(c.Request().Context(), pathID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, cu)
}

func (h *handlers) stats(c echo.Context) error {
	st, err := h.svcs.Customers.Stats(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *handlers) customerDetails(c echo.Context) error {
	d, err := h.svcs.Directory.CustomerDetails(c.Request().Context(), pathID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *handlers) listMeters(c echo.Context) error {
	rows, err := h.svcs.Directory.GetMetersFor(c.Request().Context(), pathID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, rows)
}

func (h *handlers) listAccounts(c echo.Context) error {
	rows, err := h.svcs.Directory.GetAccountsFor(c.Request().Context(), pathID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, rows)
}

func pathID(c echo.Context) string {
	return strings.TrimSpace(c.Param("id"))
}

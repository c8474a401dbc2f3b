package http

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// listBills serves every bill, or one account's with ?account_id=.
func (h *handlers) listBills(c echo.Context) error {
	rows, err := h.svcs.Ledger.GetBills(c.Request().Context(), strings.TrimSpace(c.QueryParam("account_id")))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, rows)
}

func (h *handlers) accountBills(c echo.Context) error {
	accountID := pathID(c)
	if accountID == "" {
		return badRequest(c, "account id required")
	}
	rows, err := h.svcs.Ledger.GetBills(c.Request().Context(), accountID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, rows)
}

func (h *handlers) customerBills(c echo.Context) error {
	rows, err := h.svcs.Ledger.GetBillsForCustomer(c.Request().Context(), pathID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, rows)
}

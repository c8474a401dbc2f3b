package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/jmehdipour/utility-billing/internal/model"
)

func (h *handlers) getCharges(c echo.Context) error {
	rows, err := h.svcs.Charges.GetCharges(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, rows)
}

// updateCharges takes the whole batch as a JSON array of partial rows.
func (h *handlers) updateCharges(c echo.Context) error {
	var updates []model.ChargeUpdate
	if err := c.Bind(&updates); err != nil {
		return badRequest(c, "expected a list of charges")
	}
	for i := range updates {
		if u, ok := model.ParseUtilityType(string(updates[i].UtilityType)); ok {
			updates[i].UtilityType = u
		}
	}

	res, err := h.svcs.Charges.UpdateCharges(c.Request().Context(), updates)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "updated": res.Updated, "skipped": res.Skipped})
}

func (h *handlers) quote(c echo.Context) error {
	utility, ok := model.ParseUtilityType(c.QueryParam("utility"))
	if !ok {
		return writeError(c, model.InvalidUtility("utility", model.UtilityType(c.QueryParam("utility"))))
	}
	units, err := decimal.NewFromString(c.QueryParam("units"))
	if err != nil {
		return writeError(c, model.ValidationError{Field: "units", Message: "not a number"})
	}

	q, err := h.svcs.Charges.Quote(c.Request().Context(), utility, units)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, q)
}

package http

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/jmehdipour/utility-billing/internal/model"
	"github.com/jmehdipour/utility-billing/internal/service/lifecycle"
)

type submitReq struct {
	RequestID   string `json:"RequestID"   validate:"omitempty,max=32"`
	CustomerID  string `json:"CustomerID"  validate:"required"`
	UtilityType string `json:"UtilityType" validate:"required"`
	Action      string `json:"Action"`
	Status      string `json:"Status"`
}

type decideReq struct {
	RequestID string `json:"RequestID"`
	Status    string `json:"Status" validate:"required"`
}

func (h *handlers) listRequests(c echo.Context) error {
	scope := model.RequestScope{CustomerID: strings.TrimSpace(c.QueryParam("customer_id"))}
	if raw := c.QueryParam("status"); raw != "" {
		st, ok := model.ParseRequestStatus(raw)
		if !ok {
			return writeError(c, model.ValidationError{Field: "status", Message: "unknown status"})
		}
		scope.Status = st
	}

	rows, err := h.svcs.Lifecycle.List(c.Request().Context(), scope)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, rows)
}

func (h *handlers) submitRequest(c echo.Context) error {
	var req submitReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "bad request")
	}
	if err := validatePayload(&req); err != nil {
		return writeError(c, err)
	}

	// new requests always start Pending
	if req.Status != "" {
		if st, ok := model.ParseRequestStatus(req.Status); !ok || st != model.RequestPending {
			return writeError(c, model.ValidationError{Field: "Status", Message: "new requests must be Pending"})
		}
	}
	action, ok := model.ParseRequestAction(req.Action)
	if !ok {
		return writeError(c, model.ValidationError{Field: "Action", Message: "unknown action"})
	}
	utility, ok := model.ParseUtilityType(req.UtilityType)
	if !ok {
		utility = model.UtilityType(req.UtilityType)
	}

	created, err := h.svcs.Lifecycle.Submit(c.Request().Context(), lifecycle.SubmitInput{
		RequestID:   req.RequestID,
		CustomerID:  req.CustomerID,
		UtilityType: utility,
		Action:      action,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]any{"success": true, "request": created})
}

// decideRequest serves both PUT /requests (id in body) and
// PUT /requests/:id/decision.
func (h *handlers) decideRequest(c echo.Context) error {
	var req decideReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "bad request")
	}
	if id := pathID(c); id != "" {
		req.RequestID = id
	}
	req.RequestID = strings.TrimSpace(req.RequestID)
	if req.RequestID == "" {
		return writeError(c, model.ValidationError{Field: "RequestID", Message: "required"})
	}
	if err := validatePayload(&req); err != nil {
		return writeError(c, err)
	}
	status, ok := model.ParseRequestStatus(req.Status)
	if !ok {
		return writeError(c, model.ValidationError{Field: "Status", Message: "unknown status"})
	}

	d, err := h.svcs.Lifecycle.Decide(c.Request().Context(), req.RequestID, status)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "decision": d})
}

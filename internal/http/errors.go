package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/jmehdipour/utility-billing/internal/model"
)

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Field   string `json:"field,omitempty"`
}

// statusOf maps a domain error to its HTTP status and stable error code.
func statusOf(err error) (int, string) {
	var ve model.ValidationError
	switch {
	case errors.As(err, &ve):
		if errors.Is(ve.Err, model.ErrUnknownUtility) {
			return http.StatusBadRequest, "unknown_utility"
		}
		return http.StatusBadRequest, "validation_failed"
	// Stored ids only; caller-supplied ids fail as ValidationError above.
	case errors.Is(err, model.ErrMalformedIdentifier):
		return http.StatusInternalServerError, "malformed_identifier"
	case errors.Is(err, model.ErrUnknownCustomer):
		return http.StatusNotFound, "unknown_customer"
	case errors.Is(err, model.ErrUnknownAccount):
		return http.StatusNotFound, "unknown_account"
	case errors.Is(err, model.ErrUnknownRequest):
		return http.StatusNotFound, "unknown_request"
	case errors.Is(err, model.ErrUnknownUtility):
		return http.StatusNotFound, "unknown_utility"
	case errors.Is(err, model.ErrProvisioningDeferred):
		return http.StatusConflict, "provisioning_deferred"
	case errors.Is(err, model.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, model.ErrRequestExists):
		return http.StatusConflict, "request_exists"
	case errors.Is(err, model.ErrInvalidChargeValue):
		return http.StatusUnprocessableEntity, "invalid_charge_value"
	case errors.Is(err, model.ErrInvalidUsage):
		return http.StatusUnprocessableEntity, "invalid_usage"
	case errors.Is(err, model.ErrInvalidRole):
		return http.StatusUnauthorized, "invalid_role"
	case errors.Is(err, model.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(c echo.Context, err error) error {
	status, code := statusOf(err)
	body := errorBody{Error: code, Message: err.Error()}

	var ve model.ValidationError
	if errors.As(err, &ve) {
		body.Field = ve.Field
		body.Message = ve.Message
	}
	if status >= http.StatusInternalServerError {
		log.Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
		if status == http.StatusInternalServerError {
			body.Message = ""
		}
	}
	return c.JSON(status, body)
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, errorBody{Error: "bad_request", Message: msg})
}

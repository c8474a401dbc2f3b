package http

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/jmehdipour/utility-billing/internal/model"
)

var validate = validator.New()

// validatePayload runs struct tags and reports the first failure as a
// model.ValidationError.
func validatePayload(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		return model.ValidationError{Field: ve[0].Field(), Message: fmt.Sprintf("failed %q check", ve[0].Tag())}
	}
	return model.ValidationError{Field: "body", Message: err.Error()}
}

package model

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownCustomer      = errors.New("unknown customer")
	ErrUnknownAccount       = errors.New("unknown account")
	ErrUnknownRequest       = errors.New("unknown request")
	ErrUnknownUtility       = errors.New("unknown utility type")
	ErrInvalidTransition    = errors.New("invalid transition")
	ErrInvalidChargeValue   = errors.New("invalid charge value")
	ErrMalformedIdentifier  = errors.New("malformed identifier")
	ErrProvisioningDeferred = errors.New("provisioning deferred")
	ErrStoreUnavailable     = errors.New("store unavailable")

	ErrRequestExists = errors.New("request already exists")
	ErrInvalidRole   = errors.New("invalid role")
	ErrInvalidUsage  = errors.New("invalid usage quantity")

	// ErrEntityUninitialized is returned by stores when the backing table of an
	// entity does not exist yet (fresh deployment before migrate).
	ErrEntityUninitialized = errors.New("entity storage uninitialized")
)

// ValidationError is a field-level input failure detected before any mutation.
// Err, when set, names the domain sentinel behind the failure.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

func (e ValidationError) Unwrap() error { return e.Err }

// InvalidUtility reports a payload naming a utility type outside the closed set.
func InvalidUtility(field string, u UtilityType) ValidationError {
	return ValidationError{Field: field, Message: fmt.Sprintf("unknown utility type %q", u), Err: ErrUnknownUtility}
}

// IsValidation reports whether err was raised before touching the store.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve) ||
		errors.Is(err, ErrUnknownCustomer) ||
		errors.Is(err, ErrUnknownAccount) ||
		errors.Is(err, ErrUnknownRequest) ||
		errors.Is(err, ErrUnknownUtility) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrInvalidChargeValue) ||
		errors.Is(err, ErrInvalidRole) ||
		errors.Is(err, ErrInvalidUsage) ||
		errors.Is(err, ErrRequestExists)
}

// IsDomain reports whether err belongs to the domain taxonomy.
func IsDomain(err error) bool {
	return IsValidation(err) ||
		errors.Is(err, ErrMalformedIdentifier) ||
		errors.Is(err, ErrProvisioningDeferred) ||
		errors.Is(err, ErrStoreUnavailable)
}

// StoreError passes domain errors through and marks everything else as
// ErrStoreUnavailable, keeping the cause in the chain.
func StoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsDomain(err) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

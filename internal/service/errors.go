package service

import (
	"errors"
	"fmt"

	"app/internal/billing"
)

var (
	// ErrActionInFlight means the same action key already has an outstanding
	// request; the caller should wait instead of duplicating it.
	ErrActionInFlight = errors.New("billing action already in progress")
	// ErrConfirmationInProgress means a pending confirmation must be resolved
	// or abandoned before opening another one.
	ErrConfirmationInProgress = errors.New("a payment confirmation is already in progress")
	// ErrNoPendingConfirmation means there is nothing to confirm or abandon.
	ErrNoPendingConfirmation = errors.New("no payment confirmation in progress")
	// ErrConfirmationAbandoned marks a confirmation the user dismissed. Not a
	// failure: logged at info level and never shown as an error.
	ErrConfirmationAbandoned = errors.New("payment confirmation abandoned")
	// ErrConfirmationSecretMissing means the billing API reported an unsettled
	// subscription without the secret needed to confirm it. The response
	// violates the subscribe contract and nothing can be done with the record.
	ErrConfirmationSecretMissing = errors.New("billing API returned no confirmation secret for an unsettled subscription")
)

// ValidationError rejects a request before any network call is made.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid billing request: " + e.Reason
}

// ConfirmationFailedError carries the provider-reported decline reason, shown
// to the user verbatim.
type ConfirmationFailedError struct {
	Reason string
}

func (e *ConfirmationFailedError) Error() string {
	return "payment confirmation failed: " + e.Reason
}

// validationf builds a ValidationError.
func validationf(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// isConflict reports whether the billing API rejected the action because our
// cached view is stale.
func isConflict(err error) bool {
	return errors.Is(err, billing.ErrConflict)
}

// isTransient reports whether the billing API failure is a network/5xx error
// the user may simply retry.
func isTransient(err error) bool {
	var apiErr *billing.APIError
	return errors.As(err, &apiErr) && apiErr.Transient()
}

package services

import "errors"

// Error taxonomy shared by all lifecycle services. Callers classify with
// errors.Is; the HTTP layer maps each sentinel to a status code.
var (
	// ErrValidation: malformed or missing input, caller's fault, no state change.
	ErrValidation = errors.New("invalid input")

	// ErrInvalidState: operation not legal in the current lifecycle state.
	ErrInvalidState = errors.New("operation not legal in current state")

	// ErrConflict: a concurrent-mutation race was lost or a uniqueness
	// constraint was violated.
	ErrConflict = errors.New("conflicting update")

	// ErrForbidden: identity mismatch or actor lacks authority.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound: unknown id or token.
	ErrNotFound = errors.New("not found")

	// ErrIncompleteOnboarding: completion requested before all required
	// steps carry data.
	ErrIncompleteOnboarding = errors.New("onboarding incomplete")

	// ErrProvisioningTimeout: the processor account's transfer capability
	// never activated within the polling budget.
	ErrProvisioningTimeout = errors.New("account provisioning timed out")
)

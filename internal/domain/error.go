package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrValidation      = errors.New("validation failed")

	// Checkout flow
	ErrCancelled            = errors.New("checkout cancelled")
	ErrPlanUnavailable      = errors.New("plan is not available")
	ErrCheckoutInProgress   = errors.New("a checkout is already in progress")
	ErrNoActiveCheckout     = errors.New("no active checkout")
	ErrCancelTooLate        = errors.New("checkout can no longer be cancelled")
	ErrInvalidTransition    = errors.New("invalid checkout state transition")
	ErrOrderAlreadyOpen     = errors.New("an order handle is already open for this checkout")
	ErrOrderCreationFailed  = errors.New("order creation failed")
	ErrOrderHandleReused    = errors.New("order handle already used")
	ErrVerificationFailed   = errors.New("payment verification failed")
	ErrGatewayBusy          = errors.New("gateway session already awaiting input")
	ErrStaleCallback        = errors.New("stale gateway callback")
	ErrGatewaySessionClosed = errors.New("gateway session closed")

	// Transport
	ErrNetwork            = errors.New("network failure")
	ErrBackendRejected    = errors.New("backend rejected request")
	ErrRateLimited        = errors.New("rate limited")
	ErrBusy               = errors.New("service busy")
	ErrInvalidExecContext = errors.New("invalid executor context")

	// Storage
	ErrOperationFailed = errors.New("storage operation failed")
	ErrReadDatabaseRow = errors.New("failed to read database row")
)

// RemoteError carries a backend failure. Err is ErrNetwork or ErrBackendRejected;
// Message is the backend's own message and is shown to the purchaser verbatim.
type RemoteError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return e.Op + ": " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error() + ": " + e.Message
}

func (e *RemoteError) Unwrap() error { return e.Err }

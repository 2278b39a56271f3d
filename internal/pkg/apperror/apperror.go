package apperror

import "errors"

// Kind classifies an error for callers that need to branch on the failure class
// rather than on a specific sentinel.
type Kind string

const (
	KindValidation              Kind = "validation_error"
	KindNotFound                Kind = "not_found"
	KindConflict                Kind = "conflict"
	KindForbidden               Kind = "forbidden"
	KindAvailabilityUnavailable Kind = "availability_unavailable"
	KindNoCourtsAvailable       Kind = "no_courts_available"
	KindAllCourtsInactive       Kind = "all_courts_inactive"
	KindSlotNoLongerAvailable   Kind = "slot_no_longer_available"
	KindPaymentGateway          Kind = "payment_gateway_error"
	KindStoreWrite              Kind = "store_write_error"
	KindTimerExpired            Kind = "timer_expired"
	KindInternal                Kind = "internal_error"
)

// AppError is a custom error type that includes an HTTP status code and a failure kind.
type AppError struct {
	Code    int    // HTTP Status Code (e.g., 400, 404)
	Kind    Kind   // Failure class, stable across messages
	Message string // User-facing error message
	Err     error  // The underlying error, if any (not exposed to user)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an AppError with the same kind and message, so a
// wrapped copy of a sentinel still matches the sentinel.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

// New creates a new AppError with a status code, kind and message.
func New(code int, kind Kind, message string) *AppError {
	return &AppError{
		Code:    code,
		Kind:    kind,
		Message: message,
	}
}

// Wrap creates a copy of the sentinel that carries err as its cause.
func Wrap(sentinel *AppError, err error) *AppError {
	return &AppError{
		Code:    sentinel.Code,
		Kind:    sentinel.Kind,
		Message: sentinel.Message,
		Err:     err,
	}
}

// KindOf returns the kind of the first AppError in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

package marketerr

import (
	"errors"
	"fmt"
)

// The four error classes the workflow core distinguishes. Handlers map them
// to HTTP statuses; services wrap them with context via %w.
var (
	// ErrValidation: malformed input, rejected before any mutation.
	ErrValidation = errors.New("validation error")

	// ErrConflict: stock shortfall, duplicate return/refund, already-captured
	// order. The operation aborts with no partial state.
	ErrConflict = errors.New("conflict")

	// ErrProvider: a payment/refund gateway failure. Local state is left in a
	// retryable intermediate status, never silently marked success.
	ErrProvider = errors.New("payment provider error")

	// ErrFatal: a programming-invariant violation, e.g. an unsupported payment
	// method reaching the refund path past upstream validation.
	ErrFatal = errors.New("internal invariant violation")
)

func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrValidation}, args...)...)
}

func Conflictf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrConflict}, args...)...)
}

func Providerf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrProvider}, args...)...)
}

func Fatalf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrFatal}, args...)...)
}

func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
func IsConflict(err error) bool   { return errors.Is(err, ErrConflict) }
func IsProvider(err error) bool   { return errors.Is(err, ErrProvider) }
func IsFatal(err error) bool      { return errors.Is(err, ErrFatal) }

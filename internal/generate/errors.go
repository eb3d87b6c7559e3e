package generate

import "fmt"

// ValidationError reports a request that fails the input contract. Always
// client-caused.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// TimeoutError reports that the caller's deadline elapsed during the
// provider call. The producer's result is indeterminate, so nothing is
// cached.
type TimeoutError struct {
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("generation timed out: %v", e.Err)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

package provider

import "fmt"

// ProviderError reports a non-2xx response from the upstream provider. The
// message is the provider's error envelope text when one was present.
type ProviderError struct {
	Provider string
	Status   int
	Message  string
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("%s returned status %d", e.Provider, e.Status)
}

// NetworkError reports a transport-level failure before any provider
// response was received.
type NetworkError struct {
	Provider string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// MalformedResponseError reports a 2xx provider response missing the
// expected text payload.
type MalformedResponseError struct {
	Provider string
	Detail   string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s returned unexpected response shape: %s", e.Provider, e.Detail)
}

// NotImplementedError reports a recognized provider name with no adapter
// behind it.
type NotImplementedError struct {
	Provider string
}

func (e *NotImplementedError) Error() string {
	return fmt.Sprintf("provider %q is recognized but not implemented", e.Provider)
}

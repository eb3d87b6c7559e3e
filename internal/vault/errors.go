package vault

import "fmt"

// FormatError reports a credential that does not match the provider's
// expected key shape. The offending key material is never included.
type FormatError struct {
	Provider string
	Reason   string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid %s credential: %s", e.Provider, e.Reason)
}

// PermissionError reports a vault operation attempted without the
// administrative capability.
type PermissionError struct {
	Actor  string
	Action string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("actor %q lacks permission for %s", e.Actor, e.Action)
}

// EncryptionError reports that the vault cipher failed or is unavailable.
type EncryptionError struct {
	Err error
}

func (e *EncryptionError) Error() string {
	return fmt.Sprintf("vault encryption: %v", e.Err)
}

func (e *EncryptionError) Unwrap() error {
	return e.Err
}

package model

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrLocked is returned by crypto operations while no master key is held.
	ErrLocked = errors.New("vault is locked")
	// ErrInvalidCredentials signals an AEAD failure while unwrapping a key,
	// which in practice means a wrong passphrase.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCorruptData signals an AEAD failure while decrypting an item.
	ErrCorruptData = errors.New("corrupt data")
	// ErrConflictSkipped is informational: the local copy is already current.
	ErrConflictSkipped = errors.New("conflict skipped: local gencount is current")
	// ErrEmptyPassphrase is returned by key derivation for an empty passphrase.
	ErrEmptyPassphrase = errors.New("empty passphrase")
	// ErrLoginTaken is returned on signup with an existing login.
	ErrLoginTaken = errors.New("login is taken")

	// ErrInvalidToken is returned for a malformed, forged or wrong-type token.
	ErrInvalidToken  = errors.New("invalid token")
	ErrTokenRevoked  = errors.New("refresh token revoked")
	ErrTokenExpired  = errors.New("refresh token expired")
	ErrTokenMismatch = errors.New("refresh token mismatch")
)

// TransportError wraps a retryable network failure.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// AuthError wraps a non-retryable authentication failure.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed during %s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// PartialBatchFailure names the push item that aborted a batch.
// Items before it were persisted; there is no rollback. Assigned lists the
// gencounts those items received.
type PartialBatchFailure struct {
	Layer     Layer
	UUID      uuid.UUID
	Index     int
	Processed int
	Assigned  []Assignment
	Err       error
}

func (e *PartialBatchFailure) Error() string {
	return fmt.Sprintf("push aborted at %s[%d] %s after %d items: %v", e.Layer, e.Index, e.UUID, e.Processed, e.Err)
}

func (e *PartialBatchFailure) Unwrap() error { return e.Err }

// ValidationError reports a malformed field at the wire boundary.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsRetryable reports whether err is worth retrying later.
func IsRetryable(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// Package common defines shared constants and sentinel errors used across
// the ledger, key servers and the letter client. Callers should use errors.Is
// to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// Write path.
	ErrEncryptionUnavailable = errors.New("encryption unavailable: not enough key servers")
	ErrInvalidLetter         = errors.New("invalid letter")

	// Read path: authorization outcomes.
	ErrAccessDenied      = errors.New("access denied")
	ErrExpiredCredential = errors.New("session credential expired")
	ErrInvalidCredential = errors.New("invalid session credential")

	// Read path: technical failures.
	ErrInsufficientShares = errors.New("insufficient key shares")
	ErrCorruptCiphertext  = errors.New("corrupt ciphertext")

	// Blob store errors.
	ErrBlobNotFound = errors.New("blob not found")
	ErrBlobTooLarge = errors.New("blob too large")
	ErrNoAttachment = errors.New("letter has no attachment")
)

// IsRetryable reports whether retrying the whole operation may succeed
// without any change on the caller's side (apart from a fresh credential).
func IsRetryable(err error) bool {
	return errors.Is(err, ErrInsufficientShares) || errors.Is(err, ErrExpiredCredential)
}

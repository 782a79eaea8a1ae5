// Package common defines the sentinel errors shared by every layer of the
// matching core. Callers match them with errors.Is.
package common

import (
	"errors"
	"fmt"
)

var (
	// Argument errors are never retried.
	ErrInvalidArgument = errors.New("invalid argument")
	ErrEmptyMessage    = fmt.Errorf("%w: empty message", ErrInvalidArgument)

	// ErrInvalidSender is a logic error: the sender is not a session participant.
	ErrInvalidSender = errors.New("invalid sender")

	// Store errors.
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")

	// Identity errors.
	ErrNoIdentity   = errors.New("no authenticated identity")
	ErrUnauthorized = errors.New("unauthorized")
)

// Retryable reports whether the failed operation may be retried with backoff.
func Retryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// Unavailable wraps a transport or driver error as ErrStoreUnavailable.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %v", op, ErrStoreUnavailable, err)
}

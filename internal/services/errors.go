// Package services defines the business logic for identity linking, email
// verification, reward issuance, and product ratings. This file centralizes
// common service-level error values so that they can be consistently
// returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler layer.
package services

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidEmail is returned when a verification is started with a
	// syntactically invalid email address.
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrEmailTaken is returned when the requested email is already linked
	// to a different chat identity.
	ErrEmailTaken = errors.New("email already linked to another identity")

	// ErrInvalidCode is returned when no pending verification matches the
	// submitted (chat identity, code) pair.
	ErrInvalidCode = errors.New("invalid verification code")

	// ErrCodeExpired is returned when the submitted code matched a pending
	// verification whose lifetime has elapsed.
	ErrCodeExpired = errors.New("verification code expired")

	// ErrNotLinked indicates the chat identity has no link on record.
	ErrNotLinked = errors.New("chat identity not linked")

	// ErrRatingNotFound indicates the user has no rating for the product.
	ErrRatingNotFound = errors.New("rating not found")

	// ErrBadScores is returned when a submitted criterion score is missing,
	// unparsable, or outside [0,10].
	ErrBadScores = errors.New("scores must be numbers between 0 and 10")

	// ErrMailFailed wraps a transport failure from the mail gateway. The
	// operation that needed the mail is considered failed; nothing retries.
	ErrMailFailed = errors.New("mail delivery failed")
)

// LinkConflictError is returned when a chat identity that is already linked
// starts a verification without the force flag. ExistingEmail carries the
// anonymized form of the current binding so the client can show it without
// leaking the address.
type LinkConflictError struct {
	ExistingEmail string // anonymized
}

// Error implements the error interface.
func (e *LinkConflictError) Error() string {
	return fmt.Sprintf("identity already linked to %s", e.ExistingEmail)
}

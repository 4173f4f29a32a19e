// Package handlers defines the HTTP-layer error kinds used across all API
// endpoints.
//
// This file centralizes the symbolic error kind constants that are mapped to
// HTTP responses (via the `fail()` helper in this package). These kinds give
// the chat client a stable, machine-readable taxonomy: it renders each one
// as a distinct user-facing message and never retries automatically.
//
// Conventions:
//   - Kinds are lowercase snake_case.
//   - Transport failures to external dependencies (SMTP, shop) surface as
//     their dedicated kind without retry; logic violations surface their
//     own kind; uncaught faults become `internal` with a server-side log
//     and a minimal client-visible details field.
package handlers

const (
	ErrKindMissingFields = "missing_fields"
	ErrKindConflict      = "conflict"
	ErrKindEmailTaken    = "email_taken"
	ErrKindInvalidCode   = "invalid_code"
	ErrKindExpired       = "expired"
	ErrKindNotLinked     = "not_linked"
	ErrKindNotFound      = "not_found"
	ErrKindBadScores     = "bad_scores"
	ErrKindUnauthorized  = "unauthorized"
	ErrKindMailFailed    = "mail_failed"
	ErrKindShopError     = "shop_error"
	ErrKindInternal      = "internal"
)

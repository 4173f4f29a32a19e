// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the standard response utilities used across all
// endpoints. Success responses always carry `success: true` beside their
// payload; failures carry a structured envelope with a stable error kind.
//
// Conventions:
//   - All error responses must return an ErrorResponse with a stable `error`
//     kind (see errors.go constants).
//   - `fail()` centralizes error logging and formatting, ensuring 5xx
//     responses are logged with request context for observability.
//   - `ok()` simplifies writing success responses in a consistent shape.
//
// Example error response:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "error": "not_linked",
//	  "details": "no account is linked to this identity"
//	}
//
// Example success response:
//
//	HTTP/1.1 200 OK
//	{ "success": true, "unlinked_email": "alice@example.com" }
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/RAFOUgg/LaFoncedalleBot-sub000/internal/http/middleware"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
//
// Fields:
//   - RequestID: Optional correlation ID, echoed from X-Request-ID header,
//     used to correlate server logs with client-side errors.
//   - Error: A stable, machine-readable kind (see errors.go constants).
//   - Details: A human-readable description, safe for display to users.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable kind (see errors.go constants)
	Error string `json:"error" example:"not_linked"`
	// Human-readable message (safe to show to users)
	Details string `json:"details,omitempty" example:"no account is linked to this identity"`
}

// fail aborts the request with a structured error and logs server-side errors.
//
// It constructs an ErrorResponse, writes it as JSON with the given HTTP
// status, and calls gin.Context.AbortWithStatusJSON to stop further
// processing. Server errors (>=500) are logged using the request-scoped
// logger from middleware.
func fail(c *gin.Context, status int, kind, details string) {
	reqID := c.Writer.Header().Get("X-Request-ID")
	resp := ErrorResponse{
		RequestID: reqID,
		Error:     kind,
		Details:   details,
	}

	// Log 5xx (server-side) with request-scoped logger
	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Int("status", status).
			Str("error", kind).
			Str("details", details).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail().
//
// External packages (e.g., router setup) should call Fail to return
// consistent error envelopes without directly depending on unexported helpers.
func Fail(c *gin.Context, status int, kind, details string) { fail(c, status, kind, details) }

// ok writes a success JSON response with `success: true` merged in.
func ok(c *gin.Context, status int, body gin.H) {
	if body == nil {
		body = gin.H{}
	}
	body["success"] = true
	c.JSON(status, body)
}

package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// RequireBearer returns a middleware that guards privileged routes with a
// shared static secret.
//
// The request must carry:
//
//	Authorization: Bearer <secret>
//
// The comparison is constant-time. On mismatch (or a missing/malformed
// header) the request is aborted with:
//
//	HTTP/1.1 403 Forbidden
//	{
//	  "request_id": "<uuid>",
//	  "error":      "unauthorized",
//	  "details":    "invalid or missing bearer token"
//	}
//
// An empty configured secret disables the guard entirely by rejecting every
// request, so deployments cannot accidentally expose privileged routes by
// leaving the secret unset.
func RequireBearer(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		supplied := ""
		if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
			supplied = strings.TrimPrefix(h, "Bearer ")
		}

		authorized := secret != "" &&
			subtle.ConstantTimeCompare([]byte(supplied), []byte(secret)) == 1
		if !authorized {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"request_id": c.Writer.Header().Get("X-Request-ID"),
				"error":      "unauthorized",
				"details":    "invalid or missing bearer token",
			})
			return
		}
		c.Next()
	}
}

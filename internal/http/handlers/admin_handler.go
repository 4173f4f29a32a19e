// Staff diagnostic handlers.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// TestEmailRequest is the JSON payload for the staff mail diagnostic.
type TestEmailRequest struct {
	To string `json:"to" example:"staff@example.com"`
}

// TestEmail godoc
// @ID          testEmail
// @Summary     Send a diagnostic mail through the gateway (staff)
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  handlers.TestEmailRequest true "Recipient"
// @Success     200  {object} map[string]any
// @Failure     403  {object} handlers.ErrorResponse "Bad bearer secret"
// @Failure     500  {object} handlers.ErrorResponse "Mail delivery failed"
// @Router      /api/test-email [post]
func (h *Handlers) TestEmail(c *gin.Context) {
	var req TestEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.To) == "" {
		fail(c, http.StatusBadRequest, ErrKindMissingFields, "to is required")
		return
	}

	err := h.mailer.Send(c.Request.Context(), req.To,
		"Test de la passerelle mail",
		"<html><body><p>La passerelle SMTP fonctionne.</p></body></html>")
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrKindMailFailed, "could not deliver the test mail")
		return
	}

	ok(c, http.StatusOK, gin.H{})
}

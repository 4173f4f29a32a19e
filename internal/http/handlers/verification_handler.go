// Verification HTTP handlers.
//
// This file exposes the REST endpoints driving the identity-linking state
// machine:
//   - POST /api/start-verification    (issue and mail a code)
//   - POST /api/confirm-verification  (confirm the code, award the gift)
//   - POST /api/unlink                (drop the link)
//   - POST /api/force-link            (staff: bind without handshake)
//
// Handlers in this file are transport-thin: they validate input, delegate
// to the VerificationService, and translate service errors into HTTP
// results with stable error kinds.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/RAFOUgg/LaFoncedalleBot-sub000/internal/services"
	"github.com/RAFOUgg/LaFoncedalleBot-sub000/internal/sysutil"
)

// StartVerificationRequest is the JSON payload for starting verification.
type StartVerificationRequest struct {
	ChatID string `json:"chat_id" example:"361231632277901352"`
	Email  string `json:"email"   example:"alice@example.com"`
}

// StartVerification godoc
// @ID          startVerification
// @Summary     Start email verification
// @Description Issues a six-digit code, mails it, and records the pending attempt.
// @Tags        Verification
// @Accept      json
// @Produce     json
// @Param       force  query  bool  false "Suppress the already-linked conflict"
// @Param       body   body   handlers.StartVerificationRequest true "Identity and email"
// @Success     200  {object} map[string]any
// @Failure     400  {object} handlers.ErrorResponse "Missing or invalid input"
// @Failure     409  {object} handlers.ErrorResponse "Already linked or email taken"
// @Failure     500  {object} handlers.ErrorResponse "Mail delivery failed"
// @Router      /api/start-verification [post]
func (h *Handlers) StartVerification(c *gin.Context) {
	var req StartVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.ChatID) == "" || strings.TrimSpace(req.Email) == "" {
		fail(c, http.StatusBadRequest, ErrKindMissingFields, "chat_id and email are required")
		return
	}
	force := sysutil.IsTruthy(c.Query("force"))

	err := h.verSvc.Start(c.Request.Context(), req.ChatID, req.Email, force)
	if err != nil {
		var conflict *services.LinkConflictError
		switch {
		case errors.As(err, &conflict):
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"request_id":     c.Writer.Header().Get("X-Request-ID"),
				"error":          ErrKindConflict,
				"existing_email": conflict.ExistingEmail,
			})
		case errors.Is(err, services.ErrEmailTaken):
			fail(c, http.StatusConflict, ErrKindEmailTaken, "this email is already linked to another identity")
		case errors.Is(err, services.ErrInvalidEmail):
			fail(c, http.StatusBadRequest, ErrKindMissingFields, "email address is not valid")
		case errors.Is(err, services.ErrMailFailed):
			fail(c, http.StatusInternalServerError, ErrKindMailFailed, "could not deliver the verification code")
		default:
			fail(c, http.StatusInternalServerError, ErrKindInternal, err.Error())
		}
		return
	}

	ok(c, http.StatusOK, gin.H{})
}

// ConfirmVerificationRequest is the JSON payload for confirming a code.
type ConfirmVerificationRequest struct {
	ChatID string `json:"chat_id" example:"361231632277901352"`
	Code   string `json:"code"    example:"042137"`
}

// ConfirmVerification godoc
// @ID          confirmVerification
// @Summary     Confirm a verification code
// @Description Materializes the link and attempts the one-time welcome gift.
// @Tags        Verification
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.ConfirmVerificationRequest true "Identity and code"
// @Success     200  {object} map[string]any "gift_sent and optional reason"
// @Failure     400  {object} handlers.ErrorResponse "Invalid or expired code"
// @Router      /api/confirm-verification [post]
func (h *Handlers) ConfirmVerification(c *gin.Context) {
	var req ConfirmVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.ChatID) == "" || strings.TrimSpace(req.Code) == "" {
		fail(c, http.StatusBadRequest, ErrKindMissingFields, "chat_id and code are required")
		return
	}

	gift, err := h.verSvc.Confirm(c.Request.Context(), req.ChatID, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidCode):
			fail(c, http.StatusBadRequest, ErrKindInvalidCode, "this code does not match any pending verification")
		case errors.Is(err, services.ErrCodeExpired):
			fail(c, http.StatusBadRequest, ErrKindExpired, "this code has expired; start a new verification")
		case errors.Is(err, services.ErrEmailTaken):
			fail(c, http.StatusConflict, ErrKindEmailTaken, "this email got linked to another identity in the meantime")
		default:
			fail(c, http.StatusInternalServerError, ErrKindInternal, err.Error())
		}
		return
	}

	body := gin.H{"gift_sent": gift.Sent}
	if gift.Reason != "" {
		body["reason"] = gift.Reason
	}
	ok(c, http.StatusOK, body)
}

// UnlinkRequest is the JSON payload for dropping a link.
type UnlinkRequest struct {
	ChatID string `json:"chat_id" example:"361231632277901352"`
}

// Unlink godoc
// @ID          unlink
// @Summary     Remove an identity link
// @Description Deletes the link and returns the formerly bound email.
// @Tags        Verification
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.UnlinkRequest true "Identity"
// @Success     200  {object} map[string]any "unlinked_email"
// @Failure     404  {object} handlers.ErrorResponse "Identity not linked"
// @Router      /api/unlink [post]
func (h *Handlers) Unlink(c *gin.Context) {
	var req UnlinkRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.ChatID) == "" {
		fail(c, http.StatusBadRequest, ErrKindMissingFields, "chat_id is required")
		return
	}

	email, err := h.verSvc.Unlink(c.Request.Context(), req.ChatID)
	if err != nil {
		if errors.Is(err, services.ErrNotLinked) {
			fail(c, http.StatusNotFound, ErrKindNotLinked, "no account is linked to this identity")
			return
		}
		fail(c, http.StatusInternalServerError, ErrKindInternal, err.Error())
		return
	}

	ok(c, http.StatusOK, gin.H{"unlinked_email": email})
}

// ForceLinkRequest is the JSON payload for a staff force-link.
type ForceLinkRequest struct {
	ChatID string `json:"chat_id" example:"361231632277901352"`
	Email  string `json:"email"   example:"alice@example.com"`
}

// ForceLink godoc
// @ID          forceLink
// @Summary     Bind an identity without verification (staff)
// @Description Upserts the link directly, clearing any dangling pending attempt. No gift.
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       force  query  bool  false "Suppress the already-linked conflict"
// @Param       body   body   handlers.ForceLinkRequest true "Identity and email"
// @Success     200  {object} map[string]any
// @Failure     403  {object} handlers.ErrorResponse "Bad bearer secret"
// @Failure     409  {object} handlers.ErrorResponse "Already linked or email taken"
// @Router      /api/force-link [post]
func (h *Handlers) ForceLink(c *gin.Context) {
	var req ForceLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.ChatID) == "" || strings.TrimSpace(req.Email) == "" {
		fail(c, http.StatusBadRequest, ErrKindMissingFields, "chat_id and email are required")
		return
	}
	force := sysutil.IsTruthy(c.Query("force"))

	err := h.verSvc.ForceLink(c.Request.Context(), req.ChatID, req.Email, force)
	if err != nil {
		var conflict *services.LinkConflictError
		switch {
		case errors.As(err, &conflict):
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"request_id":     c.Writer.Header().Get("X-Request-ID"),
				"error":          ErrKindConflict,
				"existing_email": conflict.ExistingEmail,
			})
		case errors.Is(err, services.ErrEmailTaken):
			fail(c, http.StatusConflict, ErrKindEmailTaken, "this email is already linked to another identity")
		case errors.Is(err, services.ErrInvalidEmail):
			fail(c, http.StatusBadRequest, ErrKindMissingFields, "email address is not valid")
		default:
			fail(c, http.StatusInternalServerError, ErrKindInternal, err.Error())
		}
		return
	}

	ok(c, http.StatusOK, gin.H{})
}

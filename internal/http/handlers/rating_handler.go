// Rating HTTP handlers.
//
// This file exposes the REST endpoints around product ratings:
//   - POST /api/submit-rating        (create or replace a rating)
//   - POST /api/add-comment          (patch the comment of a rating)
//   - GET  /api/get_user_stats/:chat_id
//   - GET  /api/get_shop_stats      (staff: weekly and monthly rankings)
//   - POST /api/get_comparison_data (two-product comparison)
//   - POST /api/reset-user-ratings  (staff: bulk delete)
//
// Handlers are transport-thin: validate input, delegate to RatingService,
// translate service errors into HTTP results.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/RAFOUgg/LaFoncedalleBot-sub000/internal/services"
	"github.com/RAFOUgg/LaFoncedalleBot-sub000/internal/utils"
)

// SubmitRatingRequest is the JSON payload for creating or replacing a
// rating. Scores arrive as text so either decimal separator works.
type SubmitRatingRequest struct {
	UserID      string            `json:"user_id"      example:"361231632277901352"`
	UserName    string            `json:"user_name"    example:"alice"`
	ProductName string            `json:"product_name" example:"Amnesia Haze"`
	Scores      map[string]string `json:"scores"`
	Comment     string            `json:"comment,omitempty" example:"Très correct."`
}

// SubmitRating godoc
// @ID          submitRating
// @Summary     Submit or replace a rating
// @Description Upserts the rating for (user, product); re-submission replaces the prior row.
// @Tags        Ratings
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.SubmitRatingRequest true "Rating payload"
// @Success     200  {object} map[string]any "average of the five scores"
// @Failure     400  {object} handlers.ErrorResponse "Missing fields or bad scores"
// @Router      /api/submit-rating [post]
func (h *Handlers) SubmitRating(c *gin.Context) {
	var req SubmitRatingRequest
	if err := c.ShouldBindJSON(&req); err != nil ||
		strings.TrimSpace(req.UserID) == "" ||
		strings.TrimSpace(req.UserName) == "" ||
		strings.TrimSpace(req.ProductName) == "" {
		fail(c, http.StatusBadRequest, ErrKindMissingFields, "user_id, user_name, product_name and scores are required")
		return
	}
	for _, crit := range services.Criteria {
		if _, okc := req.Scores[crit]; !okc {
			fail(c, http.StatusBadRequest, ErrKindMissingFields, "scores must include "+strings.Join(services.Criteria, ", "))
			return
		}
	}

	avg, err := h.ratingSvc.Submit(c.Request.Context(), req.UserID, req.UserName, req.ProductName, req.Scores, req.Comment)
	if err != nil {
		if errors.Is(err, services.ErrBadScores) {
			fail(c, http.StatusBadRequest, ErrKindBadScores, "each score must be a number between 0 and 10")
			return
		}
		fail(c, http.StatusInternalServerError, ErrKindInternal, err.Error())
		return
	}

	ok(c, http.StatusOK, gin.H{"average": avg})
}

// AddCommentRequest is the JSON payload for patching a rating's comment.
type AddCommentRequest struct {
	UserID      string `json:"user_id"      example:"361231632277901352"`
	ProductName string `json:"product_name" example:"Amnesia Haze"`
	Comment     string `json:"comment"      example:"Encore meilleur après quelques semaines."`
}

// AddComment godoc
// @ID          addComment
// @Summary     Patch the comment of an existing rating
// @Tags        Ratings
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.AddCommentRequest true "Comment payload"
// @Success     200  {object} map[string]any
// @Failure     404  {object} handlers.ErrorResponse "No rating for that product"
// @Router      /api/add-comment [post]
func (h *Handlers) AddComment(c *gin.Context) {
	var req AddCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil ||
		strings.TrimSpace(req.UserID) == "" ||
		strings.TrimSpace(req.ProductName) == "" ||
		strings.TrimSpace(req.Comment) == "" {
		fail(c, http.StatusBadRequest, ErrKindMissingFields, "user_id, product_name and comment are required")
		return
	}

	if err := h.ratingSvc.AddComment(c.Request.Context(), req.UserID, req.ProductName, req.Comment); err != nil {
		if errors.Is(err, services.ErrRatingNotFound) {
			fail(c, http.StatusNotFound, ErrKindNotFound, "you have not rated this product yet")
			return
		}
		fail(c, http.StatusInternalServerError, ErrKindInternal, err.Error())
		return
	}

	ok(c, http.StatusOK, gin.H{})
}

// GetUserStats godoc
// @ID          getUserStats
// @Summary     A user's ratings and leaderboard standing
// @Tags        Ratings
// @Produce     json
// @Param       chat_id  path  string  true "Chat identity"
// @Success     200  {object} map[string]any "user_stats and user_ratings"
// @Router      /api/get_user_stats/{chat_id} [get]
func (h *Handlers) GetUserStats(c *gin.Context) {
	chatID := c.Param("chat_id")

	profile, err := h.ratingSvc.Profile(c.Request.Context(), chatID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrKindInternal, err.Error())
		return
	}

	ok(c, http.StatusOK, gin.H{
		"user_stats": gin.H{
			"rank":           profile.Rank,
			"rater_count":    profile.RaterCount,
			"count":          profile.Count,
			"average":        profile.Average,
			"min":            profile.Min,
			"max":            profile.Max,
			"top_this_month": profile.TopThisMonth,
		},
		"user_ratings": profile.Ratings,
	})
}

// GetShopStats godoc
// @ID          getShopStats
// @Summary     Weekly and monthly rankings (staff)
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Param       limit  query  int  false  "Max rater rows per ranking (default 10)"
// @Success     200  {object} map[string]any
// @Failure     403  {object} handlers.ErrorResponse "Bad bearer secret"
// @Router      /api/get_shop_stats [get]
func (h *Handlers) GetShopStats(c *gin.Context) {
	ctx := c.Request.Context()
	limit := utils.AtoiDefault(c.Query("limit"), 10)
	if limit < 1 {
		limit = 10
	}

	weeklyProducts, err := h.ratingSvc.TopProducts(ctx, services.TopWindowWeek)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrKindInternal, err.Error())
		return
	}
	monthlyProducts, err := h.ratingSvc.TopProducts(ctx, services.TopWindowMonth)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrKindInternal, err.Error())
		return
	}
	weeklyRaters, err := h.ratingSvc.TopRaters(ctx, services.TopWindowWeek, limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrKindInternal, err.Error())
		return
	}
	monthlyRaters, err := h.ratingSvc.TopRaters(ctx, services.TopWindowMonth, limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrKindInternal, err.Error())
		return
	}

	ok(c, http.StatusOK, gin.H{
		"weekly_top_products":  weeklyProducts,
		"monthly_top_products": monthlyProducts,
		"weekly_top_raters":    weeklyRaters,
		"monthly_top_raters":   monthlyRaters,
	})
}

// CompareRequest is the JSON payload for a two-product comparison.
type CompareRequest struct {
	Product1Name string `json:"product1_name" example:"Amnesia Haze"`
	Product2Name string `json:"product2_name" example:"Purple Punch"`
}

// GetComparisonData godoc
// @ID          getComparisonData
// @Summary     Side-by-side community aggregates for two products
// @Tags        Ratings
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.CompareRequest true "Product names"
// @Success     200  {object} map[string]any "per-product count, avg_total, details"
// @Router      /api/get_comparison_data [post]
func (h *Handlers) GetComparisonData(c *gin.Context) {
	var req CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil ||
		strings.TrimSpace(req.Product1Name) == "" ||
		strings.TrimSpace(req.Product2Name) == "" {
		fail(c, http.StatusBadRequest, ErrKindMissingFields, "product1_name and product2_name are required")
		return
	}

	cmp, err := h.ratingSvc.Compare(c.Request.Context(), req.Product1Name, req.Product2Name)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrKindInternal, err.Error())
		return
	}

	body := gin.H{}
	for name, agg := range cmp {
		body[name] = agg
	}
	ok(c, http.StatusOK, body)
}

// ResetUserRatingsRequest is the JSON payload for the staff bulk delete.
type ResetUserRatingsRequest struct {
	UserID string `json:"user_id" example:"361231632277901352"`
}

// ResetUserRatings godoc
// @ID          resetUserRatings
// @Summary     Delete all of a user's ratings (staff)
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  handlers.ResetUserRatingsRequest true "User"
// @Success     200  {object} map[string]any "number of deleted rows"
// @Failure     403  {object} handlers.ErrorResponse "Bad bearer secret"
// @Router      /api/reset-user-ratings [post]
func (h *Handlers) ResetUserRatings(c *gin.Context) {
	var req ResetUserRatingsRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.UserID) == "" {
		fail(c, http.StatusBadRequest, ErrKindMissingFields, "user_id is required")
		return
	}

	deleted, err := h.ratingSvc.Reset(c.Request.Context(), req.UserID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrKindInternal, err.Error())
		return
	}

	ok(c, http.StatusOK, gin.H{"deleted": deleted})
}

// Package services – RatingService
//
// This file implements the RatingService, which governs per-(user, product)
// ratings: submission with replace semantics, comment patching, community
// and per-user aggregates, and the staff bulk reset. Scores arrive as text
// because chat clients send "8,5" as readily as "8.5".
package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/RAFOUgg/LaFoncedalleBot-sub000/internal/domain"
	"github.com/RAFOUgg/LaFoncedalleBot-sub000/internal/repo"
)

// Criteria lists the five score criteria in their canonical order.
var Criteria = []string{"visual", "smell", "touch", "taste", "effects"}

// TopWindowWeek and TopWindowMonth are the rolling windows of the weekly
// and monthly rankings.
const (
	TopWindowWeek  = 7 * 24 * time.Hour
	TopWindowMonth = 30 * 24 * time.Hour
)

// badgeWindow is the lookback of the "top-3 this month" badge.
const badgeWindow = TopWindowMonth

// RaterEntry is one row of the rater leaderboard: the aggregate plus the
// user's single highest-scoring product.
type RaterEntry struct {
	repo.RaterAggregate
	BestProduct      string  `json:"best_product,omitempty"`
	BestProductScore float64 `json:"best_product_score,omitempty"`
}

// UserProfile is everything the profile card needs for one user.
type UserProfile struct {
	Ratings      []domain.Rating `json:"ratings"` // reverse-chronological
	Rank         int             `json:"rank"`    // 1-based; 0 when unranked
	RaterCount   int             `json:"rater_count"`
	Count        int64           `json:"count"`
	Average      float64         `json:"average"`
	Min          float64         `json:"min"`
	Max          float64         `json:"max"`
	TopThisMonth bool            `json:"top_this_month"`
}

// ProductComparison is one side of a two-product comparison.
type ProductComparison struct {
	Count    int64                  `json:"count"`
	AvgTotal float64                `json:"avg_total"`
	Details  repo.CriterionAverages `json:"details"`
}

// RatingService implements the rating use-cases over the shared database.
type RatingService struct {
	// DB is the database handle used for all rating operations.
	DB *gorm.DB
	// MaxComment bounds stored comment length in runes.
	MaxComment int

	// now is a test seam; defaults to time.Now.
	now func() time.Time
}

func (s *RatingService) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now().UTC()
}

// Submit creates or replaces the rating for (userID, productName) and
// returns the mean of the five scores for client display.
//
// Each score is parsed as a real number accepting either decimal separator
// and must lie in [0,10]; any miss yields ErrBadScores and no write.
// Replacement is total: the timestamp resets to now and an empty comment
// clears whatever was stored before.
func (s *RatingService) Submit(ctx context.Context, userID, displayName, productName string, scores map[string]string, comment string) (float64, error) {
	parsed := make(map[string]float64, len(Criteria))
	for _, crit := range Criteria {
		raw, ok := scores[crit]
		if !ok {
			return 0, ErrBadScores
		}
		v, err := ParseScore(raw)
		if err != nil {
			return 0, ErrBadScores
		}
		parsed[crit] = v
	}

	r := &domain.Rating{
		UserID:      userID,
		DisplayName: displayName,
		ProductName: strings.TrimSpace(productName),
		Visual:      parsed["visual"],
		Smell:       parsed["smell"],
		Touch:       parsed["touch"],
		Taste:       parsed["taste"],
		Effects:     parsed["effects"],
		Comment:     s.clip(comment),
	}
	if err := repo.ReplaceRating(ctx, s.DB, r); err != nil {
		return 0, err
	}
	return r.Average(), nil
}

// AddComment patches the comment of an existing rating.
// ErrRatingNotFound when the user has not rated the product.
func (s *RatingService) AddComment(ctx context.Context, userID, productName, text string) error {
	err := repo.UpdateComment(ctx, s.DB, userID, strings.TrimSpace(productName), s.clip(text))
	if errors.Is(err, repo.ErrNotFound) {
		return ErrRatingNotFound
	}
	return err
}

// CommunityAverage returns the mean of the per-row mean-of-five for a
// product and the number of ratings behind it.
func (s *RatingService) CommunityAverage(ctx context.Context, productName string) (float64, int64, error) {
	return repo.CommunityAverage(ctx, s.DB, productName)
}

// TopProducts returns the top three products by community average, over the
// trailing window when window > 0 and over all time otherwise. Products
// need at least one rating to appear.
func (s *RatingService) TopProducts(ctx context.Context, window time.Duration) ([]repo.ProductAggregate, error) {
	var since *time.Time
	if window > 0 {
		t := s.clock().Add(-window)
		since = &t
	}
	return repo.TopProducts(ctx, s.DB, since, 3)
}

// TopRaters returns up to limit leaderboard entries, ranked by rating count
// descending then average descending, each carrying the rater's
// highest-scoring product (ties broken by most recent timestamp). The
// ranking covers the trailing window when window > 0 and all time
// otherwise; the best-product pick always spans the user's full history.
func (s *RatingService) TopRaters(ctx context.Context, window time.Duration, limit int) ([]RaterEntry, error) {
	var since *time.Time
	if window > 0 {
		t := s.clock().Add(-window)
		since = &t
	}
	aggs, err := repo.RaterAggregates(ctx, s.DB, since, limit)
	if err != nil {
		return nil, err
	}
	out := make([]RaterEntry, 0, len(aggs))
	for _, a := range aggs {
		entry := RaterEntry{RaterAggregate: a}
		if best, err := repo.BestRating(ctx, s.DB, a.UserID); err == nil {
			entry.BestProduct = best.ProductName
			entry.BestProductScore = best.Average()
		} else if !errors.Is(err, repo.ErrNotFound) {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

// Profile assembles a user's ratings (most recent first), their rank among
// all raters, their score bounds, and the top-3-this-month badge.
func (s *RatingService) Profile(ctx context.Context, userID string) (*UserProfile, error) {
	ratings, err := repo.ListUserRatings(ctx, s.DB, userID)
	if err != nil {
		return nil, err
	}
	count, min, max, avg, err := repo.UserScoreBounds(ctx, s.DB, userID)
	if err != nil {
		return nil, err
	}

	aggs, err := repo.RaterAggregates(ctx, s.DB, nil, 0)
	if err != nil {
		return nil, err
	}
	rank := 0
	for i, a := range aggs {
		if a.UserID == userID {
			rank = i + 1
			break
		}
	}

	recent, err := repo.RecentRatingCounts(ctx, s.DB, s.clock().Add(-badgeWindow))
	if err != nil {
		return nil, err
	}
	top3 := false
	for i, a := range recent {
		if i >= 3 {
			break
		}
		if a.UserID == userID {
			top3 = true
			break
		}
	}

	return &UserProfile{
		Ratings:      ratings,
		Rank:         rank,
		RaterCount:   len(aggs),
		Count:        count,
		Average:      avg,
		Min:          min,
		Max:          max,
		TopThisMonth: top3,
	}, nil
}

// Compare returns the community aggregates of two products side by side,
// keyed by the product names as submitted.
func (s *RatingService) Compare(ctx context.Context, product1, product2 string) (map[string]ProductComparison, error) {
	out := make(map[string]ProductComparison, 2)
	for _, name := range []string{product1, product2} {
		details, avgTotal, count, err := repo.ProductCriterionAverages(ctx, s.DB, name)
		if err != nil {
			return nil, err
		}
		out[name] = ProductComparison{Count: count, AvgTotal: avgTotal, Details: details}
	}
	return out, nil
}

// Reset bulk-deletes all of a user's ratings and reports how many rows were
// removed. Staff-only; the HTTP layer gates the caller.
func (s *RatingService) Reset(ctx context.Context, userID string) (int64, error) {
	return repo.DeleteUserRatings(ctx, s.DB, userID)
}

// clip bounds a comment to the configured rune budget.
func (s *RatingService) clip(comment string) string {
	limit := s.MaxComment
	if limit <= 0 {
		limit = 500
	}
	runes := []rune(strings.TrimSpace(comment))
	if len(runes) <= limit {
		return string(runes)
	}
	return string(runes[:limit])
}

// ParseScore parses a criterion score accepting either "8.5" or "8,5" and
// enforcing the [0,10] range.
func ParseScore(raw string) (float64, error) {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, ",", "."))
	if raw == "" {
		return 0, ErrBadScores
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || v > 10 {
		return 0, ErrBadScores
	}
	return v, nil
}

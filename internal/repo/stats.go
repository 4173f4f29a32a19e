// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the aggregate queries behind community
// averages, product rankings, rater leaderboards, and per-user statistics.
// Each function is context-aware and safe to call from services or handlers.
//
// All aggregates share one definition of a row's score: the mean of the five
// criterion columns. Criteria never written default to zero and still divide
// by five, which under-reports partial rows — the historical behavior,
// kept for stability with existing data.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/RAFOUgg/LaFoncedalleBot-sub000/internal/domain"
)

// rowMean is the SQL expression for a single rating's mean-of-five.
const rowMean = "(visual + smell + touch + taste + effects) / 5.0"

// ProductAggregate is one product's community standing.
type ProductAggregate struct {
	ProductName string  `json:"product_name"`
	Count       int64   `json:"count"`
	Average     float64 `json:"average"`
}

// RaterAggregate is one user's standing on the rater leaderboard.
type RaterAggregate struct {
	UserID      string  `json:"user_id"`
	DisplayName string  `json:"user_name"`
	Count       int64   `json:"count"`
	Average     float64 `json:"average"`
}

// CriterionAverages carries the community average per criterion for one
// product, used by side-by-side product comparisons.
type CriterionAverages struct {
	Visual  float64 `json:"visual"`
	Smell   float64 `json:"smell"`
	Touch   float64 `json:"touch"`
	Taste   float64 `json:"taste"`
	Effects float64 `json:"effects"`
}

// CommunityAverage returns the mean of the per-row mean-of-five across all
// ratings of productName (case-insensitive), along with the rating count.
// A product with no ratings yields (0, 0, nil).
func CommunityAverage(ctx context.Context, db *gorm.DB, productName string) (avg float64, count int64, err error) {
	var row struct {
		Avg   *float64
		Count int64
	}
	err = db.WithContext(ctx).
		Model(&domain.Rating{}).
		Select("AVG("+rowMean+") AS avg, COUNT(*) AS count").
		Where("product_name = ?", productName).
		Scan(&row).Error
	if err != nil {
		return 0, 0, err
	}
	if row.Avg != nil {
		avg = *row.Avg
	}
	return avg, row.Count, nil
}

// TopProducts returns up to limit products ranked by community average,
// restricted to ratings at or after since when since is non-nil (rolling
// window) and spanning all time otherwise. Every listed product has at
// least one rating by construction of the GROUP BY.
//
// Tie-break: higher rating count first, then product name ascending
// (case-insensitive, courtesy of the column collation).
func TopProducts(ctx context.Context, db *gorm.DB, since *time.Time, limit int) ([]ProductAggregate, error) {
	q := db.WithContext(ctx).
		Model(&domain.Rating{}).
		Select("product_name, COUNT(*) AS count, AVG(" + rowMean + ") AS average")
	if since != nil {
		q = q.Where("rated_at >= ?", *since)
	}
	var out []ProductAggregate
	err := q.Group("product_name").
		Order("average DESC, count DESC, product_name ASC").
		Limit(limit).
		Scan(&out).Error
	return out, err
}

// RaterAggregates returns every user who has rated at least one product,
// ranked by rating count descending, then by their average descending.
// When since is non-nil only ratings at or after it are counted (rolling
// leaderboards); otherwise the ranking spans all time. DisplayName is the
// snapshot from the user's most recent row, windowed or not — the
// bounded-staleness rule for denormalized names.
//
// Pass limit <= 0 for the full list (used to compute a user's rank).
func RaterAggregates(ctx context.Context, db *gorm.DB, since *time.Time, limit int) ([]RaterAggregate, error) {
	q := db.WithContext(ctx).
		Model(&domain.Rating{}).
		Select(`user_id,
			(SELECT r2.display_name FROM ratings r2
			 WHERE r2.user_id = ratings.user_id
			 ORDER BY r2.rated_at DESC LIMIT 1) AS display_name,
			COUNT(*) AS count,
			AVG(` + rowMean + `) AS average`)
	if since != nil {
		q = q.Where("rated_at >= ?", *since)
	}
	q = q.Group("user_id").
		Order("count DESC, average DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []RaterAggregate
	err := q.Scan(&out).Error
	return out, err
}

// BestRating returns the user's single highest-scoring rating, breaking ties
// by most recent timestamp. ErrNotFound when the user has no ratings.
func BestRating(ctx context.Context, db *gorm.DB, userID string) (*domain.Rating, error) {
	var r domain.Rating
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order(rowMean + " DESC, rated_at DESC").
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// UserScoreBounds returns the count of a user's ratings and the minimum,
// maximum, and mean of their per-row mean-of-five. A user with no ratings
// yields all zeros.
func UserScoreBounds(ctx context.Context, db *gorm.DB, userID string) (count int64, min, max, avg float64, err error) {
	var row struct {
		Count int64
		Min   *float64
		Max   *float64
		Avg   *float64
	}
	err = db.WithContext(ctx).
		Model(&domain.Rating{}).
		Select("COUNT(*) AS count, MIN("+rowMean+") AS min, MAX("+rowMean+") AS max, AVG("+rowMean+") AS avg").
		Where("user_id = ?", userID).
		Scan(&row).Error
	if err != nil {
		return 0, 0, 0, 0, err
	}
	count = row.Count
	if row.Min != nil {
		min = *row.Min
	}
	if row.Max != nil {
		max = *row.Max
	}
	if row.Avg != nil {
		avg = *row.Avg
	}
	return count, min, max, avg, nil
}

// RecentRatingCounts returns per-user rating counts at or after since,
// ordered by count descending. It backs the "top-3 this month" badge.
func RecentRatingCounts(ctx context.Context, db *gorm.DB, since time.Time) ([]RaterAggregate, error) {
	var out []RaterAggregate
	err := db.WithContext(ctx).
		Model(&domain.Rating{}).
		Select("user_id, COUNT(*) AS count").
		Where("rated_at >= ?", since).
		Group("user_id").
		Order("count DESC").
		Scan(&out).Error
	return out, err
}

// ProductCriterionAverages returns the per-criterion community averages and
// the overall average for productName (case-insensitive). A product with no
// ratings yields a zero struct and count 0.
func ProductCriterionAverages(ctx context.Context, db *gorm.DB, productName string) (avgs CriterionAverages, avgTotal float64, count int64, err error) {
	var row struct {
		Visual  *float64
		Smell   *float64
		Touch   *float64
		Taste   *float64
		Effects *float64
		Total   *float64
		Count   int64
	}
	err = db.WithContext(ctx).
		Model(&domain.Rating{}).
		Select(`AVG(visual) AS visual, AVG(smell) AS smell, AVG(touch) AS touch,
			AVG(taste) AS taste, AVG(effects) AS effects,
			AVG(`+rowMean+`) AS total, COUNT(*) AS count`).
		Where("product_name = ?", productName).
		Scan(&row).Error
	if err != nil {
		return CriterionAverages{}, 0, 0, err
	}
	deref := func(p *float64) float64 {
		if p == nil {
			return 0
		}
		return *p
	}
	avgs = CriterionAverages{
		Visual:  deref(row.Visual),
		Smell:   deref(row.Smell),
		Touch:   deref(row.Touch),
		Taste:   deref(row.Taste),
		Effects: deref(row.Effects),
	}
	return avgs, deref(row.Total), row.Count, nil
}

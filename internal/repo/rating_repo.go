// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Rating
// model.
//
// Error semantics:
//   - UpdateComment returns ErrNotFound when no rating row matches.
//   - Other functions propagate raw gorm errors; the unique index on
//     (user_id, product_name) never fires for ReplaceRating, which resolves
//     the conflict itself.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/RAFOUgg/LaFoncedalleBot-sub000/internal/domain"
)

// ReplaceRating inserts the rating for (userID, productName) or replaces the
// prior row wholesale. Replacement is deliberate and total: the timestamp is
// always reset to now and an omitted comment clears the stored one. The
// product name comparison is case-insensitive via the column collation, and
// the incoming casing wins.
func ReplaceRating(ctx context.Context, db *gorm.DB, r *domain.Rating) error {
	r.ID = uuid.NewString()
	r.RatedAt = time.Now().UTC()
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "product_name"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"display_name", "product_name",
				"visual", "smell", "touch", "taste", "effects",
				"comment", "rated_at",
			}),
		}).
		Create(r).Error
}

// UpdateComment patches the comment column of an existing rating row.
// Returns ErrNotFound when the user has no rating for that product.
func UpdateComment(ctx context.Context, db *gorm.DB, userID, productName, comment string) error {
	res := db.WithContext(ctx).
		Model(&domain.Rating{}).
		Where("user_id = ? AND product_name = ?", userID, productName).
		Update("comment", comment)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListUserRatings returns all of a user's ratings in reverse-chronological
// order (most recent first). An empty slice means the user has rated nothing.
func ListUserRatings(ctx context.Context, db *gorm.DB, userID string) ([]domain.Rating, error) {
	var out []domain.Rating
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("rated_at DESC").
		Find(&out).Error
	return out, err
}

// ListProductRatings returns every rating of a product, matched
// case-insensitively, most recent first.
func ListProductRatings(ctx context.Context, db *gorm.DB, productName string) ([]domain.Rating, error) {
	var out []domain.Rating
	err := db.WithContext(ctx).
		Where("product_name = ?", productName).
		Order("rated_at DESC").
		Find(&out).Error
	return out, err
}

// DeleteUserRatings bulk-deletes all of a user's ratings and reports how
// many rows were removed. Staff-only; the service layer gates the caller.
func DeleteUserRatings(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	res := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&domain.Rating{})
	return res.RowsAffected, res.Error
}

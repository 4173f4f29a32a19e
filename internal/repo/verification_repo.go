// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the
// PendingVerification model used by the email verification state machine.
//
// Expiry is enforced by readers, not by a purge job: GetPendingByCode treats
// a row whose expires_at has passed as expired rather than absent, so the
// service layer can distinguish "wrong code" from "right code, too late".
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/RAFOUgg/LaFoncedalleBot-sub000/internal/domain"
)

// ErrExpired indicates that a pending verification row exists for the given
// (chat_id, code) pair but its lifetime has elapsed.
var ErrExpired = errors.New("verification code expired")

// UpsertPending inserts or overwrites the single pending verification row
// for chatID. Starting a new attempt always replaces the previous one,
// whatever its state.
func UpsertPending(ctx context.Context, db *gorm.DB, chatID, email, code string, expiresAt time.Time) error {
	rec := &domain.PendingVerification{
		ChatID:    chatID,
		Email:     email,
		Code:      code,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "chat_id"}},
			UpdateAll: true,
		}).
		Create(rec).Error
}

// GetPendingByCode returns the pending row matching (chatID, code).
// It returns ErrNotFound when no such pair exists and ErrExpired when the
// pair exists but now is at or past expires_at. The expired row is left in
// place; it dies by being overwritten, per the data model contract.
func GetPendingByCode(ctx context.Context, db *gorm.DB, chatID, code string, now time.Time) (*domain.PendingVerification, error) {
	var rec domain.PendingVerification
	err := db.WithContext(ctx).
		Where("chat_id = ? AND code = ?", chatID, code).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	if !now.Before(rec.ExpiresAt) {
		return nil, ErrExpired
	}
	return &rec, nil
}

// DeletePending removes the pending row for chatID, if any. Deleting a row
// that does not exist is not an error: force-link uses this to clear any
// dangling attempt.
func DeletePending(ctx context.Context, db *gorm.DB, chatID string) error {
	return db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Delete(&domain.PendingVerification{}).Error
}

// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Link model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a link is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Functions:
//
//   - GetLink(ctx, db, chatID) -> *domain.Link, error
//     Fetches the link for a chat identity, or ErrNotFound if missing.
//
//   - GetLinkByEmail(ctx, db, email) -> *domain.Link, error
//     Fetches the link claiming an email (case-insensitive), or ErrNotFound.
//
//   - PutLink(ctx, db, chatID, email) -> error
//     Rebinds a chat identity to an email with delete-then-insert semantics.
//
//   - DeleteLink(ctx, db, chatID) -> error
//     Removes the link row; ErrNotFound if no row was deleted.
//
// This repository is wrapped by services.VerificationService which enforces
// the conflict/email-taken rules and the state machine ordering.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/RAFOUgg/LaFoncedalleBot-sub000/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// GetLink fetches the Link row for chatID, or ErrNotFound if the identity
// is not linked.
func GetLink(ctx context.Context, db *gorm.DB, chatID string) (*domain.Link, error) {
	var l domain.Link
	err := db.WithContext(ctx).Where("chat_id = ?", chatID).First(&l).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// GetLinkByEmail fetches the Link row claiming email, matching
// case-insensitively, or ErrNotFound if the email is unclaimed.
func GetLinkByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.Link, error) {
	var l domain.Link
	err := db.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(email)).
		First(&l).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// PutLink binds chatID to email. Links are never updated in place: any
// existing row for chatID is deleted first, then a fresh row is inserted.
// Both statements run on the handle as given, so callers that need the
// rebinding to be atomic must pass a transaction-bound handle.
func PutLink(ctx context.Context, db *gorm.DB, chatID, email string) error {
	h := db.WithContext(ctx)
	if err := h.Where("chat_id = ?", chatID).Delete(&domain.Link{}).Error; err != nil {
		return err
	}
	return h.Create(&domain.Link{
		ChatID:    chatID,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}).Error
}

// DeleteLink removes the Link row for chatID. It returns ErrNotFound when
// no row existed, so callers can acknowledge an unlink precisely.
func DeleteLink(ctx context.Context, db *gorm.DB, chatID string) error {
	res := db.WithContext(ctx).Where("chat_id = ?", chatID).Delete(&domain.Link{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountLinks returns the total number of linked identities.
func CountLinks(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Link{}).Count(&n).Error
	return n, err
}

// isDuplicate detects unique-constraint violations across drivers that may
// not map to gorm.ErrDuplicatedKey. glebarez/sqlite often returns plain-text
// errors for UNIQUE violations.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key")
}

// IsDuplicate reports whether err is a unique-constraint violation. Exported
// for the service layer, which maps duplicates to its own sentinel errors.
func IsDuplicate(err error) bool {
	return err != nil && isDuplicate(err)
}

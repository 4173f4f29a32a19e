// Package services – VerificationService
//
// This file implements the VerificationService, which drives the three-state
// machine tying chat identities to shop customer emails:
//
//	UNLINKED --start--> PENDING --confirm--> LINKED --unlink--> UNLINKED
//
// Starting a verification mails a six-digit one-time code; confirming it
// materializes the Link and awards the welcome gift at most once per
// identity. Service-level errors (ErrEmailTaken, ErrInvalidCode,
// ErrCodeExpired, ErrNotLinked, *LinkConflictError) are returned for
// predictable cases so handlers can map them to HTTP results consistently.
package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	netmail "net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/RAFOUgg/LaFoncedalleBot-sub000/internal/mail"
	"github.com/RAFOUgg/LaFoncedalleBot-sub000/internal/repo"
	"github.com/RAFOUgg/LaFoncedalleBot-sub000/internal/reward"
)

// GiftOutcome reports what happened to the welcome gift after a successful
// confirmation. A gift failure never reverts the link.
type GiftOutcome struct {
	Sent   bool   `json:"gift_sent"`
	Reason string `json:"reason,omitempty"` // set when Sent is false
}

// VerificationService implements the identity-linking use-cases. It is
// context-aware and opens one short transaction per state change.
type VerificationService struct {
	// DB is the database handle used for all link operations.
	DB *gorm.DB
	// Mailer delivers verification codes and welcome gifts.
	Mailer mail.Mailer
	// Rewards issues welcome codes; may be nil in admin-only contexts.
	Rewards *reward.Pool
	// CodeTTL is the lifetime of an issued code (10 minutes by contract).
	CodeTTL time.Duration

	// now is a test seam; defaults to time.Now.
	now func() time.Time
}

func (s *VerificationService) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now().UTC()
}

// Start begins (or restarts) email verification for chatID.
//
// Semantics:
//   - email must be syntactically valid; otherwise ErrInvalidEmail.
//   - If chatID is already linked and force is false, the call fails with
//     *LinkConflictError carrying the anonymized current email.
//   - If email is already linked to another identity → ErrEmailTaken.
//   - Otherwise a fresh six-digit code is generated and mailed. Only after
//     the mail is accepted is the pending row written, so a live pending
//     row always implies a delivered code. A mail failure surfaces as
//     ErrMailFailed and leaves prior state untouched.
//
// Restarting is always allowed: a new attempt overwrites any previous
// pending row for the identity, live or dead.
func (s *VerificationService) Start(ctx context.Context, chatID, email string, force bool) error {
	email = strings.TrimSpace(email)
	if _, err := netmail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return ErrInvalidEmail
	}

	if existing, err := repo.GetLink(ctx, s.DB, chatID); err == nil {
		if !force {
			return &LinkConflictError{ExistingEmail: AnonymizeEmail(existing.Email)}
		}
	} else if !errors.Is(err, repo.ErrNotFound) {
		return err
	}

	if taken, err := repo.GetLinkByEmail(ctx, s.DB, email); err == nil && taken.ChatID != chatID {
		return ErrEmailTaken
	} else if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return err
	}

	code, err := generateCode()
	if err != nil {
		return err
	}

	subject := "Ton code de vérification LaFoncedalle"
	body := verificationBody(code, s.CodeTTL)
	if err := s.Mailer.Send(ctx, email, subject, body); err != nil {
		return fmt.Errorf("%w: %v", ErrMailFailed, err)
	}

	expiresAt := s.clock().Add(s.CodeTTL)
	if err := repo.UpsertPending(ctx, s.DB, chatID, email, code, expiresAt); err != nil {
		return err
	}

	log.Info().Str("chat_id", chatID).Time("expires_at", expiresAt).Msg("verification started")
	return nil
}

// Confirm completes verification for chatID with the submitted code.
//
// The lookup, link upsert, and pending-row deletion run in one transaction:
//   - No pending row matches (chatID, code) → ErrInvalidCode.
//   - The row matched but its lifetime elapsed → ErrCodeExpired.
//   - The pending email got claimed by someone else meanwhile → ErrEmailTaken.
//
// After the transaction commits, the welcome gift is attempted. A gift
// failure is reported through GiftOutcome but never unwinds the link.
func (s *VerificationService) Confirm(ctx context.Context, chatID, code string) (GiftOutcome, error) {
	var email string
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pending, err := repo.GetPendingByCode(ctx, tx, chatID, code, s.clock())
		if err != nil {
			switch {
			case errors.Is(err, repo.ErrNotFound):
				return ErrInvalidCode
			case errors.Is(err, repo.ErrExpired):
				return ErrCodeExpired
			}
			return err
		}
		email = pending.Email

		if err := repo.PutLink(ctx, tx, chatID, email); err != nil {
			if repo.IsDuplicate(err) {
				return ErrEmailTaken
			}
			return err
		}
		return repo.DeletePending(ctx, tx, chatID)
	})
	if err != nil {
		return GiftOutcome{}, err
	}

	log.Info().Str("chat_id", chatID).Msg("identity linked")
	return s.awardGift(ctx, chatID, email), nil
}

// awardGift runs the reward sub-protocol and folds its outcome into a
// GiftOutcome. Pool mail failures are already absorbed by the pool itself.
func (s *VerificationService) awardGift(ctx context.Context, chatID, email string) GiftOutcome {
	if s.Rewards == nil {
		return GiftOutcome{Sent: false, Reason: "no_codes_available"}
	}
	_, err := s.Rewards.Issue(ctx, chatID, func(code string) error {
		return s.Mailer.Send(ctx, email, "Ton cadeau de bienvenue LaFoncedalle", welcomeBody(code))
	})
	switch {
	case err == nil:
		return GiftOutcome{Sent: true}
	case errors.Is(err, reward.ErrAlreadyClaimed):
		return GiftOutcome{Sent: false, Reason: "already_claimed"}
	case errors.Is(err, reward.ErrNoCodes):
		return GiftOutcome{Sent: false, Reason: "no_codes_available"}
	default:
		log.Error().Err(err).Str("chat_id", chatID).Msg("welcome gift issuance failed")
		return GiftOutcome{Sent: false, Reason: "internal"}
	}
}

// Unlink removes the link for chatID and returns the formerly bound email
// so the caller can acknowledge it. ErrNotLinked when no link exists.
func (s *VerificationService) Unlink(ctx context.Context, chatID string) (string, error) {
	var email string
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		link, err := repo.GetLink(ctx, tx, chatID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrNotLinked
			}
			return err
		}
		email = link.Email
		return repo.DeleteLink(ctx, tx, chatID)
	})
	if err != nil {
		return "", err
	}
	log.Info().Str("chat_id", chatID).Msg("identity unlinked")
	return email, nil
}

// ForceLink binds chatID to email without any verification handshake.
// Staff-only; the HTTP layer gates the caller. Conflict semantics match
// Start for force=false. Any dangling pending row for the identity is
// cleared in the same transaction. No welcome gift is awarded.
func (s *VerificationService) ForceLink(ctx context.Context, chatID, email string, force bool) error {
	email = strings.TrimSpace(email)
	if _, err := netmail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return ErrInvalidEmail
	}

	if existing, err := repo.GetLink(ctx, s.DB, chatID); err == nil {
		if !force {
			return &LinkConflictError{ExistingEmail: AnonymizeEmail(existing.Email)}
		}
	} else if !errors.Is(err, repo.ErrNotFound) {
		return err
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.PutLink(ctx, tx, chatID, email); err != nil {
			if repo.IsDuplicate(err) {
				return ErrEmailTaken
			}
			return err
		}
		return repo.DeletePending(ctx, tx, chatID)
	})
	if err != nil {
		return err
	}
	log.Info().Str("chat_id", chatID).Msg("identity force-linked")
	return nil
}

// LinkedEmail resolves chatID to its bound email, or ErrNotLinked.
func (s *VerificationService) LinkedEmail(ctx context.Context, chatID string) (string, error) {
	link, err := repo.GetLink(ctx, s.DB, chatID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", ErrNotLinked
		}
		return "", err
	}
	return link.Email, nil
}

// AnonymizeEmail masks the interior of an address's local part: the first
// character survives, then stars, then (for local parts of three or more
// characters) the last character, then the full domain.
//
//	alice@x.y -> a***e@x.y
//	ab@x.y    -> a*@x.y
//	a@x.y     -> a*@x.y
func AnonymizeEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return email
	}
	local, domain := email[:at], email[at:]
	runes := []rune(local)
	if len(runes) <= 2 {
		return string(runes[0]) + "*" + domain
	}
	return string(runes[0]) + strings.Repeat("*", len(runes)-2) + string(runes[len(runes)-1]) + domain
}

// generateCode draws a uniformly random six-decimal-digit code. Leading
// zeros are allowed, so the space is exactly 10^6.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func verificationBody(code string, ttl time.Duration) string {
	return fmt.Sprintf(`<html><body style="font-family: Arial, sans-serif;">
<h2>Vérification de ton compte</h2>
<p>Voici ton code de vérification&nbsp;:</p>
<p style="font-size: 32px; letter-spacing: 6px; font-weight: bold;">%s</p>
<p>Ce code expire dans %d minutes. Si tu n'es pas à l'origine de cette demande, ignore ce message.</p>
</body></html>`, code, int(ttl.Minutes()))
}

func welcomeBody(code string) string {
	return fmt.Sprintf(`<html><body style="font-family: Arial, sans-serif;">
<h2>Bienvenue dans la communauté&nbsp;!</h2>
<p>Ton compte est vérifié. Voici ton code cadeau de bienvenue&nbsp;:</p>
<p style="font-size: 28px; letter-spacing: 4px; font-weight: bold;">%s</p>
<p>À utiliser lors de ta prochaine commande sur la boutique.</p>
</body></html>`, code)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/RAFOUgg/LaFoncedalleBot-sub000/internal/domain"
	"github.com/RAFOUgg/LaFoncedalleBot-sub000/internal/repo"
	"github.com/RAFOUgg/LaFoncedalleBot-sub000/internal/reward"
)

// fakeMailer records sends and can be told to fail.
type fakeMailer struct {
	sent []sentMail
	fail error
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

func (m *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	if m.fail != nil {
		return m.fail
	}
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("ver_svc_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := db.AutoMigrate(&domain.Link{}, &domain.PendingVerification{}, &domain.Rating{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newRewardPool(t *testing.T, codes ...string) *reward.Pool {
	t.Helper()
	dir := t.TempDir()
	codesPath := filepath.Join(dir, "codes.txt")
	if len(codes) > 0 {
		if err := os.WriteFile(codesPath, []byte(strings.Join(codes, "\n")+"\n"), 0o644); err != nil {
			t.Fatalf("seed codes: %v", err)
		}
	}
	return reward.New(codesPath, filepath.Join(dir, "claimed.json"))
}

func newVerificationService(t *testing.T, mailer *fakeMailer, codes ...string) *VerificationService {
	t.Helper()
	return &VerificationService{
		DB:      newServiceDB(t),
		Mailer:  mailer,
		Rewards: newRewardPool(t, codes...),
		CodeTTL: 10 * time.Minute,
	}
}

// pendingCode digs the generated code out of storage so tests can confirm.
func pendingCode(t *testing.T, db *gorm.DB, chatID string) string {
	t.Helper()
	var rec domain.PendingVerification
	if err := db.Where("chat_id = ?", chatID).First(&rec).Error; err != nil {
		t.Fatalf("no pending row for %s: %v", chatID, err)
	}
	return rec.Code
}

func TestStart_MailsCodeThenWritesPending(t *testing.T) {
	mailer := &fakeMailer{}
	svc := newVerificationService(t, mailer, "GIFT1")
	ctx := context.Background()

	if err := svc.Start(ctx, "42", "alice@example.com", false); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if len(mailer.sent) != 1 || mailer.sent[0].To != "alice@example.com" {
		t.Fatalf("expected one verification mail, got %+v", mailer.sent)
	}
	code := pendingCode(t, svc.DB, "42")
	if !regexp.MustCompile(`^\d{6}$`).MatchString(code) {
		t.Fatalf("code %q is not six decimal digits", code)
	}
	if !strings.Contains(mailer.sent[0].Body, code) {
		t.Fatalf("mail body does not carry the stored code")
	}
}

func TestStart_InvalidEmail(t *testing.T) {
	svc := newVerificationService(t, &fakeMailer{})
	for _, email := range []string{"", "not-an-email", "@nolocal.example"} {
		if err := svc.Start(context.Background(), "42", email, false); !errors.Is(err, ErrInvalidEmail) {
			t.Fatalf("Start(%q): expected ErrInvalidEmail, got %v", email, err)
		}
	}
}

func TestStart_MailFailureLeavesNoPendingRow(t *testing.T) {
	mailer := &fakeMailer{fail: fmt.Errorf("smtp down")}
	svc := newVerificationService(t, mailer)
	ctx := context.Background()

	err := svc.Start(ctx, "42", "alice@example.com", false)
	if !errors.Is(err, ErrMailFailed) {
		t.Fatalf("expected ErrMailFailed, got %v", err)
	}
	var n int64
	svc.DB.Model(&domain.PendingVerification{}).Count(&n)
	if n != 0 {
		t.Fatalf("a live pending row must imply a delivered code; found %d rows", n)
	}
}

func TestStart_ConflictCarriesAnonymizedEmail(t *testing.T) {
	mailer := &fakeMailer{}
	svc := newVerificationService(t, mailer)
	ctx := context.Background()

	if err := repo.PutLink(ctx, svc.DB, "42", "alice@example.com"); err != nil {
		t.Fatalf("seed link: %v", err)
	}

	err := svc.Start(ctx, "42", "new@example.com", false)
	var conflict *LinkConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected LinkConflictError, got %v", err)
	}
	if conflict.ExistingEmail != "a***e@example.com" {
		t.Fatalf("anonymized email = %q", conflict.ExistingEmail)
	}

	// force=true overrides the conflict and restarts verification.
	if err := svc.Start(ctx, "42", "new@example.com", true); err != nil {
		t.Fatalf("forced Start: %v", err)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("forced start should mail a code")
	}
}

func TestStart_EmailTakenByOtherIdentity(t *testing.T) {
	svc := newVerificationService(t, &fakeMailer{})
	ctx := context.Background()

	if err := repo.PutLink(ctx, svc.DB, "99", "taken@example.com"); err != nil {
		t.Fatalf("seed link: %v", err)
	}
	if err := svc.Start(ctx, "42", "taken@example.com", false); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestConfirm_HappyPathLinksAndAwardsGift(t *testing.T) {
	mailer := &fakeMailer{}
	svc := newVerificationService(t, mailer, "WELCOME10")
	ctx := context.Background()

	if err := svc.Start(ctx, "42", "alice@example.com", false); err != nil {
		t.Fatalf("Start: %v", err)
	}
	code := pendingCode(t, svc.DB, "42")

	gift, err := svc.Confirm(ctx, "42", code)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if !gift.Sent || gift.Reason != "" {
		t.Fatalf("expected gift sent, got %+v", gift)
	}

	// The link exists, the pending row is gone, the gift mail went out.
	email, err := svc.LinkedEmail(ctx, "42")
	if err != nil || email != "alice@example.com" {
		t.Fatalf("LinkedEmail = %q, %v", email, err)
	}
	var n int64
	svc.DB.Model(&domain.PendingVerification{}).Count(&n)
	if n != 0 {
		t.Fatalf("pending row should be deleted on confirm")
	}
	if len(mailer.sent) != 2 || !strings.Contains(mailer.sent[1].Body, "WELCOME10") {
		t.Fatalf("welcome gift mail missing: %+v", mailer.sent)
	}
}

func TestConfirm_WrongAndExpiredCodes(t *testing.T) {
	mailer := &fakeMailer{}
	svc := newVerificationService(t, mailer)
	ctx := context.Background()

	if err := svc.Start(ctx, "42", "alice@example.com", false); err != nil {
		t.Fatalf("Start: %v", err)
	}
	code := pendingCode(t, svc.DB, "42")

	if _, err := svc.Confirm(ctx, "42", "999999"); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("wrong code: expected ErrInvalidCode, got %v", err)
	}
	// A wrong attempt does not consume the pending row.
	if got := pendingCode(t, svc.DB, "42"); got != code {
		t.Fatalf("pending row changed after failed attempt")
	}

	// Jump the clock past the TTL.
	svc.now = func() time.Time { return time.Now().UTC().Add(11 * time.Minute) }
	if _, err := svc.Confirm(ctx, "42", code); !errors.Is(err, ErrCodeExpired) {
		t.Fatalf("expired code: expected ErrCodeExpired, got %v", err)
	}
	if _, err := svc.LinkedEmail(ctx, "42"); !errors.Is(err, ErrNotLinked) {
		t.Fatalf("no link should exist after expired confirm")
	}
}

func TestConfirm_GiftOnlyOncePerIdentity(t *testing.T) {
	mailer := &fakeMailer{}
	svc := newVerificationService(t, mailer, "ONLY")
	ctx := context.Background()

	if err := svc.Start(ctx, "42", "alice@example.com", false); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := svc.Confirm(ctx, "42", pendingCode(t, svc.DB, "42")); err != nil {
		t.Fatalf("first Confirm: %v", err)
	}

	// Unlink and relink the same identity: no second gift.
	if _, err := svc.Unlink(ctx, "42"); err != nil {
		t.Fatalf("Unlink: %v", err)
	}
	if err := svc.Start(ctx, "42", "alice@example.com", false); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	gift, err := svc.Confirm(ctx, "42", pendingCode(t, svc.DB, "42"))
	if err != nil {
		t.Fatalf("second Confirm: %v", err)
	}
	if gift.Sent || gift.Reason != "already_claimed" {
		t.Fatalf("expected already_claimed, got %+v", gift)
	}
}

func TestConfirm_EmptyPoolReportsReason(t *testing.T) {
	svc := newVerificationService(t, &fakeMailer{}) // no codes seeded
	ctx := context.Background()

	if err := svc.Start(ctx, "42", "alice@example.com", false); err != nil {
		t.Fatalf("Start: %v", err)
	}
	gift, err := svc.Confirm(ctx, "42", pendingCode(t, svc.DB, "42"))
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if gift.Sent || gift.Reason != "no_codes_available" {
		t.Fatalf("expected no_codes_available, got %+v", gift)
	}
	// The gift shortfall never unwinds the link.
	if email, err := svc.LinkedEmail(ctx, "42"); err != nil || email != "alice@example.com" {
		t.Fatalf("link missing after gift shortfall: %q %v", email, err)
	}
}

func TestUnlink(t *testing.T) {
	svc := newVerificationService(t, &fakeMailer{})
	ctx := context.Background()

	if _, err := svc.Unlink(ctx, "42"); !errors.Is(err, ErrNotLinked) {
		t.Fatalf("expected ErrNotLinked, got %v", err)
	}

	if err := repo.PutLink(ctx, svc.DB, "42", "alice@example.com"); err != nil {
		t.Fatalf("seed link: %v", err)
	}
	email, err := svc.Unlink(ctx, "42")
	if err != nil {
		t.Fatalf("Unlink: %v", err)
	}
	if email != "alice@example.com" {
		t.Fatalf("Unlink returned %q", email)
	}
}

func TestForceLink(t *testing.T) {
	mailer := &fakeMailer{}
	svc := newVerificationService(t, mailer)
	ctx := context.Background()

	// Binds without any handshake and clears a dangling pending row.
	if err := repo.UpsertPending(ctx, svc.DB, "42", "x@y.z", "123456", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("seed pending: %v", err)
	}
	if err := svc.ForceLink(ctx, "42", "alice@example.com", false); err != nil {
		t.Fatalf("ForceLink: %v", err)
	}
	if email, _ := svc.LinkedEmail(ctx, "42"); email != "alice@example.com" {
		t.Fatalf("link not created")
	}
	var n int64
	svc.DB.Model(&domain.PendingVerification{}).Count(&n)
	if n != 0 {
		t.Fatalf("dangling pending row survived force-link")
	}
	if len(mailer.sent) != 0 {
		t.Fatalf("force-link must not mail anything")
	}

	// Same conflict semantics as Start.
	err := svc.ForceLink(ctx, "42", "new@example.com", false)
	var conflict *LinkConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected LinkConflictError, got %v", err)
	}
	if err := svc.ForceLink(ctx, "42", "new@example.com", true); err != nil {
		t.Fatalf("forced ForceLink: %v", err)
	}

	// An email claimed by another identity stays exclusive.
	if err := svc.ForceLink(ctx, "43", "new@example.com", false); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestAnonymizeEmail(t *testing.T) {
	cases := map[string]string{
		"alice@x.y":   "a***e@x.y",
		"ab@x.y":      "a*@x.y",
		"a@x.y":       "a*@x.y",
		"jeanluc@x.y": "j*****c@x.y",
		"no-at-sign":  "no-at-sign",
	}
	for in, want := range cases {
		if got := AnonymizeEmail(in); got != want {
			t.Fatalf("AnonymizeEmail(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGenerateCode(t *testing.T) {
	pattern := regexp.MustCompile(`^\d{6}$`)
	for i := 0; i < 50; i++ {
		code, err := generateCode()
		if err != nil {
			t.Fatalf("generateCode: %v", err)
		}
		if !pattern.MatchString(code) {
			t.Fatalf("code %q is not six decimal digits", code)
		}
	}
}

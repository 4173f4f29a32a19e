package reward

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func newPool(t *testing.T, codes ...string) *Pool {
	t.Helper()
	dir := t.TempDir()
	codesPath := filepath.Join(dir, "welcome_codes.txt")
	claimedPath := filepath.Join(dir, "claimed_welcome_codes.json")
	if len(codes) > 0 {
		content := ""
		for _, c := range codes {
			content += c + "\n"
		}
		if err := os.WriteFile(codesPath, []byte(content), 0o644); err != nil {
			t.Fatalf("seed pool file: %v", err)
		}
	}
	return New(codesPath, claimedPath)
}

func TestIssue_PopsHeadAndRecordsClaim(t *testing.T) {
	p := newPool(t, "WELCOME10", "WELCOME20")
	ctx := context.Background()

	var sent string
	code, err := p.Issue(ctx, "42", func(c string) error { sent = c; return nil })
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if code != "WELCOME10" || sent != "WELCOME10" {
		t.Fatalf("expected head code, got issued=%q sent=%q", code, sent)
	}

	if n, _ := p.Remaining(); n != 1 {
		t.Fatalf("Remaining = %d, want 1", n)
	}
	if has, _ := p.HasClaim("42"); !has {
		t.Fatalf("claim not recorded")
	}

	claims, err := p.loadClaims()
	if err != nil {
		t.Fatalf("loadClaims: %v", err)
	}
	if claims["42"].Code != "WELCOME10" || claims["42"].Date == "" {
		t.Fatalf("unexpected claim: %+v", claims["42"])
	}
}

func TestIssue_SecondClaimRejected(t *testing.T) {
	p := newPool(t, "A", "B")
	ctx := context.Background()

	if _, err := p.Issue(ctx, "42", func(string) error { return nil }); err != nil {
		t.Fatalf("first Issue: %v", err)
	}
	_, err := p.Issue(ctx, "42", func(string) error {
		t.Fatalf("send must not run for a repeat claim")
		return nil
	})
	if !errors.Is(err, ErrAlreadyClaimed) {
		t.Fatalf("expected ErrAlreadyClaimed, got %v", err)
	}
	// The pool was not touched by the rejected attempt.
	if n, _ := p.Remaining(); n != 1 {
		t.Fatalf("Remaining = %d, want 1", n)
	}
}

func TestIssue_EmptyPool(t *testing.T) {
	p := newPool(t) // no pool file at all
	_, err := p.Issue(context.Background(), "42", func(string) error { return nil })
	if !errors.Is(err, ErrNoCodes) {
		t.Fatalf("expected ErrNoCodes, got %v", err)
	}
	if has, _ := p.HasClaim("42"); has {
		t.Fatalf("no claim should be written on an empty pool")
	}
}

func TestIssue_SendFailureStillClaims(t *testing.T) {
	p := newPool(t, "ONLY")
	ctx := context.Background()

	code, err := p.Issue(ctx, "42", func(string) error { return fmt.Errorf("smtp down") })
	if err != nil {
		t.Fatalf("send failure must not fail Issue: %v", err)
	}
	if code != "ONLY" {
		t.Fatalf("code = %q", code)
	}
	// The code is considered issued: claimed, and gone from the pool.
	if has, _ := p.HasClaim("42"); !has {
		t.Fatalf("claim missing after send failure")
	}
	if n, _ := p.Remaining(); n != 0 {
		t.Fatalf("Remaining = %d, want 0", n)
	}
}

func TestReadCodes_SkipsBlankLines(t *testing.T) {
	p := newPool(t)
	if err := os.WriteFile(p.codesPath, []byte("\nA\n\n  \nB\n"), 0o644); err != nil {
		t.Fatalf("write pool: %v", err)
	}
	lines, err := p.readCodes()
	if err != nil {
		t.Fatalf("readCodes: %v", err)
	}
	if len(lines) != 2 || lines[0] != "A" || lines[1] != "B" {
		t.Fatalf("unexpected lines: %v", lines)
	}
}

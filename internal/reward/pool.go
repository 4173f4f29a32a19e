// Package reward manages the welcome-gift code pool: an append-only text
// file of unused codes and a JSON sidecar recording which chat identities
// have already claimed one. Both files are only ever touched through
// Pool.Issue so the concurrency discipline lives in one place.
//
// Update order is pool pop → mail send → claim write. A crash between steps
// loses at most the single popped code, which is preferred over ever
// issuing two codes to one identity: the sidecar claim is the durable
// idempotency key, checked before anything is popped.
package reward

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog/log"
)

var (
	// ErrAlreadyClaimed indicates the chat identity has received a welcome
	// gift before; claims never expire.
	ErrAlreadyClaimed = errors.New("welcome gift already claimed")

	// ErrNoCodes indicates the pool file holds no unused codes.
	ErrNoCodes = errors.New("no welcome codes available")
)

// Claim records one issued welcome gift in the sidecar file.
type Claim struct {
	Code string `json:"code"`
	Date string `json:"date"` // RFC 3339
}

// Pool is the process-wide welcome-code store. The zero value is not
// usable; construct with New.
type Pool struct {
	codesPath   string
	claimedPath string

	mu sync.Mutex // serializes Issue within this process
}

// New returns a Pool over the given code file and claimed-codes sidecar.
// Neither file needs to exist yet; an absent pool file reads as empty.
func New(codesPath, claimedPath string) *Pool {
	return &Pool{codesPath: codesPath, claimedPath: claimedPath}
}

// Issue awards at most one welcome code to chatID, ever.
//
// Sequence:
//  1. If the sidecar already holds a claim for chatID → ErrAlreadyClaimed.
//  2. Pop the head line of the pool file under an exclusive file lock;
//     an empty pool → ErrNoCodes.
//  3. Call send with the popped code. A send failure is logged and treated
//     as success — a small leak beats re-issuing a different code.
//  4. Record the claim in the sidecar.
//
// The returned code is the one popped, whatever the mail outcome.
func (p *Pool) Issue(ctx context.Context, chatID string, send func(code string) error) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	claims, err := p.loadClaims()
	if err != nil {
		return "", err
	}
	if _, ok := claims[chatID]; ok {
		return "", ErrAlreadyClaimed
	}

	code, err := p.popCode(ctx)
	if err != nil {
		return "", err
	}

	if err := send(code); err != nil {
		log.Error().Err(err).Str("chat_id", chatID).Msg("welcome code mail failed; code considered issued")
	}

	claims[chatID] = Claim{Code: code, Date: time.Now().UTC().Format(time.RFC3339)}
	if err := p.saveClaims(claims); err != nil {
		return "", err
	}
	return code, nil
}

// HasClaim reports whether chatID has already been issued a welcome gift.
func (p *Pool) HasClaim(chatID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	claims, err := p.loadClaims()
	if err != nil {
		return false, err
	}
	_, ok := claims[chatID]
	return ok, nil
}

// Remaining returns the number of unused codes left in the pool file.
func (p *Pool) Remaining() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	lines, err := p.readCodes()
	if err != nil {
		return 0, err
	}
	return len(lines), nil
}

// popCode removes and returns the head of the pool file, holding an
// exclusive lock for the read-truncate-write cycle.
func (p *Pool) popCode(ctx context.Context) (string, error) {
	lock := flock.New(p.codesPath + ".lock")
	ok, err := lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.New("could not acquire welcome-code lock")
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.Warn().Err(err).Msg("failed to release welcome-code lock")
		}
	}()

	lines, err := p.readCodes()
	if err != nil {
		return "", err
	}
	if len(lines) == 0 {
		return "", ErrNoCodes
	}

	head, rest := lines[0], lines[1:]
	out := strings.Join(rest, "\n")
	if out != "" {
		out += "\n"
	}
	if err := os.WriteFile(p.codesPath, []byte(out), 0o644); err != nil {
		return "", err
	}
	return head, nil
}

// readCodes returns the non-empty lines of the pool file, head first. An
// absent file is an empty pool, not an error.
func (p *Pool) readCodes() ([]string, error) {
	raw, err := os.ReadFile(p.codesPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, l := range strings.Split(string(raw), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines, nil
}

func (p *Pool) loadClaims() (map[string]Claim, error) {
	raw, err := os.ReadFile(p.claimedPath)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]Claim{}, nil
	}
	if err != nil {
		return nil, err
	}
	claims := map[string]Claim{}
	if len(raw) == 0 {
		return claims, nil
	}
	if err := json.Unmarshal(raw, &claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (p *Pool) saveClaims(claims map[string]Claim) error {
	raw, err := json.MarshalIndent(claims, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p.claimedPath, raw, 0o644)
}

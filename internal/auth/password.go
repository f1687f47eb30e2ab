// Password hashing.
//
// WHY BCRYPT?
// bcrypt is a password hashing function specifically designed to be slow.
// That slowness is a security feature: it makes brute-force attacks expensive.
//
// bcrypt automatically:
//   - Generates a random salt (so two users with the same password get different hashes)
//   - Embeds the salt in the output hash (no separate salt column needed)
//   - Controls the work factor via "cost" (higher = slower = harder to crack)
//
// Hash format (the full output of bcrypt.GenerateFromPassword):
//
//	$2a$10$<22-char salt><31-char hash>
//	 ^   ^
//	 |   cost (10 rounds → 2^10 = 1024 iterations)
//	 version
//
// CPU BUDGET:
// Every hash and compare is pure CPU. A burst of logins could otherwise put
// one bcrypt per request on every core at once and starve the rest of the
// server, so PasswordService runs them behind a weighted semaphore sized to
// GOMAXPROCS. Callers queue (respecting ctx cancellation) instead of piling on.

package auth

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// defaultCost is the bcrypt work factor used for every stored password.
const defaultCost = 10

// maxPasswordBytes is bcrypt's input limit. Longer input is silently
// truncated by the algorithm, so we reject it instead.
const maxPasswordBytes = 72

// ErrPasswordTooLong is returned by Hash for input over 72 bytes.
var ErrPasswordTooLong = errors.New("auth: password must be 72 bytes or fewer")

// PasswordService provides bcrypt hashing and verification.
//
// It's a struct (not free functions) so that the cost can be injected
// in tests. Using a lower cost (e.g. 4) makes tests run much faster
// without compromising the logic being tested.
type PasswordService struct {
	cost  int
	slots *semaphore.Weighted
}

// NewPasswordService creates a PasswordService with the default cost (10).
func NewPasswordService() *PasswordService {
	return newPasswordServiceWithCost(defaultCost)
}

// newPasswordServiceWithCost creates a PasswordService with a custom cost.
func newPasswordServiceWithCost(cost int) *PasswordService {
	return &PasswordService{
		cost:  cost,
		slots: semaphore.NewWeighted(int64(runtime.GOMAXPROCS(0))),
	}
}

// NewPasswordServiceForTest creates a PasswordService with the given bcrypt
// cost. Use 4 (the minimum) in tests in other packages.
//
// Do NOT use in production: cost 4 is far too weak.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return newPasswordServiceWithCost(cost)
}

// Hash hashes the given plaintext password with bcrypt.
//
// Store the result directly in the database. It includes the salt and
// cost; bcrypt.CompareHashAndPassword knows how to decode it.
//
// Returns ErrPasswordTooLong for input over 72 bytes, or ctx.Err() if the
// context ends while waiting for a hashing slot.
func (p *PasswordService) Hash(ctx context.Context, plaintext string) (string, error) {
	if len(plaintext) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	if err := p.slots.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("auth: waiting for hashing slot: %w", err)
	}
	defer p.slots.Release(1)

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify reports whether plaintext matches a stored bcrypt hash.
//
// An empty hash means the account has no local password (a Google-only
// account). That always returns false without running bcrypt, so such an
// account can never be entered with a password.
//
// A mismatch is (false, nil). The error is non-nil only when no comparison
// ran because ctx ended while waiting for a hashing slot; callers must not
// report that as wrong credentials.
//
// TIMING SAFETY:
// bcrypt.CompareHashAndPassword uses a constant-time comparison internally.
func (p *PasswordService) Verify(ctx context.Context, hash, plaintext string) (bool, error) {
	if hash == "" {
		return false, nil
	}

	if err := p.slots.Acquire(ctx, 1); err != nil {
		return false, fmt.Errorf("auth: waiting for hashing slot: %w", err)
	}
	defer p.slots.Release(1)

	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil, nil
}

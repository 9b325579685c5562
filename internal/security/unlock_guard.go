package security

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"sync"
	"time"

	"rhystmorgan/tokenSend/internal/storage"
)

var ErrLockedOut = errors.New("too many failed unlock attempts")

// Unlocker is satisfied by *storage.Keystore.
type Unlocker interface {
	Unlock(password string) (*ecdsa.PrivateKey, error)
}

type AttemptRecord struct {
	Count       int
	LastAttempt time.Time
	LockedUntil time.Time
}

// UnlockGuard wraps an Unlocker and locks it out with growing delays after
// repeated wrong passwords.
type UnlockGuard struct {
	unlocker    Unlocker
	maxAttempts int
	now         func() time.Time

	mu     sync.RWMutex
	record AttemptRecord
}

func NewUnlockGuard(unlocker Unlocker, maxAttempts int) *UnlockGuard {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &UnlockGuard{
		unlocker:    unlocker,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

func (g *UnlockGuard) Unlock(password string) (*ecdsa.PrivateKey, error) {
	if remaining := g.RemainingLockout(); remaining > 0 {
		return nil, fmt.Errorf("%w: try again in %s", ErrLockedOut, remaining.Round(time.Second))
	}

	key, err := g.unlocker.Unlock(password)
	switch {
	case err == nil:
		g.recordSuccess()
		return key, nil
	case errors.Is(err, storage.ErrWrongPassword):
		g.recordFailure()
	}
	return nil, err
}

func (g *UnlockGuard) IsLocked() bool {
	return g.RemainingLockout() > 0
}

func (g *UnlockGuard) RemainingLockout() time.Duration {
	g.mu.RLock()
	defer g.mu.RUnlock()

	remaining := g.record.LockedUntil.Sub(g.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (g *UnlockGuard) FailedAttempts() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.record.Count
}

func (g *UnlockGuard) recordFailure() {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.record.Count++
	g.record.LastAttempt = now

	if g.record.Count >= g.maxAttempts {
		g.record.LockedUntil = now.Add(lockoutDuration(g.record.Count))
	}
}

func (g *UnlockGuard) recordSuccess() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record = AttemptRecord{}
}

func lockoutDuration(attemptCount int) time.Duration {
	switch {
	case attemptCount <= 3:
		return 1 * time.Minute
	case attemptCount <= 5:
		return 5 * time.Minute
	case attemptCount <= 7:
		return 15 * time.Minute
	default:
		return 1 * time.Hour
	}
}

package appshell

import (
	"context"
	"time"
)

// SessionSource exposes the identity provider's current resolution state.
// The SDK only ever reads sessions; mutation (login, logout, role switch)
// is the provider's responsibility.
// Implementations: jwtsource/ (JWT via JWKS), fake/ (testing).
type SessionSource interface {
	// Snapshot returns the current session state.
	Snapshot(ctx context.Context) (Session, error)
}

// HintStore is a durable key-value store for onboarding state. Values
// are small JSON documents; last-write-wins semantics are acceptable.
// Implementations: redisstore/ (Redis), fake/ (in-memory).
type HintStore interface {
	// Get returns the value for key, with ok=false when absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores the value for key, overwriting any previous value.
	Set(ctx context.Context, key, value string) error
}

// Navigator performs history navigation on behalf of the bootstrap
// controller. Replace must not push a new history entry, so redirected
// visitors cannot back-navigate into a redirect loop.
type Navigator interface {
	Replace(path string)
}

// Timer is a cancellable pending callback returned by Clock.AfterFunc.
type Timer interface {
	// Stop cancels the timer. It reports whether the call prevented the
	// callback from firing.
	Stop() bool
}

// Clock abstracts time so tests can drive deadlines deterministically.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// SystemClock returns a Clock backed by the runtime timer facilities.
func SystemClock() Clock { return systemClock{} }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

package sync

import (
	"sync"
	"time"

	"github.com/dealflow/mailsync/internal/utils"
)

// defaultThrottleInterval is the minimum gap between incremental syncs of one
// account
const defaultThrottleInterval = 90 * time.Second

// ThrottleGuard coalesces bursts of sync triggers per account. A trigger is
// allowed when no sync for the account is in flight and the last allowed
// trigger is older than the interval. Dropped triggers are silent: the
// running or recent sync already covers them.
type ThrottleGuard struct {
	mu       sync.Mutex
	interval time.Duration
	lastRun  map[string]time.Time
	inFlight map[string]bool
}

func NewThrottleGuard(interval time.Duration) *ThrottleGuard {
	if interval <= 0 {
		interval = defaultThrottleInterval
	}
	return &ThrottleGuard{
		interval: interval,
		lastRun:  map[string]time.Time{},
		inFlight: map[string]bool{},
	}
}

// TryAcquire reports whether a sync for the account may start now. Callers
// that get true must call Release when the sync finishes.
func (g *ThrottleGuard) TryAcquire(accountID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.inFlight[accountID] {
		return false
	}
	if last, ok := g.lastRun[accountID]; ok && utils.Now().Sub(last) < g.interval {
		return false
	}
	g.inFlight[accountID] = true
	g.lastRun[accountID] = utils.Now()
	return true
}

func (g *ThrottleGuard) Release(accountID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inFlight, accountID)
}

// Reset clears all throttle state. Intended for tests and operator tooling.
func (g *ThrottleGuard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastRun = map[string]time.Time{}
	g.inFlight = map[string]bool{}
}

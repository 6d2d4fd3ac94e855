package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestThrottleGuard_BlocksWhileInFlight(t *testing.T) {
	g := NewThrottleGuard(time.Millisecond)

	assert.True(t, g.TryAcquire("acct_1"))
	assert.False(t, g.TryAcquire("acct_1"))

	// A different account is unaffected
	assert.True(t, g.TryAcquire("acct_2"))
}

func TestThrottleGuard_EnforcesInterval(t *testing.T) {
	g := NewThrottleGuard(time.Hour)

	assert.True(t, g.TryAcquire("acct_1"))
	g.Release("acct_1")

	// Still inside the interval
	assert.False(t, g.TryAcquire("acct_1"))
}

func TestThrottleGuard_AllowsAfterInterval(t *testing.T) {
	g := NewThrottleGuard(10 * time.Millisecond)

	assert.True(t, g.TryAcquire("acct_1"))
	g.Release("acct_1")

	time.Sleep(20 * time.Millisecond)
	assert.True(t, g.TryAcquire("acct_1"))
}

func TestThrottleGuard_Reset(t *testing.T) {
	g := NewThrottleGuard(time.Hour)

	assert.True(t, g.TryAcquire("acct_1"))
	g.Reset()

	assert.True(t, g.TryAcquire("acct_1"))
}

func TestThrottleGuard_DefaultInterval(t *testing.T) {
	g := NewThrottleGuard(0)
	assert.Equal(t, defaultThrottleInterval, g.interval)
}

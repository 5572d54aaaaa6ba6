package circuit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newBreaker(clock *fakeClock, opts ...Option) *Breaker {
	return New("audit-sink", append([]Option{WithClock(clock.Now), WithCooldown(10 * time.Second)}, opts...)...)
}

func TestNewBreakerIsClosed(t *testing.T) {
	b := New("audit-sink")
	assert.Equal(t, "audit-sink", b.Name())
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}

func TestBrokerOutageOpensAfterThreshold(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	b := newBreaker(clock, WithFailureThreshold(3))

	for i := range 2 {
		open, change := b.RecordFailure()
		assert.False(t, open, "failure %d", i+1)
		assert.False(t, change.Opened)
	}
	open, change := b.RecordFailure()
	assert.True(t, open)
	assert.True(t, change.Opened)
	assert.True(t, b.IsOpen())

	// Already open: no second transition.
	_, change = b.RecordFailure()
	assert.False(t, change.Opened)
}

func TestOpenBreakerAdmitsOneProbePerCooldown(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	b := newBreaker(clock, WithFailureThreshold(1))
	b.RecordFailure()
	require.True(t, b.IsOpen())

	assert.False(t, b.Allow())
	clock.Advance(10 * time.Second)
	assert.True(t, b.Allow())
	assert.False(t, b.Allow(), "second call inside the same window")

	// A failed probe restarts the cooldown.
	b.RecordFailure()
	clock.Advance(5 * time.Second)
	assert.False(t, b.Allow())
	clock.Advance(5 * time.Second)
	assert.True(t, b.Allow())
}

func TestSuccessfulProbesCloseBreaker(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	b := newBreaker(clock, WithFailureThreshold(1), WithSuccessThreshold(2))
	b.RecordFailure()

	closed, change := b.RecordSuccess()
	assert.False(t, closed)
	assert.False(t, change.Closed)
	assert.True(t, b.IsOpen())

	closed, change = b.RecordSuccess()
	assert.True(t, closed)
	assert.True(t, change.Closed)
	assert.True(t, b.Allow())
}

func TestFailureResetsProbeSuccesses(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	b := newBreaker(clock, WithFailureThreshold(1), WithSuccessThreshold(2))
	b.RecordFailure()

	b.RecordSuccess()
	b.RecordFailure()
	b.RecordSuccess()
	assert.True(t, b.IsOpen())
	b.RecordSuccess()
	assert.False(t, b.IsOpen())
}

func TestSuccessResetsFailureRun(t *testing.T) {
	b := New("audit-sink", WithFailureThreshold(2))
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	assert.False(t, b.IsOpen())
	b.RecordFailure()
	assert.True(t, b.IsOpen())
}

func TestResetClosesAndClearsCooldown(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	b := newBreaker(clock, WithFailureThreshold(1))
	b.RecordFailure()
	require.False(t, b.Allow())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}

func TestConcurrentRecordsAreSafe(t *testing.T) {
	b := New("audit-sink", WithFailureThreshold(50))
	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				b.RecordFailure()
			} else {
				b.RecordSuccess()
			}
			b.Allow()
		}()
	}
	wg.Wait()
	assert.Contains(t, []State{StateClosed, StateOpen}, b.State())
}

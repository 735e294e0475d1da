package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestExpiringTokenBucketWindow(t *testing.T) {
	clock := newFakeClock()
	b := NewExpiringTokenBucket[string](3, time.Hour).WithClock(clock.Now)

	for i := 0; i < 3; i++ {
		if !b.Consume("u1", 1) {
			t.Fatalf("consume %d denied", i+1)
		}
	}
	if b.Consume("u1", 1) {
		t.Fatal("expected 4th consume to be denied")
	}
	if b.Check("u1", 1) {
		t.Fatal("expected check to report exhaustion")
	}
	if !b.Check("u2", 1) {
		t.Fatal("other keys must be unaffected")
	}

	clock.Advance(59 * time.Minute)
	if b.Consume("u1", 1) {
		t.Fatal("expected denial inside the window")
	}

	clock.Advance(time.Minute)
	if !b.Check("u1", 3) {
		t.Fatal("expired bucket should count as full")
	}
	for i := 0; i < 3; i++ {
		if !b.Consume("u1", 1) {
			t.Fatalf("consume %d after window denied", i+1)
		}
	}
	if b.Consume("u1", 1) {
		t.Fatal("window should restart on the first consume after expiry")
	}
}

func TestExpiringTokenBucketDeniedConsumeDoesNotMutate(t *testing.T) {
	clock := newFakeClock()
	b := NewExpiringTokenBucket[string](5, time.Minute).WithClock(clock.Now)

	if !b.Consume("k", 4) {
		t.Fatal("expected consume of 4")
	}
	if b.Consume("k", 2) {
		t.Fatal("expected consume of 2 to fail with 1 remaining")
	}
	if !b.Consume("k", 1) {
		t.Fatal("remaining unit should still be available")
	}
}

func TestExpiringTokenBucketReset(t *testing.T) {
	b := NewExpiringTokenBucket[int64](1, time.Hour)
	if !b.Consume(7, 1) || b.Consume(7, 1) {
		t.Fatal("unexpected allowance before reset")
	}
	b.Reset(7)
	if !b.Consume(7, 1) {
		t.Fatal("expected allowance after reset")
	}
}

func TestCostAboveMaxNeverSatisfied(t *testing.T) {
	e := NewExpiringTokenBucket[string](3, time.Hour)
	r := NewRefillingTokenBucket[string](3, time.Second)
	if e.Check("k", 4) || e.Consume("k", 4) {
		t.Fatal("expiring bucket allowed cost above max")
	}
	if r.Check("k", 4) || r.Consume("k", 4) {
		t.Fatal("refilling bucket allowed cost above max")
	}
	if e.Len() != 0 || r.Len() != 0 {
		t.Fatal("rejected cost must not create state")
	}
}

func TestRefillingTokenBucketRegainsUpToMax(t *testing.T) {
	clock := newFakeClock()
	b := NewRefillingTokenBucket[string](5, time.Second).WithClock(clock.Now)

	for i := 0; i < 5; i++ {
		if !b.Consume("ip", 1) {
			t.Fatalf("consume %d denied", i+1)
		}
	}
	if b.Consume("ip", 1) {
		t.Fatal("expected empty bucket")
	}

	clock.Advance(5 * time.Second)
	for i := 0; i < 5; i++ {
		if !b.Consume("ip", 1) {
			t.Fatalf("consume %d after refill denied", i+1)
		}
	}
	if b.Consume("ip", 1) {
		t.Fatal("refill must not exceed max")
	}

	clock.Advance(time.Hour)
	if !b.Check("ip", 5) || b.Check("ip", 6) {
		t.Fatal("long idle should cap at max")
	}
}

func TestRefillingTokenBucketKeepsPartialInterval(t *testing.T) {
	clock := newFakeClock()
	b := NewRefillingTokenBucket[string](2, 10*time.Second).WithClock(clock.Now)

	b.Consume("k", 2)
	clock.Advance(15 * time.Second)
	if !b.Consume("k", 1) {
		t.Fatal("one interval elapsed, expected one token")
	}
	if b.Consume("k", 1) {
		t.Fatal("only one token should have been credited")
	}
	// 5s of progress were kept, so 5 more seconds complete the next interval.
	clock.Advance(5 * time.Second)
	if !b.Consume("k", 1) {
		t.Fatal("fractional progress was lost")
	}
}

func TestRefillingTokenBucketCheckDoesNotMutate(t *testing.T) {
	clock := newFakeClock()
	b := NewRefillingTokenBucket[string](1, time.Second).WithClock(clock.Now)

	if !b.Check("k", 1) || !b.Check("k", 1) {
		t.Fatal("check must be repeatable")
	}
	if b.Len() != 0 {
		t.Fatal("check must not create entries")
	}
	if !b.Consume("k", 1) || b.Check("k", 1) {
		t.Fatal("unexpected state after consume")
	}
}

func TestThrottlerLadder(t *testing.T) {
	clock := newFakeClock()
	th := NewThrottler[string]([]time.Duration{0, time.Second, 2 * time.Second, 4 * time.Second}).WithClock(clock.Now)

	if !th.Consume("u") {
		t.Fatal("first attempt must be allowed")
	}
	clock.Advance(500 * time.Millisecond)
	if th.Consume("u") {
		t.Fatal("second attempt before 1s must be denied")
	}
	clock.Advance(500 * time.Millisecond)
	if !th.Consume("u") {
		t.Fatal("second attempt after 1s must be allowed")
	}
	clock.Advance(time.Second)
	if th.Consume("u") {
		t.Fatal("third attempt needs 2s")
	}
	clock.Advance(time.Second)
	if !th.Consume("u") {
		t.Fatal("third attempt after 2s must be allowed")
	}
	clock.Advance(4 * time.Second)
	if !th.Consume("u") {
		t.Fatal("fourth attempt after 4s must be allowed")
	}
	clock.Advance(3 * time.Second)
	if th.Consume("u") {
		t.Fatal("last delay must repeat")
	}

	th.Reset("u")
	if !th.Consume("u") {
		t.Fatal("reset must restore immediate allowance")
	}
}

func TestSweepDropsIdleState(t *testing.T) {
	clock := newFakeClock()
	e := NewExpiringTokenBucket[string](1, time.Minute).WithClock(clock.Now)
	r := NewRefillingTokenBucket[string](2, time.Second).WithClock(clock.Now)
	th := NewThrottler[string]([]time.Duration{0, time.Second}).WithClock(clock.Now)

	e.Consume("a", 1)
	r.Consume("a", 1)
	th.Consume("a")

	if e.Sweep() != 0 || r.Sweep() != 0 || th.Sweep() != 0 {
		t.Fatal("fresh entries must survive sweep")
	}
	clock.Advance(2 * time.Minute)
	if e.Sweep() != 1 || r.Sweep() != 1 || th.Sweep() != 1 {
		t.Fatal("idle entries should be swept")
	}
}

func TestConcurrentConsumeIsSerialized(t *testing.T) {
	b := NewExpiringTokenBucket[string](100, time.Hour)
	var allowed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 500; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.Consume("shared", 1) {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	if got := allowed.Load(); got != 100 {
		t.Fatalf("expected exactly 100 allowed consumes, got %d", got)
	}
}

package ratelimit

import "context"

// Bucket is the context-aware view shared by the in-memory and Redis buckets.
type Bucket interface {
	Check(ctx context.Context, key string, cost int64) (bool, error)
	Consume(ctx context.Context, key string, cost int64) (bool, error)
	Reset(ctx context.Context, key string) error
}

// Backoff is the context-aware view shared by Throttler and RedisThrottler.
type Backoff interface {
	Consume(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
}

// Sweeper is implemented by in-memory primitives that can drop idle state.
type Sweeper interface {
	Sweep() int
}

type memoryBucket interface {
	Check(key string, cost int64) bool
	Consume(key string, cost int64) bool
	Reset(key string)
	Sweep() int
}

type localBucket struct{ b memoryBucket }

// Local adapts an in-memory bucket keyed by string to Bucket.
func Local(b memoryBucket) Bucket { return localBucket{b: b} }

func (l localBucket) Check(_ context.Context, key string, cost int64) (bool, error) {
	return l.b.Check(key, cost), nil
}

func (l localBucket) Consume(_ context.Context, key string, cost int64) (bool, error) {
	return l.b.Consume(key, cost), nil
}

func (l localBucket) Reset(_ context.Context, key string) error {
	l.b.Reset(key)
	return nil
}

func (l localBucket) Sweep() int { return l.b.Sweep() }

type localBackoff struct{ t *Throttler[string] }

// LocalBackoff adapts an in-memory Throttler to Backoff.
func LocalBackoff(t *Throttler[string]) Backoff { return localBackoff{t: t} }

func (l localBackoff) Consume(_ context.Context, key string) (bool, error) {
	return l.t.Consume(key), nil
}

func (l localBackoff) Reset(_ context.Context, key string) error {
	l.t.Reset(key)
	return nil
}

func (l localBackoff) Sweep() int { return l.t.Sweep() }

package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestTokenBucketRefills(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	tb := newTokenBucket(2, 1, clock.now)

	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())
	assert.Equal(t, time.Second, tb.RetryAfter())

	clock.advance(500 * time.Millisecond)
	assert.False(t, tb.Allow())
	assert.Equal(t, 500*time.Millisecond, tb.RetryAfter())

	clock.advance(10 * time.Second)
	assert.Equal(t, 2.0, tb.Available())
}

func TestTokenBucketReset(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	tb := newTokenBucket(3, 0, clock.now)

	assert.True(t, tb.AllowN(3))
	assert.False(t, tb.Allow())
	assert.Zero(t, tb.RetryAfter())

	tb.Reset()
	assert.Equal(t, 3.0, tb.Available())
}

func TestKeyedLimiterIsolatesKeys(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	l := NewKeyedLimiter(1, 1, time.Minute)
	l.now = clock.now

	ok, _ := l.Allow("user-1")
	assert.True(t, ok)

	ok, wait := l.Allow("user-1")
	assert.False(t, ok)
	assert.Equal(t, time.Second, wait)

	ok, _ = l.Allow("user-2")
	assert.True(t, ok)
}

func TestKeyedLimiterSweepsIdleKeys(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	l := NewKeyedLimiter(1, 1, time.Minute)
	l.now = clock.now

	l.Allow("a")
	clock.advance(45 * time.Second)
	l.Allow("b")
	clock.advance(30 * time.Second)

	assert.Equal(t, 1, l.Sweep())
	assert.Equal(t, 1, l.Len())
}

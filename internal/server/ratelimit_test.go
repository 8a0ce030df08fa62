package server

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_PerClient(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := newRateLimiter(2, 1, func() time.Time { return now })

	ok, _ := rl.reserve("10.0.0.1")
	assert.True(t, ok)

	ok, wait := rl.reserve("10.0.0.1")
	assert.False(t, ok)
	assert.Equal(t, 500*time.Millisecond, wait)

	ok, _ = rl.reserve("10.0.0.2")
	assert.True(t, ok, "clients have independent buckets")
}

func TestRateLimiter_DefaultBurst(t *testing.T) {
	t.Parallel()

	rl := newRateLimiter(2.5, 0, time.Now)
	assert.Equal(t, 3, rl.burst)
}

func TestRateLimiter_Sweep(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := newRateLimiter(10, 10, func() time.Time { return now })

	rl.reserve("a")
	rl.reserve("b")
	assert.Equal(t, 2, rl.size())

	now = now.Add(2 * time.Minute)
	rl.reserve("b")

	now = now.Add(visitorTTL - time.Minute + time.Second)
	rl.reserve("c")

	// a idled past the TTL; b was seen recently.
	assert.Equal(t, 2, rl.size())
	rl.mu.Lock()
	_, hasA := rl.visitors["a"]
	rl.mu.Unlock()
	assert.False(t, hasA)
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		remote string
		want   string
	}{
		{remote: "192.0.2.1:1234", want: "192.0.2.1"},
		{remote: "[2001:db8::1]:443", want: "2001:db8::1"},
		{remote: "[2001:db8::1]", want: "2001:db8::1"},
		{remote: "192.0.2.9", want: "192.0.2.9"},
	}

	for _, tt := range tests {
		r := httptest.NewRequest("GET", "/health", nil)
		r.RemoteAddr = tt.remote
		assert.Equal(t, tt.want, clientIP(r), tt.remote)
	}
}

package server

import (
	"testing"
	"time"
)

func TestTokenBucketExhaustsAndRefills(t *testing.T) {
	bucket := newTokenBucket(1000, 2)

	if !bucket.Allow() || !bucket.Allow() {
		t.Fatalf("burst capacity not honoured")
	}
	if bucket.Allow() {
		t.Fatalf("Allow() = true after burst exhausted")
	}

	time.Sleep(5 * time.Millisecond)
	if !bucket.Allow() {
		t.Fatalf("Allow() = false after refill window")
	}
}

func TestAllowLoginInMemoryCounting(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{LoginLimit: 2, LoginWindow: time.Minute})

	for i := 0; i < 2; i++ {
		allowed, _, err := rl.AllowLogin("10.0.0.1")
		if err != nil {
			t.Fatalf("AllowLogin: %v", err)
		}
		if !allowed {
			t.Fatalf("attempt %d denied, want allowed", i)
		}
	}
	allowed, retryAfter, err := rl.AllowLogin("10.0.0.1")
	if err != nil {
		t.Fatalf("AllowLogin: %v", err)
	}
	if allowed {
		t.Fatalf("third attempt allowed, want denied")
	}
	if retryAfter <= 0 {
		t.Fatalf("retryAfter = %v, want positive", retryAfter)
	}

	allowed, _, err = rl.AllowLogin("10.0.0.2")
	if err != nil {
		t.Fatalf("AllowLogin: %v", err)
	}
	if !allowed {
		t.Fatalf("separate client denied, want allowed")
	}
}

func TestAllowLoginDisabledWhenLimitZero(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{})
	for i := 0; i < 10; i++ {
		allowed, _, err := rl.AllowLogin("10.0.0.1")
		if err != nil {
			t.Fatalf("AllowLogin: %v", err)
		}
		if !allowed {
			t.Fatalf("attempt %d denied with limiter disabled", i)
		}
	}
}

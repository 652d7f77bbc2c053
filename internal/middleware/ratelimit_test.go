package middleware

import (
	"testing"
	"time"
)

func TestTokenBucketExhaustion(t *testing.T) {
	limiter := NewTokenBucket(3, 3)
	defer limiter.Close()

	for i := 0; i < 3; i++ {
		if !limiter.allow("10.0.0.1") {
			t.Fatalf("request %d denied within capacity", i+1)
		}
	}
	if limiter.allow("10.0.0.1") {
		t.Error("request allowed past capacity")
	}
}

func TestTokenBucketIsolatesKeys(t *testing.T) {
	limiter := NewTokenBucket(1, 1)
	defer limiter.Close()

	if !limiter.allow("10.0.0.1") {
		t.Fatal("first key denied")
	}
	if limiter.allow("10.0.0.1") {
		t.Error("first key allowed past capacity")
	}
	if !limiter.allow("10.0.0.2") {
		t.Error("second key throttled by the first key's usage")
	}
}

func TestTokenBucketSweepDropsIdleBuckets(t *testing.T) {
	limiter := NewTokenBucket(3, 3)
	defer limiter.Close()

	limiter.allow("10.0.0.1")
	limiter.allow("10.0.0.2")

	limiter.mu.Lock()
	limiter.state["10.0.0.1"].last = time.Now().Add(-limiter.idleCutoff() - time.Minute)
	limiter.mu.Unlock()

	limiter.sweep(time.Now())

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	if _, ok := limiter.state["10.0.0.1"]; ok {
		t.Error("idle bucket survived the sweep")
	}
	if _, ok := limiter.state["10.0.0.2"]; !ok {
		t.Error("active bucket swept")
	}
}

func TestTokenBucketSweepKeepsRecentBuckets(t *testing.T) {
	limiter := NewTokenBucket(1, 1)
	defer limiter.Close()

	limiter.allow("10.0.0.1")
	limiter.allow("10.0.0.1")
	limiter.sweep(time.Now())

	limiter.mu.Lock()
	_, ok := limiter.state["10.0.0.1"]
	limiter.mu.Unlock()
	if !ok {
		t.Fatal("exhausted bucket swept while still within its refill window")
	}
	if limiter.allow("10.0.0.1") {
		t.Error("sweep reset an exhausted bucket")
	}
}

func TestTokenBucketDefaultsCapacity(t *testing.T) {
	limiter := NewTokenBucket(0, 5)
	defer limiter.Close()
	if limiter.capacity != 5 {
		t.Errorf("capacity = %d, want 5", limiter.capacity)
	}
}

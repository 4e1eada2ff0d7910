package utils

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSlidingWindowAdd(t *testing.T) {
	window := NewSlidingWindow(2 * time.Second)
	now := time.Now()
	if count := window.Add(now); count != 1 {
		t.Fatalf("expected 1, got %d", count)
	}
	window.Add(now.Add(500 * time.Millisecond))
	if count := window.Count(now.Add(1 * time.Second)); count != 2 {
		t.Fatalf("expected 2, got %d", count)
	}
	if wait := window.RetryAfter(now.Add(1 * time.Second)); wait != time.Second {
		t.Fatalf("expected 1s until a slot frees, got %s", wait)
	}
	if count := window.Count(now.Add(3 * time.Second)); count != 0 {
		t.Fatalf("expected 0, got %d", count)
	}
}

func TestCooldownLimitsPerKey(t *testing.T) {
	cooldown := NewCooldown(2, time.Minute)
	now := time.Now()

	for i := 0; i < 2; i++ {
		if ok, _ := cooldown.Allow("u1", now); !ok {
			t.Fatalf("hit %d should be allowed", i+1)
		}
	}
	ok, wait := cooldown.Allow("u1", now.Add(10*time.Second))
	if ok {
		t.Fatalf("third hit should be limited")
	}
	if wait != 50*time.Second {
		t.Fatalf("expected 50s wait, got %s", wait)
	}
	if ok, _ := cooldown.Allow("u2", now); !ok {
		t.Fatalf("other keys are independent")
	}
	if ok, _ := cooldown.Allow("u1", now.Add(2*time.Minute)); !ok {
		t.Fatalf("window should have expired")
	}
}

func TestCooldownSweep(t *testing.T) {
	cooldown := NewCooldown(1, time.Second)
	now := time.Now()
	cooldown.Allow("u1", now)
	cooldown.Sweep(now.Add(2 * time.Second))
	if len(cooldown.windows) != 0 {
		t.Fatalf("expected idle keys removed, got %d", len(cooldown.windows))
	}
}

func TestCooldownDisabled(t *testing.T) {
	cooldown := NewCooldown(0, time.Minute)
	for i := 0; i < 10; i++ {
		if ok, _ := cooldown.Allow("u1", time.Now()); !ok {
			t.Fatalf("zero limit disables the cooldown")
		}
	}
}

func TestSlidingWindowAddIfBelow(t *testing.T) {
	window := NewSlidingWindow(time.Minute)
	now := time.Now()
	for i := 0; i < 2; i++ {
		if ok, _ := window.AddIfBelow(now, 2); !ok {
			t.Fatalf("hit %d should fit", i+1)
		}
	}
	ok, wait := window.AddIfBelow(now.Add(20*time.Second), 2)
	if ok || wait != 40*time.Second {
		t.Fatalf("expected rejection with 40s wait, got %v %s", ok, wait)
	}
	if count := window.Count(now.Add(20 * time.Second)); count != 2 {
		t.Fatalf("rejected hit must not be recorded, got %d", count)
	}
}

func TestCooldownConcurrentAllow(t *testing.T) {
	cooldown := NewCooldown(3, time.Minute)
	now := time.Now()

	var wg sync.WaitGroup
	var allowed int32
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := cooldown.Allow("u1", now); ok {
				atomic.AddInt32(&allowed, 1)
			}
		}()
	}
	wg.Wait()

	if allowed != 3 {
		t.Fatalf("expected exactly 3 allowed hits, got %d", allowed)
	}
	if count := cooldown.windows["u1"].Count(now); count != 3 {
		t.Fatalf("expected 3 recorded hits, got %d", count)
	}
}

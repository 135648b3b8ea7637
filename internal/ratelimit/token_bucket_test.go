package ratelimit

import (
	"testing"
	"time"
)

func TestTokenBucketCapacity(t *testing.T) {
	b := NewTokenBucket(2, 1)
	now := time.Unix(1_700_000_000, 0)

	if !b.rl.AllowN(now, 1) {
		t.Fatal("expected first token allowed")
	}
	if !b.rl.AllowN(now, 1) {
		t.Fatal("expected second token allowed")
	}
	if b.rl.AllowN(now, 1) {
		t.Fatal("expected third token rejected")
	}
}

func TestTokenBucketRefills(t *testing.T) {
	b := NewTokenBucket(1, 2) // two tokens per second
	now := time.Unix(1_700_000_000, 0)

	if !b.rl.AllowN(now, 1) {
		t.Fatal("expected initial token allowed")
	}
	if b.rl.AllowN(now, 1) {
		t.Fatal("expected empty bucket to reject")
	}

	if !b.rl.AllowN(now.Add(600*time.Millisecond), 1) {
		t.Fatal("expected refilled token after 600ms at 2/s")
	}
}

func TestTokenBucketRefillCapped(t *testing.T) {
	b := NewTokenBucket(2, 10)
	now := time.Unix(1_700_000_000, 0)

	b.rl.AllowN(now, 1)
	b.rl.AllowN(now, 1)

	// A long idle period refills to capacity, never beyond it.
	later := now.Add(time.Hour)
	if !b.rl.AllowN(later, 1) {
		t.Fatal("expected token after idle refill")
	}
	if !b.rl.AllowN(later, 1) {
		t.Fatal("expected second token after idle refill")
	}
	if b.rl.AllowN(later, 1) {
		t.Fatal("bucket refilled beyond capacity")
	}
}

func TestReserveReportsDelayWhenEmpty(t *testing.T) {
	b := NewTokenBucket(1, 1) // one token per second

	if !b.Allow() {
		t.Fatal("expected initial token allowed")
	}
	d := b.Reserve()
	if d <= 0 || d > time.Second {
		t.Fatalf("expected a delay within one refill period, got %s", d)
	}
}

package ev

import (
	"testing"
	"time"
)

func TestNewLimiter_EmptyPolicyIsUnlimited(t *testing.T) {
	if l := newLimiter(nil); l != nil {
		t.Fatalf("newLimiter(nil) = %v, want nil (unlimited)", l)
	}
	if l := newLimiter(map[time.Duration]int{}); l != nil {
		t.Fatalf("newLimiter(empty map) = %v, want nil (unlimited)", l)
	}
}

func TestAdmit_NilLimiterAlwaysAllows(t *testing.T) {
	for i := 0; i < 5; i++ {
		if !admit(nil, "category") {
			t.Fatalf("admit with nil limiter must always return true")
		}
	}
}

func TestAdmit_EnforcesConfiguredRate(t *testing.T) {
	limiter := newLimiter(map[time.Duration]int{time.Minute: 1})
	if limiter == nil {
		t.Fatalf("newLimiter with a non-empty policy must not be nil")
	}
	if !admit(limiter, "watcher-a") {
		t.Fatalf("first admit for a fresh category should be allowed")
	}
	if admit(limiter, "watcher-a") {
		t.Fatalf("second admit within the same window should be denied (rate: 1/min)")
	}
	// A distinct category has its own budget.
	if !admit(limiter, "watcher-b") {
		t.Fatalf("a different category must not share watcher-a's budget")
	}
}

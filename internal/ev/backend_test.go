package ev

import (
	"testing"
	"time"
)

func TestIdleDeadline(t *testing.T) {
	if got := idleDeadline(true); got != 100*time.Microsecond {
		t.Fatalf("idleDeadline(completion) = %v, want 100µs", got)
	}
	if got := idleDeadline(false); got != 10*time.Millisecond {
		t.Fatalf("idleDeadline(readiness) = %v, want 10ms", got)
	}
}

package ev

import (
	"time"

	"github.com/joeycumines/go-catrate"
)

// newLimiter builds a *catrate.Limiter from a config rate-limit policy,
// or returns nil (meaning unlimited) when the policy is empty.
func newLimiter(rates map[time.Duration]int) *catrate.Limiter {
	if len(rates) == 0 {
		return nil
	}
	return catrate.NewLimiter(rates)
}

// admit consults limiter (which may be nil, meaning unlimited) before a
// PERIODIC tick is dispatched; WORKER receive re-arms are not rate
// limited. A nil limiter, or an Allow that permits the category, both
// return true.
func admit(limiter *catrate.Limiter, category any) bool {
	if limiter == nil {
		return true
	}
	_, ok := limiter.Allow(category)
	return ok
}

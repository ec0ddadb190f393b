// Package config describes how an event loop is constructed: which
// backend it runs on, how large its work buffers are, and what rate
// limits and logger it uses. It follows the functional-options shape
// used elsewhere in this module's ancestry (a private options struct, a
// named Option interface, WithXxx constructors, and a resolve step that
// applies defaults before validating).
package config

import (
	"fmt"
	"time"

	"github.com/Userfrom1995/pgagroal/internal/logging"
)

// Backend selects the reactor implementation a Loop runs on.
type Backend int

const (
	// BackendAuto lets the loop pick the best backend for the host OS:
	// the completion backend on Linux where io_uring is available,
	// falling back to epoll readiness, and kqueue readiness on BSD/Darwin.
	BackendAuto Backend = iota
	// BackendCompletion selects the io_uring completion-queue backend
	// (Linux only).
	BackendCompletion
	// BackendReadinessLinux selects the epoll readiness-notification
	// backend.
	BackendReadinessLinux
	// BackendReadinessBSD selects the kqueue readiness-notification
	// backend.
	BackendReadinessBSD
)

func (b Backend) String() string {
	switch b {
	case BackendAuto:
		return "auto"
	case BackendCompletion:
		return "completion"
	case BackendReadinessLinux:
		return "readiness-linux"
	case BackendReadinessBSD:
		return "readiness-bsd"
	default:
		return fmt.Sprintf("Backend(%d)", int(b))
	}
}

// RateLimitPolicy describes an admission-control window, expressed
// exactly the way go-catrate's Limiter does: a map from window duration
// to the maximum number of admissions allowed within that window. A
// nil/empty map disables rate limiting.
type RateLimitPolicy map[time.Duration]int

// options holds the resolved configuration for a Loop.
type options struct {
	backend        Backend
	ringEntries    uint
	maxWatchers    int
	rateLimitRates RateLimitPolicy
	logger         *logging.Logger
}

// Option configures a Loop's construction parameters.
type Option interface {
	apply(*options) error
}

type optionFunc func(*options) error

func (f optionFunc) apply(o *options) error { return f(o) }

// WithBackend selects the reactor backend. The default is BackendAuto.
func WithBackend(b Backend) Option {
	return optionFunc(func(o *options) error {
		o.backend = b
		return nil
	})
}

// WithRingEntries records a ring depth in Config.RingEntries. Must be a
// power of two. No backend reads it: the io_uring backend always uses
// its fixed 64-entry submission and 128-entry completion queues.
func WithRingEntries(n uint) Option {
	return optionFunc(func(o *options) error {
		if n == 0 || n&(n-1) != 0 {
			return fmt.Errorf("config: ring entries must be a power of two, got %d", n)
		}
		o.ringEntries = n
		return nil
	})
}

// WithMaxWatchers records a watcher ceiling in Config.MaxWatchers. Must
// be >= 0. The loop does not read it; its only bound on registered
// MAIN/WORKER watchers is ev.MaxEvents.
func WithMaxWatchers(n int) Option {
	return optionFunc(func(o *options) error {
		if n < 0 {
			return fmt.Errorf("config: max watchers must be >= 0, got %d", n)
		}
		o.maxWatchers = n
		return nil
	})
}

// WithRateLimit attaches an admission-control policy: a window duration
// mapped to the maximum count of admissions permitted within it, passed
// straight through to go-catrate's Limiter.
func WithRateLimit(policy RateLimitPolicy) Option {
	return optionFunc(func(o *options) error {
		o.rateLimitRates = policy
		return nil
	})
}

// WithLogger attaches a structured logger. Defaults to a discarding
// logger when unset.
func WithLogger(l *logging.Logger) Option {
	return optionFunc(func(o *options) error {
		o.logger = l
		return nil
	})
}

// Config is the resolved, validated configuration for a Loop.
type Config struct {
	Backend        Backend
	RingEntries    uint
	MaxWatchers    int
	RateLimitRates RateLimitPolicy
	Logger         *logging.Logger
}

// Resolve applies opts over the defaults and returns a validated Config.
func Resolve(opts ...Option) (*Config, error) {
	o := &options{
		backend:     BackendAuto,
		ringEntries: 256,
		maxWatchers: 0,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.apply(o); err != nil {
			return nil, err
		}
	}
	if o.logger == nil {
		o.logger = logging.NewDiscard()
	}
	return &Config{
		Backend:        o.backend,
		RingEntries:    o.ringEntries,
		MaxWatchers:    o.maxWatchers,
		RateLimitRates: o.rateLimitRates,
		Logger:         o.logger,
	}, nil
}

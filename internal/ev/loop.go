// Package ev implements the portable event loop: a single API working
// over three interchangeable backends (a Linux io_uring completion
// ring, Linux epoll readiness notification, and BSD kqueue readiness
// notification), with MAIN/WORKER/PERIODIC/SIGNAL watcher lifecycles.
package ev

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/joeycumines/go-catrate"

	"github.com/Userfrom1995/pgagroal/internal/config"
	"github.com/Userfrom1995/pgagroal/internal/logging"
)

// Loop is the process-wide (one per post-fork child) event loop
// singleton. Operations on it must come from the goroutine running Run,
// except Break, which is safe to call from any goroutine (and, in the
// Go port, from a signal-notification dispatch, which is the closest
// analogue to the original's signal-handler safety requirement).
type Loop struct {
	cfg     *config.Config
	log     *logging.Logger
	backend Backend
	limiter *catrate.Limiter
	state   *fastState

	mu       sync.Mutex
	events   []*Watcher
	signals  *signalTable
	running  bool
}

// Init constructs and initializes a Loop, resolving and initializing
// the backend selected by cfg.Backend. On backend init failure the loop
// stays in StateUninit and Init returns an error.
func Init(cfg *config.Config) (*Loop, error) {
	if cfg == nil {
		var err error
		cfg, err = config.Resolve()
		if err != nil {
			return nil, err
		}
	}
	l := &Loop{
		cfg:     cfg,
		log:     cfg.Logger,
		limiter: newLimiter(cfg.RateLimitRates),
		state:   newFastState(),
		signals: newSignalTable(),
	}

	backend, err := newBackend(cfg.Backend)
	if err != nil {
		return nil, err
	}
	if err := backend.Init(l); err != nil {
		return nil, fmt.Errorf("ev: backend init: %w", err)
	}
	l.backend = backend
	l.state.Store(StateReady)
	return l, nil
}

// Destroy tears down the loop: any READY/RUNNING/STOPPING state
// transitions to DESTROYED. Idempotent on the second-and-later call.
// Any WORKER watchers still present have their send descriptor closed
// and their owned buffer released.
func (l *Loop) Destroy() error {
	if l.state.Load() == StateDestroyed {
		return nil
	}
	l.mu.Lock()
	for _, w := range l.events {
		if w.Kind == KindWorker {
			if f := os.NewFile(uintptr(w.SndFD), "snd"); f != nil {
				f.Close()
			}
			w.releaseBuffer()
		}
	}
	l.events = nil
	l.mu.Unlock()

	l.signals.shutdown()

	var err error
	if l.backend != nil {
		err = l.backend.Destroy()
	}
	l.state.Store(StateDestroyed)
	return err
}

// Fork performs post-fork child fix-up: the backend reinitializes or
// preserves its handle as its own semantics require.
func (l *Loop) Fork() error {
	if l.backend == nil {
		return ErrLoopNotReady
	}
	return l.backend.Fork()
}

// Run blocks, pumping events until Break is called (or a FATAL
// condition is hit), then returns. It may be called again after
// returning, so long as the loop hasn't been destroyed.
func (l *Loop) Run() (Status, error) {
	if !l.state.TryTransition(StateReady, StateRunning) {
		if l.state.Load() != StateRunning {
			return ERROR, ErrLoopNotReady
		}
	}
	l.mu.Lock()
	l.running = true
	l.mu.Unlock()

	var finalStatus Status = OK
	var finalErr error
	for l.isRunning() {
		status, err := l.backend.Step(l)
		if status == FATAL {
			l.log.Error("loop", "backend step returned fatal status", "err", err)
			finalStatus, finalErr = FATAL, err
			break
		}
		if err != nil {
			l.log.Warn("loop", "backend step returned recoverable error", "err", err)
		}
	}

	l.state.TryTransition(StateRunning, StateStopping)
	l.state.TryTransition(StateStopping, StateReady)
	return finalStatus, finalErr
}

func (l *Loop) isRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Break sets the running flag to false. Safe to call concurrently with
// Run, including from the signal-dispatch goroutine — it only stores to
// a mutex-guarded bool, mirroring the original's atomic-store
// signal-safety contract (Go gives us no weaker primitive that's both
// simpler and still race-free across goroutines).
func (l *Loop) Break() {
	l.mu.Lock()
	l.running = false
	l.mu.Unlock()
}

// IOStart registers a MAIN or WORKER watcher, appending it to the
// bounded events list.
func (l *Loop) IOStart(w *Watcher) error {
	if w.Kind != KindMain && w.Kind != KindWorker {
		return ErrUnknownWatcherKind
	}
	l.mu.Lock()
	if len(l.events) >= MaxEvents {
		l.mu.Unlock()
		return ErrTooManyWatchers
	}
	if w.registered {
		l.mu.Unlock()
		return ErrWatcherAlreadyStart
	}
	l.mu.Unlock()

	if err := l.backend.IOStart(w); err != nil {
		return err
	}
	l.mu.Lock()
	l.events = append(l.events, w)
	w.registered = true
	l.mu.Unlock()
	return nil
}

// IOStop deregisters a MAIN or WORKER watcher, swap-removing it from
// the events list.
func (l *Loop) IOStop(w *Watcher) error {
	if !w.registered {
		return ErrWatcherNotStarted
	}
	err := l.backend.IOStop(w)

	l.mu.Lock()
	for i, ew := range l.events {
		if ew == w {
			last := len(l.events) - 1
			l.events[i] = l.events[last]
			l.events[last] = nil
			l.events = l.events[:last]
			break
		}
	}
	l.mu.Unlock()

	w.registered = false
	if w.Kind == KindWorker {
		w.releaseBuffer()
	}
	return err
}

// PeriodicStart arms an interval timer.
func (l *Loop) PeriodicStart(w *Watcher) error {
	if w.Kind != KindPeriodic {
		return ErrUnknownWatcherKind
	}
	if err := l.backend.PeriodicStart(w); err != nil {
		return err
	}
	w.registered = true
	return nil
}

// PeriodicStop disarms an interval timer.
func (l *Loop) PeriodicStop(w *Watcher) error {
	if !w.registered {
		return ErrWatcherNotStarted
	}
	err := l.backend.PeriodicStop(w)
	w.registered = false
	return err
}

// SignalStart installs a userspace signal handler that re-enters the
// loop via the process-wide signal table.
func (l *Loop) SignalStart(w *Watcher) error {
	if w.Kind != KindSignal {
		return ErrUnknownWatcherKind
	}
	l.signals.register(w)
	w.registered = true
	return nil
}

// SignalStop removes a signal watcher from the table.
func (l *Loop) SignalStop(w *Watcher) error {
	if !w.registered {
		return ErrWatcherNotStarted
	}
	l.signals.unregister(w)
	w.registered = false
	return nil
}

// PrepSubmitSend sends buf synchronously on w's send descriptor,
// delegating to the active backend (see Backend.PrepSubmitSend's doc
// for why this blocks by design).
func (l *Loop) PrepSubmitSend(w *Watcher, buf []byte) (int, error) {
	return l.backend.PrepSubmitSend(w, buf)
}

// WaitRecv drains one completion (completion backend only).
func (l *Loop) WaitRecv(timeout time.Duration) (Status, error) {
	return l.backend.WaitRecv(timeout)
}

// EventsCount returns the number of currently-registered MAIN/WORKER
// watchers (events_nr in the original model).
func (l *Loop) EventsCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// State returns the loop's current lifecycle state.
func (l *Loop) State() LoopState { return l.state.Load() }

// Limiter exposes the configured admission-control limiter (nil if
// unlimited). Backends consult it before dispatching PERIODIC ticks;
// WORKER receive re-arms do not consult it.
func (l *Loop) Limiter() *catrate.Limiter { return l.limiter }

// Logger exposes the loop's structured logger for backend use.
func (l *Loop) Logger() *logging.Logger { return l.log }

package ev

import (
	"errors"
	"time"
)

// MaxEvents bounds the number of watchers a loop may hold registered at
// once; inserting beyond it fails rather than truncating silently.
const MaxEvents = 4096

var (
	ErrUnknownBackend      = errors.New("ev: no backend available for the requested selection on this platform")
	ErrUnknownWatcherKind  = errors.New("ev: unknown watcher kind")
	ErrTooManyWatchers     = errors.New("ev: MaxEvents exceeded")
	ErrWatcherNotStarted   = errors.New("ev: watcher is not registered")
	ErrWatcherAlreadyStart = errors.New("ev: watcher is already registered")
	ErrLoopNotReady        = errors.New("ev: loop is not in a state that accepts this operation")
	ErrQueueOverflow       = errors.New("ev: backend completion/submission queue overflow")
	ErrFDOutOfRange        = errors.New("ev: fd out of range for direct-indexed backend table")
)

// Backend is the capability set a loop delegates to: exactly the
// operations spec.md's back-end selection table names. One
// implementation is chosen at Init time and reused for the loop's
// lifetime. Each platform compiles in the backends it supports (io_uring
// and epoll on Linux, kqueue on BSD/Darwin; no dynamic linking), and one
// of them is selected at runtime by internal/config.Backend.
type Backend interface {
	Init(loop *Loop) error
	Destroy() error
	Fork() error

	// Step runs one iteration of the backend's wait-and-dispatch loop,
	// blocking up to the backend's own idle deadline. It returns OK on
	// a normal (possibly empty) pass, FATAL on an unrecoverable
	// condition (e.g. completion-queue overflow) that should break the
	// loop.
	Step(loop *Loop) (Status, error)

	IOStart(w *Watcher) error
	IOStop(w *Watcher) error

	PeriodicStart(w *Watcher) error
	PeriodicStop(w *Watcher) error

	// PrepSubmitSend sends buf synchronously on the watcher's send
	// descriptor and returns the number of bytes sent. On the
	// completion backend this enqueues a send, submits, and waits for
	// the completion; on readiness backends it is a direct blocking
	// write. Both are intentionally synchronous escape hatches (see
	// DESIGN.md's Open Question resolution).
	PrepSubmitSend(w *Watcher, buf []byte) (int, error)

	// WaitRecv drains one completion. Only meaningful on the
	// completion backend; readiness backends return immediately with
	// OK since they have no separate completion queue to drain.
	WaitRecv(timeout time.Duration) (Status, error)
}

// idleDeadline returns the backend wait deadline: ~100µs for the
// completion backend, ~10ms for readiness backends, matching the
// per-backend tick rates so Break is observed promptly either way.
func idleDeadline(completion bool) time.Duration {
	if completion {
		return 100 * time.Microsecond
	}
	return 10 * time.Millisecond
}

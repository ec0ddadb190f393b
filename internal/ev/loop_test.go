package ev

import (
	"testing"
	"time"

	"github.com/Userfrom1995/pgagroal/internal/config"
)

// fakeBackend is a minimal Backend double used to exercise Loop's own
// bookkeeping (state transitions, events_nr, Break latency) without any
// platform-specific poller underneath.
type fakeBackend struct {
	stepCount int
}

func (b *fakeBackend) Init(*Loop) error                             { return nil }
func (b *fakeBackend) Destroy() error                               { return nil }
func (b *fakeBackend) Fork() error                                  { return nil }
func (b *fakeBackend) IOStart(*Watcher) error                       { return nil }
func (b *fakeBackend) IOStop(*Watcher) error                        { return nil }
func (b *fakeBackend) PeriodicStart(*Watcher) error                 { return nil }
func (b *fakeBackend) PeriodicStop(*Watcher) error                  { return nil }
func (b *fakeBackend) PrepSubmitSend(*Watcher, []byte) (int, error) { return 0, nil }
func (b *fakeBackend) WaitRecv(time.Duration) (Status, error)       { return OK, nil }

func (b *fakeBackend) Step(loop *Loop) (Status, error) {
	b.stepCount++
	time.Sleep(time.Millisecond)
	return OK, nil
}

func newTestLoop(t *testing.T) *Loop {
	t.Helper()
	cfg, err := config.Resolve()
	if err != nil {
		t.Fatalf("config.Resolve: %v", err)
	}
	l := &Loop{cfg: cfg, log: cfg.Logger, state: newFastState(), signals: newSignalTable()}
	l.backend = &fakeBackend{}
	l.state.Store(StateReady)
	return l
}

func TestLoop_BreakStopsRunPromptly(t *testing.T) {
	l := newTestLoop(t)

	done := make(chan struct{})
	go func() {
		l.Run()
		close(done)
	}()

	// Give the loop a couple of Step iterations, then break it from a
	// goroutine standing in for a signal-dispatch callback.
	time.Sleep(5 * time.Millisecond)
	l.Break()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not return within one wait interval of Break")
	}

	if got := l.State(); got != StateReady {
		t.Fatalf("state after Run returns = %v, want READY (stopped, re-runnable)", got)
	}
}

func TestLoop_IOStartStop_EventsCount(t *testing.T) {
	l := newTestLoop(t)

	const n = 8
	watchers := make([]*Watcher, n)
	for i := range watchers {
		watchers[i] = NewWorkerWatcher(i, i, nil)
		if err := l.IOStart(watchers[i]); err != nil {
			t.Fatalf("IOStart(%d): %v", i, err)
		}
	}
	if got := l.EventsCount(); got != n {
		t.Fatalf("EventsCount() = %d, want %d after starting %d watchers", got, n, n)
	}

	for _, w := range watchers {
		if err := l.IOStop(w); err != nil {
			t.Fatalf("IOStop: %v", err)
		}
	}
	if got := l.EventsCount(); got != 0 {
		t.Fatalf("EventsCount() = %d, want 0 after stopping every watcher", got)
	}
}

func TestLoop_IOStart_RejectsWrongKind(t *testing.T) {
	l := newTestLoop(t)
	w := NewPeriodicWatcher(10, nil)
	if err := l.IOStart(w); err != ErrUnknownWatcherKind {
		t.Fatalf("IOStart(PERIODIC) err = %v, want ErrUnknownWatcherKind", err)
	}
}

func TestLoop_IOStart_RejectsDoubleStart(t *testing.T) {
	l := newTestLoop(t)
	w := NewWorkerWatcher(1, 1, nil)
	if err := l.IOStart(w); err != nil {
		t.Fatalf("first IOStart: %v", err)
	}
	if err := l.IOStart(w); err != ErrWatcherAlreadyStart {
		t.Fatalf("second IOStart err = %v, want ErrWatcherAlreadyStart", err)
	}
}

func TestLoop_IOStop_RejectsUnstarted(t *testing.T) {
	l := newTestLoop(t)
	w := NewWorkerWatcher(1, 1, nil)
	if err := l.IOStop(w); err != ErrWatcherNotStarted {
		t.Fatalf("IOStop on unstarted watcher err = %v, want ErrWatcherNotStarted", err)
	}
}

func TestLoop_MaxEvents(t *testing.T) {
	l := newTestLoop(t)
	for i := 0; i < MaxEvents; i++ {
		w := NewWorkerWatcher(i, i, nil)
		if err := l.IOStart(w); err != nil {
			t.Fatalf("IOStart(%d): %v", i, err)
		}
	}
	over := NewWorkerWatcher(MaxEvents, MaxEvents, nil)
	if err := l.IOStart(over); err != ErrTooManyWatchers {
		t.Fatalf("IOStart beyond MaxEvents err = %v, want ErrTooManyWatchers", err)
	}
}

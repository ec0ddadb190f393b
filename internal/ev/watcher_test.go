package ev

import "testing"

func TestNewMainWatcher(t *testing.T) {
	w := NewMainWatcher(5, nil)
	if w.Kind != KindMain {
		t.Fatalf("Kind = %v, want MAIN", w.Kind)
	}
	if w.ListenFD != 5 {
		t.Fatalf("ListenFD = %d, want 5", w.ListenFD)
	}
	if w.ClientFD != -1 {
		t.Fatalf("ClientFD = %d, want -1 before any accept", w.ClientFD)
	}
	if w.Registered() {
		t.Fatalf("a fresh watcher must not be Registered")
	}
}

func TestNewWorkerWatcher_BuffersLazy(t *testing.T) {
	w := NewWorkerWatcher(3, 4, nil)
	if w.Kind != KindWorker {
		t.Fatalf("Kind = %v, want WORKER", w.Kind)
	}
	if w.Msg != nil {
		t.Fatalf("Msg must be nil until the backend lazily allocates it")
	}
	w.Msg = AllocMessage()
	w.releaseBuffer()
	if w.Msg != nil {
		t.Fatalf("releaseBuffer must clear Msg")
	}
	// releasing twice must not panic.
	w.releaseBuffer()
}

func TestNewPeriodicWatcher(t *testing.T) {
	w := NewPeriodicWatcher(250, nil)
	if w.Kind != KindPeriodic || w.IntervalMS != 250 {
		t.Fatalf("got Kind=%v IntervalMS=%d, want PERIODIC/250", w.Kind, w.IntervalMS)
	}
}

func TestNewSignalWatcher(t *testing.T) {
	w := NewSignalWatcher(2, nil)
	if w.Kind != KindSignal || w.SignalNum != 2 {
		t.Fatalf("got Kind=%v SignalNum=%d, want SIGNAL/2", w.Kind, w.SignalNum)
	}
}

func TestWatcherKind_String(t *testing.T) {
	cases := map[WatcherKind]string{
		KindMain:            "MAIN",
		KindWorker:          "WORKER",
		KindPeriodic:        "PERIODIC",
		KindSignal:          "SIGNAL",
		WatcherKind(99):     "WatcherKind(99)",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", k, got, want)
		}
	}
}

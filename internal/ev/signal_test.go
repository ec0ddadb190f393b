package ev

import (
	"syscall"
	"testing"
	"time"
)

func TestSignalTable_DispatchesRegisteredSignal(t *testing.T) {
	table := newSignalTable()
	defer table.shutdown()

	fired := make(chan struct{}, 1)
	w := NewSignalWatcher(int(syscall.SIGUSR1), func() Status {
		fired <- struct{}{}
		return OK
	})
	table.register(w)

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGUSR1); err != nil {
		t.Fatalf("raising SIGUSR1: %v", err)
	}

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatalf("OnSignal was not invoked within 1s of raising the signal")
	}
}

func TestSignalTable_UnregisterRemovesWatcher(t *testing.T) {
	// SIGUSR2's default disposition terminates the process, so this test
	// checks the table's own bookkeeping rather than raising the signal
	// post-unregister (which would kill the test binary the instant the
	// Go runtime's handler for it is torn down).
	table := newSignalTable()
	defer table.shutdown()

	w := NewSignalWatcher(int(syscall.SIGUSR2), nil)
	table.register(w)
	if _, ok := table.watchers[w.SignalNum]; !ok {
		t.Fatalf("watcher missing from table after register")
	}
	table.unregister(w)
	if _, ok := table.watchers[w.SignalNum]; ok {
		t.Fatalf("watcher still present in table after unregister")
	}
}

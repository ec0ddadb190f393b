package ev

import "fmt"

// WatcherKind discriminates the four watcher variants. Replacing the
// original's tagged-union-of-fds with a Go enum means the constructors
// below never produce an unknown discriminant. Backend dispatch switches
// have no default case, so a Kind outside these four is ignored there;
// starting a watcher of the wrong kind returns ErrUnknownWatcherKind.
type WatcherKind int

const (
	KindMain WatcherKind = iota
	KindWorker
	KindPeriodic
	KindSignal
)

func (k WatcherKind) String() string {
	switch k {
	case KindMain:
		return "MAIN"
	case KindWorker:
		return "WORKER"
	case KindPeriodic:
		return "PERIODIC"
	case KindSignal:
		return "SIGNAL"
	default:
		return fmt.Sprintf("WatcherKind(%d)", int(k))
	}
}

// Watcher is the discriminated union of the four registerable event
// sources. Unlike the C original's aliased fd union (the source of the
// BSD __fds[0]/__fds[1] bug recorded in DESIGN.md), every field here is
// named and independent; code must consult Kind and read only the
// fields that variant owns.
type Watcher struct {
	Kind WatcherKind

	// MAIN fields.
	ListenFD  int
	ClientFD  int
	OnAccept  func(w *Watcher) Status

	// WORKER fields.
	RcvFD  int
	SndFD  int
	Msg    Message
	OnData func(w *Watcher) Status

	// PERIODIC fields.
	IntervalMS int64
	OnTick     func() Status

	// SIGNAL fields.
	SignalNum int
	OnSignal  func() Status

	// registered is true while the watcher is installed with the
	// backend, between a successful *_start and the matching *_stop.
	registered bool
	// backendData is opaque per-backend bookkeeping (e.g. the kqueue
	// backend's EVFILT_TIMER ident for a PERIODIC watcher).
	backendData any
}

// NewMainWatcher constructs a MAIN watcher listening on listenFD.
func NewMainWatcher(listenFD int, onAccept func(w *Watcher) Status) *Watcher {
	return &Watcher{Kind: KindMain, ListenFD: listenFD, ClientFD: -1, OnAccept: onAccept}
}

// NewWorkerWatcher constructs a WORKER watcher over a receive/send
// descriptor pair. The message buffer is allocated lazily on start, not
// here, matching the "lazily allocate if absent" contract.
func NewWorkerWatcher(rcvFD, sndFD int, onData func(w *Watcher) Status) *Watcher {
	return &Watcher{Kind: KindWorker, RcvFD: rcvFD, SndFD: sndFD, OnData: onData}
}

// NewPeriodicWatcher constructs a PERIODIC watcher firing every interval.
func NewPeriodicWatcher(intervalMS int64, onTick func() Status) *Watcher {
	return &Watcher{Kind: KindPeriodic, IntervalMS: intervalMS, OnTick: onTick}
}

// NewSignalWatcher constructs a SIGNAL watcher for signalNum.
func NewSignalWatcher(signalNum int, onSignal func() Status) *Watcher {
	return &Watcher{Kind: KindSignal, SignalNum: signalNum, OnSignal: onSignal}
}

// Registered reports whether the watcher is currently installed.
func (w *Watcher) Registered() bool { return w.registered }

// releaseBuffer drops a WORKER watcher's owned message buffer exactly
// once, on stop or loop destroy.
func (w *Watcher) releaseBuffer() {
	if w.Msg != nil {
		FreeMessage(w.Msg)
		w.Msg = nil
	}
}

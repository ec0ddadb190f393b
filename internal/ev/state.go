package ev

import "sync/atomic"

// LoopState is the loop's lifecycle state.
//
//	UNINIT -> READY       [Init, on backend init success]
//	READY -> RUNNING      [Run]
//	RUNNING -> STOPPING   [Break observed]
//	STOPPING -> READY     [Run returns; loop may be Run again]
//	any -> DESTROYED      [Destroy]
type LoopState uint64

const (
	StateUninit LoopState = iota
	StateReady
	StateRunning
	StateStopping
	StateDestroyed
)

func (s LoopState) String() string {
	switch s {
	case StateUninit:
		return "UNINIT"
	case StateReady:
		return "READY"
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	case StateDestroyed:
		return "DESTROYED"
	default:
		return "UNKNOWN"
	}
}

// fastState is a lock-free state machine, cache-line padded to avoid
// false sharing between the goroutine driving Run and any goroutine
// calling Break/Destroy concurrently.
type fastState struct { // betteralign:ignore
	_ [64]byte
	v atomic.Uint64
	_ [56]byte
}

func newFastState() *fastState {
	s := &fastState{}
	s.v.Store(uint64(StateUninit))
	return s
}

func (s *fastState) Load() LoopState { return LoopState(s.v.Load()) }

func (s *fastState) Store(state LoopState) { s.v.Store(uint64(state)) }

func (s *fastState) TryTransition(from, to LoopState) bool {
	return s.v.CompareAndSwap(uint64(from), uint64(to))
}

func (s *fastState) IsTerminal() bool { return s.Load() == StateDestroyed }

func (s *fastState) CanAcceptWork() bool {
	state := s.Load()
	return state == StateReady || state == StateRunning
}

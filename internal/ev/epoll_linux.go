//go:build linux

package ev

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// maxFDs bounds direct-indexed fd lookup, matching the teacher's epoll
// poller's "direct array indexing instead of map for O(1) lookup"
// design.
const maxFDs = 65536

// epollBackend is the Linux readiness-notification backend. Adapted
// from the teacher's FastPoller: same direct-indexed fd table, version
// counter, and copy-under-RLock-then-dispatch-outside-lock pattern, but
// keyed on *Watcher (to dispatch MAIN/WORKER/PERIODIC semantics) rather
// than a generic IOCallback.
type epollBackend struct {
	epfd     int
	version  atomic.Uint64
	eventBuf [256]unix.EpollEvent
	fds      [maxFDs]*Watcher
	timerFDs map[*Watcher]int
	fdMu     sync.RWMutex
	closed   atomic.Bool
}

func newEpollBackend() Backend { return &epollBackend{timerFDs: make(map[*Watcher]int)} }

func (p *epollBackend) Init(loop *Loop) error {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return err
	}
	p.epfd = epfd
	return nil
}

func (p *epollBackend) Destroy() error {
	p.closed.Store(true)
	return unix.Close(p.epfd)
}

func (p *epollBackend) Fork() error {
	// epoll fds are not inherited across fork+exec in a meaningful way
	// for this loop's purposes; nothing to reinitialize since the
	// CLOEXEC fd survives a bare fork and the child re-registers its
	// own watchers from scratch via IOStart.
	return nil
}

func (p *epollBackend) fdFor(w *Watcher) int {
	switch w.Kind {
	case KindMain:
		return w.ListenFD
	case KindWorker:
		return w.RcvFD
	default:
		return -1
	}
}

func (p *epollBackend) IOStart(w *Watcher) error {
	fd := p.fdFor(w)
	if fd < 0 || fd >= maxFDs {
		return ErrFDOutOfRange
	}
	if w.Kind == KindWorker && w.Msg == nil {
		w.Msg = AllocMessage()
	}

	p.fdMu.Lock()
	p.fds[fd] = w
	p.version.Add(1)
	p.fdMu.Unlock()

	ev := &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, ev)
	if err == unix.EEXIST {
		// already registered: fall back to modify, per spec.
		err = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, ev)
	}
	if err != nil {
		p.fdMu.Lock()
		p.fds[fd] = nil
		p.fdMu.Unlock()
		return err
	}
	return nil
}

func (p *epollBackend) IOStop(w *Watcher) error {
	fd := p.fdFor(w)
	if fd < 0 || fd >= maxFDs {
		return ErrFDOutOfRange
	}
	p.fdMu.Lock()
	p.fds[fd] = nil
	p.version.Add(1)
	p.fdMu.Unlock()

	err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	if err == unix.ENOENT || err == unix.EBADF || err == unix.EINVAL {
		// fd already closed or never registered: non-fatal per spec.
		return nil
	}
	return err
}

func (p *epollBackend) PeriodicStart(w *Watcher) error {
	tfd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_CLOEXEC)
	if err != nil {
		return err
	}
	interval := time.Duration(w.IntervalMS) * time.Millisecond
	spec := unix.ItimerSpec{
		Interval: unix.NsecToTimespec(interval.Nanoseconds()),
		Value:    unix.NsecToTimespec(interval.Nanoseconds()),
	}
	if err := unix.TimerfdSettime(tfd, 0, &spec, nil); err != nil {
		unix.Close(tfd)
		return err
	}

	p.fdMu.Lock()
	p.fds[tfd] = w
	p.timerFDs[w] = tfd
	p.version.Add(1)
	p.fdMu.Unlock()

	ev := &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(tfd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, tfd, ev); err != nil {
		p.fdMu.Lock()
		p.fds[tfd] = nil
		delete(p.timerFDs, w)
		p.fdMu.Unlock()
		unix.Close(tfd)
		return err
	}
	return nil
}

func (p *epollBackend) PeriodicStop(w *Watcher) error {
	p.fdMu.Lock()
	tfd, ok := p.timerFDs[w]
	if ok {
		delete(p.timerFDs, w)
		p.fds[tfd] = nil
	}
	p.version.Add(1)
	p.fdMu.Unlock()
	if !ok {
		return ErrWatcherNotStarted
	}
	unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, tfd, nil)
	return unix.Close(tfd)
}

func (p *epollBackend) PrepSubmitSend(w *Watcher, buf []byte) (int, error) {
	return unix.Write(w.SndFD, buf)
}

func (p *epollBackend) WaitRecv(time.Duration) (Status, error) {
	// The readiness backend has no separate completion queue; a
	// completion is "drained" implicitly by the next Step's dispatch.
	return OK, nil
}

func (p *epollBackend) Step(loop *Loop) (Status, error) {
	v := p.version.Load()
	n, err := unix.EpollWait(p.epfd, p.eventBuf[:], int(idleDeadline(false).Milliseconds()))
	if err != nil {
		if err == unix.EINTR {
			return OK, nil
		}
		return ERROR, err
	}
	if p.version.Load() != v {
		// Registration table changed mid-wait; discard this batch
		// rather than dispatch against possibly-stale fd ownership.
		return OK, nil
	}

	for i := 0; i < n; i++ {
		fd := int(p.eventBuf[i].Fd)
		if fd < 0 || fd >= maxFDs {
			continue
		}
		p.fdMu.RLock()
		w := p.fds[fd]
		p.fdMu.RUnlock()
		if w == nil {
			continue
		}
		p.dispatch(loop, w, fd)
	}
	return OK, nil
}

func (p *epollBackend) dispatch(loop *Loop, w *Watcher, fd int) {
	switch w.Kind {
	case KindMain:
		clientFD, _, err := unix.Accept(fd)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			loop.log.Warn("epoll", "accept failed", "err", err)
			return
		}
		w.ClientFD = clientFD
		if w.OnAccept != nil {
			w.OnAccept(w)
		}
	case KindWorker:
		if w.Msg == nil {
			w.Msg = AllocMessage()
		}
		n, err := unix.Read(fd, w.Msg.Data())
		if err != nil || n <= 0 {
			w.Msg.SetLength(0)
			if w.OnData != nil {
				w.OnData(w)
			}
			return
		}
		w.Msg.SetLength(n)
		if w.OnData != nil {
			w.OnData(w)
		}
	case KindPeriodic:
		var buf [8]byte
		unix.Read(fd, buf[:])
		if !admit(loop.limiter, w) {
			return
		}
		if w.OnTick != nil {
			w.OnTick()
		}
	}
}

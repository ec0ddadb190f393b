//go:build darwin || freebsd || netbsd || openbsd || dragonfly

package ev

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// kqueueBackend is the BSD/Darwin readiness-notification backend.
// Adapted from the teacher's kqueue FastPoller: a dynamically-growing
// fd table and the same copy-under-RLock-then-dispatch-outside-lock
// pattern, but keyed on *Watcher. PERIODIC watchers use EVFILT_TIMER
// instead of a platform timer-fd (BSD has no timerfd).
//
// Unlike the original C source's BSD stop path, which read the fd to
// delete through a __fds[0]/__fds[1] anonymous-union alias (DESIGN.md
// records this as a resolved Open Question), fdFor below always reads
// the single named field the watcher's Kind actually owns — there is
// no alias, so there is no "other side" to accidentally delete.
type kqueueBackend struct {
	kq       int
	eventBuf [256]unix.Kevent_t
	fds      []*Watcher
	timers   map[uint64]*Watcher
	fdMu     sync.RWMutex
}

func newKqueueBackend() Backend { return &kqueueBackend{} }

func (p *kqueueBackend) Init(loop *Loop) error {
	kq, err := unix.Kqueue()
	if err != nil {
		return err
	}
	unix.CloseOnExec(kq)
	p.kq = kq
	p.fds = make([]*Watcher, 4096)
	p.timers = make(map[uint64]*Watcher)
	return nil
}

func (p *kqueueBackend) Destroy() error {
	return unix.Close(p.kq)
}

func (p *kqueueBackend) Fork() error { return nil }

func (p *kqueueBackend) fdFor(w *Watcher) int {
	switch w.Kind {
	case KindMain:
		return w.ListenFD
	case KindWorker:
		return w.RcvFD
	default:
		return -1
	}
}

func (p *kqueueBackend) growLocked(fd int) {
	if fd < len(p.fds) {
		return
	}
	newFds := make([]*Watcher, fd*2+1)
	copy(newFds, p.fds)
	p.fds = newFds
}

func (p *kqueueBackend) IOStart(w *Watcher) error {
	fd := p.fdFor(w)
	if fd < 0 {
		return ErrFDOutOfRange
	}
	if w.Kind == KindWorker && w.Msg == nil {
		w.Msg = AllocMessage()
	}

	p.fdMu.Lock()
	p.growLocked(fd)
	p.fds[fd] = w
	p.fdMu.Unlock()

	kev := unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_ADD | unix.EV_ENABLE}
	if _, err := unix.Kevent(p.kq, []unix.Kevent_t{kev}, nil, nil); err != nil {
		if err == unix.EEXIST {
			// already registered: fall back to an enable-only modify.
			kev.Flags = unix.EV_ENABLE
			if _, err2 := unix.Kevent(p.kq, []unix.Kevent_t{kev}, nil, nil); err2 != nil {
				return err2
			}
			return nil
		}
		p.fdMu.Lock()
		p.fds[fd] = nil
		p.fdMu.Unlock()
		return err
	}
	return nil
}

func (p *kqueueBackend) IOStop(w *Watcher) error {
	fd := p.fdFor(w)
	if fd < 0 {
		return ErrFDOutOfRange
	}
	p.fdMu.Lock()
	if fd < len(p.fds) {
		p.fds[fd] = nil
	}
	p.fdMu.Unlock()

	kev := unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE}
	_, err := unix.Kevent(p.kq, []unix.Kevent_t{kev}, nil, nil)
	if err == unix.ENOENT || err == unix.EBADF || err == unix.EINVAL {
		return nil
	}
	return err
}

// periodicIdentSeq hands out dense kqueue idents for timer watchers,
// offset by periodicIdentBase, so EVFILT_TIMER registrations never
// collide with real fd idents (which start at 0 and grow slowly in
// practice); a dedicated counter keeps this independent of pointer
// representation.
var periodicIdentSeq struct {
	mu   sync.Mutex
	next uint64
}

const periodicIdentBase = uint64(1) << 40

func nextPeriodicIdent() uint64 {
	periodicIdentSeq.mu.Lock()
	defer periodicIdentSeq.mu.Unlock()
	periodicIdentSeq.next++
	return periodicIdentBase + periodicIdentSeq.next
}

func (p *kqueueBackend) PeriodicStart(w *Watcher) error {
	ident := nextPeriodicIdent()
	kev := unix.Kevent_t{
		Ident:  uint64(ident),
		Filter: unix.EVFILT_TIMER,
		Flags:  unix.EV_ADD | unix.EV_ENABLE,
		Data:   int64(w.IntervalMS),
	}
	_, err := unix.Kevent(p.kq, []unix.Kevent_t{kev}, nil, nil)
	if err != nil {
		return err
	}
	p.fdMu.Lock()
	p.timers[ident] = w
	p.fdMu.Unlock()
	w.backendData = ident
	return nil
}

func (p *kqueueBackend) PeriodicStop(w *Watcher) error {
	ident, _ := w.backendData.(uint64)
	kev := unix.Kevent_t{Ident: uint64(ident), Filter: unix.EVFILT_TIMER, Flags: unix.EV_DELETE}
	p.fdMu.Lock()
	delete(p.timers, ident)
	p.fdMu.Unlock()
	_, err := unix.Kevent(p.kq, []unix.Kevent_t{kev}, nil, nil)
	if err == unix.ENOENT {
		return nil
	}
	return err
}

func (p *kqueueBackend) PrepSubmitSend(w *Watcher, buf []byte) (int, error) {
	return unix.Write(w.SndFD, buf)
}

func (p *kqueueBackend) WaitRecv(time.Duration) (Status, error) {
	return OK, nil
}

func (p *kqueueBackend) Step(loop *Loop) (Status, error) {
	deadline := idleDeadline(false)
	ts := unix.NsecToTimespec(deadline.Nanoseconds())
	n, err := unix.Kevent(p.kq, nil, p.eventBuf[:], &ts)
	if err != nil {
		if err == unix.EINTR {
			return OK, nil
		}
		return ERROR, err
	}

	for i := 0; i < n; i++ {
		kev := &p.eventBuf[i]
		if kev.Filter == unix.EVFILT_TIMER {
			p.dispatchTimer(loop, kev)
			continue
		}
		fd := int(kev.Ident)
		p.fdMu.RLock()
		var w *Watcher
		if fd >= 0 && fd < len(p.fds) {
			w = p.fds[fd]
		}
		p.fdMu.RUnlock()
		if w != nil {
			p.dispatchIO(loop, w, kev)
		}
	}
	return OK, nil
}

func (p *kqueueBackend) dispatchIO(loop *Loop, w *Watcher, kev *unix.Kevent_t) {
	switch w.Kind {
	case KindMain:
		clientFD, _, err := unix.Accept(int(kev.Ident))
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			loop.log.Warn("kqueue", "accept failed", "err", err)
			return
		}
		w.ClientFD = clientFD
		if w.OnAccept != nil {
			w.OnAccept(w)
		}
	case KindWorker:
		if kev.Flags&unix.EV_EOF != 0 {
			// BSD EV_EOF reports CLOSED without firing the callback,
			// per spec.
			w.Msg.SetLength(0)
			return
		}
		if w.Msg == nil {
			w.Msg = AllocMessage()
		}
		n, err := unix.Read(int(kev.Ident), w.Msg.Data())
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
	}
}

func (p *kqueueBackend) dispatchTimer(loop *Loop, kev *unix.Kevent_t) {
	p.fdMu.RLock()
	w := p.timers[uint64(kev.Ident)]
	p.fdMu.RUnlock()
	if w == nil {
		return
	}
	if !admit(loop.limiter, w) {
		return
	}
	if w.OnTick != nil {
		w.OnTick()
	}
}

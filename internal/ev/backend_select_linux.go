//go:build linux

package ev

import "github.com/Userfrom1995/pgagroal/internal/config"

// newBackend resolves cfg.Backend to a concrete Backend on Linux:
// BackendAuto prefers the io_uring completion backend and falls back to
// epoll readiness if the kernel doesn't support it.
func newBackend(b config.Backend) (Backend, error) {
	switch b {
	case config.BackendAuto:
		if be, err := newCompletionBackend(); err == nil {
			return be, nil
		}
		return newEpollBackend(), nil
	case config.BackendCompletion:
		return newCompletionBackend()
	case config.BackendReadinessLinux:
		return newEpollBackend(), nil
	default:
		return nil, ErrUnknownBackend
	}
}

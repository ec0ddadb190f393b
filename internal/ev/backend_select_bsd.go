//go:build darwin || freebsd || netbsd || openbsd || dragonfly

package ev

import "github.com/Userfrom1995/pgagroal/internal/config"

// newBackend resolves cfg.Backend to a concrete Backend on BSD-family
// platforms: only the kqueue readiness backend is available, so AUTO
// and the explicit selector both resolve to it.
func newBackend(b config.Backend) (Backend, error) {
	switch b {
	case config.BackendAuto, config.BackendReadinessBSD:
		return newKqueueBackend(), nil
	default:
		return nil, ErrUnknownBackend
	}
}

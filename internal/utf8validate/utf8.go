// Package utf8validate implements a strict, reject-don't-sanitize UTF-8
// check for the authentication path: an ASCII fast path, and full
// per-character legality checking (length, bounds, canonical encoding —
// no overlong or surrogate sequences) for everything else.
package utf8validate

import (
	"unicode/utf8"

	"github.com/Userfrom1995/pgagroal/internal/logging"
)

// Validate checks buf for strict UTF-8 legality. context names the field
// being validated (e.g. a username) purely for diagnostics — the input
// bytes themselves are never logged, so that passwords never reach a log
// sink even at trace level.
//
// On success it returns a heap copy of buf as a string (observationally
// identical for the pure-ASCII fast path and the full multi-byte path).
// On any violation it returns ok=false and no data — there is no
// sanitization or replacement-character substitution.
func Validate(buf []byte, context string, log *logging.Logger) (string, bool) {
	if buf == nil {
		return "", false
	}
	if isASCII(buf) {
		log.Trace("utf8", "input is ASCII fast path", "context", context)
		return string(buf), true
	}

	remaining := buf
	for len(remaining) > 0 {
		r, size := utf8.DecodeRune(remaining)
		if r == utf8.RuneError && size <= 1 {
			// DecodeRune reports size 0 for an empty slice (already
			// excluded above) and size 1 for any illegal encoding: too
			// short, out of range, overlong, or a surrogate half. All of
			// those are rejected outright.
			log.Error("utf8", "invalid UTF-8 sequence, rejecting", "context", context)
			return "", false
		}
		remaining = remaining[size:]
	}

	log.Trace("utf8", "input is valid UTF-8", "context", context)
	return string(buf), true
}

func isASCII(buf []byte) bool {
	for _, b := range buf {
		if b >= 0x80 {
			return false
		}
	}
	return true
}

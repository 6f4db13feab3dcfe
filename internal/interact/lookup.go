package interact

import (
	"github.com/dlibes/goexpect/internal/needle"
	"github.com/dlibes/goexpect/internal/session"
)

// Lookup is a stateful sub-matcher for hooks: a
// hook that needs to recognize a pattern across an arbitrary number of
// On calls (e.g. watching output for a password prompt while otherwise
// passing bytes straight through) accumulates its own buffer rather than
// reusing the Session's, since a hook only sees the bytes routed to it a
// chunk at a time.
type Lookup struct {
	buf []byte
}

// On appends data to the lookup's internal buffer and evaluates pattern
// against everything accumulated so far. It returns non-nil Captures on a
// match (and drops the matched prefix from the internal buffer so a
// single Lookup can be reused to find repeated occurrences), nil with a
// nil error if more data is needed, and a *session.EofError if eof is
// true and no match is possible.
func (l *Lookup) On(data []byte, eof bool, pattern needle.Needle) (*needle.Captures, error) {
	l.buf = append(l.buf, data...)

	f := pattern.Find(l.buf, eof)
	switch f.Kind {
	case needle.Match:
		examined := append([]byte(nil), l.buf[:f.End]...)
		caps := needle.NewCaptures(examined, f)
		l.buf = append([]byte(nil), l.buf[f.End:]...)
		return &caps, nil
	case needle.NoMatchPossible:
		residual := append([]byte(nil), l.buf...)
		l.buf = nil
		return nil, &session.EofError{Residual: residual}
	default:
		return nil, nil
	}
}

// Reset discards any partial match progress.
func (l *Lookup) Reset() { l.buf = nil }

// Package interact implements the bidirectional relay between a human
// terminal (or any byte source/sink) and a driven Session: it runs until
// the escape sequence appears on input, the child exits, or a hook asks
// it to stop.
package interact

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dlibes/goexpect/internal/ptyproc"
	"github.com/dlibes/goexpect/internal/session"
	"golang.org/x/term"
)

// interactPollInterval bounds the sleep a relay turn takes when neither
// side had bytes to move.
const interactPollInterval = 10 * time.Millisecond

// HookContext is passed to an input/output hook. Data may be reassigned
// by the hook to change what is (or isn't, if Consumed) passed through.
// State is the opaque value supplied via WithState — callers that want
// mutation across calls should pass a pointer.
type HookContext struct {
	Data  []byte
	Eof   bool
	State any
}

// Hook observes (and may rewrite or swallow) a chunk of bytes. Returning
// true means "consume these bytes; do not pass them on"; false means
// "pass through as-is (possibly Data-modified)". A returned error stops
// the Interact loop, surfaced as *session.InteractHookFailedError.
type Hook func(ctx *HookContext) (consumed bool, err error)

// Option configures an interact Session.
type Option func(*Session)

// WithEscape overrides the default escape sequence (0x1D, Ctrl-]).
func WithEscape(seq []byte) Option {
	return func(s *Session) { s.escape = append([]byte(nil), seq...) }
}

// WithState attaches the opaque user state object hooks receive.
func WithState(state any) Option {
	return func(s *Session) { s.state = state }
}

// WithInputHook installs a hook observing bytes read from the input
// source before they reach the PTY.
func WithInputHook(h Hook) Option {
	return func(s *Session) { s.inputHook = h }
}

// WithOutputHook installs a hook observing bytes read from the PTY before
// they reach the output sink.
func WithOutputHook(h Hook) Option {
	return func(s *Session) { s.outputHook = h }
}

// WithTerminal marks both input and output as attached to the controlling
// terminal at file descriptor fd: Spawn puts it into raw mode for the
// duration of the relay and installs a SIGWINCH handler that forwards
// window-size changes to the PTY.
func WithTerminal(fd int) Option {
	return func(s *Session) {
		s.inputFromTerminal = true
		s.outputToTerminal = true
		s.terminalFd = fd
	}
}

// Session is the relay state: non-owning references to the driven
// session, an input source, an output sink, and the hook/escape
// configuration.
type Session struct {
	sess session.Expecter
	in   io.Reader
	out  io.Writer

	escape []byte
	held   []byte // trailing input bytes that are a partial escape prefix

	state      any
	inputHook  Hook
	outputHook Hook

	inputFromTerminal bool
	outputToTerminal  bool
	terminalFd        int
}

// New builds an interact Session relaying between sess and the given
// input/output streams. Any Expecter works — the relay only needs the
// capability surface, not the concrete session type.
func New(sess session.Expecter, in io.Reader, out io.Writer, opts ...Option) *Session {
	s := &Session{
		sess:   sess,
		in:     in,
		out:    out,
		escape: []byte{0x1D},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Spawn runs the relay loop to completion: each turn
// pulls PTY output (through the output hook) to the sink, pulls input
// (through the input hook, scanning for the escape sequence) to the PTY,
// checks whether the child is still alive, and yields briefly if nothing
// moved. It returns when the escape sequence is observed, the child
// exits, a hook errors, or ctx is cancelled.
func (s *Session) Spawn(ctx context.Context) error {
	var restore func()
	if s.inputFromTerminal && term.IsTerminal(s.terminalFd) {
		oldState, err := term.MakeRaw(s.terminalFd)
		if err == nil {
			restore = func() { term.Restore(s.terminalFd, oldState) }
		}
	}
	if restore != nil {
		defer restore()
	}

	var winchStop func()
	if s.outputToTerminal {
		winchStop = s.installSigwinch()
		defer winchStop()
	}

	ar := newAsyncReader(s.in)
	outBuf := make([]byte, 4096)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		movedAny := false

		if done, err := s.pumpOutput(outBuf, &movedAny); err != nil {
			return err
		} else if done {
			return nil
		}

		stop, err := s.pumpInput(ar, &movedAny)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}

		if !s.sess.Process().IsAlive() && !movedAny {
			return nil
		}

		if !movedAny {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(interactPollInterval):
			}
		}
	}
}

// pumpOutput implements step 1 of the relay turn.
func (s *Session) pumpOutput(buf []byte, movedAny *bool) (done bool, err error) {
	n, rerr := s.sess.TryRead(buf)
	if n > 0 {
		*movedAny = true
		data := append([]byte(nil), buf[:n]...)
		data, consumed, hookErr := runHook(s.outputHook, data, false, s.state)
		if hookErr != nil {
			return false, &session.InteractHookFailedError{Err: hookErr}
		}
		if !consumed {
			if _, werr := s.out.Write(data); werr != nil {
				return false, werr
			}
		}
	}
	if rerr != nil {
		if errors.Is(rerr, io.EOF) {
			// The master reports EOF once the slave side is gone — the
			// child has exited (or closed its terminal); the relay is over.
			return n == 0, nil
		}
		if !errors.Is(rerr, session.ErrWouldBlock) {
			return false, rerr
		}
	}
	return false, nil
}

// pumpInput implements step 2 of the relay turn, including escape-sequence
// scanning across turn boundaries.
func (s *Session) pumpInput(ar *asyncReader, movedAny *bool) (stop bool, err error) {
	data, rerr, got := ar.tryRead()
	if !got || len(data) == 0 {
		return false, nil
	}
	*movedAny = true

	pre, matched := s.splitEscape(data)
	if len(pre) > 0 {
		if err := s.sendThroughHook(pre); err != nil {
			return false, err
		}
	}
	if matched {
		return true, nil
	}
	_ = rerr // an input-source EOF does not itself end Interact; only escape or child exit does
	return false, nil
}

func (s *Session) sendThroughHook(data []byte) error {
	data, consumed, hookErr := runHook(s.inputHook, data, false, s.state)
	if hookErr != nil {
		return &session.InteractHookFailedError{Err: hookErr}
	}
	if consumed {
		return nil
	}
	return s.sess.Send(data)
}

func runHook(h Hook, data []byte, eof bool, state any) ([]byte, bool, error) {
	if h == nil {
		return data, false, nil
	}
	ctx := &HookContext{Data: data, Eof: eof, State: state}
	consumed, err := h(ctx)
	return ctx.Data, consumed, err
}

// splitEscape scans data (prefixed by any partial escape bytes held over
// from the previous turn) for the escape sequence. It returns the bytes
// that should be forwarded to the PTY and whether the full sequence was
// seen. A trailing partial prefix of the sequence is held back — not
// forwarded — until a later chunk either completes it or rules it out,
// so the child never sees half an escape.
func (s *Session) splitEscape(data []byte) (send []byte, matched bool) {
	data = append(s.held, data...)
	s.held = nil

	if idx := bytes.Index(data, s.escape); idx >= 0 {
		return data[:idx], true
	}
	if k := escapeOverlap(data, s.escape); k > 0 {
		s.held = append([]byte(nil), data[len(data)-k:]...)
		data = data[:len(data)-k]
	}
	return data, false
}

// escapeOverlap returns the length of the longest proper prefix of seq
// that is a suffix of data.
func escapeOverlap(data, seq []byte) int {
	max := len(seq) - 1
	if max > len(data) {
		max = len(data)
	}
	for k := max; k > 0; k-- {
		if bytes.Equal(data[len(data)-k:], seq[:k]) {
			return k
		}
	}
	return 0
}

// installSigwinch installs a process-wide SIGWINCH handler forwarding the
// terminal's current size to the PTY, guarded so only one Interact
// Session installs it at a time. It returns a function that restores the
// prior signal disposition.
func (s *Session) installSigwinch() func() {
	if !sigwinchGuard.TryAcquire() {
		return func() {}
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGWINCH)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ch:
				if w, h, err := term.GetSize(s.terminalFd); err == nil {
					s.sess.Process().Resize(ptyproc.WindowSize{Cols: uint16(w), Rows: uint16(h)})
				}
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(ch)
		close(done)
		sigwinchGuard.Release()
	}
}

// guard is a simple single-installation mutex for the process-wide
// SIGWINCH handler.
type guard struct {
	mu  sync.Mutex
	set bool
}

func (g *guard) TryAcquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.set {
		return false
	}
	g.set = true
	return true
}

func (g *guard) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.set = false
}

var sigwinchGuard = &guard{}

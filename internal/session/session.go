// Package session implements the core Expect state machine: it owns a
// PTY endpoint and a buffered non-blocking reader, runs Needle searches
// against the accumulated output, enforces timeouts, and exposes the
// send/expect/check/read surface.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/dlibes/goexpect/internal/buf"
	"github.com/dlibes/goexpect/internal/needle"
	"github.com/dlibes/goexpect/internal/ptyproc"
	"github.com/google/shlex"
)

// ErrWouldBlock is re-exported from ptyproc for callers that use TryRead
// directly against the PTY without going through buf.
var ErrWouldBlock = ptyproc.ErrWouldBlock

// defaultExpectTimeout is the initial expect deadline.
const defaultExpectTimeout = 30 * time.Second

// pollInterval bounds how long Expect sleeps between WouldBlock polls
// while a deadline remains. Kept well under typical short timeouts so
// the reported timeout error fires close to the deadline, not a poll
// tick late.
const pollInterval = 10 * time.Millisecond

// Expecter is the capability surface adapters such as Interact depend
// on. Callers program against this
// interface, not *Session, so test doubles and future session flavors
// compose uniformly.
type Expecter interface {
	Send(data []byte) error
	SendContext(ctx context.Context, data []byte) error
	SendLine(data []byte) error
	SendControl(code ControlCode) error
	Expect(n needle.Needle) (needle.Captures, error)
	ExpectContext(ctx context.Context, n needle.Needle) (needle.Captures, error)
	Check(n needle.Needle) (*needle.Captures, error)
	IsMatched(n needle.Needle) bool
	TryRead(p []byte) (int, error)
	Read(p []byte) (int, error)
	ReadContext(ctx context.Context, p []byte) (int, error)
	ReadLine() (string, error)
	Process() ptyproc.Process
	SetExpectTimeout(d time.Duration, enabled bool)
	SetExpectLazy(lazy bool)
}

// Session is the Expect state machine. Not safe for concurrent use.
type Session struct {
	proc   ptyproc.Process
	reader *buf.Reader
	log    *slog.Logger

	timeout    time.Duration
	hasTimeout bool
	lazy       bool

	initialSize ptyproc.WindowSize
}

var _ Expecter = (*Session)(nil)

// Option configures a Session at construction time.
type Option func(*Session)

// WithTimeout sets the initial expect timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) { s.timeout, s.hasTimeout = d, true }
}

// WithNoTimeout disables the expect deadline entirely.
func WithNoTimeout() Option {
	return func(s *Session) { s.hasTimeout = false }
}

// WithLazy sets the initial expect-lazy flag.
func WithLazy(lazy bool) Option {
	return func(s *Session) { s.lazy = lazy }
}

// WithLogger attaches a logger for diagnostics; it never affects matching
// semantics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithWindowSize sets the PTY geometry at spawn time.
func WithWindowSize(cols, rows uint16) Option {
	return func(s *Session) { s.initialSize = ptyproc.WindowSize{Cols: cols, Rows: rows} }
}

// Spawn parses cmdline as a POSIX shell-style command string and starts
// it under a new PTY. Splitting failures or a missing
// executable on PATH are reported as *CommandParsingError, distinct from
// later I/O errors.
func Spawn(cmdline string, opts ...Option) (*Session, error) {
	argv, err := shlex.Split(cmdline)
	if err != nil {
		return nil, &CommandParsingError{Command: cmdline, Err: err}
	}
	if len(argv) == 0 {
		return nil, &CommandParsingError{Command: cmdline, Err: errors.New("empty command")}
	}
	if _, err := exec.LookPath(argv[0]); err != nil {
		return nil, &CommandParsingError{Command: cmdline, Err: err}
	}
	return SpawnArgv(argv, nil, "", opts...)
}

// Regexp compiles pattern into a regex needle. Invalid patterns come back
// as *RegexCompileError, keeping user-supplied patterns distinguishable
// from I/O failures.
func Regexp(pattern string) (needle.Needle, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, &RegexCompileError{Pattern: pattern, Err: err}
	}
	return needle.Regex(re), nil
}

// SpawnArgv starts a prebuilt argv/env/cwd under a new PTY.
func SpawnArgv(argv []string, env []string, cwd string, opts ...Option) (*Session, error) {
	s := &Session{
		timeout:     defaultExpectTimeout,
		hasTimeout:  true,
		log:         slog.Default(),
		initialSize: ptyproc.WindowSize{Cols: 80, Rows: 24},
	}
	for _, opt := range opts {
		opt(s)
	}
	proc, err := ptyproc.Spawn(argv, env, cwd, s.initialSize)
	if err != nil {
		return nil, fmt.Errorf("session: spawn %v: %w", argv, err)
	}
	s.proc = proc
	s.reader = buf.New(ptySource{proc})
	s.log.Debug("spawned child under pty", "argv", argv)
	return s, nil
}

// ptySource adapts ptyproc.Process to buf.Source, translating the
// would-block sentinel between the two packages' error values.
type ptySource struct{ p ptyproc.Process }

func (s ptySource) ReadNonBlocking(p []byte) (int, error) {
	n, err := s.p.ReadNonBlocking(p)
	if err != nil && errors.Is(err, ptyproc.ErrWouldBlock) {
		return n, buf.ErrWouldBlock
	}
	return n, err
}

// Send writes all of data through the PTY master. No interpretation of
// data is performed.
func (s *Session) Send(data []byte) error {
	_, err := s.proc.Write(data)
	return err
}

// SendContext is Send with a cancellation check before the write begins.
// A write already handed to the PTY master is not interruptible; the
// context only gates entry.
func (s *Session) SendContext(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Send(data)
}

// SendLine sends data followed by a newline.
func (s *Session) SendLine(data []byte) error {
	if err := s.Send(data); err != nil {
		return err
	}
	return s.Send([]byte("\n"))
}

// SendControl sends a single control byte.
func (s *Session) SendControl(code ControlCode) error {
	if !code.Valid() {
		return fmt.Errorf("%w: %#x", ErrControlCodeInvalid, byte(code))
	}
	_, err := s.proc.Write([]byte{code.Byte()})
	return err
}

// Expect is ExpectContext with a background context.
func (s *Session) Expect(n needle.Needle) (needle.Captures, error) {
	return s.ExpectContext(context.Background(), n)
}

// ExpectContext reads and matches until n matches, the needle rules a
// match out, the deadline elapses, or ctx is cancelled. It is the single
// suspension-aware entry point both synchronous and event-loop callers
// funnel through; passing context.Background() recovers the purely
// synchronous contract.
func (s *Session) ExpectContext(ctx context.Context, n needle.Needle) (needle.Captures, error) {
	var deadline time.Time
	if s.hasTimeout {
		deadline = time.Now().Add(s.timeout)
	}
	checked := 0

	for {
		pending := s.reader.Pending()
		eof := s.reader.IsEOF()

		var f needle.Find
		if s.lazy {
			f, checked = lazyFind(n, pending, eof, checked)
		} else {
			f = n.Find(pending, eof)
		}

		switch f.Kind {
		case needle.Match:
			examined := append([]byte(nil), pending[:f.End]...)
			caps := needle.NewCaptures(examined, f)
			s.reader.Consume(f.End)
			return caps, nil

		case needle.NoMatchPossible:
			return needle.Captures{}, &EofError{Residual: append([]byte(nil), pending...)}

		case needle.NeedMore:
			status, err := s.reader.ReadAvailable()
			if err != nil {
				return needle.Captures{}, err
			}
			switch status {
			case buf.Progress, buf.Eof:
				continue
			case buf.WouldBlock:
				if s.hasTimeout && !time.Now().Before(deadline) {
					s.log.Debug("expect deadline elapsed", "buffered", len(pending))
					return needle.Captures{}, ErrExpectTimeout
				}
				select {
				case <-ctx.Done():
					return needle.Captures{}, ctx.Err()
				case <-time.After(pollInterval):
				}
			}
		}
	}
}

// lazyFind re-evaluates n after every newly appended byte: the match
// end corresponds to the
// earliest buffer length at which a match becomes possible. checked is
// the prefix length already examined by a previous call within the same
// Expect invocation; it is returned updated so the caller doesn't re-scan
// bytes it already ruled out.
func lazyFind(n needle.Needle, buf []byte, eof bool, checked int) (needle.Find, int) {
	for l := checked + 1; l <= len(buf); l++ {
		f := n.Find(buf[:l], false)
		if f.Kind == needle.Match {
			return f, l
		}
	}
	checked = len(buf)
	if eof {
		return n.Find(buf, true), checked
	}
	return needle.Find{Kind: needle.NeedMore}, checked
}

// Check is a non-blocking single-shot expect: it pulls whatever is
// immediately available via one ReadAvailable call and asks the needle
// once.
func (s *Session) Check(n needle.Needle) (*needle.Captures, error) {
	if _, err := s.reader.ReadAvailable(); err != nil {
		return nil, err
	}
	pending := s.reader.Pending()
	f := n.Find(pending, s.reader.IsEOF())
	if f.Kind != needle.Match {
		return nil, nil
	}
	examined := append([]byte(nil), pending[:f.End]...)
	caps := needle.NewCaptures(examined, f)
	s.reader.Consume(f.End)
	return &caps, nil
}

// IsMatched is Check discarding the captures.
func (s *Session) IsMatched(n needle.Needle) bool {
	c, err := s.Check(n)
	return err == nil && c != nil
}

// TryRead performs a direct non-blocking read, returning any bytes
// already buffered (from a prior ReadAvailable) before touching the PTY
// so no byte is ever skipped.
func (s *Session) TryRead(p []byte) (int, error) {
	if pending := s.reader.Pending(); len(pending) > 0 {
		n := copy(p, pending)
		s.reader.Consume(n)
		return n, nil
	}
	return s.proc.ReadNonBlocking(p)
}

// Read blocks until at least one byte is available (draining any
// buffered bytes first) or the stream ends.
func (s *Session) Read(p []byte) (int, error) {
	return s.ReadContext(context.Background(), p)
}

// ReadContext is Read cancellable between polls. On cancellation any
// bytes already pulled into the buffer stay there for the next call.
func (s *Session) ReadContext(ctx context.Context, p []byte) (int, error) {
	for {
		if pending := s.reader.Pending(); len(pending) > 0 {
			n := copy(p, pending)
			s.reader.Consume(n)
			return n, nil
		}
		if s.reader.IsEOF() {
			return 0, io.EOF
		}
		status, err := s.reader.ReadAvailable()
		if err != nil {
			return 0, err
		}
		switch status {
		case buf.Progress, buf.Eof:
			continue
		case buf.WouldBlock:
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(pollInterval):
			}
		}
	}
}

// ReadLine blocks until a newline-terminated line is available (or EOF)
// and returns it with the line terminator stripped. Any bytes read past
// the newline are pushed back for the next Read/ReadLine/Expect call.
func (s *Session) ReadLine() (string, error) {
	var line []byte
	tmp := make([]byte, 256)
	for {
		n, err := s.Read(tmp)
		if n > 0 {
			line = append(line, tmp[:n]...)
			if idx := bytes.IndexByte(line, '\n'); idx >= 0 {
				remainder := line[idx+1:]
				if len(remainder) > 0 {
					s.reader.Unread(remainder)
				}
				return strings.TrimSuffix(string(line[:idx]), "\r"), nil
			}
		}
		if err != nil {
			return string(line), err
		}
	}
}

// Process returns the underlying PTY handle for wait/kill/resize access.
func (s *Session) Process() ptyproc.Process { return s.proc }

// Wait reaps the child and returns its exit status. A nonzero exit code
// is a normal outcome, not an error; genuine reaping failures come back
// as *WaitFailedError, and a reap that produced no status at all as
// *UnknownWaitStatusError.
func (s *Session) Wait() (*os.ProcessState, error) {
	state, err := s.proc.Wait()
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return state, &WaitFailedError{Err: err}
		}
	}
	if state == nil {
		return nil, &UnknownWaitStatusError{}
	}
	return state, nil
}

// SetExpectTimeout sets (or disables) the expect deadline.
func (s *Session) SetExpectTimeout(d time.Duration, enabled bool) {
	s.timeout, s.hasTimeout = d, enabled
}

// SetExpectLazy toggles lazy matching.
func (s *Session) SetExpectLazy(lazy bool) { s.lazy = lazy }

// Close releases the PTY and, if the child is still running, signals
// it: a gentle SIGHUP first, then SIGKILL if it is still alive shortly
// after.
func (s *Session) Close() error {
	if s.proc == nil {
		return nil
	}
	if s.proc.IsAlive() {
		_ = s.proc.Signal(syscall.SIGHUP)
		time.Sleep(50 * time.Millisecond)
		if s.proc.IsAlive() {
			_ = s.proc.Signal(syscall.SIGKILL)
		}
	}
	return s.proc.Close()
}

// Package ptyproc wraps github.com/creack/pty into the process handle the
// session layer drives: spawning a child attached to a pseudo-terminal,
// non-blocking reads, writes, signal/resize/wait control.
package ptyproc

import (
	"errors"
	"os"
	"time"
)

// ErrWouldBlock mirrors buf.ErrWouldBlock; duplicated here (rather than
// imported) so this package has no dependency on buf — it only needs to
// satisfy buf.Source structurally, which it does via ReadNonBlocking.
var ErrWouldBlock = errors.New("ptyproc: would block")

// nonblockPollInterval bounds how long a single ReadNonBlocking call may
// take before giving up and reporting WouldBlock — short enough that
// Session.Expect's deadline polling stays responsive, long enough not to
// busy-spin the read syscall.
const nonblockPollInterval = 15 * time.Millisecond

// WindowSize is the PTY's column/row geometry.
type WindowSize struct {
	Cols uint16
	Rows uint16
}

// Process is the handle Session drives: the PTY master plus process
// control. Read/Write operate on the master; the child's stdio is the
// PTY slave, set up by Spawn.
type Process interface {
	// ReadNonBlocking reads whatever is immediately available; it must
	// not block longer than nonblockPollInterval. Returns (0,
	// ErrWouldBlock) if nothing is ready, (n, io.EOF) at end of stream.
	ReadNonBlocking(p []byte) (n int, err error)
	// Write blocks until all of p is written or an error occurs.
	Write(p []byte) (n int, err error)
	// IsAlive reports whether the child has not yet been reaped.
	IsAlive() bool
	// Wait blocks until the child exits and returns its exit status.
	Wait() (*os.ProcessState, error)
	// Signal delivers a signal to the child (no-op if already exited).
	Signal(sig os.Signal) error
	// Resize sets the PTY's window size, which on most platforms
	// generates a SIGWINCH in the child's process group.
	Resize(size WindowSize) error
	// WindowSize returns the PTY's current geometry.
	WindowSize() (WindowSize, error)
	// SetEcho toggles local echo on the PTY line discipline.
	SetEcho(on bool) error
	// Close releases the PTY master file descriptor. Closing a PTY that
	// is already gone is not an error.
	Close() error
}

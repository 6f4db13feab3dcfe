//go:build !windows

package ptyproc

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// unixProcess is the creack/pty-backed Process implementation. A
// background goroutine reaps the child as soon as it exits, so IsAlive
// answers correctly even before anyone calls Wait — probing a zombie
// with signal 0 would otherwise report it alive until reaped.
type unixProcess struct {
	cmd  *exec.Cmd
	ptmx *os.File

	done    chan struct{}
	waitErr error
}

// Spawn starts argv[0] with the given argv/env/cwd attached to a new PTY
// of the given size. env and cwd may be nil/empty to inherit the current
// process's.
func Spawn(argv []string, env []string, cwd string, size WindowSize) (Process, error) {
	if len(argv) == 0 {
		return nil, errors.New("ptyproc: empty argv")
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	if len(env) > 0 {
		cmd.Env = env
	}
	if cwd != "" {
		cmd.Dir = cwd
	}

	ws := &pty.Winsize{Cols: size.Cols, Rows: size.Rows}
	if ws.Cols == 0 {
		ws.Cols = 80
	}
	if ws.Rows == 0 {
		ws.Rows = 24
	}

	ptmx, err := pty.StartWithSize(cmd, ws)
	if err != nil {
		return nil, err
	}
	p := &unixProcess{cmd: cmd, ptmx: ptmx, done: make(chan struct{})}
	go func() {
		p.waitErr = p.cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

// ReadNonBlocking implements Process. It arms a short read deadline on the
// PTY master, issues one Read, and converts a deadline-exceeded error into
// ErrWouldBlock — the file's own blocking mode is otherwise untouched, so
// a caller that wants a genuinely blocking read can clear the deadline
// and call Read directly via the *os.File returned by master-access needs
// (not exposed; Session never needs it).
func (p *unixProcess) ReadNonBlocking(buf []byte) (int, error) {
	if err := p.ptmx.SetReadDeadline(time.Now().Add(nonblockPollInterval)); err != nil {
		// Some platforms/fd types don't support deadlines; wait for
		// readability with poll(2) instead, so an idle PTY still reports
		// ErrWouldBlock rather than blocking the session.
		fds := []unix.PollFd{{Fd: int32(p.ptmx.Fd()), Events: unix.POLLIN}}
		ready, perr := unix.Poll(fds, int(nonblockPollInterval/time.Millisecond))
		if perr != nil && !errors.Is(perr, unix.EINTR) {
			return 0, perr
		}
		if ready == 0 || perr != nil {
			return 0, ErrWouldBlock
		}
	}
	n, err := p.ptmx.Read(buf)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return n, ErrWouldBlock
		}
		if errors.Is(err, io.EOF) {
			return n, io.EOF
		}
		// A PTY whose child has exited reports EIO on the master, the
		// Unix signal that the slave side is gone — treat the same as
		// EOF for Session's purposes.
		if errors.Is(err, unix.EIO) {
			return n, io.EOF
		}
		return n, err
	}
	return n, nil
}

func (p *unixProcess) Write(buf []byte) (int, error) {
	return p.ptmx.Write(buf)
}

func (p *unixProcess) IsAlive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *unixProcess) Wait() (*os.ProcessState, error) {
	<-p.done
	return p.cmd.ProcessState, p.waitErr
}

func (p *unixProcess) Signal(sig os.Signal) error {
	if p.cmd.Process == nil {
		return errors.New("ptyproc: process not started")
	}
	err := p.cmd.Process.Signal(sig)
	if err != nil && errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

func (p *unixProcess) Resize(size WindowSize) error {
	return pty.Setsize(p.ptmx, &pty.Winsize{Cols: size.Cols, Rows: size.Rows})
}

func (p *unixProcess) WindowSize() (WindowSize, error) {
	ws, err := pty.GetsizeFull(p.ptmx)
	if err != nil {
		return WindowSize{}, err
	}
	return WindowSize{Cols: ws.Cols, Rows: ws.Rows}, nil
}

// SetEcho toggles the ECHO line-discipline flag on the PTY via termios —
// the master fd represents the same terminal device the slave/child sees,
// so this is equivalent to running `stty -echo`/`stty echo` against it.
func (p *unixProcess) SetEcho(on bool) error {
	fd := int(p.ptmx.Fd())
	termios, err := unix.IoctlGetTermios(fd, ioctlGets)
	if err != nil {
		return err
	}
	if on {
		termios.Lflag |= unix.ECHO
	} else {
		termios.Lflag &^= unix.ECHO
	}
	return unix.IoctlSetTermios(fd, ioctlSets, termios)
}

func (p *unixProcess) Close() error {
	if p.ptmx == nil {
		return nil
	}
	err := p.ptmx.Close()
	if err != nil && errors.Is(err, os.ErrClosed) {
		return nil
	}
	return err
}

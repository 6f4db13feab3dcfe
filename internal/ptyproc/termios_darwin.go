//go:build darwin

package ptyproc

import "golang.org/x/sys/unix"

const (
	ioctlGets = unix.TIOCGETA
	ioctlSets = unix.TIOCSETA
)

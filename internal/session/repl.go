package session

import (
	"fmt"
	"os/exec"

	"github.com/dlibes/goexpect/internal/needle"
	"github.com/google/uuid"
)

// ExpectPrompt waits for the literal prompt string returned by one of the
// SpawnBash/SpawnSh/SpawnPython/SpawnPowershell helpers.
func (s *Session) ExpectPrompt(prompt string) (needle.Captures, error) {
	return s.Expect(needle.String(prompt))
}

// These wrappers are thin adapters over Spawn, not part of the core
// contract. SpawnBash and SpawnSh disable shell echo (so the caller
// doesn't have to filter it out of every Expect); SpawnPython and
// SpawnPowershell leave echo on. Each installs a unique, hard-to-collide
// prompt marker so ExpectPrompt is reliable even if the shell's rcfiles
// print banners.

func uniquePrompt(prefix string) string {
	return fmt.Sprintf("%s-%s>", prefix, uuid.NewString()[:8])
}

// SpawnBash starts `bash --noprofile --norc -i`, disables echo, and sets
// PS1 to a unique marker. Returns the session and the prompt string to
// pass to ExpectPrompt.
func SpawnBash(opts ...Option) (*Session, string, error) {
	if _, err := exec.LookPath("bash"); err != nil {
		return nil, "", &CommandParsingError{Command: "bash", Err: err}
	}
	prompt := uniquePrompt("goexpect-bash")
	s, err := SpawnArgv([]string{"bash", "--noprofile", "--norc", "-i"}, nil, "", opts...)
	if err != nil {
		return nil, "", err
	}
	if err := s.proc.SetEcho(false); err != nil {
		s.Close()
		return nil, "", err
	}
	if err := s.SendLine([]byte(fmt.Sprintf("PS1='%s'", prompt))); err != nil {
		s.Close()
		return nil, "", err
	}
	return s, prompt, nil
}

// SpawnSh is SpawnBash's POSIX-sh equivalent.
func SpawnSh(opts ...Option) (*Session, string, error) {
	if _, err := exec.LookPath("sh"); err != nil {
		return nil, "", &CommandParsingError{Command: "sh", Err: err}
	}
	prompt := uniquePrompt("goexpect-sh")
	s, err := SpawnArgv([]string{"sh", "-i"}, nil, "", opts...)
	if err != nil {
		return nil, "", err
	}
	if err := s.proc.SetEcho(false); err != nil {
		s.Close()
		return nil, "", err
	}
	if err := s.SendLine([]byte(fmt.Sprintf("PS1='%s'", prompt))); err != nil {
		s.Close()
		return nil, "", err
	}
	return s, prompt, nil
}

// SpawnPython starts `python3 -i -q` with a unique sys.ps1 marker.
func SpawnPython(opts ...Option) (*Session, string, error) {
	bin := "python3"
	if _, err := exec.LookPath(bin); err != nil {
		bin = "python"
		if _, err := exec.LookPath(bin); err != nil {
			return nil, "", &CommandParsingError{Command: "python3", Err: err}
		}
	}
	prompt := uniquePrompt("goexpect-py")
	s, err := SpawnArgv([]string{bin, "-i", "-q"}, nil, "", opts...)
	if err != nil {
		return nil, "", err
	}
	if err := s.SendLine([]byte(fmt.Sprintf("import sys; sys.ps1 = %q; sys.ps2 = ''", prompt))); err != nil {
		s.Close()
		return nil, "", err
	}
	return s, prompt, nil
}

// SpawnPowershell starts `pwsh -NoLogo -NoProfile` with a unique prompt
// function. Provided for API symmetry with the other REPL wrappers; not
// exercised by this repository's Unix-only ptyproc implementation.
func SpawnPowershell(opts ...Option) (*Session, string, error) {
	bin := "pwsh"
	if _, err := exec.LookPath(bin); err != nil {
		return nil, "", &CommandParsingError{Command: bin, Err: err}
	}
	prompt := uniquePrompt("goexpect-ps")
	s, err := SpawnArgv([]string{bin, "-NoLogo", "-NoProfile"}, nil, "", opts...)
	if err != nil {
		return nil, "", err
	}
	if err := s.SendLine([]byte(fmt.Sprintf("function prompt { '%s' }", prompt))); err != nil {
		s.Close()
		return nil, "", err
	}
	return s, prompt, nil
}

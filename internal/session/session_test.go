package session

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dlibes/goexpect/internal/needle"
)

// These tests spawn real Unix utilities (cat, ls, sleep, echo, printf)
// as dialogue partners.

func TestCatEcho(t *testing.T) {
	s, err := Spawn("cat")
	if err != nil {
		t.Fatalf("spawn cat: %v", err)
	}
	defer s.Close()

	if err := s.SendLine([]byte("Hello World")); err != nil {
		t.Fatalf("send_line: %v", err)
	}
	caps, err := s.Expect(needle.String("Hello World"))
	if err != nil {
		t.Fatalf("expect: %v", err)
	}
	before := string(caps.Before())
	if before != "" && before != "Hello World\r\n" {
		t.Errorf("unexpected before() %q", before)
	}

	if err := s.SendControl(EndOfText); err != nil {
		t.Fatalf("send_control: %v", err)
	}
	state, _ := s.Process().Wait()
	if state == nil {
		t.Fatalf("expected a process state after wait")
	}
}

func TestLsPrefix(t *testing.T) {
	s, err := Spawn("ls -la")
	if err != nil {
		t.Fatalf("spawn ls: %v", err)
	}
	defer s.Close()

	caps, err := s.Expect(needle.MustCompileRegex(`(?m)^total`))
	if err != nil {
		t.Fatalf("expect: %v", err)
	}
	if !bytes.HasPrefix(caps.Matches()[0], []byte("total")) {
		t.Errorf("expected match starting with total, got %q", caps.Matches()[0])
	}
}

func TestTimeout(t *testing.T) {
	s, err := Spawn("sleep 5")
	if err != nil {
		t.Fatalf("spawn sleep: %v", err)
	}
	defer s.Close()

	s.SetExpectTimeout(100*time.Millisecond, true)
	start := time.Now()
	_, err = s.Expect(needle.String("never"))
	elapsed := time.Since(start)

	if !errors.Is(err, ErrExpectTimeout) {
		t.Fatalf("expected ErrExpectTimeout, got %v", err)
	}
	if elapsed < 100*time.Millisecond || elapsed > 500*time.Millisecond {
		t.Errorf("expected timeout in [100ms,500ms), got %s", elapsed)
	}
}

func TestEofScenario(t *testing.T) {
	s, err := Spawn("echo done")
	if err != nil {
		t.Fatalf("spawn echo: %v", err)
	}
	defer s.Close()

	// Consume the trailing line terminator too: Eof only matches an empty
	// buffer, and the tty turns echo's \n into \r\n.
	if _, err := s.Expect(needle.MustCompileRegex(`done\r?\n`)); err != nil {
		t.Fatalf("expect done: %v", err)
	}
	if _, err := s.Expect(needle.Eof()); err != nil {
		t.Fatalf("expect eof: %v", err)
	}
}

func TestEofErrorCarriesResidual(t *testing.T) {
	s, err := Spawn("echo leftover")
	if err != nil {
		t.Fatalf("spawn echo: %v", err)
	}
	defer s.Close()

	_, err = s.Expect(needle.Eof())
	var eofErr *EofError
	if !errors.As(err, &eofErr) {
		t.Fatalf("expected *EofError, got %v", err)
	}
	if !bytes.Contains(eofErr.Residual, []byte("leftover")) {
		t.Errorf("expected residual to contain program output, got %q", eofErr.Residual)
	}
}

func TestNBytesConsumesExactly(t *testing.T) {
	s, err := SpawnArgv([]string{"printf", "0123456789"}, nil, "")
	if err != nil {
		t.Fatalf("spawn printf: %v", err)
	}
	defer s.Close()

	c1, err := s.Expect(needle.NBytes(5))
	if err != nil {
		t.Fatalf("expect nbytes 1: %v", err)
	}
	if string(c1.Matches()[0]) != "01234" {
		t.Fatalf("expected 01234, got %q", c1.Matches()[0])
	}

	c2, err := s.Expect(needle.NBytes(5))
	if err != nil {
		t.Fatalf("expect nbytes 2: %v", err)
	}
	if string(c2.Matches()[0]) != "56789" {
		t.Fatalf("expected 56789, got %q", c2.Matches()[0])
	}
}

func TestAnyEarliestEndWins(t *testing.T) {
	s, err := SpawnArgv([]string{"printf", "xxBxxAxx"}, nil, "")
	if err != nil {
		t.Fatalf("spawn printf: %v", err)
	}
	defer s.Close()

	caps, err := s.Expect(needle.Any(needle.String("A"), needle.String("B")))
	if err != nil {
		t.Fatalf("expect any: %v", err)
	}
	if string(caps.Matches()[0]) != "B" {
		t.Fatalf("expected earliest-ending alternative B, got %q", caps.Matches()[0])
	}
}

func TestCheckNeverBlocksLongerThanOneRead(t *testing.T) {
	s, err := Spawn("sleep 2")
	if err != nil {
		t.Fatalf("spawn sleep: %v", err)
	}
	defer s.Close()

	start := time.Now()
	c, err := s.Check(needle.String("never"))
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if c != nil {
		t.Fatalf("expected no match, got %v", c)
	}
	if elapsed > 200*time.Millisecond {
		t.Errorf("check took too long: %s", elapsed)
	}
}

func TestSendControlInvalidCode(t *testing.T) {
	s, err := Spawn("cat")
	if err != nil {
		t.Fatalf("spawn cat: %v", err)
	}
	defer s.Close()

	if err := s.SendControl(ControlCode(0x7E)); !errors.Is(err, ErrControlCodeInvalid) {
		t.Fatalf("expected ErrControlCodeInvalid, got %v", err)
	}
}

func TestExpectContextCancellation(t *testing.T) {
	s, err := Spawn("sleep 5")
	if err != nil {
		t.Fatalf("spawn sleep: %v", err)
	}
	defer s.Close()
	s.SetExpectTimeout(0, false)

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = s.ExpectContext(ctx, needle.String("never"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Errorf("cancellation took too long")
	}
}

func TestLazyModeBoundsMatchLength(t *testing.T) {
	s, err := SpawnArgv([]string{"printf", "prefix-END-more-END-tail"}, nil, "", WithLazy(true))
	if err != nil {
		t.Fatalf("spawn printf: %v", err)
	}
	defer s.Close()

	caps, err := s.Expect(needle.String("END"))
	if err != nil {
		t.Fatalf("expect: %v", err)
	}
	if string(caps.Before()) != "prefix-" {
		t.Fatalf("expected before %q, got %q", "prefix-", caps.Before())
	}
}

func TestSpawnUnknownCommandIsParsingError(t *testing.T) {
	_, err := Spawn("definitely-not-a-real-command-zz9")
	var perr *CommandParsingError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *CommandParsingError, got %v", err)
	}
}

func TestLazyRegexStopsAtEarliestLength(t *testing.T) {
	s, err := SpawnArgv([]string{"printf", "aEEEb"}, nil, "", WithLazy(true))
	if err != nil {
		t.Fatalf("spawn printf: %v", err)
	}
	defer s.Close()

	// In lazy mode the needle is re-evaluated after every appended byte,
	// so E+ matches at the first buffer length containing a single E —
	// greedy mode would swallow all three once buffered together.
	caps, err := s.Expect(needle.MustCompileRegex(`E+`))
	if err != nil {
		t.Fatalf("expect: %v", err)
	}
	if string(caps.Matches()[0]) != "E" {
		t.Fatalf("expected lazy match E, got %q", caps.Matches()[0])
	}
}

func TestWaitNormalizesNonzeroExit(t *testing.T) {
	s, err := Spawn("false")
	if err != nil {
		t.Fatalf("spawn false: %v", err)
	}
	defer s.Close()

	state, err := s.Wait()
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if state.ExitCode() != 1 {
		t.Errorf("expected exit code 1, got %d", state.ExitCode())
	}
}

func TestRegexpReportsCompileError(t *testing.T) {
	if _, err := Regexp(`valid.*`); err != nil {
		t.Fatalf("unexpected error for valid pattern: %v", err)
	}
	_, err := Regexp(`(unclosed`)
	var compileErr *RegexCompileError
	if !errors.As(err, &compileErr) {
		t.Fatalf("expected *RegexCompileError, got %v", err)
	}
}

func TestSendContextHonorsCancellation(t *testing.T) {
	s, err := Spawn("cat")
	if err != nil {
		t.Fatalf("spawn cat: %v", err)
	}
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.SendContext(ctx, []byte("x")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestReadLinePushesBackRemainder(t *testing.T) {
	s, err := SpawnArgv([]string{"printf", "line1\nline2\n"}, nil, "")
	if err != nil {
		t.Fatalf("spawn printf: %v", err)
	}
	defer s.Close()

	l1, err := s.ReadLine()
	if err != nil {
		t.Fatalf("readline 1: %v", err)
	}
	if l1 != "line1" {
		t.Fatalf("expected line1, got %q", l1)
	}
	l2, err := s.ReadLine()
	if err != nil {
		t.Fatalf("readline 2: %v", err)
	}
	if l2 != "line2" {
		t.Fatalf("expected line2, got %q", l2)
	}
}

package interact

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/dlibes/goexpect/internal/needle"
	"github.com/dlibes/goexpect/internal/session"
)

func TestSpawnRelaysUntilEscape(t *testing.T) {
	s, err := session.Spawn("cat")
	if err != nil {
		t.Fatalf("spawn cat: %v", err)
	}
	defer s.Close()

	// Write the escape only after the relay has had time to pump cat's
	// echo to the sink — Spawn returns as soon as it sees the escape, so
	// feeding everything in one chunk would race the output side.
	pr, pw := io.Pipe()
	go func() {
		pw.Write([]byte("hello\n"))
		time.Sleep(500 * time.Millisecond)
		pw.Write([]byte{0x1D})
		pw.Close()
	}()
	var out bytes.Buffer

	ia := New(s, pr, &out)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := ia.Spawn(ctx); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if !bytes.Contains(out.Bytes(), []byte("hello")) {
		t.Errorf("expected relayed output to contain hello, got %q", out.String())
	}
}

func TestSpawnEndsWhenChildExits(t *testing.T) {
	s, err := session.Spawn("true")
	if err != nil {
		t.Fatalf("spawn true: %v", err)
	}
	defer s.Close()

	in, out := io.Pipe()
	defer in.Close()
	defer out.Close()

	ia := New(s, in, io.Discard)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := ia.Spawn(ctx); err != nil {
		t.Fatalf("spawn: %v", err)
	}
}

func TestInputHookCanConsumeBytes(t *testing.T) {
	s, err := session.Spawn("cat")
	if err != nil {
		t.Fatalf("spawn cat: %v", err)
	}
	defer s.Close()

	var seen []byte
	hook := func(ctx *HookContext) (bool, error) {
		seen = append(seen, ctx.Data...)
		return true, nil // swallow everything — cat should see nothing
	}

	in := bytes.NewReader([]byte("swallowed\x1D"))
	var out bytes.Buffer
	ia := New(s, in, &out, WithInputHook(hook))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := ia.Spawn(ctx); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if !bytes.Contains(seen, []byte("swallowed")) {
		t.Errorf("expected hook to observe input bytes, got %q", seen)
	}
	if bytes.Contains(out.Bytes(), []byte("swallowed")) {
		t.Errorf("expected consumed input not to reach the child, out=%q", out.String())
	}
}

func TestLookupAccumulatesAcrossCalls(t *testing.T) {
	var l Lookup
	if c, err := l.On([]byte("pass"), false, needle.String("password:")); c != nil || err != nil {
		t.Fatalf("expected no match yet, got %v err=%v", c, err)
	}
	c, err := l.On([]byte("word: "), false, needle.String("password:"))
	if err != nil {
		t.Fatalf("on: %v", err)
	}
	if c == nil {
		t.Fatalf("expected match once full pattern accumulated")
	}
}

func TestSplitEscapeSingleByte(t *testing.T) {
	s := &Session{escape: []byte{0x1D}}
	send, matched := s.splitEscape([]byte("abc"))
	if matched || string(send) != "abc" {
		t.Fatalf("expected passthrough, got send=%q matched=%v", send, matched)
	}
	send, matched = s.splitEscape([]byte{'x', 0x1D, 'y'})
	if !matched || string(send) != "x" {
		t.Fatalf("expected match after x, got send=%q matched=%v", send, matched)
	}
}

func TestSplitEscapeMultiByteAcrossCalls(t *testing.T) {
	s := &Session{escape: []byte("ESC")}
	send, matched := s.splitEscape([]byte("xxE"))
	if matched || string(send) != "xx" {
		t.Fatalf("expected partial prefix held back, got send=%q matched=%v", send, matched)
	}
	send, matched = s.splitEscape([]byte("SCyy"))
	if !matched || string(send) != "" {
		t.Fatalf("expected match completing across chunks, got send=%q matched=%v", send, matched)
	}
}

func TestSplitEscapeFlushesFalsePrefix(t *testing.T) {
	s := &Session{escape: []byte("ESC")}
	if send, _ := s.splitEscape([]byte("abE")); string(send) != "ab" {
		t.Fatalf("expected held prefix, got send=%q", send)
	}
	send, matched := s.splitEscape([]byte("Qcd"))
	if matched || string(send) != "EQcd" {
		t.Fatalf("expected held bytes flushed once ruled out, got send=%q matched=%v", send, matched)
	}
}

package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dlibes/goexpect/internal/interact"
	"github.com/dlibes/goexpect/internal/logger"
	"github.com/dlibes/goexpect/internal/session"
)

// runInteractive spawns argv under a PTY and relays it to the controlling
// terminal via internal/interact, the CLI-facing equivalent of Expect's
// own `interact` command.
func runInteractive(argv []string) error {
	cfg := loadConfig()

	s, err := session.SpawnArgv(argv, os.Environ(), "", session.WithLogger(logger.Component("session")))
	if err != nil {
		return fmt.Errorf("spawn %s: %w", strings.Join(argv, " "), err)
	}
	defer s.Close()

	escape := []byte{0x1D}
	if cfg.EscapeHex != "" {
		if b, err := hex.DecodeString(cfg.EscapeHex); err == nil && len(b) > 0 {
			escape = b
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ia := interact.New(s, os.Stdin, os.Stdout,
		interact.WithEscape(escape),
		interact.WithTerminal(int(os.Stdin.Fd())),
	)

	if err := ia.Spawn(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("interact: %w", err)
	}
	return nil
}

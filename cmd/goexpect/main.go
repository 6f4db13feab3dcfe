package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/dlibes/goexpect/internal/config"
	"github.com/dlibes/goexpect/internal/logger"
	"github.com/spf13/cobra"
)

func main() {
	var logLevel string

	root := &cobra.Command{
		Use:   "goexpect [command...]",
		Short: "goexpect — drive interactive programs under a PTY",
		Long:  "Spawns a command under a pseudo-terminal and relays it to your terminal, the way Expect's interact does, with scriptable hooks.",
		Args:  cobra.ArbitraryArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logger.Init(logLevel, "")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return runInteractive(args)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	root.AddCommand(doctorCmd())

	if err := root.Execute(); err != nil {
		slog.Error("goexpect: command failed", "err", err)
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	mgr := config.NewManager()
	userDir, err := config.UserConfigDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "goexpect: resolving config dir: %v\n", err)
		os.Exit(1)
	}
	cwd, _ := os.Getwd()
	if err := mgr.Load(userDir, cwd); err != nil {
		fmt.Fprintf(os.Stderr, "goexpect: loading config: %v\n", err)
		os.Exit(1)
	}
	return mgr.Get()
}

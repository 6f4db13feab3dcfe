package main

import (
	"fmt"
	"os/exec"

	"github.com/spf13/cobra"
)

var wellKnownShells = []struct {
	name string
	cmd  string
}{
	{"bash", "bash"},
	{"sh", "sh"},
	{"zsh", "zsh"},
	{"python3", "python3"},
	{"pwsh", "pwsh"},
}

// doctorCmd prints the effective configuration and which REPL-style
// programs internal/session's SpawnBash/SpawnSh/SpawnPython/SpawnPowershell
// helpers would actually find on PATH.
func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Print effective configuration and available shells",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()

			fmt.Println("goexpect doctor")
			fmt.Println()
			fmt.Println("config:")
			fmt.Printf("  expect_timeout   %s\n", cfg.ExpectTimeout())
			fmt.Printf("  lazy             %v\n", cfg.Lazy)
			fmt.Printf("  log_level        %s\n", cfg.LogLevel)
			fmt.Printf("  escape_hex       %s\n", cfg.EscapeHex)
			fmt.Println()

			fmt.Println("shells on PATH:")
			for _, w := range wellKnownShells {
				if path, err := exec.LookPath(w.cmd); err == nil {
					fmt.Printf("  %-10s %s\n", w.name, path)
				} else {
					fmt.Printf("  %-10s not found\n", w.name)
				}
			}
			return nil
		},
	}
}

// Package cli implements the llamabind command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Config carries global options and the process streams.
type Config struct {
	Engine     string
	LogLevel   string
	ConfigPath string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	logger zerolog.Logger
}

// DefaultConfig reads defaults from LLAMABIND_* environment variables.
func DefaultConfig() *Config {
	return &Config{
		Engine:     envStr("LLAMABIND_ENGINE", "llama"),
		LogLevel:   envStr("LLAMABIND_LOG_LEVEL", "warn"),
		ConfigPath: envStr("LLAMABIND_CONFIG", ""),
		Stdin:      os.Stdin,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
	}
}

// Main runs the CLI with args and returns the process exit code.
func Main(args []string, cfg *Config) int {
	return MainContext(context.Background(), args, cfg)
}

// MainContext is Main with a context; serve stops when ctx is done.
func MainContext(ctx context.Context, args []string, cfg *Config) int {
	root := buildRootCmdWith(cfg)
	root.SetArgs(args)
	root.SetIn(cfg.Stdin)
	root.SetOut(cfg.Stdout)
	root.SetErr(cfg.Stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(cfg.Stderr, "llamabind:", err)
		return 1
	}
	return 0
}

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

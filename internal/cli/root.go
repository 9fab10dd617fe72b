package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"llamabind/internal/binding"
	"llamabind/internal/boundary"
	"llamabind/internal/engine"
)

// fnEngine resolves the --engine flag; tests may replace it.
var fnEngine = binding.EngineByName

// buildRootCmdWith constructs the command tree wired to cfg.
func buildRootCmdWith(cfg *Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "llamabind",
		Short:         "Embeddings and context state for llama.cpp models",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	root.PersistentFlags().StringVar(&cfg.Engine, "engine", cfg.Engine, "Inference engine: llama|mem (defaults LLAMABIND_ENGINE or llama)")
	root.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug|info|warn|error (defaults LLAMABIND_LOG_LEVEL or warn)")
	root.PersistentFlags().StringVar(&cfg.ConfigPath, "config", cfg.ConfigPath, "Server configuration file (.yaml, .json or .toml)")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(cfg.Stderr, cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("invalid --log-level %q: %w", cfg.LogLevel, err)
		}
		cfg.logger = l
		installLogger(l)
		return nil
	}

	root.AddCommand(
		embedCmd(cfg),
		infoCmd(cfg),
		stateCmd(cfg),
		predictCmd(cfg),
		serveCmd(cfg),
	)
	return root
}

// openHandle creates a boundary handle for the model described by mf. The
// returned func destroys it.
func openHandle(cfg *Config, mf *modelFlags) (boundary.Handle, func(), error) {
	bc, err := mf.config()
	if err != nil {
		return 0, nil, err
	}
	eng, err := fnEngine(cfg.Engine)
	if err != nil {
		return 0, nil, err
	}
	h, err := boundary.Create(eng, bc)
	if err != nil {
		return 0, nil, err
	}
	return h, func() { boundary.Destroy(h) }, nil
}

// handleErr turns a failure status on h into an error carrying its diagnostic.
func handleErr(h boundary.Handle, op string) error {
	if err := boundary.LastError(h); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s failed", op)
}

// engineName is reported by info; native builds carry the llama tag.
func engineName(cfg *Config) string {
	if cfg.Engine == "" || cfg.Engine == "llama" || cfg.Engine == "native" {
		if engine.NativeBuilt() {
			return "llama"
		}
		return "llama (not built)"
	}
	return cfg.Engine
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"llamabind/internal/common/fsutil"
	"llamabind/internal/config"
	"llamabind/internal/httpapi"
	"llamabind/internal/manager"
	"llamabind/internal/registry"
)

const shutdownTimeout = 5 * time.Second

// fnOnListen observes the bound listener address; tests replace it.
var fnOnListen = func(net.Addr) {}

type serveFlags struct {
	addr         string
	modelsDir    string
	stateDir     string
	defaultModel string
	budgetMB     int
	marginMB     int
	idleTTL      string
	cors         string
}

func serveCmd(cfg *Config) *cobra.Command { return newServeCmd(cfg, &serveFlags{}) }

func newServeCmd(cfg *Config, sf *serveFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Serve embeddings and state over HTTP",
		Example: "  llamabind serve --config llamabind.yaml\n  llamabind serve --models-dir ~/models/llm --default-model tiny.gguf",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := serverConfig(cfg, sf, cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, sc)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&sf.addr, "addr", envStr("LLAMABIND_ADDR", config.DefaultAddr), "HTTP listen address, e.g. :8080")
	fl.StringVar(&sf.modelsDir, "models-dir", "", "Directory to scan for *.gguf model files")
	fl.StringVar(&sf.stateDir, "state-dir", "", "Directory for /state/save and /state/load files; unset disables them")
	fl.StringVar(&sf.defaultModel, "default-model", "", "Default model id when a request omits model")
	fl.IntVar(&sf.budgetMB, "budget-mb", 0, "Memory budget in MB for all loaded models (0 = unlimited)")
	fl.IntVar(&sf.marginMB, "margin-mb", 0, "Reserved margin in MB to keep free")
	fl.StringVar(&sf.idleTTL, "idle-ttl", "", "Unload models unused for this long, e.g. 10m")
	fl.StringVar(&sf.cors, "cors-origins", "", "Comma separated origins allowed by CORS; enables CORS when set")
	return cmd
}

// serverConfig loads --config when given and lets explicitly set flags
// override the file.
func serverConfig(cfg *Config, sf *serveFlags, cmd *cobra.Command) (config.Config, error) {
	var sc config.Config
	if cfg.ConfigPath != "" {
		var err error
		if sc, err = config.Load(cfg.ConfigPath); err != nil {
			return sc, err
		}
	}
	fl := cmd.Flags()
	if fl.Changed("addr") || sc.Addr == "" {
		sc.Addr = sf.addr
	}
	if fl.Changed("models-dir") {
		sc.ModelsDir = sf.modelsDir
	}
	if fl.Changed("state-dir") {
		sc.StateDir = sf.stateDir
	}
	if fl.Changed("default-model") {
		sc.DefaultModel = sf.defaultModel
	}
	if fl.Changed("budget-mb") {
		sc.BudgetMB = sf.budgetMB
	}
	if fl.Changed("margin-mb") {
		sc.MarginMB = sf.marginMB
	}
	if fl.Changed("idle-ttl") {
		sc.IdleTTL = sf.idleTTL
	}
	if fl.Changed("cors-origins") {
		sc.CORS.Enabled = true
		sc.CORS.Origins = splitCSV(sf.cors)
	}
	if fl.Changed("engine") || sc.Engine == "" {
		sc.Engine = cfg.Engine
	}
	if sc.ModelsDir != "" {
		dir, err := fsutil.ResolvePath(sc.ModelsDir, "")
		if err != nil {
			return sc, err
		}
		if !fsutil.PathExists(dir) {
			return sc, fmt.Errorf("models dir does not exist: %s", sc.ModelsDir)
		}
	}
	if sc.ModelsDir == "" && len(sc.Models) == 0 {
		return sc, errors.New("no models configured: set --models-dir or models in --config")
	}
	sc = sc.WithDefaults()
	return sc, sc.Validate()
}

// newServer wires registry, engine, manager and HTTP handler from sc.
func newServer(cfg *Config, sc config.Config) (*http.Server, *manager.Manager, error) {
	reg, err := registry.Build(sc.ModelsDir, sc.Models)
	if err != nil {
		return nil, nil, fmt.Errorf("load models: %w", err)
	}
	eng, err := fnEngine(sc.Engine)
	if err != nil {
		return nil, nil, err
	}
	maxWait, _ := sc.MaxWaitDuration()
	idleTTL, _ := sc.IdleTTLDuration()
	opTimeout, _ := sc.OpTimeoutDuration()

	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Registry:      reg,
		Engine:        eng,
		BudgetMB:      sc.BudgetMB,
		MarginMB:      sc.MarginMB,
		DefaultModel:  sc.DefaultModel,
		MaxQueueDepth: sc.MaxQueueDepth,
		MaxWait:       maxWait,
		IdleTTL:       idleTTL,
		Logger:        &cfg.logger,
	})

	stateDir, err := fsutil.ResolvePath(sc.StateDir, "")
	if err != nil {
		return nil, nil, err
	}
	if stateDir != "" {
		if err := os.MkdirAll(stateDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("state dir: %w", err)
		}
	}

	httpapi.SetStateDir(stateDir)
	httpapi.SetMaxBodyBytes(sc.MaxBodyBytes)
	httpapi.SetOpTimeout(opTimeout)
	httpapi.SetCORSOptions(sc.CORS.Enabled, sc.CORS.Origins, sc.CORS.Methods, sc.CORS.Headers)
	if sc.LogLevel != "" {
		httpapi.SetDefaultLogLevel(sc.LogLevel)
	}
	srv := &http.Server{
		Addr:              sc.Addr,
		Handler:           httpapi.NewMux(mgr),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv, mgr, nil
}

// serve runs the HTTP server until ctx is done, then shuts down gracefully
// and unloads every model.
func serve(ctx context.Context, cfg *Config, sc config.Config) error {
	srv, mgr, err := newServer(cfg, sc)
	if err != nil {
		return err
	}
	defer mgr.Close()

	ln, err := net.Listen("tcp", sc.Addr)
	if err != nil {
		return err
	}
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)
	defer httpapi.SetBaseContext(nil)

	log := cfg.logger
	log.Info().Str("addr", ln.Addr().String()).Str("engine", sc.Engine).
		Int("models", len(mgr.ListModels())).Msg("llamabind listening")
	fnOnListen(ln.Addr())
	if sc.DefaultModel != "" {
		mgr.Preload(sc.DefaultModel)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")
	cancelBase()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
	}
	return nil
}

// splitCSV splits a comma separated list, dropping empty items.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

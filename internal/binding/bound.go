package binding

import (
	"errors"
	"sync"

	"llamabind/internal/engine"
)

// BoundModel owns a loaded model, its context and its adapters as a single
// unit. The zero value is not usable; obtain one from Create and release it
// with Close. Every method on a closed BoundModel returns ErrHandleClosed.
type BoundModel struct {
	eng      engine.Engine
	model    engine.Model
	ctx      engine.Context
	adapters []engine.Adapter
	cfg      *Config
	params   engine.LoadParams
	threads  int
	closed   bool
}

// backendOnce holds one sync.Once per engine name for lazy backend bring-up.
// Keying on the name keeps init process-wide and accepts engine values that
// are not comparable.
var backendOnce sync.Map

func initBackend(eng engine.Engine, numa bool) {
	o, _ := backendOnce.LoadOrStore(eng.Name(), new(sync.Once))
	o.(*sync.Once).Do(func() {
		zlog.Debug().Str("engine", eng.Name()).Bool("numa", numa).Msg("backend init")
		eng.Init(numa)
	})
}

// Create resolves cfg, loads the model and builds a context bound to it.
// Either a fully constructed BoundModel or an error is returned, never both.
func Create(eng engine.Engine, cfg Config) (*BoundModel, error) {
	const op = "create"
	if eng == nil {
		return nil, fail(newError(EngineFailure, op, "no engine", nil))
	}
	params, err := cfg.Resolve()
	if err != nil {
		var be *Error
		if errors.As(err, &be) {
			return nil, fail(be)
		}
		return nil, fail(newError(ConfigInvalid, op, "invalid config", err))
	}
	initBackend(eng, params.NUMA)

	zlog.Info().Str("engine", eng.Name()).Str("model", params.ModelPath).
		Int("n_ctx", params.ContextSize).Int("adapters", len(params.Adapters)).Msg("loading model")
	loaded, err := eng.Load(params)
	if err != nil {
		loadsTotal.WithLabelValues(eng.Name(), "failure").Inc()
		return nil, fail(classifyLoadError(op, params.ModelPath, err))
	}
	if loaded == nil || loaded.Model == nil || loaded.Context == nil {
		releaseLoaded(loaded)
		loadsTotal.WithLabelValues(eng.Name(), "failure").Inc()
		return nil, fail(newError(ModelLoadFailure, op, "unable to load model "+params.ModelPath, nil))
	}
	loadsTotal.WithLabelValues(eng.Name(), "success").Inc()
	openHandles.Inc()
	snap := cfg.Clone()
	b := &BoundModel{
		eng:      eng,
		model:    loaded.Model,
		ctx:      loaded.Context,
		adapters: loaded.Adapters,
		cfg:      &snap,
		params:   params,
		threads:  cfg.ResolveThreads(),
	}
	zlog.Info().Str("model", params.ModelPath).Int("n_embd", b.model.EmbeddingSize()).Msg("model loaded")
	// some engines dump the whole context to measure it
	if e := zlog.Debug(); e.Enabled() {
		e.Str("model", params.ModelPath).Int("state_size", b.ctx.StateSize()).Msg("context state")
	}
	return b, nil
}

func classifyLoadError(op, path string, err error) *Error {
	switch {
	case errors.Is(err, engine.ErrInvalidParams):
		return newError(ConfigInvalid, op, "engine rejected parameters for "+path, err)
	case errors.Is(err, engine.ErrUnavailable):
		return newError(EngineFailure, op, "engine unavailable", err)
	default:
		return newError(ModelLoadFailure, op, "unable to load model "+path, err)
	}
}

// releaseLoaded frees whatever a misbehaving engine handed back.
func releaseLoaded(l *engine.Loaded) {
	if l == nil {
		return
	}
	for _, a := range l.Adapters {
		if a != nil {
			a.Free()
		}
	}
	if l.Context != nil {
		l.Context.Free()
	}
	if l.Model != nil {
		l.Model.Free()
	}
}

func (b *BoundModel) live(op string) error {
	if b == nil || b.closed {
		return fail(newError(HandleClosed, op, "bound model used after Close", nil))
	}
	return nil
}

// Close releases adapters, then the context, then the model, then the
// configuration snapshot. Sub-resources already released are skipped. A
// second Close returns ErrHandleClosed.
func (b *BoundModel) Close() error {
	if err := b.live("close"); err != nil {
		return err
	}
	b.closed = true
	for i, a := range b.adapters {
		if a != nil {
			a.Free()
			b.adapters[i] = nil
		}
	}
	b.adapters = nil
	if b.ctx != nil {
		b.ctx.Free()
		b.ctx = nil
	}
	if b.model != nil {
		b.model.Free()
		b.model = nil
	}
	b.cfg = nil
	openHandles.Dec()
	zlog.Info().Str("model", b.params.ModelPath).Msg("model released")
	return nil
}

// Closed reports whether Close has been called.
func (b *BoundModel) Closed() bool { return b == nil || b.closed }

// EmbeddingSize returns the model's embedding dimension.
func (b *BoundModel) EmbeddingSize() (int, error) {
	if err := b.live("embedding size"); err != nil {
		return 0, err
	}
	return b.model.EmbeddingSize(), nil
}

// Config returns a copy of the configuration snapshot taken at Create.
func (b *BoundModel) Config() (Config, error) {
	if err := b.live("config"); err != nil {
		return Config{}, err
	}
	return b.cfg.Clone(), nil
}

// Params returns the resolved load parameters.
func (b *BoundModel) Params() (engine.LoadParams, error) {
	if err := b.live("params"); err != nil {
		return engine.LoadParams{}, err
	}
	return b.params, nil
}

// EngineName returns the name of the engine that loaded the model.
func (b *BoundModel) EngineName() string { return b.eng.Name() }

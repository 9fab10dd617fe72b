// Package memengine is a deterministic, pure-Go implementation of
// engine.Engine. It stands in for the native library in tests and CGO-free
// builds.
//
// Weights are derived from an xxhash of the model file, the vocabulary is
// byte level (256 byte tokens plus BOS) and each context keeps a small kv
// cache whose contents feed into later embeddings, so runtime state is
// observable through the embedding output.
package memengine

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/cespare/xxhash/v2"

	"llamabind/internal/engine"
)

const (
	bosToken  = 256
	vocabSize = 257

	defaultEmbeddingSize = 64
	defaultContextSize   = 512
	// MaxContextSize is the largest context this engine will allocate.
	MaxContextSize = 1 << 16

	// model files are fingerprinted on their first digestLimit bytes
	digestLimit = 1 << 20
)

// Option configures an Engine.
type Option func(*Engine)

// WithEmbeddingSize sets the embedding dimension reported by loaded models
// when the load request carries no size hint.
func WithEmbeddingSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.nEmbd = n
		}
	}
}

// Engine implements engine.Engine. It records Init calls and resource
// releases so callers can observe the lifecycle.
type Engine struct {
	nEmbd int

	mu          sync.Mutex
	inits       int
	released    []string
	doubleFrees int
}

// New returns an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{nEmbd: defaultEmbeddingSize}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) Name() string { return "mem" }

func (e *Engine) Init(numa bool) {
	e.mu.Lock()
	e.inits++
	e.mu.Unlock()
}

// Inits returns how many times Init was called.
func (e *Engine) Inits() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inits
}

// Released returns the release log in order, e.g. ["adapter:/a", "context", "model"].
func (e *Engine) Released() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.released...)
}

// DoubleFrees returns how many Free calls hit an already released resource.
func (e *Engine) DoubleFrees() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doubleFrees
}

func (e *Engine) release(name string, already bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if already {
		e.doubleFrees++
		return
	}
	e.released = append(e.released, name)
}

// Load loads the model, then the context, then the adapters in order. On any
// failure everything acquired so far is released before returning.
func (e *Engine) Load(p engine.LoadParams) (*engine.Loaded, error) {
	m, err := e.loadModel(p)
	if err != nil {
		return nil, err
	}
	c, err := newContext(m, p)
	if err != nil {
		m.Free()
		return nil, err
	}
	out := &engine.Loaded{Model: m, Context: c}
	for _, ap := range p.Adapters {
		a, err := e.loadAdapter(ap)
		if err != nil {
			for _, prev := range out.Adapters {
				prev.Free()
			}
			c.Free()
			m.Free()
			return nil, err
		}
		c.adapters = append(c.adapters, a)
		out.Adapters = append(out.Adapters, a)
	}
	return out, nil
}

func (e *Engine) loadModel(p engine.LoadParams) (*Model, error) {
	seed, n, err := digestFile(p.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrModelLoad, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: %s is empty", engine.ErrModelLoad, p.ModelPath)
	}
	nEmbd := e.nEmbd
	if p.EmbeddingSize > 0 {
		nEmbd = p.EmbeddingSize
	}
	m := &Model{eng: e, path: p.ModelPath, seed: seed, nEmbd: nEmbd}
	m.table = buildTable(seed, nEmbd)
	return m, nil
}

func (e *Engine) loadAdapter(ap engine.AdapterParams) (*Adapter, error) {
	seed, _, err := digestFile(ap.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrAdapterLoad, err)
	}
	return &Adapter{eng: e, path: ap.Path, scale: ap.Scale, seed: seed}, nil
}

// digestFile hashes up to digestLimit bytes of path.
func digestFile(path string) (uint64, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()
	d := xxhash.New()
	n, err := io.Copy(d, io.LimitReader(f, digestLimit))
	if err != nil {
		return 0, 0, err
	}
	return d.Sum64(), n, nil
}

// Model is a loaded memengine model.
type Model struct {
	eng   *Engine
	path  string
	seed  uint64
	nEmbd int
	table [][]float32 // vocabSize x nEmbd token vectors
	freed bool
}

func (m *Model) EmbeddingSize() int { return m.nEmbd }

func (m *Model) Free() {
	m.eng.release("model", m.freed)
	m.freed = true
	m.table = nil
}

// Adapter perturbs token vectors before they enter the cache.
type Adapter struct {
	eng   *Engine
	path  string
	scale float32
	seed  uint64
	freed bool
}

func (a *Adapter) Path() string { return a.path }

func (a *Adapter) Free() {
	a.eng.release("adapter:"+a.path, a.freed)
	a.freed = true
}

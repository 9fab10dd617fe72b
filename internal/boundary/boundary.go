// Package boundary exposes BoundModels through opaque integer handles and
// plain status codes, the shape a foreign caller sees. Status 0 is success
// and 1 is failure; the cause of the most recent failure on a handle is
// available from LastError.
package boundary

import (
	"errors"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"llamabind/internal/binding"
	"llamabind/internal/engine"
)

// Handle identifies a live BoundModel. The zero Handle is never issued.
type Handle uint64

// Status codes returned across the boundary.
const (
	StatusOK      = 0
	StatusFailure = 1
)

var errUnknownHandle = errors.New("unknown or destroyed handle")

var zlog = zerolog.New(os.Stderr).With().Timestamp().Str("component", "boundary").Logger()

// SetLogger installs the logger used for boundary diagnostics.
func SetLogger(l zerolog.Logger) { zlog = l.With().Str("component", "boundary").Logger() }

type entry struct {
	bm      *binding.BoundModel
	lastErr error
}

// Registry maps handles to BoundModels. A destroyed handle is forgotten, so
// a stale id resolves to nothing instead of a released model. Calls on the
// same handle must not overlap; the registry itself is safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	next    Handle
	entries map[Handle]*entry
	lastErr error
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[Handle]*entry)}
}

// Len returns the number of live handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) lookup(h Handle) (*entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[h]
	return e, ok
}

// status converts err into a status code, remembering it on e (or on the
// registry when the handle is unknown).
func (r *Registry) status(h Handle, e *entry, op string, err error) int {
	if err == nil {
		return StatusOK
	}
	r.mu.Lock()
	if e != nil {
		e.lastErr = err
	} else {
		r.lastErr = err
	}
	r.mu.Unlock()
	zlog.Warn().Uint64("handle", uint64(h)).Str("op", op).Err(err).Msg("boundary call failed")
	return StatusFailure
}

func (r *Registry) resolve(h Handle, op string) (*entry, int) {
	e, ok := r.lookup(h)
	if !ok {
		return nil, r.status(h, nil, op, errUnknownHandle)
	}
	return e, StatusOK
}

// Create loads a model and returns its handle. On failure no handle is
// issued and the error is also retrievable with LastError(0).
func (r *Registry) Create(eng engine.Engine, cfg binding.Config) (Handle, error) {
	bm, err := binding.Create(eng, cfg)
	if err != nil {
		r.status(0, nil, "create", err)
		return 0, err
	}
	r.mu.Lock()
	r.next++
	h := r.next
	r.entries[h] = &entry{bm: bm}
	r.mu.Unlock()
	zlog.Debug().Uint64("handle", uint64(h)).Msg("handle issued")
	return h, nil
}

// Destroy releases the BoundModel behind h and forgets the handle.
func (r *Registry) Destroy(h Handle) int {
	r.mu.Lock()
	e, ok := r.entries[h]
	delete(r.entries, h)
	r.mu.Unlock()
	if !ok {
		return r.status(h, nil, "destroy", errUnknownHandle)
	}
	return r.status(h, nil, "destroy", e.bm.Close())
}

// SaveState writes the context state of h to path using an fopen mode.
func (r *Registry) SaveState(h Handle, path, mode string) int {
	e, st := r.resolve(h, "save state")
	if st != StatusOK {
		return st
	}
	return r.status(h, e, "save state", e.bm.SaveStateFile(path, mode))
}

// LoadState restores the context state of h from path.
func (r *Registry) LoadState(h Handle, path, mode string) int {
	e, st := r.resolve(h, "load state")
	if st != StatusOK {
		return st
	}
	return r.status(h, e, "load state", e.bm.LoadStateFile(path, mode))
}

// EmbeddingSize returns the embedding dimension of h, or -1 for an unknown handle.
func (r *Registry) EmbeddingSize(h Handle) int {
	e, st := r.resolve(h, "embedding size")
	if st != StatusOK {
		return -1
	}
	n, err := e.bm.EmbeddingSize()
	if err != nil {
		r.status(h, e, "embedding size", err)
		return -1
	}
	return n
}

// StateSize returns the state size of h in bytes, or -1 for an unknown handle.
func (r *Registry) StateSize(h Handle) int {
	e, st := r.resolve(h, "state size")
	if st != StatusOK {
		return -1
	}
	n, err := e.bm.StateSize()
	if err != nil {
		r.status(h, e, "state size", err)
		return -1
	}
	return n
}

// Embeddings computes the normalised embedding of text. dims and threads of
// 0 select the model size and the configured thread count.
func (r *Registry) Embeddings(h Handle, text string, dims, threads int) ([]float32, int) {
	e, st := r.resolve(h, "embeddings")
	if st != StatusOK {
		return nil, st
	}
	v, err := e.bm.Embeddings(text, binding.WithDimensions(dims), binding.WithThreads(threads))
	return v, r.status(h, e, "embeddings", err)
}

// TokenEmbeddings computes the normalised embedding of a token sequence.
func (r *Registry) TokenEmbeddings(h Handle, tokens []int, dims, threads int) ([]float32, int) {
	e, st := r.resolve(h, "token embeddings")
	if st != StatusOK {
		return nil, st
	}
	v, err := e.bm.TokenEmbeddings(tokens, binding.WithDimensions(dims), binding.WithThreads(threads))
	return v, r.status(h, e, "token embeddings", err)
}

// Predict is disabled and always returns StatusFailure.
func (r *Registry) Predict(h Handle, prompt string) (string, int) {
	e, _ := r.lookup(h)
	var bm *binding.BoundModel
	if e != nil {
		bm = e.bm
	}
	_, err := bm.Predict(prompt)
	return "", r.status(h, e, "predict", err)
}

// Eval is disabled and always returns StatusFailure.
func (r *Registry) Eval(h Handle, text string) int {
	e, _ := r.lookup(h)
	var bm *binding.BoundModel
	if e != nil {
		bm = e.bm
	}
	return r.status(h, e, "eval", bm.Eval(text))
}

// TokenizeString is disabled and always returns StatusFailure.
func (r *Registry) TokenizeString(h Handle, text string) ([]int32, int) {
	e, _ := r.lookup(h)
	var bm *binding.BoundModel
	if e != nil {
		bm = e.bm
	}
	_, err := bm.TokenizeString(text)
	return nil, r.status(h, e, "tokenize", err)
}

// SpeculativeSampling is disabled and always returns StatusFailure.
func (r *Registry) SpeculativeSampling(target, draft Handle, prompt string) (string, int) {
	e, _ := r.lookup(target)
	var bm, dm *binding.BoundModel
	if e != nil {
		bm = e.bm
	}
	if d, ok := r.lookup(draft); ok {
		dm = d.bm
	}
	_, err := bm.SpeculativeSampling(dm, prompt)
	return "", r.status(target, e, "speculative sampling", err)
}

// LastError returns the most recent failure recorded for h. For an unknown
// handle, including 0, it returns the last failure not tied to a live handle.
func (r *Registry) LastError(h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[h]; ok {
		return e.lastErr
	}
	return r.lastErr
}

// Close destroys every live handle.
func (r *Registry) Close() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[Handle]*entry)
	r.mu.Unlock()
	for _, e := range entries {
		_ = e.bm.Close()
	}
}

package manager

import (
	"context"

	"llamabind/internal/binding"
	"llamabind/pkg/types"
)

// run loads the model if needed, waits for its in-flight slot and calls fn
// with exclusive access to the BoundModel.
func (m *Manager) run(ctx context.Context, modelID string, fn func(b *binding.BoundModel) error) (string, error) {
	id, err := m.resolveID(modelID)
	if err != nil {
		return "", err
	}
	if err := m.EnsureInstance(ctx, id); err != nil {
		return id, err
	}
	inst, release, err := m.beginOp(ctx, id)
	if err != nil {
		return id, err
	}
	defer release()
	return id, fn(inst.bound)
}

// Embeddings computes one normalised embedding for req.Input, or for
// req.Tokens when no input text is given.
func (m *Manager) Embeddings(ctx context.Context, req types.EmbeddingsRequest) (types.EmbeddingsResponse, error) {
	var vec []float32
	id, err := m.run(ctx, req.Model, func(b *binding.BoundModel) error {
		opts := []binding.EmbedOption{binding.WithDimensions(req.Dimensions), binding.WithThreads(req.Threads)}
		var err error
		if req.Input == "" && len(req.Tokens) > 0 {
			vec, err = b.TokenEmbeddings(req.Tokens, opts...)
		} else {
			vec, err = b.Embeddings(req.Input, opts...)
		}
		return err
	})
	if err != nil {
		return types.EmbeddingsResponse{}, err
	}
	return types.EmbeddingsResponse{Model: id, Embedding: vec, Dimensions: len(vec)}, nil
}

// SaveState writes the context state of the model to req.Path.
func (m *Manager) SaveState(ctx context.Context, req types.StateRequest) (types.StateResponse, error) {
	var n int
	id, err := m.run(ctx, req.Model, func(b *binding.BoundModel) error {
		if err := b.SaveStateFile(req.Path, req.Mode); err != nil {
			return err
		}
		n = m.loadedStateSize(b)
		return nil
	})
	if err != nil {
		return types.StateResponse{}, err
	}
	m.emit("state_saved", id, map[string]any{"path": req.Path, "bytes": n})
	return types.StateResponse{Model: id, Path: req.Path, Bytes: n}, nil
}

// LoadState restores the context state of the model from req.Path.
func (m *Manager) LoadState(ctx context.Context, req types.StateRequest) (types.StateResponse, error) {
	var n int
	id, err := m.run(ctx, req.Model, func(b *binding.BoundModel) error {
		if err := b.LoadStateFile(req.Path, req.Mode); err != nil {
			return err
		}
		n = m.loadedStateSize(b)
		return nil
	})
	if err != nil {
		return types.StateResponse{}, err
	}
	m.emit("state_loaded", id, map[string]any{"path": req.Path, "bytes": n})
	return types.StateResponse{Model: id, Path: req.Path, Bytes: n}, nil
}

// loadedStateSize returns the state size measured when b was loaded.
// Measuring again would cost a full state dump on engines without a size
// query.
func (m *Manager) loadedStateSize(b *binding.BoundModel) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, inst := range m.instances {
		if inst.bound == b {
			return inst.StateSize
		}
	}
	return 0
}

// Predict is disabled: text generation is not wired to the engine. It fails
// without loading anything.
func (m *Manager) Predict(ctx context.Context, req types.PredictRequest) error {
	var b *binding.BoundModel
	_, err := b.Predict(req.Prompt)
	return err
}

// Package engine is the boundary to the wrapped native inference library.
//
// Everything behind these interfaces belongs to the engine: model weights,
// tokenizer, decode loop and the layout of the runtime state blob. The binding
// layer only sequences calls and owns the returned resources.
//
// Build tags:
//
//   - `-tags=llama`: go-skynet/go-llama.cpp backed engine (engine_llama.go).
//   - default: CGO-free stub whose Load fails with ErrUnavailable.
//
// The memengine subpackage provides a deterministic pure-Go engine that runs
// without any native library.
package engine

import "errors"

// MaxDevices is the fixed capacity of the per-device tensor split array.
const MaxDevices = 16

var (
	ErrModelLoad     = errors.New("unable to load model")
	ErrContextInit   = errors.New("unable to create context")
	ErrAdapterLoad   = errors.New("unable to load adapter")
	ErrInvalidParams = errors.New("invalid engine parameters")
	ErrUnavailable   = errors.New("engine not available in this build")
)

// Engine loads models. Init must be safe to call more than once.
type Engine interface {
	Name() string
	Init(numa bool)
	Load(p LoadParams) (*Loaded, error)
}

// Loaded is the product of a successful Load. Model and Context are always
// both non-nil; Adapters follow the order of LoadParams.Adapters.
type Loaded struct {
	Model    Model
	Context  Context
	Adapters []Adapter
}

// Model is a loaded set of weights.
type Model interface {
	EmbeddingSize() int
	Free()
}

// Context is an inference context bound to a Model. It is not safe for
// concurrent use.
type Context interface {
	// StateSize reports the number of bytes CopyState needs right now.
	StateSize() int
	// CopyState writes the runtime state into dst and returns the bytes written.
	CopyState(dst []byte) int
	// SetState installs src as the runtime state and returns the bytes read.
	SetState(src []byte) int
	Embed(prompt string, threads int) ([]float32, error)
	EmbedTokens(tokens []int, threads int) ([]float32, error)
	Free()
}

// Adapter is an auxiliary overlay attached to a model.
type Adapter interface {
	Path() string
	Free()
}

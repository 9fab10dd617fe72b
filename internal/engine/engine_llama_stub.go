//go:build !llama

package engine

// This file provides a no-CGO stub for the llama engine. It is compiled when
// the 'llama' build tag is NOT set, keeping default builds and CI CGO-free.

import "fmt"

// llamaBuilt indicates this binary was compiled without real llama support.
const llamaBuilt = false

type stubEngine struct{}

// Native returns the engine compiled into this binary.
func Native() Engine { return stubEngine{} }

func (stubEngine) Name() string { return "llama" }

func (stubEngine) Init(numa bool) {}

func (stubEngine) Load(p LoadParams) (*Loaded, error) {
	// Fail fast: llama runtime not available in this build.
	return nil, fmt.Errorf("%w: llama support not built (missing 'llama' build tag)", ErrUnavailable)
}

package boundary

import (
	"llamabind/internal/binding"
	"llamabind/internal/engine"
)

// Default is the process-wide registry used by the package-level functions.
var Default = NewRegistry()

// Create issues a handle from Default.
func Create(eng engine.Engine, cfg binding.Config) (Handle, error) {
	return Default.Create(eng, cfg)
}

func Destroy(h Handle) int { return Default.Destroy(h) }

func SaveState(h Handle, path, mode string) int { return Default.SaveState(h, path, mode) }

func LoadState(h Handle, path, mode string) int { return Default.LoadState(h, path, mode) }

func EmbeddingSize(h Handle) int { return Default.EmbeddingSize(h) }

func Embeddings(h Handle, text string, dims, threads int) ([]float32, int) {
	return Default.Embeddings(h, text, dims, threads)
}

func StateSize(h Handle) int { return Default.StateSize(h) }

func TokenEmbeddings(h Handle, tokens []int, dims, threads int) ([]float32, int) {
	return Default.TokenEmbeddings(h, tokens, dims, threads)
}

func Predict(h Handle, prompt string) (string, int) { return Default.Predict(h, prompt) }

func LastError(h Handle) error { return Default.LastError(h) }

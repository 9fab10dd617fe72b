package manager

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"llamabind/internal/binding"
	"llamabind/internal/engine"
	"llamabind/internal/engine/memengine"
	"llamabind/internal/registry"
	"llamabind/pkg/types"
)

// createModelFile creates a file of approximately sizeMB megabytes and returns its path.
func createModelFile(t *testing.T, dir, name string, sizeMB int) string {
	t.Helper()
	if sizeMB <= 0 {
		sizeMB = 1
	}
	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	if err != nil {
		t.Fatalf("create file: %v", err)
	}
	defer f.Close()
	block := make([]byte, 1024*1024)
	copy(block, name)
	for i := 0; i < sizeMB; i++ {
		if _, err := f.Write(block); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	return p
}

func entry(t *testing.T, dir, id string, sizeMB int) registry.Entry {
	t.Helper()
	p := createModelFile(t, dir, id+".gguf", sizeMB)
	return registry.Entry{
		Model:  types.Model{ID: id, Name: id, Path: p, SizeBytes: int64(sizeMB) << 20},
		Config: binding.Config{Model: p, ContextSize: 64, Threads: 1},
	}
}

// newTestManager builds a manager over memengine with one model per id.
func newTestManager(t *testing.T, cfg ManagerConfig, ids ...string) (*Manager, *memengine.Engine) {
	t.Helper()
	dir := t.TempDir()
	eng := memengine.New(memengine.WithEmbeddingSize(16))
	for _, id := range ids {
		cfg.Registry = append(cfg.Registry, entry(t, dir, id, 1))
	}
	cfg.Engine = eng
	m := NewWithConfig(cfg)
	t.Cleanup(func() { _ = m.Close() })
	return m, eng
}

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return c
}

// gatedEngine holds every Load until release is closed.
type gatedEngine struct {
	*memengine.Engine
	entered chan struct{}
	release chan struct{}
}

func newGatedEngine() *gatedEngine {
	return &gatedEngine{
		Engine:  memengine.New(memengine.WithEmbeddingSize(16)),
		entered: make(chan struct{}, 8),
		release: make(chan struct{}),
	}
}

func (e *gatedEngine) Load(p engine.LoadParams) (*engine.Loaded, error) {
	e.entered <- struct{}{}
	<-e.release
	return e.Engine.Load(p)
}

package httpapi

import (
	"os"
	"path/filepath"
	"testing"

	"llamabind/internal/binding"
	"llamabind/internal/engine/memengine"
	"llamabind/internal/manager"
	"llamabind/internal/registry"
	"llamabind/pkg/types"
)

// newManager builds a real manager over memengine with one small model per id.
func newManager(t *testing.T, cfg manager.ManagerConfig, ids ...string) *manager.Manager {
	t.Helper()
	dir := t.TempDir()
	for _, id := range ids {
		p := filepath.Join(dir, id+".gguf")
		if err := os.WriteFile(p, []byte("weights of "+id), 0o644); err != nil {
			t.Fatalf("write model: %v", err)
		}
		cfg.Registry = append(cfg.Registry, registry.Entry{
			Model:  types.Model{ID: id, Name: id, Path: p, SizeBytes: 1 << 20},
			Config: binding.Config{Model: p, ContextSize: 32, Threads: 1},
		})
	}
	cfg.Engine = memengine.New(memengine.WithEmbeddingSize(8))
	m := manager.NewWithConfig(cfg)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

// withStateDir points the state endpoints at a fresh directory for one test.
func withStateDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	SetStateDir(dir)
	t.Cleanup(func() { SetStateDir("") })
	return dir
}

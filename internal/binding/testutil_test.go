package binding

import (
	"os"
	"path/filepath"
	"testing"

	"llamabind/internal/engine"
	"llamabind/internal/engine/memengine"
)

// writeFile creates dir/name with content and returns its path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

// newBound creates a BoundModel on a fresh memengine and closes it at cleanup.
func newBound(t *testing.T, cfg Config) (*BoundModel, *memengine.Engine) {
	t.Helper()
	eng := memengine.New()
	b, err := Create(eng, cfg)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	t.Cleanup(func() {
		if !b.Closed() {
			_ = b.Close()
		}
	})
	return b, eng
}

func smallConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	return Config{
		Model:       writeFile(t, dir, "tiny.gguf", "tiny model weights"),
		ContextSize: 64,
		Threads:     1,
	}
}

// countingEngine wraps memengine under its own name and counts backend inits
// and StateSize calls. The tags slice makes its values non-comparable.
type countingEngine struct {
	*memengine.Engine
	name  string
	inits *int
	sizes *int
	tags  []string
}

func newCountingEngine(name string) countingEngine {
	return countingEngine{Engine: memengine.New(), name: name, inits: new(int), sizes: new(int), tags: []string{name}}
}

func (e countingEngine) Name() string { return e.name }

func (e countingEngine) Init(numa bool) { *e.inits++ }

func (e countingEngine) Load(p engine.LoadParams) (*engine.Loaded, error) {
	l, err := e.Engine.Load(p)
	if err != nil {
		return nil, err
	}
	l.Context = countingContext{Context: l.Context, sizes: e.sizes}
	return l, nil
}

type countingContext struct {
	engine.Context
	sizes *int
}

func (c countingContext) StateSize() int {
	*c.sizes++
	return c.Context.StateSize()
}

package boundary

import (
	"os"
	"path/filepath"
	"testing"

	"llamabind/internal/binding"
	"llamabind/internal/engine/memengine"
)

func testConfig(t *testing.T) binding.Config {
	t.Helper()
	p := filepath.Join(t.TempDir(), "m.gguf")
	if err := os.WriteFile(p, []byte("boundary weights"), 0o644); err != nil {
		t.Fatal(err)
	}
	return binding.Config{Model: p, ContextSize: 32, Threads: 1}
}

func TestCreateDestroy(t *testing.T) {
	r := NewRegistry()
	eng := memengine.New()
	h, err := r.Create(eng, testConfig(t))
	if err != nil || h == 0 {
		t.Fatalf("create: h=%d err=%v", h, err)
	}
	if r.EmbeddingSize(h) != 64 {
		t.Fatalf("embedding size = %d", r.EmbeddingSize(h))
	}
	// rng + n_past + logits + kv cache
	if want := 8 + 4 + 4*257 + 4*32*64; r.StateSize(h) != want {
		t.Fatalf("state size = %d, want %d", r.StateSize(h), want)
	}
	if st := r.Destroy(h); st != StatusOK {
		t.Fatalf("destroy status %d", st)
	}
	if r.Len() != 0 {
		t.Fatalf("handle not forgotten")
	}
	if st := r.Destroy(h); st != StatusFailure {
		t.Fatalf("second destroy status %d", st)
	}
	if r.EmbeddingSize(h) != -1 || r.StateSize(h) != -1 {
		t.Fatalf("stale handle resolved")
	}
	if r.LastError(h) == nil {
		t.Fatalf("no diagnostic for stale handle")
	}
	if len(eng.Released()) != 2 || eng.DoubleFrees() != 0 {
		t.Fatalf("release log %v double=%d", eng.Released(), eng.DoubleFrees())
	}
}

func TestCreateFailure(t *testing.T) {
	r := NewRegistry()
	cfg := testConfig(t)
	cfg.Model = filepath.Join(t.TempDir(), "missing.bin")
	h, err := r.Create(memengine.New(), cfg)
	if h != 0 || !binding.IsModelLoadFailure(err) {
		t.Fatalf("h=%d err=%v", h, err)
	}
	if !binding.IsModelLoadFailure(r.LastError(0)) {
		t.Fatalf("LastError(0) = %v", r.LastError(0))
	}
}

func TestStateStatusCodes(t *testing.T) {
	r := NewRegistry()
	t.Cleanup(r.Close)
	cfg := testConfig(t)
	a, _ := r.Create(memengine.New(), cfg)
	b, _ := r.Create(memengine.New(), cfg)
	path := filepath.Join(t.TempDir(), "state.bin")

	if _, st := r.Embeddings(a, "prime the cache", 0, 0); st != StatusOK {
		t.Fatalf("embeddings status %d: %v", st, r.LastError(a))
	}
	if st := r.SaveState(a, path, "wb"); st != StatusOK {
		t.Fatalf("save status %d: %v", st, r.LastError(a))
	}
	if st := r.LoadState(b, path, "rb"); st != StatusOK {
		t.Fatalf("load status %d: %v", st, r.LastError(b))
	}
	va, _ := r.Embeddings(a, "next", 4, 0)
	vb, _ := r.Embeddings(b, "next", 4, 0)
	if len(va) != 4 {
		t.Fatalf("dims not honoured: %d", len(va))
	}
	for i := range va {
		if va[i] != vb[i] {
			t.Fatalf("restored handle diverges at %d", i)
		}
	}

	fi, _ := os.Stat(path)
	if err := os.Truncate(path, fi.Size()-1); err != nil {
		t.Fatal(err)
	}
	if st := r.LoadState(b, path, "rb"); st != StatusFailure {
		t.Fatalf("truncated load status %d", st)
	}
	if binding.KindOf(r.LastError(b)) != binding.ShortRead {
		t.Fatalf("LastError = %v", r.LastError(b))
	}
}

func TestDisabledOperationsFail(t *testing.T) {
	r := NewRegistry()
	t.Cleanup(r.Close)
	h, _ := r.Create(memengine.New(), testConfig(t))
	if _, st := r.Predict(h, "p"); st != StatusFailure {
		t.Fatalf("predict status %d", st)
	}
	if st := r.Eval(h, "p"); st != StatusFailure {
		t.Fatalf("eval status %d", st)
	}
	if _, st := r.TokenizeString(h, "p"); st != StatusFailure {
		t.Fatalf("tokenize status %d", st)
	}
	if _, st := r.SpeculativeSampling(h, h, "p"); st != StatusFailure {
		t.Fatalf("speculative status %d", st)
	}
	if !binding.IsUnsupported(r.LastError(h)) {
		t.Fatalf("LastError = %v", r.LastError(h))
	}
	if _, st := r.Predict(Handle(999), "p"); st != StatusFailure {
		t.Fatalf("predict on unknown handle status %d", st)
	}
}

func TestDefaultRegistry(t *testing.T) {
	h, err := Create(memengine.New(), testConfig(t))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if EmbeddingSize(h) != 64 {
		t.Fatalf("embedding size = %d", EmbeddingSize(h))
	}
	if st := Destroy(h); st != StatusOK {
		t.Fatalf("destroy: %v", LastError(h))
	}
}

package manager

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"llamabind/internal/binding"
	"llamabind/internal/registry"
	"llamabind/pkg/types"
)

func TestEnsureInstance_LoadsAndReportsReady(t *testing.T) {
	pub := NewMemoryPublisher()
	m, eng := newTestManager(t, ManagerConfig{Publisher: pub, DefaultModel: "a"}, "a")
	if m.Ready() {
		t.Fatalf("ready before any load")
	}
	if err := m.EnsureInstance(testCtx(t), ""); err != nil {
		t.Fatalf("EnsureInstance: %v", err)
	}
	if !m.Ready() {
		t.Fatalf("not ready after load")
	}
	if err := m.EnsureInstance(testCtx(t), "a"); err != nil {
		t.Fatalf("second EnsureInstance: %v", err)
	}
	st := m.Status()
	if st.LoadsTotal != 1 || len(st.Instances) != 1 {
		t.Fatalf("unexpected status: %+v", st)
	}
	in := st.Instances[0]
	if in.ModelID != "a" || in.State != "ready" || in.EmbeddingSize != 16 || in.StateSize == 0 || in.Engine != "mem" {
		t.Fatalf("unexpected instance: %+v", in)
	}
	// init is once per engine name per process, so an earlier test may own it
	if eng.Inits() > 1 {
		t.Fatalf("backend inits = %d", eng.Inits())
	}
	names := pub.Names()
	if len(names) < 2 || names[0] != "ensure_start" || names[len(names)-1] != "ensure_ready" {
		t.Fatalf("events: %v", names)
	}
	if snap := m.Snapshot(); snap.State != StateReady || snap.Current != "a" {
		t.Fatalf("snapshot: %+v", snap)
	}
}

func TestEnsureInstance_ModelNotFound(t *testing.T) {
	m, _ := newTestManager(t, ManagerConfig{}, "a")
	if err := m.EnsureInstance(testCtx(t), "missing"); !IsModelNotFound(err) {
		t.Fatalf("expected model not found, got %v", err)
	}
	if err := m.EnsureInstance(testCtx(t), ""); !IsModelNotFound(err) {
		t.Fatalf("no default: expected model not found, got %v", err)
	}
}

func TestEnsureInstance_LoadFailure(t *testing.T) {
	m := NewWithConfig(ManagerConfig{
		Registry: []registry.Entry{{
			Model:  types.Model{ID: "gone"},
			Config: binding.Config{Model: filepath.Join(t.TempDir(), "gone.gguf")},
		}},
		Engine: newEngine(),
	})
	err := m.EnsureInstance(testCtx(t), "gone")
	if !binding.IsModelLoadFailure(err) {
		t.Fatalf("expected model load failure, got %v", err)
	}
	st := m.Status()
	if len(st.Instances) != 0 || st.LastError == "" || st.State != string(StateError) {
		t.Fatalf("unexpected status after failed load: %+v", st)
	}
	if m.Ready() {
		t.Fatalf("ready after failed load")
	}
}

func TestEnsureInstance_NoEngine(t *testing.T) {
	m := NewWithConfig(ManagerConfig{Registry: []registry.Entry{{Model: types.Model{ID: "a"}}}})
	if err := m.EnsureInstance(testCtx(t), "a"); !IsDependencyUnavailable(err) {
		t.Fatalf("expected dependency unavailable, got %v", err)
	}
}

func TestEnsureInstance_ConcurrentCallsShareOneLoad(t *testing.T) {
	m, eng := newTestManager(t, ManagerConfig{}, "a")
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- m.EnsureInstance(testCtx(t), "a")
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("EnsureInstance: %v", err)
		}
	}
	if m.Status().LoadsTotal != 1 {
		t.Fatalf("loads = %d", m.Status().LoadsTotal)
	}
	if eng.DoubleFrees() != 0 || len(eng.Released()) != 0 {
		t.Fatalf("unexpected releases: %v", eng.Released())
	}
}

func TestEnsureInstance_CanceledWaiterDoesNotFailSharedLoad(t *testing.T) {
	eng := newGatedEngine()
	m := NewWithConfig(ManagerConfig{Registry: []registry.Entry{entry(t, t.TempDir(), "a", 1)}, Engine: eng})
	t.Cleanup(func() { _ = m.Close() })

	first, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() { firstErr <- m.EnsureInstance(first, "a") }()
	select {
	case <-eng.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("load never started")
	}

	secondErr := make(chan error, 1)
	go func() { secondErr <- m.EnsureInstance(testCtx(t), "a") }()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	select {
	case err := <-firstErr:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("canceled caller: got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("canceled caller kept waiting for the load")
	}

	close(eng.release)
	if err := <-secondErr; err != nil {
		t.Fatalf("live caller failed: %v", err)
	}
	if !m.Ready() || m.Status().LoadsTotal != 1 {
		t.Fatalf("status after shared load: %+v", m.Status())
	}
}

func TestListModels(t *testing.T) {
	m, _ := newTestManager(t, ManagerConfig{}, "a", "b")
	models := m.ListModels()
	if len(models) != 2 || models[0].ID != "a" || models[1].ID != "b" {
		t.Fatalf("models: %+v", models)
	}
}

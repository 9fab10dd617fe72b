package manager

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestEvict_LRUWhenOverBudget(t *testing.T) {
	pub := NewMemoryPublisher()
	m, _ := newTestManager(t, ManagerConfig{BudgetMB: 2, Publisher: pub}, "a", "b", "c")
	ctx := context.Background()
	if err := m.EnsureInstance(ctx, "a"); err != nil {
		t.Fatalf("a: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if err := m.EnsureInstance(ctx, "b"); err != nil {
		t.Fatalf("b: %v", err)
	}
	if err := m.EnsureInstance(ctx, "c"); err != nil {
		t.Fatalf("c: %v", err)
	}
	st := m.Status()
	if st.EvictionsTotal != 1 || st.UsedMB != 2 {
		t.Fatalf("unexpected status: %+v", st)
	}
	ids := map[string]bool{}
	for _, in := range st.Instances {
		ids[in.ModelID] = true
	}
	if ids["a"] || !ids["b"] || !ids["c"] {
		t.Fatalf("wrong instance evicted: %v", ids)
	}
}

func TestEvict_SkipsBusyInstances(t *testing.T) {
	pub := NewMemoryPublisher()
	m, _ := newTestManager(t, ManagerConfig{BudgetMB: 1, Publisher: pub}, "a", "b")
	ctx := context.Background()
	if err := m.EnsureInstance(ctx, "a"); err != nil {
		t.Fatalf("a: %v", err)
	}
	_, rel, err := m.beginOp(ctx, "a")
	if err != nil {
		t.Fatalf("beginOp: %v", err)
	}
	defer rel()
	if err := m.EnsureInstance(ctx, "b"); err != nil {
		t.Fatalf("b: %v", err)
	}
	if m.Status().EvictionsTotal != 0 {
		t.Fatalf("busy instance evicted")
	}
	found := false
	for _, n := range pub.Names() {
		if n == "evict_budget_exceeded" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected evict_budget_exceeded event, got %v", pub.Names())
	}
}

func TestEvict_LogsReleaseFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(zerolog.SyncWriter(&buf)).Level(zerolog.WarnLevel)
	m, _ := newTestManager(t, ManagerConfig{BudgetMB: 1, Logger: &logger}, "a", "b")
	ctx := context.Background()
	if err := m.EnsureInstance(ctx, "a"); err != nil {
		t.Fatalf("a: %v", err)
	}
	// a handle closed behind the manager's back fails its second Close
	m.mu.RLock()
	_ = m.instances["a"].bound.Close()
	m.mu.RUnlock()

	if err := m.EnsureInstance(ctx, "b"); err != nil {
		t.Fatalf("b: %v", err)
	}
	if m.Status().EvictionsTotal != 1 {
		t.Fatalf("a was not evicted: %+v", m.Status())
	}
	out := buf.String()
	if !strings.Contains(out, "did not release cleanly") || !strings.Contains(out, `"model":"a"`) {
		t.Fatalf("release failure not logged: %s", out)
	}
}

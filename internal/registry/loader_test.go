package registry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"llamabind/internal/binding"
	"llamabind/internal/config"
)

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("gguf"), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return p
}

func TestLoadDirFiltersGGUF(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"a.gguf", "b.GGUF", "not-model.txt", "model.bin"} {
		touch(t, dir, f)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.gguf"), 0o755); err != nil {
		t.Fatal(err)
	}
	models, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("expected 2 models, got %d", len(models))
	}
	for _, m := range models {
		if !strings.HasSuffix(strings.ToLower(m.ID), ".gguf") || !filepath.IsAbs(m.Path) || m.SizeBytes != 4 {
			t.Fatalf("unexpected model: %+v", m)
		}
	}
}

func TestLoadDirMissing(t *testing.T) {
	if _, err := LoadDir(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatalf("expected error for missing dir")
	}
}

func TestBuildMergesEntries(t *testing.T) {
	dir := t.TempDir()
	disc := touch(t, dir, "disc.gguf")
	touch(t, dir, "plain.gguf")
	touch(t, dir, "rel.bin")

	override := config.ModelEntry{ID: "disc.gguf"}
	override.ContextSize = 1024
	rel := config.ModelEntry{ID: "rel"}
	rel.Model = "rel.bin"
	rel.FrequencyBase = binding.Float32(20000)

	entries, err := Build(dir, []config.ModelEntry{override, rel})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %+v", entries)
	}
	got := map[string]Entry{}
	for _, e := range entries {
		got[e.ID] = e
	}
	if e := got["disc.gguf"]; e.Config.Model != disc || e.Config.ContextSize != 1024 {
		t.Fatalf("override not applied: %+v", e)
	}
	if e := got["rel"]; e.Config.Model != filepath.Join(dir, "rel.bin") || *e.Config.FrequencyBase != 20000 {
		t.Fatalf("relative entry not resolved: %+v", e)
	}
	if e := got["plain.gguf"]; e.Config.Model != e.Path {
		t.Fatalf("discovered entry has no model path: %+v", e)
	}
	if len(Models(entries)) != 3 || entries[0].ID != "disc.gguf" {
		t.Fatalf("entries not sorted: %v", Models(entries))
	}
}

func TestBuildEntryWithoutPath(t *testing.T) {
	if _, err := Build("", []config.ModelEntry{{ID: "ghost"}}); err == nil {
		t.Fatalf("expected error for entry without path")
	}
}

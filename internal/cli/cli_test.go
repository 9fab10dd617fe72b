package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"llamabind/internal/binding"
	"llamabind/internal/engine/memengine"
	"llamabind/pkg/types"
)

// default context (512) with the mem engine's default embedding size (64)
const defaultStateSize = 8 + 4 + 4*257 + 4*512*64

type result struct {
	stdout, stderr string
	code           int
}

func run(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var out, errb bytes.Buffer
	cfg := &Config{
		Engine:   "mem",
		LogLevel: "error",
		Stdin:    strings.NewReader(stdin),
		Stdout:   &out,
		Stderr:   &errb,
	}
	code := Main(args, cfg)
	return result{stdout: out.String(), stderr: errb.String(), code: code}
}

func writeModel(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("cli weights "+name), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}
	return p
}

func decodeEmbedding(t *testing.T, s string) types.EmbeddingsResponse {
	t.Helper()
	var resp types.EmbeddingsResponse
	if err := json.Unmarshal([]byte(s), &resp); err != nil {
		t.Fatalf("json: %v (%q)", err, s)
	}
	return resp
}

func TestEmbedText(t *testing.T) {
	model := writeModel(t, t.TempDir(), "m.gguf")
	res := run(t, "", "embed", "-m", model, "-p", "hello", "--dims", "4")
	if res.code != 0 {
		t.Fatalf("exit %d: %s", res.code, res.stderr)
	}
	if fields := strings.Fields(res.stdout); len(fields) != 4 {
		t.Fatalf("expected 4 values, got %q", res.stdout)
	}
}

func TestEmbedStdinMatchesPrompt(t *testing.T) {
	model := writeModel(t, t.TempDir(), "m.gguf")
	fromFlag := run(t, "", "embed", "-m", model, "-p", "hello", "--format", "json")
	fromStdin := run(t, "hello\n", "embed", "-m", model, "--format", "json")
	if fromFlag.code != 0 || fromStdin.code != 0 {
		t.Fatalf("exit codes %d/%d: %s %s", fromFlag.code, fromStdin.code, fromFlag.stderr, fromStdin.stderr)
	}
	a, b := decodeEmbedding(t, fromFlag.stdout), decodeEmbedding(t, fromStdin.stdout)
	if a.Dimensions != 64 {
		t.Fatalf("dimensions=%d", a.Dimensions)
	}
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("stdin embedding differs (-flag +stdin):\n%s", diff)
	}
}

func TestEmbedErrors(t *testing.T) {
	dir := t.TempDir()
	model := writeModel(t, dir, "m.gguf")
	cases := map[string]struct {
		stdin string
		args  []string
		want  string
	}{
		"no model":      {"", []string{"embed", "-p", "x"}, "model is required"},
		"missing model": {"", []string{"embed", "-m", filepath.Join(dir, "nope.gguf"), "-p", "x"}, "model not found"},
		"bad format":    {"", []string{"embed", "-m", model, "-p", "x", "--format", "xml"}, "unknown --format"},
		"empty stdin":   {"", []string{"embed", "-m", model}, "prompt is required"},
		"bad dims":      {"", []string{"embed", "-m", model, "-p", "x", "--dims", "-2"}, "dimensions must not be negative"},
		"bad split":     {"", []string{"embed", "-m", model, "-p", "x", "--tensor-split", "a,b"}, "tensor_split"},
		"bad engine":    {"", []string{"--engine", "gpu9000", "embed", "-m", model, "-p", "x"}, "unknown engine"},
		"bad log level": {"", []string{"--log-level", "loud", "embed", "-m", model, "-p", "x"}, "invalid --log-level"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			res := run(t, tc.stdin, tc.args...)
			if res.code != 1 {
				t.Fatalf("exit %d, want 1", res.code)
			}
			if !strings.Contains(res.stderr, tc.want) {
				t.Fatalf("stderr %q does not mention %q", res.stderr, tc.want)
			}
		})
	}
}

func TestInfo(t *testing.T) {
	model := writeModel(t, t.TempDir(), "m.gguf")
	res := run(t, "", "info", "-m", model, "--format", "json")
	if res.code != 0 {
		t.Fatalf("exit %d: %s", res.code, res.stderr)
	}
	var got modelInfo
	if err := json.Unmarshal([]byte(res.stdout), &got); err != nil {
		t.Fatalf("json: %v", err)
	}
	want := modelInfo{Model: model, Engine: "mem", EmbeddingSize: 64, StateSize: defaultStateSize}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("info mismatch (-want +got):\n%s", diff)
	}

	res = run(t, "", "info", "-m", model, "--embedding-size", "16")
	if res.code != 0 || !strings.Contains(res.stdout, "embedding_size: 16") {
		t.Fatalf("text info: exit %d out %q", res.code, res.stdout)
	}
}

func TestStateSaveThenLoad(t *testing.T) {
	dir := t.TempDir()
	model := writeModel(t, dir, "m.gguf")
	state := filepath.Join(dir, "session.bin")

	res := run(t, "", "state", "save", "-m", model, "-p", "hello", "-o", state)
	if res.code != 0 {
		t.Fatalf("save exit %d: %s", res.code, res.stderr)
	}
	fi, err := os.Stat(state)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if fi.Size() != defaultStateSize {
		t.Fatalf("state file is %d bytes, want %d", fi.Size(), defaultStateSize)
	}

	res = run(t, "", "state", "load", "-m", model, "-i", state, "-p", "world", "--format", "json")
	if res.code != 0 {
		t.Fatalf("load exit %d: %s", res.code, res.stderr)
	}
	got := decodeEmbedding(t, res.stdout)

	// Same model and context, evaluated in one process.
	b, err := binding.Create(memengine.New(), binding.Config{Model: model})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer b.Close()
	if _, err := b.Embeddings("hello"); err != nil {
		t.Fatalf("embed: %v", err)
	}
	want, err := b.Embeddings("world")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if diff := cmp.Diff(want, got.Embedding, cmpopts.EquateApprox(0, 1e-6)); diff != "" {
		t.Fatalf("restored context diverged (-want +got):\n%s", diff)
	}
}

func TestStateLoadTruncatedFile(t *testing.T) {
	dir := t.TempDir()
	model := writeModel(t, dir, "m.gguf")
	state := filepath.Join(dir, "short.bin")
	if err := os.WriteFile(state, []byte{1, 2, 3}, 0o644); err != nil {
		t.Fatal(err)
	}
	res := run(t, "", "state", "load", "-m", model, "-i", state)
	if res.code != 1 {
		t.Fatalf("exit %d, want 1", res.code)
	}
	if !strings.Contains(res.stderr, "read 3 of") {
		t.Fatalf("stderr %q", res.stderr)
	}
}

func TestStateUsageErrors(t *testing.T) {
	model := writeModel(t, t.TempDir(), "m.gguf")
	for _, args := range [][]string{
		{"state"},
		{"state", "save", "-m", model},
		{"state", "load", "-m", model},
		{"state", "save", "-m", model, "-o", filepath.Join(t.TempDir(), "s.bin"), "--mode", "rb"},
	} {
		if res := run(t, "", args...); res.code != 1 {
			t.Fatalf("%v: exit %d", args, res.code)
		}
	}
}

func TestPredictAlwaysFails(t *testing.T) {
	res := run(t, "", "predict", "-p", "once upon a time")
	if res.code != 1 {
		t.Fatalf("exit %d, want 1", res.code)
	}
	if !strings.Contains(res.stderr, "predict is disabled") {
		t.Fatalf("stderr %q", res.stderr)
	}
}

func TestSplitCSV(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b , c ", []string{"a", "b", "c"}},
		{"a,,c", []string{"a", "c"}},
		{"", nil},
	}
	for _, c := range cases {
		if diff := cmp.Diff(c.want, splitCSV(c.in)); diff != "" {
			t.Fatalf("%q (-want +got):\n%s", c.in, diff)
		}
	}
}

//go:build llama

package engine

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	llama "github.com/go-skynet/go-llama.cpp"
)

// llamaBuilt indicates this binary was compiled with real llama support.
const llamaBuilt = true

// llamaEngine drives go-llama.cpp. The upstream binding creates model and
// context in a single call, so both handles share one *llama.LLama.
type llamaEngine struct{}

// Native returns the engine compiled into this binary.
func Native() Engine { return llamaEngine{} }

func (llamaEngine) Name() string { return "llama" }

// Init is a no-op here: load_model brings the ggml backend up itself.
func (llamaEngine) Init(numa bool) {}

func (llamaEngine) Load(p LoadParams) (*Loaded, error) {
	if strings.TrimSpace(p.ModelPath) == "" {
		return nil, fmt.Errorf("%w: model path is empty", ErrInvalidParams)
	}
	if len(p.Adapters) > 1 {
		return nil, fmt.Errorf("%w: go-llama.cpp applies at most one adapter, got %d", ErrInvalidParams, len(p.Adapters))
	}
	// go-llama.cpp sizes the embedding buffer from the caller and cannot
	// report n_embd on its own.
	if p.EmbeddingSize <= 0 {
		return nil, fmt.Errorf("%w: embedding_size is required by the llama engine", ErrInvalidParams)
	}
	l, err := llama.New(p.ModelPath, modelOptions(p))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
	}
	m := &llamaModel{l: l, nEmbd: p.EmbeddingSize}
	out := &Loaded{Model: m, Context: &llamaContext{m: m}}
	for _, a := range p.Adapters {
		out.Adapters = append(out.Adapters, llamaAdapter{path: a.Path})
	}
	return out, nil
}

// modelOptions maps resolved params onto go-llama.cpp model options.
func modelOptions(p LoadParams) llama.ModelOption {
	return func(o *llama.ModelOptions) {
		o.ContextSize = p.ContextSize
		o.Seed = p.Seed
		o.NBatch = p.Batch
		o.F16Memory = p.F16Memory
		o.MLock = p.MLock
		o.MMap = p.MMap
		o.LowVRAM = p.LowVRAM
		o.NUMA = p.NUMA
		o.Embeddings = true
		o.NGPULayers = p.GPULayers
		o.MainGPU = strconv.Itoa(p.MainGPU)
		o.TensorSplit = formatSplit(p)
		o.FreqRopeBase = p.FreqBase
		o.FreqRopeScale = p.FreqScale
		mmq := p.MulMatQ
		o.MulMatQ = &mmq
		o.Perplexity = p.Perplexity
		if len(p.Adapters) == 1 {
			o.LoraAdapter = p.Adapters[0].Path
			o.LoraBase = p.AdapterBase
		}
	}
}

// formatSplit renders the split array back into the comma form load_model parses.
func formatSplit(p LoadParams) string {
	n := p.SplitCount()
	if n == 0 {
		return ""
	}
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = strconv.FormatFloat(float64(p.TensorSplit[i]), 'g', -1, 32)
	}
	return strings.Join(parts, ",")
}

type llamaModel struct {
	l     *llama.LLama
	nEmbd int
}

func (m *llamaModel) EmbeddingSize() int { return m.nEmbd }

func (m *llamaModel) Free() {
	if m.l != nil {
		m.l.Free()
		m.l = nil
	}
}

// llamaContext borrows the model's *llama.LLama. go-llama.cpp only exposes
// state through files, so copy-out and copy-in go through a scratch file and
// every StateSize costs a full dump. The dump taken by StateSize is kept in
// pending for the CopyState that usually follows; any other call drops it.
type llamaContext struct {
	m       *llamaModel
	freed   bool
	pending []byte
}

var errFreed = errors.New("llama context freed")

func (c *llamaContext) live() (*llama.LLama, error) {
	if c.freed || c.m == nil || c.m.l == nil {
		return nil, errFreed
	}
	return c.m.l, nil
}

func (c *llamaContext) snapshot() ([]byte, error) {
	l, err := c.live()
	if err != nil {
		return nil, err
	}
	f, err := os.CreateTemp("", "llamabind-state-*")
	if err != nil {
		return nil, err
	}
	name := f.Name()
	_ = f.Close()
	defer os.Remove(name)
	if err := l.SaveState(name); err != nil {
		return nil, err
	}
	return os.ReadFile(name)
}

func (c *llamaContext) StateSize() int {
	b, err := c.snapshot()
	if err != nil {
		c.pending = nil
		return 0
	}
	c.pending = b
	return len(b)
}

func (c *llamaContext) CopyState(dst []byte) int {
	b := c.pending
	c.pending = nil
	if b == nil {
		var err error
		if b, err = c.snapshot(); err != nil {
			return 0
		}
	}
	return copy(dst, b)
}

func (c *llamaContext) SetState(src []byte) int {
	c.pending = nil
	l, err := c.live()
	if err != nil {
		return 0
	}
	f, err := os.CreateTemp("", "llamabind-state-*")
	if err != nil {
		return 0
	}
	name := f.Name()
	defer os.Remove(name)
	if _, err := f.Write(src); err != nil {
		_ = f.Close()
		return 0
	}
	if err := f.Close(); err != nil {
		return 0
	}
	if err := l.LoadState(name); err != nil {
		return 0
	}
	return len(src)
}

func (c *llamaContext) Embed(prompt string, threads int) ([]float32, error) {
	c.pending = nil
	l, err := c.live()
	if err != nil {
		return nil, err
	}
	return l.Embeddings(prompt, llama.SetThreads(max(1, threads)), llama.SetTokens(c.m.nEmbd))
}

func (c *llamaContext) EmbedTokens(tokens []int, threads int) ([]float32, error) {
	c.pending = nil
	l, err := c.live()
	if err != nil {
		return nil, err
	}
	return l.TokenEmbeddings(tokens, llama.SetThreads(max(1, threads)), llama.SetTokens(c.m.nEmbd))
}

// Free only detaches; the shared native state is released by the model.
func (c *llamaContext) Free() {
	c.freed = true
	c.pending = nil
}

// llamaAdapter records an adapter applied at load time; native lora memory
// is owned by the context and released with it.
type llamaAdapter struct{ path string }

func (a llamaAdapter) Path() string { return a.path }
func (a llamaAdapter) Free()        {}

package binding

import (
	"regexp"
	"runtime"
	"strconv"
	"strings"

	"llamabind/internal/engine"
)

// Defaults applied when corresponding Config fields are unset.
const (
	DefaultFrequencyBase  float32 = 10000.0
	DefaultFrequencyScale float32 = 1.0
	DefaultContextSize            = 512
	DefaultBatch                  = 512
)

// AdapterConfig selects one adapter file. A zero Scale means 1.0.
type AdapterConfig struct {
	Path  string  `json:"path" yaml:"path" toml:"path"`
	Scale float32 `json:"scale,omitempty" yaml:"scale,omitempty" toml:"scale,omitempty"`
}

// Config describes a load request. Pointer fields are optional; nil means
// "use the default". FrequencyBase and FrequencyScale also treat an explicit
// 0.0 as unset.
type Config struct {
	Model          string          `json:"model" yaml:"model" toml:"model"`
	ContextSize    int             `json:"context_size,omitempty" yaml:"context_size,omitempty" toml:"context_size,omitempty"`
	Seed           int             `json:"seed,omitempty" yaml:"seed,omitempty" toml:"seed,omitempty"`
	F16Memory      bool            `json:"f16_memory,omitempty" yaml:"f16_memory,omitempty" toml:"f16_memory,omitempty"`
	MLock          bool            `json:"mlock,omitempty" yaml:"mlock,omitempty" toml:"mlock,omitempty"`
	MMap           *bool           `json:"mmap,omitempty" yaml:"mmap,omitempty" toml:"mmap,omitempty"`
	LowVRAM        bool            `json:"low_vram,omitempty" yaml:"low_vram,omitempty" toml:"low_vram,omitempty"`
	NUMA           bool            `json:"numa,omitempty" yaml:"numa,omitempty" toml:"numa,omitempty"`
	GPULayers      int             `json:"gpu_layers,omitempty" yaml:"gpu_layers,omitempty" toml:"gpu_layers,omitempty"`
	Batch          int             `json:"batch,omitempty" yaml:"batch,omitempty" toml:"batch,omitempty"`
	MainGPU        string          `json:"main_gpu,omitempty" yaml:"main_gpu,omitempty" toml:"main_gpu,omitempty"`
	TensorSplit    string          `json:"tensor_split,omitempty" yaml:"tensor_split,omitempty" toml:"tensor_split,omitempty"`
	FrequencyBase  *float32        `json:"frequency_base,omitempty" yaml:"frequency_base,omitempty" toml:"frequency_base,omitempty"`
	FrequencyScale *float32        `json:"frequency_scale,omitempty" yaml:"frequency_scale,omitempty" toml:"frequency_scale,omitempty"`
	MulMatQ        *bool           `json:"mul_mat_q,omitempty" yaml:"mul_mat_q,omitempty" toml:"mul_mat_q,omitempty"`
	Adapters       []AdapterConfig `json:"adapters,omitempty" yaml:"adapters,omitempty" toml:"adapters,omitempty"`
	AdapterBase    string          `json:"adapter_base,omitempty" yaml:"adapter_base,omitempty" toml:"adapter_base,omitempty"`
	Perplexity     bool            `json:"perplexity,omitempty" yaml:"perplexity,omitempty" toml:"perplexity,omitempty"`
	Threads        int             `json:"threads,omitempty" yaml:"threads,omitempty" toml:"threads,omitempty"`
	EmbeddingSize  int             `json:"embedding_size,omitempty" yaml:"embedding_size,omitempty" toml:"embedding_size,omitempty"`
}

// Float32 returns a pointer to v, for optional Config fields.
func Float32(v float32) *float32 { return &v }

// Bool returns a pointer to v, for optional Config fields.
func Bool(v bool) *bool { return &v }

// Clone returns a deep copy of c.
func (c Config) Clone() Config {
	out := c
	if c.MMap != nil {
		out.MMap = Bool(*c.MMap)
	}
	if c.FrequencyBase != nil {
		out.FrequencyBase = Float32(*c.FrequencyBase)
	}
	if c.FrequencyScale != nil {
		out.FrequencyScale = Float32(*c.FrequencyScale)
	}
	if c.MulMatQ != nil {
		out.MulMatQ = Bool(*c.MulMatQ)
	}
	out.Adapters = append([]AdapterConfig(nil), c.Adapters...)
	return out
}

// ResolveThreads returns the configured thread count or the CPU count.
func (c Config) ResolveThreads() int {
	if c.Threads > 0 {
		return c.Threads
	}
	return runtime.NumCPU()
}

// Resolve validates c and produces engine load parameters with every
// default substituted.
func (c Config) Resolve() (engine.LoadParams, error) {
	const op = "resolve config"
	p := engine.LoadParams{
		ModelPath:     strings.TrimSpace(c.Model),
		ContextSize:   c.ContextSize,
		Seed:          c.Seed,
		F16Memory:     c.F16Memory,
		MLock:         c.MLock,
		MMap:          true,
		LowVRAM:       c.LowVRAM,
		NUMA:          c.NUMA,
		Embeddings:    true,
		GPULayers:     c.GPULayers,
		Batch:         c.Batch,
		FreqBase:      resolveFrequency(c.FrequencyBase, DefaultFrequencyBase),
		FreqScale:     resolveFrequency(c.FrequencyScale, DefaultFrequencyScale),
		MulMatQ:       true,
		Perplexity:    c.Perplexity,
		AdapterBase:   c.AdapterBase,
		EmbeddingSize: c.EmbeddingSize,
	}
	if p.ModelPath == "" {
		return p, newError(ConfigInvalid, op, "model path is empty", nil)
	}
	if p.ContextSize == 0 {
		p.ContextSize = DefaultContextSize
	}
	if p.Batch == 0 {
		p.Batch = DefaultBatch
	}
	if p.ContextSize < 0 || p.Batch < 0 || p.GPULayers < 0 || p.EmbeddingSize < 0 {
		return p, newError(ConfigInvalid, op, "context_size, batch, gpu_layers and embedding_size must not be negative", nil)
	}
	if c.MMap != nil {
		p.MMap = *c.MMap
	}
	if c.MulMatQ != nil {
		p.MulMatQ = *c.MulMatQ
	}
	if s := strings.TrimSpace(c.MainGPU); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return p, newError(ConfigInvalid, op, "main_gpu must be a device index, got "+strconv.Quote(c.MainGPU), err)
		}
		p.MainGPU = n
	}
	split, err := ParseTensorSplit(c.TensorSplit)
	if err != nil {
		return p, err
	}
	p.TensorSplit = split
	for i, a := range c.Adapters {
		path := strings.TrimSpace(a.Path)
		if path == "" {
			return p, newError(ConfigInvalid, op, "adapter "+strconv.Itoa(i)+" has an empty path", nil)
		}
		scale := a.Scale
		if scale == 0 {
			scale = 1
		}
		p.Adapters = append(p.Adapters, engine.AdapterParams{Path: path, Scale: scale})
	}
	return p, nil
}

func resolveFrequency(v *float32, def float32) float32 {
	if v == nil || *v == 0 {
		return def
	}
	return *v
}

var splitSep = regexp.MustCompile(`[,/]+`)

// ParseTensorSplit parses a comma or slash separated list of per-device
// proportions into a fixed array. Entries past the supplied ones are 0. An
// empty string yields all zeros.
func ParseTensorSplit(s string) ([engine.MaxDevices]float32, error) {
	const op = "parse tensor split"
	var out [engine.MaxDevices]float32
	s = strings.TrimSpace(s)
	if s == "" {
		return out, nil
	}
	parts := splitSep.Split(s, -1)
	// a trailing separator does not add an entry
	if len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	if len(parts) > engine.MaxDevices {
		return out, newError(ConfigInvalid, op, "tensor_split has "+strconv.Itoa(len(parts))+" entries, at most "+strconv.Itoa(engine.MaxDevices)+" devices are supported", nil)
	}
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return out, newError(ConfigInvalid, op, "tensor_split entry "+strconv.Itoa(i)+" is not a number: "+strconv.Quote(part), err)
		}
		if v < 0 {
			return out, newError(ConfigInvalid, op, "tensor_split entry "+strconv.Itoa(i)+" is negative", nil)
		}
		out[i] = float32(v)
	}
	return out, nil
}

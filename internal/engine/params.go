package engine

// AdapterParams selects an adapter file and its blend scale.
type AdapterParams struct {
	Path  string
	Scale float32
}

// LoadParams is the fully resolved load request. Unlike the user facing
// configuration it carries no "unset" values.
type LoadParams struct {
	ModelPath   string
	ContextSize int
	Seed        int
	F16Memory   bool
	MLock       bool
	MMap        bool
	LowVRAM     bool
	NUMA        bool
	Embeddings  bool
	GPULayers   int
	Batch       int
	MainGPU     int
	TensorSplit [MaxDevices]float32
	FreqBase    float32
	FreqScale   float32
	MulMatQ     bool
	Perplexity  bool
	Adapters    []AdapterParams
	AdapterBase string
	// EmbeddingSize is a hint for engines that cannot report the model
	// embedding dimension themselves.
	EmbeddingSize int
}

// SplitCount returns the number of leading non-zero tensor split entries.
func (p LoadParams) SplitCount() int {
	n := 0
	for i, v := range p.TensorSplit {
		if v != 0 {
			n = i + 1
		}
	}
	return n
}

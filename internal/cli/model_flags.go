package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"llamabind/internal/binding"
	"llamabind/internal/common/fsutil"
)

// modelFlags are the load options shared by commands that open a model.
type modelFlags struct {
	model         string
	threads       int
	gpuLayers     int
	contextSize   int
	batch         int
	seed          int
	mainGPU       string
	tensorSplit   string
	lora          []string
	loraBase      string
	embeddingSize int
	noMMap        bool
	mlock         bool
	numa          bool
}

func (f *modelFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.model, "model", "m", "", "Path to the model file")
	fl.IntVarP(&f.threads, "threads", "t", 0, "Threads to use (0 = number of CPUs)")
	fl.IntVar(&f.gpuLayers, "ngl", 0, "Layers to offload to the GPU")
	fl.IntVarP(&f.contextSize, "ctx-size", "c", 0, "Context size in tokens (0 = 512)")
	fl.IntVarP(&f.batch, "batch-size", "b", 0, "Batch size (0 = 512)")
	fl.IntVar(&f.seed, "seed", 0, "RNG seed")
	fl.StringVar(&f.mainGPU, "main-gpu", "", "Device index of the main GPU")
	fl.StringVar(&f.tensorSplit, "tensor-split", "", "Per-device split proportions, e.g. 3,1")
	fl.StringArrayVar(&f.lora, "lora", nil, "Adapter file to apply; repeatable, applied in order")
	fl.StringVar(&f.loraBase, "lora-base", "", "Base model for adapters")
	fl.IntVar(&f.embeddingSize, "embedding-size", 0, "Embedding dimension hint for engines that cannot report it")
	fl.BoolVar(&f.noMMap, "no-mmap", false, "Do not memory-map the model")
	fl.BoolVar(&f.mlock, "mlock", false, "Lock the model in memory")
	fl.BoolVar(&f.numa, "numa", false, "Enable NUMA optimisations")
}

func (f *modelFlags) config() (binding.Config, error) {
	if f.model == "" {
		return binding.Config{}, errors.New("a model is required (-m)")
	}
	if !fsutil.PathExists(f.model) {
		return binding.Config{}, errors.New("model not found: " + f.model)
	}
	cfg := binding.Config{
		Model:         f.model,
		ContextSize:   f.contextSize,
		Seed:          f.seed,
		MLock:         f.mlock,
		NUMA:          f.numa,
		GPULayers:     f.gpuLayers,
		Batch:         f.batch,
		MainGPU:       f.mainGPU,
		TensorSplit:   f.tensorSplit,
		AdapterBase:   f.loraBase,
		Threads:       f.threads,
		EmbeddingSize: f.embeddingSize,
	}
	if f.noMMap {
		cfg.MMap = binding.Bool(false)
	}
	for _, p := range f.lora {
		cfg.Adapters = append(cfg.Adapters, binding.AdapterConfig{Path: p})
	}
	return cfg, nil
}

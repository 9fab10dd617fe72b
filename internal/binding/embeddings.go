package binding

import (
	"github.com/chewxy/math32"
)

type embedOptions struct {
	threads int
	dims    int
}

// EmbedOption tunes a single embedding call.
type EmbedOption func(*embedOptions)

// WithThreads overrides the thread count from the Config.
func WithThreads(n int) EmbedOption { return func(o *embedOptions) { o.threads = n } }

// WithDimensions sets the output length. 0 uses the model embedding size;
// a smaller value truncates, a larger one pads with zeros.
func WithDimensions(n int) EmbedOption { return func(o *embedOptions) { o.dims = n } }

func (b *BoundModel) embedOptions(opts []EmbedOption) embedOptions {
	o := embedOptions{threads: b.threads}
	for _, fn := range opts {
		fn(&o)
	}
	if o.threads <= 0 {
		o.threads = b.threads
	}
	return o
}

// Embeddings returns the L2 normalised sequence embedding of text.
func (b *BoundModel) Embeddings(text string, opts ...EmbedOption) ([]float32, error) {
	const op = "embeddings"
	if err := b.live(op); err != nil {
		return nil, err
	}
	o := b.embedOptions(opts)
	if o.dims < 0 {
		return nil, fail(newError(ConfigInvalid, op, "dimensions must not be negative", nil))
	}
	raw, err := b.ctx.Embed(text, o.threads)
	if err != nil {
		return nil, fail(newError(EngineFailure, op, "failed to get embeddings", err))
	}
	return b.finish(raw, o), nil
}

// TokenEmbeddings embeds a token sequence. The engine converts the tokens
// back to text pieces and embeds the concatenation.
func (b *BoundModel) TokenEmbeddings(tokens []int, opts ...EmbedOption) ([]float32, error) {
	const op = "token embeddings"
	if err := b.live(op); err != nil {
		return nil, err
	}
	o := b.embedOptions(opts)
	if o.dims < 0 {
		return nil, fail(newError(ConfigInvalid, op, "dimensions must not be negative", nil))
	}
	raw, err := b.ctx.EmbedTokens(tokens, o.threads)
	if err != nil {
		return nil, fail(newError(EngineFailure, op, "failed to get token embeddings", err))
	}
	return b.finish(raw, o), nil
}

func (b *BoundModel) finish(raw []float32, o embedOptions) []float32 {
	n := b.model.EmbeddingSize()
	if len(raw) > n {
		raw = raw[:n]
	}
	v := Normalize(raw)
	dims := o.dims
	if dims == 0 {
		dims = n
	}
	out := make([]float32, dims)
	copy(out, v)
	return out
}

// Normalize returns v scaled to unit Euclidean length. A zero vector stays zero.
func Normalize(v []float32) []float32 {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	sum = math32.Sqrt(sum)
	var norm float32
	if sum > 0 {
		norm = 1 / sum
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x * norm
	}
	return out
}

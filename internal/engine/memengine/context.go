package memengine

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/chewxy/math32"

	"llamabind/internal/engine"
)

// state layout: rng(8) | n_past(4) | logits(4*vocabSize) | kv(4*nCtx*nEmbd)
const stateHeader = 12

var errFreed = errors.New("memengine: context freed")

// Context is a memengine inference context.
type Context struct {
	model    *Model
	params   engine.LoadParams
	nCtx     int
	adapters []*Adapter

	rng    uint64
	nPast  int
	logits []float32
	kv     []float32 // nCtx x nEmbd
	freed  bool
}

func newContext(m *Model, p engine.LoadParams) (*Context, error) {
	nCtx := p.ContextSize
	if nCtx <= 0 {
		nCtx = defaultContextSize
	}
	if nCtx > MaxContextSize {
		return nil, fmt.Errorf("%w: context size %d exceeds %d", engine.ErrContextInit, nCtx, MaxContextSize)
	}
	if p.FreqBase <= 0 || p.FreqScale <= 0 {
		return nil, fmt.Errorf("%w: rope frequency base/scale must be positive", engine.ErrContextInit)
	}
	return &Context{
		model:  m,
		params: p,
		nCtx:   nCtx,
		rng:    uint64(p.Seed),
		logits: make([]float32, vocabSize),
		kv:     make([]float32, nCtx*m.nEmbd),
	}, nil
}

// Params returns the load parameters the context was built with.
func (c *Context) Params() engine.LoadParams { return c.params }

// Past returns the number of cached positions.
func (c *Context) Past() int { return c.nPast }

func (c *Context) StateSize() int {
	if c.freed {
		return 0
	}
	return stateHeader + 4*vocabSize + 4*len(c.kv)
}

func (c *Context) CopyState(dst []byte) int {
	if c.freed {
		return 0
	}
	buf := make([]byte, c.StateSize())
	binary.LittleEndian.PutUint64(buf[0:8], c.rng)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(c.nPast))
	off := stateHeader
	for _, v := range c.logits {
		binary.LittleEndian.PutUint32(buf[off:], math32.Float32bits(v))
		off += 4
	}
	for _, v := range c.kv {
		binary.LittleEndian.PutUint32(buf[off:], math32.Float32bits(v))
		off += 4
	}
	return copy(dst, buf)
}

// SetState installs src. It reads nothing and returns 0 when src has the
// wrong length or an impossible cache position.
func (c *Context) SetState(src []byte) int {
	if c.freed || len(src) != c.StateSize() {
		return 0
	}
	nPast := int(binary.LittleEndian.Uint32(src[8:12]))
	if nPast > c.nCtx {
		return 0
	}
	c.rng = binary.LittleEndian.Uint64(src[0:8])
	c.nPast = nPast
	off := stateHeader
	for i := range c.logits {
		c.logits[i] = math32.Float32frombits(binary.LittleEndian.Uint32(src[off:]))
		off += 4
	}
	for i := range c.kv {
		c.kv[i] = math32.Float32frombits(binary.LittleEndian.Uint32(src[off:]))
		off += 4
	}
	return len(src)
}

// Embed tokenizes prompt (BOS + bytes), decodes it and returns the mean of
// the new hidden states.
func (c *Context) Embed(prompt string, threads int) ([]float32, error) {
	if c.freed {
		return nil, errFreed
	}
	return c.decode(tokenize(prompt))
}

// EmbedTokens converts tokens back to text pieces and embeds the result as
// a prompt.
func (c *Context) EmbedTokens(tokens []int, threads int) ([]float32, error) {
	if c.freed {
		return nil, errFreed
	}
	prompt := make([]byte, 0, len(tokens))
	for _, t := range tokens {
		piece, err := tokenToPiece(t)
		if err != nil {
			return nil, err
		}
		prompt = append(prompt, piece...)
	}
	return c.Embed(string(prompt), threads)
}

func (c *Context) Free() {
	c.model.eng.release("context", c.freed)
	c.freed = true
	c.kv = nil
	c.logits = nil
}

func tokenize(s string) []int {
	toks := make([]int, 0, len(s)+1)
	toks = append(toks, bosToken)
	for i := 0; i < len(s); i++ {
		toks = append(toks, int(s[i]))
	}
	return toks
}

func tokenToPiece(t int) ([]byte, error) {
	switch {
	case t == bosToken:
		return nil, nil
	case t >= 0 && t < bosToken:
		return []byte{byte(t)}, nil
	default:
		return nil, fmt.Errorf("memengine: token %d out of vocabulary", t)
	}
}

func (c *Context) decode(tokens []int) ([]float32, error) {
	n := c.model.nEmbd
	if len(tokens) > c.nCtx {
		return nil, fmt.Errorf("memengine: batch of %d tokens exceeds context size %d", len(tokens), c.nCtx)
	}
	sum := make([]float32, n)
	for p := 0; p < c.nPast; p++ {
		row := c.kv[p*n : (p+1)*n]
		for i := range sum {
			sum[i] += row[i]
		}
	}
	pooled := make([]float32, n)
	var last []float32
	for _, tok := range tokens {
		if c.nPast == c.nCtx {
			c.shift(sum)
		}
		x := append([]float32(nil), c.model.table[tok]...)
		for _, a := range c.adapters {
			perturb(x, a)
		}
		rotate(x, c.nPast, c.params.FreqBase, c.params.FreqScale)
		if c.nPast > 0 {
			inv := 0.5 / float32(c.nPast)
			for i := range x {
				x[i] += sum[i] * inv
			}
		}
		copy(c.kv[c.nPast*n:], x)
		c.nPast++
		for i := range x {
			sum[i] += x[i]
			pooled[i] += x[i]
		}
		last = x
	}
	for t := range c.logits {
		c.logits[t] = dot(last, c.model.table[t])
	}
	c.rng = xorshift(c.rng)
	inv := 1 / float32(len(tokens))
	for i := range pooled {
		pooled[i] *= inv
	}
	return pooled, nil
}

// shift discards the older half of the cache, like a context shift.
func (c *Context) shift(sum []float32) {
	n := c.model.nEmbd
	half := c.nPast / 2
	if half == 0 {
		half = c.nPast
	}
	copy(c.kv, c.kv[half*n:c.nPast*n])
	c.nPast -= half
	clear(c.kv[c.nPast*n:])
	clear(sum)
	for p := 0; p < c.nPast; p++ {
		row := c.kv[p*n : (p+1)*n]
		for i := range sum {
			sum[i] += row[i]
		}
	}
}

package memengine

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/chewxy/math32"
)

// splitmix64 advances x and returns the next pseudo-random value.
func splitmix64(x *uint64) uint64 {
	*x += 0x9e3779b97f4a7c15
	z := *x
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// unit maps a random value to [-1, 1).
func unit(v uint64) float32 {
	return float32(v>>40)/float32(1<<23) - 1
}

func mixSeed(seed uint64, salt uint64) uint64 {
	var b [16]byte
	binary.LittleEndian.PutUint64(b[:8], seed)
	binary.LittleEndian.PutUint64(b[8:], salt)
	return xxhash.Sum64(b[:])
}

func buildTable(seed uint64, nEmbd int) [][]float32 {
	table := make([][]float32, vocabSize)
	for tok := range table {
		s := mixSeed(seed, uint64(tok))
		v := make([]float32, nEmbd)
		for i := range v {
			v[i] = unit(splitmix64(&s))
		}
		table[tok] = v
	}
	return table
}

// rotate applies a rotary position encoding to x in place.
func rotate(x []float32, pos int, freqBase, freqScale float32) {
	n := len(x)
	for i := 0; i+1 < n; i += 2 {
		theta := float32(pos) * freqScale * math32.Pow(freqBase, -float32(i)/float32(n))
		sin, cos := math32.Sincos(theta)
		a, b := x[i], x[i+1]
		x[i] = a*cos - b*sin
		x[i+1] = a*sin + b*cos
	}
}

// perturb applies one adapter to x. Successive adapters do not commute.
func perturb(x []float32, a *Adapter) {
	s := a.seed
	n := len(x)
	first := x[0]
	for i := range x {
		w := unit(splitmix64(&s))
		next := first
		if i+1 < n {
			next = x[i+1]
		}
		x[i] = x[i]*(1+a.scale*w) + a.scale*0.5*next
	}
}

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func xorshift(x uint64) uint64 {
	if x == 0 {
		x = 0x2545f4914f6cdd1d
	}
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	return x
}

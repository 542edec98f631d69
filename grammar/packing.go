package grammar

import (
	"fmt"
	"math"
	"math/bits"
)

// InvalidKey is returned by Pack for a pair that has no key.
const InvalidKey int64 = math.MinInt64

// PackingFunction encodes a pair of symbol indices into a single integer key
// and decodes it back. Keys are non-negative; unary children and lexical
// terminals are stored as negative keys by PackUnary and PackLexical.
type PackingFunction interface {
	Pack(left, right int) int64
	Unpack(key int64) (left, right int)
}

// PackingKind selects the PackingFunction a grammar builds its indices with.
type PackingKind string

const (
	// PackingShift stores the left index in the high bits of the key.
	PackingShift PackingKind = "shift"
	// PackingPerfectHash numbers the observed pairs densely and rejects all
	// others with InvalidKey.
	PackingPerfectHash PackingKind = "perfect-hash"
)

// NewPacking builds a packing function of the given kind over symbols in
// [0, size). pairs lists the pairs that need keys; shift packing ignores it.
func NewPacking(kind PackingKind, size int, pairs [][2]int) PackingFunction {
	switch kind {
	case PackingPerfectHash:
		return newPerfectHashPacking(size, pairs)
	case PackingShift, "":
		return newShiftPacking(size)
	default:
		panic(fmt.Sprintf("grammar: unknown packing kind %q", kind))
	}
}

// PackUnary encodes a unary child.
func PackUnary(child int) int64 { return -int64(child) - 1 }

// UnpackUnary decodes a key produced by PackUnary.
func UnpackUnary(key int64) int { return int(-key - 1) }

// PackLexical encodes a terminal.
func PackLexical(word int) int64 { return -int64(word) - 1 }

// UnpackLexical decodes a key produced by PackLexical.
func UnpackLexical(key int64) int { return int(-key - 1) }

type shiftPacking struct {
	size  int
	shift uint
	mask  int64
}

func newShiftPacking(size int) *shiftPacking {
	shift := uint(bits.Len(uint(size)))
	return &shiftPacking{size: size, shift: shift, mask: 1<<shift - 1}
}

func (p *shiftPacking) Pack(left, right int) int64 {
	if left < 0 || right < 0 || left >= p.size || right >= p.size {
		return InvalidKey
	}
	return int64(left)<<p.shift | int64(right)
}

func (p *shiftPacking) Unpack(key int64) (int, int) {
	return int(key >> p.shift), int(key & p.mask)
}

// perfectHashPacking assigns consecutive keys to the pairs it was built with.
// The table is keyed by left symbol, then right symbol, so a miss costs two
// slice or map probes and never allocates.
type perfectHashPacking struct {
	byLeft []map[int]int64
	pairs  [][2]int
}

func newPerfectHashPacking(size int, pairs [][2]int) *perfectHashPacking {
	p := &perfectHashPacking{byLeft: make([]map[int]int64, size)}
	for _, pair := range pairs {
		left, right := pair[0], pair[1]
		if p.byLeft[left] == nil {
			p.byLeft[left] = make(map[int]int64)
		}
		if _, ok := p.byLeft[left][right]; ok {
			continue
		}
		p.byLeft[left][right] = int64(len(p.pairs))
		p.pairs = append(p.pairs, pair)
	}
	return p
}

func (p *perfectHashPacking) Pack(left, right int) int64 {
	if left < 0 || left >= len(p.byLeft) || p.byLeft[left] == nil {
		return InvalidKey
	}
	if key, ok := p.byLeft[left][right]; ok {
		return key
	}
	return InvalidKey
}

func (p *perfectHashPacking) Unpack(key int64) (int, int) {
	pair := p.pairs[key]
	return pair[0], pair[1]
}

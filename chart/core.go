// Package chart holds the packed parse charts of the constrained parser: a
// ConstrainingChart populated once from a known tree, and a reusable
// ConstrainedChart that stores inside and outside scores for every split of
// the symbols the constraining chart licenses.
package chart

import "fmt"

// core is the flat storage shared by both chart kinds. Cells live in a
// triangular array; every cell owns depths*beamWidth entries, grouped by
// unary depth. Depth 0 is the bottom entry of the cell (lexical for span 1,
// binary otherwise) and unary parents sit above it.
type core struct {
	size      int // sentence length
	depths    int // entries per cell, in units of beamWidth
	beamWidth int

	nonTerminalIndices []int
	insideProbs        []float64
	packedChildren     []int64

	// per cell
	unaryChainLength []int // 0 when the cell is not part of the tree
	midpoints        []int

	sealed bool
}

// cells returns the number of cells of a chart over n words.
func cells(n int) int { return n * (n + 1) / 2 }

// cellIndex maps a span to its position in the triangular cell array.
func (c *core) cellIndex(start, end int) int {
	if start < 0 || end > c.size || start >= end {
		panic(fmt.Sprintf("chart: invalid span [%d,%d] for %d words", start, end, c.size))
	}
	return start*c.size - start*(start-1)/2 + (end - start - 1)
}

// offset is the single place that turns a (cell, depth, slot) coordinate into
// a position in the flat entry arrays.
func (c *core) offset(cell, depth, slot int) int {
	return (cell*c.depths+depth)*c.beamWidth + slot
}

func (c *core) entry(start, end, depth, slot int) int {
	cell := c.cellIndex(start, end)
	if depth < 0 || depth >= c.depths || slot < 0 || slot >= c.beamWidth {
		panic(fmt.Sprintf("chart: entry (%d,%d) depth %d slot %d out of range", start, end, depth, slot))
	}
	return c.offset(cell, depth, slot)
}

// allocate sizes the chart for n words, reusing the backing arrays when they
// are large enough.
func (c *core) allocate(n, depths, beamWidth int) {
	c.size, c.depths, c.beamWidth = n, depths, beamWidth
	entries := cells(n) * depths * beamWidth
	if cap(c.nonTerminalIndices) < entries {
		c.nonTerminalIndices = make([]int, entries)
		c.insideProbs = make([]float64, entries)
		c.packedChildren = make([]int64, entries)
	}
	c.nonTerminalIndices = c.nonTerminalIndices[:entries]
	c.insideProbs = c.insideProbs[:entries]
	c.packedChildren = c.packedChildren[:entries]

	if cap(c.unaryChainLength) < cells(n) {
		c.unaryChainLength = make([]int, cells(n))
		c.midpoints = make([]int, cells(n))
	}
	c.unaryChainLength = c.unaryChainLength[:cells(n)]
	c.midpoints = c.midpoints[:cells(n)]
}

func (c *core) mustBeMutable() {
	if c.sealed {
		panic("chart: chart is read-only")
	}
}

func (c *core) set(off, symbol int, inside float64, packed int64) {
	c.mustBeMutable()
	c.nonTerminalIndices[off] = symbol
	c.insideProbs[off] = inside
	c.packedChildren[off] = packed
}

// Size returns the number of words the chart spans.
func (c *core) Size() int { return c.size }

// BeamWidth returns the number of entry slots per unary depth.
func (c *core) BeamWidth() int { return c.beamWidth }

// MaxUnaryChainLength returns the number of unary depths per cell.
func (c *core) MaxUnaryChainLength() int { return c.depths }

// UnaryChainLength returns the number of populated depths of a cell: 1 when
// the cell has no unary chain, 0 when the span is not a constituent.
func (c *core) UnaryChainLength(start, end int) int {
	return c.unaryChainLength[c.cellIndex(start, end)]
}

// Midpoint returns the split point of a cell's binary entry, or 0 for span-1
// and unpopulated cells.
func (c *core) Midpoint(start, end int) int {
	return c.midpoints[c.cellIndex(start, end)]
}

// NonTerminal returns the symbol stored in an entry, or -1.
func (c *core) NonTerminal(start, end, depth, slot int) int {
	return c.nonTerminalIndices[c.entry(start, end, depth, slot)]
}

// Inside returns the inside log probability of an entry.
func (c *core) Inside(start, end, depth, slot int) float64 {
	return c.insideProbs[c.entry(start, end, depth, slot)]
}

// PackedChildren returns the packed children of an entry: a lexical or unary
// key (negative) or a packed binary child pair.
func (c *core) PackedChildren(start, end, depth, slot int) int64 {
	return c.packedChildren[c.entry(start, end, depth, slot)]
}

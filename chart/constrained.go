package chart

import (
	"fmt"
	"math"

	"github.com/happyhackingspace/splitmerge/grammar"
	"github.com/happyhackingspace/splitmerge/tree"
)

// ConstrainedChart stores inside and outside scores for the splits of the
// symbols a ConstrainingChart licenses. Each depth of a constituent cell has
// one slot per split of the licensed symbol, in split order. The chart is
// meant to be reused: Reset re-targets it at a new sentence and grows the
// backing arrays only when needed.
type ConstrainedChart struct {
	core

	outsideProbs []float64
	constraining *ConstrainingChart
	grammar      *grammar.Grammar
}

// NewConstrainedChart returns an empty chart; call Reset before use.
func NewConstrainedChart() *ConstrainedChart {
	return &ConstrainedChart{}
}

// Reset prepares the chart for parsing cc's sentence with g. Every split of
// g must refine a symbol of cc's vocabulary. All scores are set to -Inf.
func (c *ConstrainedChart) Reset(cc *ConstrainingChart, g *grammar.Grammar) error {
	if g.Vocabulary.BaseSize() != cc.vocabulary.Size() {
		return fmt.Errorf("chart: grammar splits %d base symbols, constraining chart has %d",
			g.Vocabulary.BaseSize(), cc.vocabulary.Size())
	}
	c.constraining, c.grammar = cc, g
	c.sealed = false
	c.allocate(cc.size, cc.depths, g.Vocabulary.MaxSplits())
	if cap(c.outsideProbs) < len(c.insideProbs) {
		c.outsideProbs = make([]float64, len(c.insideProbs))
	}
	c.outsideProbs = c.outsideProbs[:len(c.insideProbs)]

	for i := range c.insideProbs {
		c.nonTerminalIndices[i] = -1
		c.insideProbs[i] = grammar.LogZero
		c.outsideProbs[i] = grammar.LogZero
		c.packedChildren[i] = 0
	}
	copy(c.unaryChainLength, cc.unaryChainLength)
	copy(c.midpoints, cc.midpoints)

	for _, span := range cc.openCells {
		cell := c.cellIndex(span[0], span[1])
		for depth := 0; depth < c.unaryChainLength[cell]; depth++ {
			base := cc.nonTerminalIndices[cc.offset(cell, depth, 0)]
			first, count := g.Vocabulary.FirstSplit(base), g.Vocabulary.SplitCount(base)
			if count == 0 {
				return &MismatchError{Start: span[0], End: span[1], Symbol: cc.vocabulary.Name(base), Reason: "symbol has no splits in grammar"}
			}
			for slot := 0; slot < count; slot++ {
				c.nonTerminalIndices[c.offset(cell, depth, slot)] = first + slot
			}
		}
	}
	return nil
}

// Constraining returns the chart this chart is constrained by.
func (c *ConstrainedChart) Constraining() *ConstrainingChart { return c.constraining }

// Grammar returns the grammar the chart was reset with.
func (c *ConstrainedChart) Grammar() *grammar.Grammar { return c.grammar }

// Licensed returns the constraining symbol of a cell depth.
func (c *ConstrainedChart) Licensed(start, end, depth int) int {
	return c.constraining.Symbol(start, end, depth)
}

// Splits returns the number of populated slots at a cell depth.
func (c *ConstrainedChart) Splits(start, end, depth int) int {
	return c.grammar.Vocabulary.SplitCount(c.Licensed(start, end, depth))
}

// Slot returns the slot holding symbol at a cell depth, or -1 when the depth
// does not license it.
func (c *ConstrainedChart) Slot(start, end, depth, symbol int) int {
	v := c.grammar.Vocabulary
	if symbol < 0 || symbol >= v.Size() || v.BaseSymbol(symbol) != c.Licensed(start, end, depth) {
		return -1
	}
	return symbol - v.FirstSibling(symbol)
}

// Outside returns the outside log probability of an entry.
func (c *ConstrainedChart) Outside(start, end, depth, slot int) float64 {
	return c.outsideProbs[c.entry(start, end, depth, slot)]
}

// SetInside stores an inside score and the children that produced it.
// Writing to a slot the constraining chart does not license panics.
func (c *ConstrainedChart) SetInside(start, end, depth, slot int, logProb float64, packed int64) {
	off := c.licensedEntry(start, end, depth, slot)
	c.set(off, c.nonTerminalIndices[off], logProb, packed)
}

// SetOutside stores an outside score.
func (c *ConstrainedChart) SetOutside(start, end, depth, slot int, logProb float64) {
	off := c.licensedEntry(start, end, depth, slot)
	c.mustBeMutable()
	c.outsideProbs[off] = logProb
}

func (c *ConstrainedChart) licensedEntry(start, end, depth, slot int) int {
	off := c.entry(start, end, depth, slot)
	if c.nonTerminalIndices[off] < 0 {
		panic(fmt.Sprintf("chart: entry (%d,%d) depth %d slot %d is not licensed", start, end, depth, slot))
	}
	return off
}

// Posterior returns inside plus outside of an entry, the log of the total
// probability of all parses using it.
func (c *ConstrainedChart) Posterior(start, end, depth, slot int) float64 {
	off := c.entry(start, end, depth, slot)
	return c.insideProbs[off] + c.outsideProbs[off]
}

// SentenceLogProbability returns the inside score of the start symbol at the
// top of the root cell.
func (c *ConstrainedChart) SentenceLogProbability() float64 {
	return c.Inside(0, c.size, c.unaryChainLength[c.cellIndex(0, c.size)]-1, 0)
}

// MaxPosteriorTree extracts the tree whose entries have the highest posterior
// score, chosen top-down so that every production it uses has non-zero
// probability. Outside scores must be populated.
func (c *ConstrainedChart) MaxPosteriorTree() (*tree.Node, error) {
	n := c.size
	rootTop := c.UnaryChainLength(0, n) - 1
	if math.IsInf(c.Posterior(0, n, rootTop, 0), -1) {
		return nil, fmt.Errorf("chart: sentence has no parse under the constraints")
	}
	return c.posteriorSubtree(0, n, rootTop, 0)
}

func (c *ConstrainedChart) posteriorSubtree(start, end, depth, slot int) (*tree.Node, error) {
	g := c.grammar
	symbol := c.NonTerminal(start, end, depth, slot)
	label := g.Vocabulary.Name(symbol)

	if depth > 0 {
		best, bestScore := -1, grammar.LogZero
		for k := 0; k < c.Splits(start, end, depth-1); k++ {
			if math.IsInf(g.UnaryLogProb(symbol, c.NonTerminal(start, end, depth-1, k)), -1) {
				continue
			}
			if score := c.Posterior(start, end, depth-1, k); score > bestScore {
				best, bestScore = k, score
			}
		}
		if best < 0 {
			return nil, &MismatchError{Start: start, End: end, Symbol: label, Reason: "no licensed unary child"}
		}
		child, err := c.posteriorSubtree(start, end, depth-1, best)
		if err != nil {
			return nil, err
		}
		return tree.NewNode(label, child), nil
	}

	if end-start == 1 {
		word := c.constraining.tokens[start]
		return tree.NewNode(label, tree.NewLeaf(g.Lexicon.Name(word))), nil
	}

	mid := c.Midpoint(start, end)
	leftTop, rightTop := c.UnaryChainLength(start, mid)-1, c.UnaryChainLength(mid, end)-1
	bestLeft, bestRight, bestScore := -1, -1, grammar.LogZero
	for l := 0; l < c.Splits(start, mid, leftTop); l++ {
		leftScore := c.Posterior(start, mid, leftTop, l)
		if math.IsInf(leftScore, -1) {
			continue
		}
		left := c.NonTerminal(start, mid, leftTop, l)
		for r := 0; r < c.Splits(mid, end, rightTop); r++ {
			right := c.NonTerminal(mid, end, rightTop, r)
			if math.IsInf(g.BinaryLogProb(symbol, left, right), -1) {
				continue
			}
			if score := leftScore + c.Posterior(mid, end, rightTop, r); score > bestScore {
				bestLeft, bestRight, bestScore = l, r, score
			}
		}
	}
	if bestLeft < 0 {
		return nil, &MismatchError{Start: start, End: end, Symbol: label, Reason: "no licensed binary children"}
	}
	left, err := c.posteriorSubtree(start, mid, leftTop, bestLeft)
	if err != nil {
		return nil, err
	}
	right, err := c.posteriorSubtree(mid, end, rightTop, bestRight)
	if err != nil {
		return nil, err
	}
	return tree.NewNode(label, left, right), nil
}

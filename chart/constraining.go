package chart

import (
	"fmt"
	"math"
	"sort"

	"github.com/happyhackingspace/splitmerge/grammar"
	"github.com/happyhackingspace/splitmerge/tree"
)

// MismatchError reports a tree the grammar cannot represent.
type MismatchError struct {
	Start, End int
	Symbol     string
	Reason     string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("chart: %s [%d,%d]: %s", e.Symbol, e.Start, e.End, e.Reason)
}

// ConstrainingChart is a chart populated from a single binary tree. Each
// constituent span holds one symbol per unary depth, and every cell below the
// root records its parent and sibling cells. It is read-only once built.
type ConstrainingChart struct {
	core

	vocabulary *grammar.SplitVocabulary
	lexicon    *grammar.Vocabulary
	tokens     []int

	parents   [][2]int // per cell; {-1, -1} for the root and empty cells
	siblings  [][2]int
	openCells [][2]int // constituent spans, shortest first
}

type constituent struct {
	chain           []*tree.Node // top of the unary chain first
	start, mid, end int
}

// NewConstrainingChart builds the chart of t, a binary tree rooted at the
// start symbol whose labels and words all belong to g. The inside scores hold
// the log probability g assigns to each subtree.
func NewConstrainingChart(t *tree.Node, g *grammar.Grammar) (*ConstrainingChart, error) {
	var constituents []constituent
	if _, err := collect(t, 0, &constituents); err != nil {
		return nil, err
	}
	n := t.NumLeaves()
	depths := 1
	for _, c := range constituents {
		depths = max(depths, len(c.chain))
	}

	cc := &ConstrainingChart{
		vocabulary: g.Vocabulary,
		lexicon:    g.Lexicon,
		tokens:     make([]int, 0, n),
	}
	cc.allocate(n, depths, 1)
	for i := range cc.nonTerminalIndices {
		cc.nonTerminalIndices[i] = -1
		cc.insideProbs[i] = grammar.LogZero
		cc.packedChildren[i] = 0
	}
	for i := range cc.unaryChainLength {
		cc.unaryChainLength[i] = 0
		cc.midpoints[i] = 0
	}
	cc.parents = make([][2]int, cells(n))
	cc.siblings = make([][2]int, cells(n))
	for i := range cc.parents {
		cc.parents[i] = [2]int{-1, -1}
		cc.siblings[i] = [2]int{-1, -1}
	}
	for _, word := range t.Leaves() {
		id := g.Lexicon.Get(word)
		if id < 0 {
			return nil, &MismatchError{Start: len(cc.tokens), End: len(cc.tokens) + 1, Symbol: word, Reason: "unknown word"}
		}
		cc.tokens = append(cc.tokens, id)
	}

	for _, c := range constituents {
		if err := cc.fill(c, g); err != nil {
			return nil, err
		}
	}

	top := cc.UnaryChainLength(0, n) - 1
	if cc.NonTerminal(0, n, top, 0) != grammar.StartSymbol {
		return nil, &MismatchError{Start: 0, End: n, Symbol: t.Label, Reason: "root is not the start symbol"}
	}

	sort.SliceStable(constituents, func(i, j int) bool {
		a, b := constituents[i], constituents[j]
		if a.end-a.start != b.end-b.start {
			return a.end-a.start < b.end-b.start
		}
		return a.start < b.start
	})
	cc.openCells = make([][2]int, len(constituents))
	for i, c := range constituents {
		cc.openCells[i] = [2]int{c.start, c.end}
	}
	cc.sealed = true
	return cc, nil
}

// collect appends the constituents under n in post-order and returns the end
// of n's span.
func collect(n *tree.Node, start int, out *[]constituent) (int, error) {
	if n.IsLeaf() {
		return 0, &MismatchError{Start: start, End: start + 1, Symbol: n.Label, Reason: "word outside a preterminal"}
	}
	chain := []*tree.Node{n}
	bottom := n
	for len(bottom.Children) == 1 && !bottom.IsPreterminal() {
		bottom = bottom.Children[0]
		chain = append(chain, bottom)
	}
	c := constituent{chain: chain, start: start}
	switch {
	case bottom.IsPreterminal():
		c.end = start + 1
	case len(bottom.Children) == 2:
		mid, err := collect(bottom.Children[0], start, out)
		if err != nil {
			return 0, err
		}
		end, err := collect(bottom.Children[1], mid, out)
		if err != nil {
			return 0, err
		}
		c.mid, c.end = mid, end
	default:
		return 0, &MismatchError{Start: start, End: start + bottom.NumLeaves(), Symbol: bottom.Label, Reason: "node is not binary"}
	}
	*out = append(*out, c)
	return c.end, nil
}

func (cc *ConstrainingChart) fill(c constituent, g *grammar.Grammar) error {
	cell := cc.cellIndex(c.start, c.end)
	cc.unaryChainLength[cell] = len(c.chain)
	cc.midpoints[cell] = c.mid

	mismatch := func(label, reason string) error {
		return &MismatchError{Start: c.start, End: c.end, Symbol: label, Reason: reason}
	}
	for depth := 0; depth < len(c.chain); depth++ {
		node := c.chain[len(c.chain)-1-depth]
		symbol, ok := g.Vocabulary.Index(node.Label)
		if !ok {
			return mismatch(node.Label, "unknown symbol")
		}
		var logProb float64
		var packed int64
		switch {
		case depth > 0:
			below := cc.offset(cell, depth-1, 0)
			child := cc.nonTerminalIndices[below]
			rule := g.UnaryLogProb(symbol, child)
			if math.IsInf(rule, -1) {
				return mismatch(node.Label, fmt.Sprintf("no unary rule %s -> %s", node.Label, g.Vocabulary.Name(child)))
			}
			logProb = rule + cc.insideProbs[below]
			packed = grammar.PackUnary(child)
		case c.end-c.start == 1:
			word := cc.tokens[c.start]
			logProb = g.LexicalLogProb(symbol, word)
			if math.IsInf(logProb, -1) {
				return mismatch(node.Label, fmt.Sprintf("no lexical rule %s -> %s", node.Label, g.Lexicon.Name(word)))
			}
			packed = grammar.PackLexical(word)
		default:
			left, leftInside := cc.top(c.start, c.mid)
			right, rightInside := cc.top(c.mid, c.end)
			rule := g.BinaryLogProb(symbol, left, right)
			if math.IsInf(rule, -1) {
				return mismatch(node.Label, fmt.Sprintf("no binary rule %s -> %s %s",
					node.Label, g.Vocabulary.Name(left), g.Vocabulary.Name(right)))
			}
			logProb = rule + leftInside + rightInside
			packed = g.Packing().Pack(left, right)
			leftCell, rightCell := cc.cellIndex(c.start, c.mid), cc.cellIndex(c.mid, c.end)
			cc.parents[leftCell] = [2]int{c.start, c.end}
			cc.parents[rightCell] = [2]int{c.start, c.end}
			cc.siblings[leftCell] = [2]int{c.mid, c.end}
			cc.siblings[rightCell] = [2]int{c.start, c.mid}
		}
		cc.set(cc.offset(cell, depth, 0), symbol, logProb, packed)
	}
	return nil
}

// top returns the symbol and inside score at the top of a cell's unary chain.
func (cc *ConstrainingChart) top(start, end int) (int, float64) {
	cell := cc.cellIndex(start, end)
	off := cc.offset(cell, cc.unaryChainLength[cell]-1, 0)
	return cc.nonTerminalIndices[off], cc.insideProbs[off]
}

// NewConstrainingChartFromPosteriors builds a constraining chart from the
// max-posterior tree of a ConstrainedChart whose outside scores have been
// computed. The new chart's symbols belong to the constrained chart's grammar.
func NewConstrainingChartFromPosteriors(c *ConstrainedChart) (*ConstrainingChart, error) {
	t, err := c.MaxPosteriorTree()
	if err != nil {
		return nil, err
	}
	return NewConstrainingChart(t, c.grammar)
}

// Vocabulary returns the vocabulary the chart's symbols index into.
func (cc *ConstrainingChart) Vocabulary() *grammar.SplitVocabulary { return cc.vocabulary }

// Tokens returns the word indices of the sentence.
func (cc *ConstrainingChart) Tokens() []int { return cc.tokens }

// OpenCells returns the constituent spans, shortest first.
func (cc *ConstrainingChart) OpenCells() [][2]int { return cc.openCells }

// Parent returns the span of the cell whose binary entry has (start, end) as
// a child.
func (cc *ConstrainingChart) Parent(start, end int) (int, int, bool) {
	p := cc.parents[cc.cellIndex(start, end)]
	return p[0], p[1], p[0] >= 0
}

// Sibling returns the span of the other child of (start, end)'s parent.
func (cc *ConstrainingChart) Sibling(start, end int) (int, int, bool) {
	s := cc.siblings[cc.cellIndex(start, end)]
	return s[0], s[1], s[0] >= 0
}

// Symbol returns the symbol at a depth of a constituent cell.
func (cc *ConstrainingChart) Symbol(start, end, depth int) int {
	return cc.NonTerminal(start, end, depth, 0)
}

// ExtractBestParse rebuilds the tree the chart was populated from.
func (cc *ConstrainingChart) ExtractBestParse() *tree.Node {
	return cc.extract(0, cc.size)
}

func (cc *ConstrainingChart) extract(start, end int) *tree.Node {
	cell := cc.cellIndex(start, end)
	length := cc.unaryChainLength[cell]
	var node *tree.Node
	if end-start == 1 {
		node = tree.NewLeaf(cc.lexicon.Name(cc.tokens[start]))
	} else {
		mid := cc.midpoints[cell]
		node = &tree.Node{Children: []*tree.Node{cc.extract(start, mid), cc.extract(mid, end)}}
	}
	for depth := 0; depth < length; depth++ {
		label := cc.vocabulary.Name(cc.nonTerminalIndices[cc.offset(cell, depth, 0)])
		if depth == 0 && end-start > 1 {
			node.Label = label
			continue
		}
		node = tree.NewNode(label, node)
	}
	return node
}

func (cc *ConstrainingChart) String() string {
	return cc.ExtractBestParse().String()
}

// Package parser runs the inside-outside algorithm over constrained charts:
// it scores every split of the symbols a known tree licenses, extracts
// Viterbi and max-posterior trees, accumulates expected rule counts for EM
// and estimates the likelihood lost by merging sibling splits.
package parser

import (
	"fmt"
	"math"

	"github.com/happyhackingspace/splitmerge/chart"
	"github.com/happyhackingspace/splitmerge/grammar"
	"github.com/happyhackingspace/splitmerge/tree"
)

// State is the progress of a Parser on its current sentence.
type State int

const (
	Empty State = iota
	InsidePopulated
	OutsidePopulated
	CountsAccumulated
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case InsidePopulated:
		return "inside"
	case OutsidePopulated:
		return "outside"
	case CountsAccumulated:
		return "counts"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Mode selects how the inside pass combines derivations of an entry.
type Mode int

const (
	// Sum log-sums all derivations, giving inside probabilities.
	Sum Mode = iota
	// Viterbi keeps the best derivation and records it in the chart's
	// packed children.
	Viterbi
)

// Parser fills a ConstrainedChart it owns. A Parser is not safe for
// concurrent use; run one per goroutine.
type Parser struct {
	grammar *grammar.Grammar
	chart   *chart.ConstrainedChart
	mode    Mode
	state   State
}

// New creates a parser for g.
func New(g *grammar.Grammar) *Parser {
	return &Parser{grammar: g, chart: chart.NewConstrainedChart()}
}

// Grammar returns the parser's grammar.
func (p *Parser) Grammar() *grammar.Grammar { return p.grammar }

// Chart returns the chart of the current sentence.
func (p *Parser) Chart() *chart.ConstrainedChart { return p.chart }

// State returns the parser's progress on the current sentence.
func (p *Parser) State() State { return p.state }

// Init resets the chart for cc's sentence.
func (p *Parser) Init(cc *chart.ConstrainingChart, mode Mode) error {
	p.state = Empty
	p.mode = mode
	return p.chart.Reset(cc, p.grammar)
}

func (p *Parser) expect(want State, op string) error {
	if p.state != want {
		return fmt.Errorf("parser: %s needs state %s, parser is in state %s", op, want, p.state)
	}
	return nil
}

// SentenceLogProbability returns the log probability of the sentence and its
// constraints: the sum over all licensed derivations in Sum mode, the best
// derivation in Viterbi mode.
func (p *Parser) SentenceLogProbability() float64 {
	return p.chart.SentenceLogProbability()
}

// FindBestParse parses cc's sentence and returns the max-posterior tree.
func (p *Parser) FindBestParse(cc *chart.ConstrainingChart) (*tree.Node, error) {
	if err := p.Init(cc, Sum); err != nil {
		return nil, err
	}
	if err := p.Inside(); err != nil {
		return nil, err
	}
	if err := p.Outside(); err != nil {
		return nil, err
	}
	return p.chart.MaxPosteriorTree()
}

// FindViterbiParse parses cc's sentence and returns its most probable
// derivation.
func (p *Parser) FindViterbiParse(cc *chart.ConstrainingChart) (*tree.Node, error) {
	if err := p.Init(cc, Viterbi); err != nil {
		return nil, err
	}
	if err := p.Inside(); err != nil {
		return nil, err
	}
	if math.IsInf(p.SentenceLogProbability(), -1) {
		return nil, fmt.Errorf("parser: sentence has no parse under the constraints")
	}
	c := p.chart
	n := c.Size()
	return p.viterbiSubtree(0, n, c.UnaryChainLength(0, n)-1, 0), nil
}

func (p *Parser) viterbiSubtree(start, end, depth, slot int) *tree.Node {
	c, g := p.chart, p.grammar
	label := g.Vocabulary.Name(c.NonTerminal(start, end, depth, slot))
	packed := c.PackedChildren(start, end, depth, slot)
	if depth > 0 {
		child := grammar.UnpackUnary(packed)
		return tree.NewNode(label, p.viterbiSubtree(start, end, depth-1, c.Slot(start, end, depth-1, child)))
	}
	if end-start == 1 {
		return tree.NewNode(label, tree.NewLeaf(g.Lexicon.Name(grammar.UnpackLexical(packed))))
	}
	mid := c.Midpoint(start, end)
	left, right := g.Packing().Unpack(packed)
	leftTop, rightTop := c.UnaryChainLength(start, mid)-1, c.UnaryChainLength(mid, end)-1
	return tree.NewNode(label,
		p.viterbiSubtree(start, mid, leftTop, c.Slot(start, mid, leftTop, left)),
		p.viterbiSubtree(mid, end, rightTop, c.Slot(mid, end, rightTop, right)))
}

package parser

import (
	"fmt"
	"math"

	"github.com/happyhackingspace/splitmerge/grammar"
)

// Inside computes inside scores bottom-up over the constituent cells.
func (p *Parser) Inside() error {
	if err := p.expect(Empty, "Inside"); err != nil {
		return err
	}
	c := p.chart
	for _, span := range c.Constraining().OpenCells() {
		start, end := span[0], span[1]
		if end-start == 1 {
			p.lexicalInside(start)
		} else {
			p.binaryInside(start, end)
		}
		for depth := 1; depth < c.UnaryChainLength(start, end); depth++ {
			p.unaryInside(start, end, depth)
		}
	}
	p.state = InsidePopulated
	return nil
}

// combine folds one derivation of an entry into its inside score.
func (p *Parser) combine(start, end, depth, slot int, score float64, packed int64) {
	c := p.chart
	old := c.Inside(start, end, depth, slot)
	if p.mode == Viterbi {
		if score > old {
			c.SetInside(start, end, depth, slot, score, packed)
		}
		return
	}
	if math.IsInf(old, -1) {
		c.SetInside(start, end, depth, slot, score, packed)
		return
	}
	c.SetInside(start, end, depth, slot, grammar.LogSum(old, score), c.PackedChildren(start, end, depth, slot))
}

func (p *Parser) lexicalInside(start int) {
	c := p.chart
	word := c.Constraining().Tokens()[start]
	for _, r := range p.grammar.LexicalRules(word) {
		if slot := c.Slot(start, start+1, 0, r.Symbol); slot >= 0 {
			p.combine(start, start+1, 0, slot, r.LogProb, grammar.PackLexical(word))
		}
	}
}

func (p *Parser) binaryInside(start, end int) {
	c, g := p.chart, p.grammar
	mid := c.Midpoint(start, end)
	leftTop, rightTop := c.UnaryChainLength(start, mid)-1, c.UnaryChainLength(mid, end)-1
	for l := 0; l < c.Splits(start, mid, leftTop); l++ {
		leftInside := c.Inside(start, mid, leftTop, l)
		if math.IsInf(leftInside, -1) {
			continue
		}
		left := c.NonTerminal(start, mid, leftTop, l)
		for r := 0; r < c.Splits(mid, end, rightTop); r++ {
			rightInside := c.Inside(mid, end, rightTop, r)
			if math.IsInf(rightInside, -1) {
				continue
			}
			key := g.Packing().Pack(left, c.NonTerminal(mid, end, rightTop, r))
			for _, rule := range g.BinaryRules(key) {
				if slot := c.Slot(start, end, 0, rule.Symbol); slot >= 0 {
					p.combine(start, end, 0, slot, rule.LogProb+leftInside+rightInside, key)
				}
			}
		}
	}
}

func (p *Parser) unaryInside(start, end, depth int) {
	c := p.chart
	for k := 0; k < c.Splits(start, end, depth-1); k++ {
		childInside := c.Inside(start, end, depth-1, k)
		if math.IsInf(childInside, -1) {
			continue
		}
		child := c.NonTerminal(start, end, depth-1, k)
		for _, rule := range p.grammar.UnaryRules(child) {
			if slot := c.Slot(start, end, depth, rule.Symbol); slot >= 0 {
				p.combine(start, end, depth, slot, rule.LogProb+childInside, grammar.PackUnary(child))
			}
		}
	}
}

// Outside computes outside scores top-down. It needs inside scores computed
// in Sum mode.
func (p *Parser) Outside() error {
	if err := p.expect(InsidePopulated, "Outside"); err != nil {
		return err
	}
	if p.mode != Sum {
		return fmt.Errorf("parser: Outside needs inside scores computed in Sum mode")
	}
	c := p.chart
	n := c.Size()
	c.SetOutside(0, n, c.UnaryChainLength(0, n)-1, 0, 0)

	open := c.Constraining().OpenCells()
	for i := len(open) - 1; i >= 0; i-- {
		start, end := open[i][0], open[i][1]
		top := c.UnaryChainLength(start, end) - 1
		if end-start < n {
			p.binaryOutside(start, end, top)
		}
		for depth := top; depth > 0; depth-- {
			p.unaryOutside(start, end, depth)
		}
	}
	p.state = OutsidePopulated
	return nil
}

// binaryOutside scores the top of a child cell from its parent's bottom entry
// and its sibling's top entry.
func (p *Parser) binaryOutside(start, end, top int) {
	c, g := p.chart, p.grammar
	cc := c.Constraining()
	parentStart, parentEnd, _ := cc.Parent(start, end)
	siblingStart, siblingEnd, _ := cc.Sibling(start, end)
	siblingTop := c.UnaryChainLength(siblingStart, siblingEnd) - 1
	dir := grammar.RightChild
	if start == parentStart {
		dir = grammar.LeftChild
	}
	packing := g.OutsidePacking(dir)

	for k := 0; k < c.Splits(parentStart, parentEnd, 0); k++ {
		parentOutside := c.Outside(parentStart, parentEnd, 0, k)
		if math.IsInf(parentOutside, -1) {
			continue
		}
		parent := c.NonTerminal(parentStart, parentEnd, 0, k)
		for j := 0; j < c.Splits(siblingStart, siblingEnd, siblingTop); j++ {
			siblingInside := c.Inside(siblingStart, siblingEnd, siblingTop, j)
			if math.IsInf(siblingInside, -1) {
				continue
			}
			key := packing.Pack(parent, c.NonTerminal(siblingStart, siblingEnd, siblingTop, j))
			for _, rule := range g.OutsideRules(dir, key) {
				slot := c.Slot(start, end, top, rule.Symbol)
				if slot < 0 {
					continue
				}
				score := parentOutside + siblingInside + rule.LogProb
				c.SetOutside(start, end, top, slot, grammar.LogSum(c.Outside(start, end, top, slot), score))
			}
		}
	}
}

// unaryOutside pushes the outside scores of depth down to depth-1.
func (p *Parser) unaryOutside(start, end, depth int) {
	c := p.chart
	for k := 0; k < c.Splits(start, end, depth-1); k++ {
		child := c.NonTerminal(start, end, depth-1, k)
		total := grammar.LogZero
		for _, rule := range p.grammar.UnaryRules(child) {
			slot := c.Slot(start, end, depth, rule.Symbol)
			if slot < 0 {
				continue
			}
			total = grammar.LogSum(total, c.Outside(start, end, depth, slot)+rule.LogProb)
		}
		c.SetOutside(start, end, depth-1, k, total)
	}
}

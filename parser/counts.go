package parser

import (
	"fmt"
	"math"

	"github.com/happyhackingspace/splitmerge/grammar"
)

// CountRuleOccurrences adds the expected count of every rule application in
// the current chart to counts. Each count is outside(parent) times the inside
// scores of the children times the rule probability, over the sentence
// probability.
func (p *Parser) CountRuleOccurrences(counts *grammar.FractionalCountGrammar) error {
	if err := p.expect(OutsidePopulated, "CountRuleOccurrences"); err != nil {
		return err
	}
	if counts.Vocabulary != p.grammar.Vocabulary {
		return fmt.Errorf("parser: count accumulator has a different vocabulary than the grammar")
	}
	z := p.SentenceLogProbability()
	if math.IsInf(z, -1) {
		return fmt.Errorf("parser: sentence has zero probability")
	}

	c, g := p.chart, p.grammar
	for _, span := range c.Constraining().OpenCells() {
		start, end := span[0], span[1]
		if end-start == 1 {
			word := c.Constraining().Tokens()[start]
			for k := 0; k < c.Splits(start, end, 0); k++ {
				if score := c.Posterior(start, end, 0, k); !math.IsInf(score, -1) {
					counts.IncrementLexical(c.NonTerminal(start, end, 0, k), word, score-z)
				}
			}
		} else {
			p.countBinary(counts, start, end, z)
		}
		for depth := 1; depth < c.UnaryChainLength(start, end); depth++ {
			for k := 0; k < c.Splits(start, end, depth-1); k++ {
				childInside := c.Inside(start, end, depth-1, k)
				if math.IsInf(childInside, -1) {
					continue
				}
				child := c.NonTerminal(start, end, depth-1, k)
				for _, rule := range g.UnaryRules(child) {
					slot := c.Slot(start, end, depth, rule.Symbol)
					if slot < 0 {
						continue
					}
					if out := c.Outside(start, end, depth, slot); !math.IsInf(out, -1) {
						counts.IncrementUnary(rule.Symbol, child, out+childInside+rule.LogProb-z)
					}
				}
			}
		}
	}
	p.state = CountsAccumulated
	return nil
}

func (p *Parser) countBinary(counts *grammar.FractionalCountGrammar, start, end int, z float64) {
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
			right := c.NonTerminal(mid, end, rightTop, r)
			for _, rule := range g.BinaryRules(g.Packing().Pack(left, right)) {
				slot := c.Slot(start, end, 0, rule.Symbol)
				if slot < 0 {
					continue
				}
				if out := c.Outside(start, end, 0, slot); !math.IsInf(out, -1) {
					counts.IncrementBinary(rule.Symbol, left, right, out+leftInside+rightInside+rule.LogProb-z)
				}
			}
		}
	}
}

// AccumulateMergeCost adds, for every pair of sibling splits populated in the
// chart, the change in sentence log likelihood that merging the pair would
// cause. symbolLogCounts holds each symbol's expected corpus frequency and
// sets the pair's mixing weights; cost is indexed by the pair's second
// sibling. Outside scores must be populated.
func (p *Parser) AccumulateMergeCost(symbolLogCounts, cost []float64) error {
	if p.state != OutsidePopulated && p.state != CountsAccumulated {
		return fmt.Errorf("parser: AccumulateMergeCost needs outside scores, parser is in state %s", p.state)
	}
	z := p.SentenceLogProbability()
	if math.IsInf(z, -1) {
		return fmt.Errorf("parser: sentence has zero probability")
	}

	c := p.chart
	for _, span := range c.Constraining().OpenCells() {
		start, end := span[0], span[1]
		for depth := 0; depth < c.UnaryChainLength(start, end); depth++ {
			for k := 1; k < c.Splits(start, end, depth); k += 2 {
				first := c.NonTerminal(start, end, depth, k-1)
				second := c.NonTerminal(start, end, depth, k)
				in1, out1 := c.Inside(start, end, depth, k-1), c.Outside(start, end, depth, k-1)
				in2, out2 := c.Inside(start, end, depth, k), c.Outside(start, end, depth, k)
				separate := grammar.LogSum(in1+out1, in2+out2)
				if math.IsInf(separate, -1) {
					continue
				}
				w1, w2 := mixingWeights(symbolLogCounts[first], symbolLogCounts[second])
				merged := grammar.LogSum(w1+in1, w2+in2) + grammar.LogSum(out1, out2)
				cost[second] += grammar.LogSum(grammar.LogSubtract(z, separate), merged) - z
			}
		}
	}
	return nil
}

// mixingWeights returns the relative frequencies of two siblings, or equal
// weights when neither was observed.
func mixingWeights(count1, count2 float64) (float64, float64) {
	total := grammar.LogSum(count1, count2)
	if math.IsInf(total, -1) {
		return math.Log(0.5), math.Log(0.5)
	}
	return count1 - total, count2 - total
}

package grammar

import "math"

// Merge folds each symbol in secondSiblings back into its preceding sibling.
// Rules that collide after renumbering are summed, rules of a merged parent
// are halved, and every parent is renormalized. The returned slice maps old
// symbol indices to new ones.
func Merge(g *Grammar, secondSiblings []int) (*Grammar, []int, error) {
	vocab, oldToNew, err := g.Vocabulary.Merge(secondSiblings)
	if err != nil {
		return nil, nil, err
	}
	half := math.Log(0.5)
	weight := func(parent int, logProb float64) float64 {
		if vocab.IsMerged(parent) {
			return logProb + half
		}
		return logProb
	}

	counts := NewFractionalCountGrammar(vocab, g.Lexicon, g.PackingKind)
	for _, r := range g.Binary {
		p := oldToNew[r.Parent]
		counts.IncrementBinary(p, oldToNew[r.Left], oldToNew[r.Right], weight(p, r.LogProb))
	}
	for _, r := range g.Unary {
		p := oldToNew[r.Parent]
		counts.IncrementUnary(p, oldToNew[r.Left], weight(p, r.LogProb))
	}
	for _, r := range g.Lexical {
		p := oldToNew[r.Parent]
		counts.IncrementLexical(p, r.Left, weight(p, r.LogProb))
	}
	return counts.Grammar(LogZero), oldToNew, nil
}

package grammar

import "math"

// Compact removes every symbol that has no outgoing rules, together with the
// rules that rewrite to such a symbol, and renormalizes the parents that lost
// rules. Removing rules can leave further parents empty, so this repeats
// until every remaining symbol has rules. The start symbol is always kept.
// The returned slice maps old symbol indices to new ones, -1 for removed
// symbols. g itself is returned when nothing is removed.
func Compact(g *Grammar) (*Grammar, []int) {
	n := g.Vocabulary.Size()
	live := make([]bool, n)
	for i, total := range g.ParentLogTotals() {
		live[i] = i == StartSymbol || !math.IsInf(total, -1)
	}

	binary, unary, lexical := g.Binary, g.Unary, g.Lexical
	for {
		binary = keepRules(binary, func(r Production) bool { return live[r.Parent] && live[r.Left] && live[r.Right] })
		unary = keepRules(unary, func(r Production) bool { return live[r.Parent] && live[r.Left] })
		lexical = keepRules(lexical, func(r Production) bool { return live[r.Parent] })
		changed := false
		for i, total := range parentTotals(n, binary, unary, lexical) {
			if live[i] && i != StartSymbol && math.IsInf(total, -1) {
				live[i] = false
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	removed := 0
	for _, ok := range live {
		if !ok {
			removed++
		}
	}
	dropped := len(binary) != len(g.Binary) || len(unary) != len(g.Unary)
	if removed == 0 && !dropped {
		identity := make([]int, n)
		for i := range identity {
			identity[i] = i
		}
		return g, identity
	}

	vocab, oldToNew := g.Vocabulary.Remove(live)
	remap := func(rules []Production, children int) []Production {
		out := make([]Production, len(rules))
		for i, r := range rules {
			r.Parent = oldToNew[r.Parent]
			if children > 0 {
				r.Left = oldToNew[r.Left]
			}
			if children > 1 {
				r.Right = oldToNew[r.Right]
			}
			out[i] = r
		}
		return out
	}
	binary, unary, lexical = normalize(vocab.Size(), remap(binary, 2), remap(unary, 1), remap(lexical, 0), LogZero)
	return New(vocab, g.Lexicon, binary, unary, lexical, g.PackingKind), oldToNew
}

// keepRules returns the rules ok accepts in a new slice.
func keepRules(rules []Production, ok func(Production) bool) []Production {
	out := make([]Production, 0, len(rules))
	for _, r := range rules {
		if ok(r) {
			out = append(out, r)
		}
	}
	return out
}

package grammar

import "math"

// Split divides every nonterminal except the start symbol in two and spreads
// each rule's probability over the splits of its children. noise breaks the
// symmetry between sibling splits; with ZeroNoise the split grammar assigns
// every tree the same probability as g.
func Split(g *Grammar, noise Noise) *Grammar {
	if noise == nil {
		noise = ZeroNoise{}
	}
	vocab := g.Vocabulary.Split()

	var binary []Production
	for _, r := range g.Binary {
		lefts, rights := SplitIndices(r.Left), SplitIndices(r.Right)
		share := r.LogProb - math.Log(float64(len(lefts)*len(rights)))
		for _, p := range SplitIndices(r.Parent) {
			var children [][2]int
			for _, l := range lefts {
				for _, rt := range rights {
					children = append(children, [2]int{l, rt})
				}
			}
			weights := perturb(len(children), noise)
			for k, c := range children {
				binary = append(binary, Production{Parent: p, Left: c[0], Right: c[1], LogProb: share + weights[k]})
			}
		}
	}

	var unary []Production
	for _, r := range g.Unary {
		children := SplitIndices(r.Left)
		share := r.LogProb - math.Log(float64(len(children)))
		for _, p := range SplitIndices(r.Parent) {
			weights := perturb(len(children), noise)
			for k, c := range children {
				unary = append(unary, Production{Parent: p, Left: c, LogProb: share + weights[k]})
			}
		}
	}

	var lexical []Production
	for _, r := range g.Lexical {
		for _, p := range SplitIndices(r.Parent) {
			lexical = append(lexical, Production{Parent: p, Left: r.Left, LogProb: r.LogProb})
		}
	}

	binary, unary, lexical = normalize(vocab.Size(), binary, unary, lexical, LogZero)
	return New(vocab, g.Lexicon, binary, unary, lexical, g.PackingKind)
}

// perturb returns n log multipliers in which consecutive pairs get log(1+r)
// and log(1-r) for a fresh r, so each pair keeps its combined mass. A trailing
// odd entry is left at zero.
func perturb(n int, noise Noise) []float64 {
	out := make([]float64, n)
	for k := 0; k+1 < n; k += 2 {
		r := noise.Next()
		out[k] = math.Log1p(r)
		out[k+1] = math.Log1p(-r)
	}
	return out
}

package grammar

import (
	"math"
	"sort"

	"github.com/happyhackingspace/splitmerge/tree"
	"github.com/pkg/errors"
)

// Induce estimates an unsplit grammar from binary trees by relative
// frequency. Every tree must be rooted at start, which becomes symbol 0.
func Induce(trees []*tree.Node, start string, kind PackingKind) (*Grammar, error) {
	symbols := map[string]bool{}
	words := map[string]bool{}
	for i, t := range trees {
		if t.Label != start {
			return nil, errors.Errorf("grammar: tree %d is rooted at %q, want %q", i, t.Label, start)
		}
		var err error
		t.Walk(func(n *tree.Node) bool {
			if err != nil || n.IsLeaf() {
				return false
			}
			if len(n.Children) > 2 {
				err = errors.Errorf("grammar: tree %d is not binary at (%s ...)", i, n.Label)
				return false
			}
			if len(n.Children) == 2 && (n.Children[0].IsLeaf() || n.Children[1].IsLeaf()) {
				err = errors.Errorf("grammar: tree %d has a word under binary node %s", i, n.Label)
				return false
			}
			symbols[n.Label] = true
			if n.IsPreterminal() {
				words[n.Children[0].Label] = true
			}
			return true
		})
		if err != nil {
			return nil, err
		}
	}

	names := []string{start}
	for s := range symbols {
		if s != start {
			names = append(names, s)
		}
	}
	sort.Strings(names[1:])
	vocab, err := NewUnsplitVocabulary(names)
	if err != nil {
		return nil, err
	}

	wordList := make([]string, 0, len(words))
	for w := range words {
		wordList = append(wordList, w)
	}
	lexicon := NewLexicon(wordList...)

	binary := map[[3]int]float64{}
	unary := map[[2]int]float64{}
	lexical := map[[2]int]float64{}
	for _, t := range trees {
		t.Walk(func(n *tree.Node) bool {
			if n.IsLeaf() {
				return false
			}
			parent, _ := vocab.Index(n.Label)
			switch {
			case n.IsPreterminal():
				lexical[[2]int{parent, lexicon.Get(n.Children[0].Label)}]++
			case len(n.Children) == 1:
				child, _ := vocab.Index(n.Children[0].Label)
				unary[[2]int{parent, child}]++
			default:
				left, _ := vocab.Index(n.Children[0].Label)
				right, _ := vocab.Index(n.Children[1].Label)
				binary[[3]int{parent, left, right}]++
			}
			return true
		})
	}

	var bp, up, lp []Production
	for k, c := range binary {
		bp = append(bp, Production{Parent: k[0], Left: k[1], Right: k[2], LogProb: math.Log(c)})
	}
	for k, c := range unary {
		up = append(up, Production{Parent: k[0], Left: k[1], LogProb: math.Log(c)})
	}
	for k, c := range lexical {
		lp = append(lp, Production{Parent: k[0], Left: k[1], LogProb: math.Log(c)})
	}
	sortProductions(bp)
	sortProductions(up)
	sortProductions(lp)
	bp, up, lp = normalize(vocab.Size(), bp, up, lp, LogZero)
	return New(vocab, lexicon, bp, up, lp, kind), nil
}

// sortProductions orders rules by parent, left, right so that grammars built
// from maps are deterministic.
func sortProductions(rules []Production) {
	sort.Slice(rules, func(i, j int) bool {
		a, b := rules[i], rules[j]
		if a.Parent != b.Parent {
			return a.Parent < b.Parent
		}
		if a.Left != b.Left {
			return a.Left < b.Left
		}
		return a.Right < b.Right
	})
}

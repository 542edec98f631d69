package grammar

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Production is a weighted grammar rule. Left holds the left child of a
// binary rule, the child of a unary rule or the word of a lexical rule.
type Production struct {
	Parent  int     `json:"parent"`
	Left    int     `json:"left"`
	Right   int     `json:"right,omitempty"`
	LogProb float64 `json:"log_prob"`
}

// RuleRef is a rule as seen from an index: the symbol the lookup resolves to
// (a parent, or the child a direction-specific outside lookup is after) and
// the rule's log probability.
type RuleRef struct {
	Symbol  int
	LogProb float64
}

// Direction selects which child of a binary rule an outside lookup resolves.
type Direction int

const (
	LeftChild Direction = iota
	RightChild
)

// Grammar is a PCFG over a SplitVocabulary of nonterminals and a lexicon of
// words. The rule slices and vocabularies must not be modified after New.
type Grammar struct {
	Vocabulary  *SplitVocabulary
	Lexicon     *Vocabulary
	Binary      []Production
	Unary       []Production
	Lexical     []Production
	PackingKind PackingKind

	packing          PackingFunction
	binaryByChildren map[int64][]RuleRef

	// outside lookups: (parent, right) -> left and (parent, left) -> right
	outsidePacking [2]PackingFunction
	binaryOutside  [2]map[int64][]RuleRef

	unaryByChild  [][]RuleRef
	lexicalByWord [][]RuleRef

	binaryProbs  map[[3]int]float64
	unaryProbs   map[[2]int]float64
	lexicalProbs map[[2]int]float64
}

// New builds a grammar and its lookup indices.
func New(vocab *SplitVocabulary, lexicon *Vocabulary, binary, unary, lexical []Production, kind PackingKind) *Grammar {
	if kind == "" {
		kind = PackingShift
	}
	g := &Grammar{
		Vocabulary:  vocab,
		Lexicon:     lexicon,
		Binary:      binary,
		Unary:       unary,
		Lexical:     lexical,
		PackingKind: kind,
	}
	g.buildIndices()
	return g
}

func (g *Grammar) buildIndices() {
	n := g.Vocabulary.Size()

	children := make([][2]int, len(g.Binary))
	parentRight := make([][2]int, len(g.Binary))
	parentLeft := make([][2]int, len(g.Binary))
	for i, r := range g.Binary {
		children[i] = [2]int{r.Left, r.Right}
		parentRight[i] = [2]int{r.Parent, r.Right}
		parentLeft[i] = [2]int{r.Parent, r.Left}
	}
	g.packing = NewPacking(g.PackingKind, n, children)
	g.outsidePacking[LeftChild] = NewPacking(g.PackingKind, n, parentRight)
	g.outsidePacking[RightChild] = NewPacking(g.PackingKind, n, parentLeft)

	g.binaryByChildren = make(map[int64][]RuleRef)
	g.binaryOutside[LeftChild] = make(map[int64][]RuleRef)
	g.binaryOutside[RightChild] = make(map[int64][]RuleRef)
	g.binaryProbs = make(map[[3]int]float64, len(g.Binary))
	for _, r := range g.Binary {
		key := g.packing.Pack(r.Left, r.Right)
		g.binaryByChildren[key] = append(g.binaryByChildren[key], RuleRef{r.Parent, r.LogProb})
		key = g.outsidePacking[LeftChild].Pack(r.Parent, r.Right)
		g.binaryOutside[LeftChild][key] = append(g.binaryOutside[LeftChild][key], RuleRef{r.Left, r.LogProb})
		key = g.outsidePacking[RightChild].Pack(r.Parent, r.Left)
		g.binaryOutside[RightChild][key] = append(g.binaryOutside[RightChild][key], RuleRef{r.Right, r.LogProb})
		g.binaryProbs[[3]int{r.Parent, r.Left, r.Right}] = r.LogProb
	}

	g.unaryByChild = make([][]RuleRef, n)
	g.unaryProbs = make(map[[2]int]float64, len(g.Unary))
	for _, r := range g.Unary {
		g.unaryByChild[r.Left] = append(g.unaryByChild[r.Left], RuleRef{r.Parent, r.LogProb})
		g.unaryProbs[[2]int{r.Parent, r.Left}] = r.LogProb
	}

	g.lexicalByWord = make([][]RuleRef, g.Lexicon.Size())
	g.lexicalProbs = make(map[[2]int]float64, len(g.Lexical))
	for _, r := range g.Lexical {
		g.lexicalByWord[r.Left] = append(g.lexicalByWord[r.Left], RuleRef{r.Parent, r.LogProb})
		g.lexicalProbs[[2]int{r.Parent, r.Left}] = r.LogProb
	}
}

// Packing returns the function that packs (left, right) child pairs.
func (g *Grammar) Packing() PackingFunction { return g.packing }

// BinaryRules returns the rules whose children pack to key, resolved to
// their parents.
func (g *Grammar) BinaryRules(key int64) []RuleRef {
	if key == InvalidKey {
		return nil
	}
	return g.binaryByChildren[key]
}

// OutsidePacking returns the function that packs (parent, sibling) pairs for
// outside lookups of the child in direction d.
func (g *Grammar) OutsidePacking(d Direction) PackingFunction { return g.outsidePacking[d] }

// OutsideRules returns the rules whose (parent, sibling) pair packs to key,
// resolved to the child in direction d.
func (g *Grammar) OutsideRules(d Direction, key int64) []RuleRef {
	if key == InvalidKey {
		return nil
	}
	return g.binaryOutside[d][key]
}

// UnaryRules returns the unary rules rewriting to child, resolved to parents.
func (g *Grammar) UnaryRules(child int) []RuleRef { return g.unaryByChild[child] }

// LexicalRules returns the lexical rules producing word, resolved to parents.
func (g *Grammar) LexicalRules(word int) []RuleRef {
	if word < 0 || word >= len(g.lexicalByWord) {
		return nil
	}
	return g.lexicalByWord[word]
}

// BinaryLogProb returns the log probability of parent -> left right.
func (g *Grammar) BinaryLogProb(parent, left, right int) float64 {
	if p, ok := g.binaryProbs[[3]int{parent, left, right}]; ok {
		return p
	}
	return LogZero
}

// UnaryLogProb returns the log probability of parent -> child.
func (g *Grammar) UnaryLogProb(parent, child int) float64 {
	if p, ok := g.unaryProbs[[2]int{parent, child}]; ok {
		return p
	}
	return LogZero
}

// LexicalLogProb returns the log probability of parent -> word.
func (g *Grammar) LexicalLogProb(parent, word int) float64 {
	if p, ok := g.lexicalProbs[[2]int{parent, word}]; ok {
		return p
	}
	return LogZero
}

// NumRules returns the total number of rules.
func (g *Grammar) NumRules() int {
	return len(g.Binary) + len(g.Unary) + len(g.Lexical)
}

// ParentLogTotals returns, per parent symbol, the log of its summed outgoing
// rule probabilities. A proper grammar has 0 for every used parent.
func (g *Grammar) ParentLogTotals() []float64 {
	return parentTotals(g.Vocabulary.Size(), g.Binary, g.Unary, g.Lexical)
}

// Rebase returns the grammar with its vocabulary regrouped by unsplit
// treebank labels (see SplitVocabulary.Rebase).
func (g *Grammar) Rebase() *Grammar {
	return New(g.Vocabulary.Rebase(), g.Lexicon, g.Binary, g.Unary, g.Lexical, g.PackingKind)
}

// String lists the rules, one per line, sorted.
func (g *Grammar) String() string {
	var lines []string
	v := g.Vocabulary
	for _, r := range g.Binary {
		lines = append(lines, fmt.Sprintf("%s -> %s %s %.6f", v.Name(r.Parent), v.Name(r.Left), v.Name(r.Right), math.Exp(r.LogProb)))
	}
	for _, r := range g.Unary {
		lines = append(lines, fmt.Sprintf("%s -> %s %.6f", v.Name(r.Parent), v.Name(r.Left), math.Exp(r.LogProb)))
	}
	for _, r := range g.Lexical {
		lines = append(lines, fmt.Sprintf("%s -> '%s' %.6f", v.Name(r.Parent), g.Lexicon.Name(r.Left), math.Exp(r.LogProb)))
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}

func parentTotals(size int, rules ...[]Production) []float64 {
	totals := make([]float64, size)
	for i := range totals {
		totals[i] = LogZero
	}
	for _, list := range rules {
		for _, r := range list {
			totals[r.Parent] = LogSum(totals[r.Parent], r.LogProb)
		}
	}
	return totals
}

// normalize rescales every parent's outgoing rules to sum to one and drops
// rules below minLogProb.
func normalize(size int, binary, unary, lexical []Production, minLogProb float64) ([]Production, []Production, []Production) {
	totals := parentTotals(size, binary, unary, lexical)
	scale := func(list []Production) []Production {
		out := make([]Production, 0, len(list))
		for _, r := range list {
			if math.IsInf(totals[r.Parent], -1) {
				continue
			}
			r.LogProb -= totals[r.Parent]
			if r.LogProb < minLogProb || math.IsInf(r.LogProb, -1) {
				continue
			}
			out = append(out, r)
		}
		return out
	}
	return scale(binary), scale(unary), scale(lexical)
}

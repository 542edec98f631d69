package parser

import (
	"math"
	"testing"

	"github.com/happyhackingspace/splitmerge/chart"
	"github.com/happyhackingspace/splitmerge/grammar"
	"github.com/happyhackingspace/splitmerge/tree"
)

const sampleTree = "(top (a (a (c e) (c e)) (b (b (d f)) (c f))))"

var sampleLogProb = math.Log(0.5 * 0.5 * 0.5 * 0.5 * (2.0 / 3) * (2.0 / 3) / 3)

const eps = 1e-9

type fixture struct {
	gold     *tree.Node
	unsplit  *grammar.Grammar
	chart    *chart.ConstrainingChart
	symbolOf func(g *grammar.Grammar, name string) int
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	gold, err := tree.Parse(sampleTree, "top")
	if err != nil {
		t.Fatal(err)
	}
	g, err := grammar.Induce([]*tree.Node{gold}, "top", grammar.PackingShift)
	if err != nil {
		t.Fatal(err)
	}
	cc, err := chart.NewConstrainingChart(gold, g)
	if err != nil {
		t.Fatal(err)
	}
	return fixture{
		gold:    gold,
		unsplit: g,
		chart:   cc,
		symbolOf: func(g *grammar.Grammar, name string) int {
			i, ok := g.Vocabulary.Index(name)
			if !ok {
				t.Fatalf("no symbol %q", name)
			}
			return i
		},
	}
}

func runInsideOutside(t *testing.T, p *Parser, cc *chart.ConstrainingChart) {
	t.Helper()
	if err := p.Init(cc, Sum); err != nil {
		t.Fatal(err)
	}
	if err := p.Inside(); err != nil {
		t.Fatal(err)
	}
	if err := p.Outside(); err != nil {
		t.Fatal(err)
	}
}

// unsplitLabels maps split labels back to treebank labels.
func unsplitLabels(g *grammar.Grammar, n *tree.Node) *tree.Node {
	return n.MapLabels(func(label string) string {
		i, ok := g.Vocabulary.Index(label)
		if !ok {
			return label
		}
		return g.Vocabulary.UnsplitName(i)
	})
}

func TestInsideUnsplit(t *testing.T) {
	f := newFixture(t)
	p := New(f.unsplit)
	runInsideOutside(t, p, f.chart)
	if got := p.SentenceLogProbability(); math.Abs(got-sampleLogProb) > eps {
		t.Errorf("sentence log probability = %v, want %v", got, sampleLogProb)
	}
	c := p.Chart()
	if got := c.Outside(0, 4, 1, 0); got != 0 {
		t.Errorf("root outside = %v, want 0", got)
	}
	for _, span := range f.chart.OpenCells() {
		for depth := 0; depth < c.UnaryChainLength(span[0], span[1]); depth++ {
			if got := c.Inside(span[0], span[1], depth, 0); math.Abs(got-f.chart.Inside(span[0], span[1], depth, 0)) > eps {
				t.Errorf("%v depth %d: inside %v, constraining chart has %v", span, depth, got, f.chart.Inside(span[0], span[1], depth, 0))
			}
		}
	}
}

func TestPosteriorsSumToSentenceProbability(t *testing.T) {
	for _, bracketed := range []string{
		sampleTree,
		// unary chain of depth 4 above a word at the root
		"(ROOT (X (Y (Z (W w)))))",
		// unary chains below the root: over a binary node and over a word
		"(S (NP (NP (DT the) (NN cat)) (PP (IN on) (NP (DT a) (NN mat)))) (VP (VX (VBZ sleeps) (ADVP (RB (RBR here))))))",
	} {
		gold, err := tree.Parse(bracketed, "ROOT")
		if err != nil {
			t.Fatal(err)
		}
		g, err := grammar.Induce([]*tree.Node{gold}, gold.Label, grammar.PackingShift)
		if err != nil {
			t.Fatal(err)
		}
		cc, err := chart.NewConstrainingChart(gold, g)
		if err != nil {
			t.Fatal(err)
		}
		for _, noise := range []grammar.Noise{grammar.ZeroNoise{}, grammar.BiasedNoise{Amount: 0.3}, grammar.NewRandomNoise(5, 0.5)} {
			p := New(grammar.Split(g, noise))
			runInsideOutside(t, p, cc)
			z := p.SentenceLogProbability()
			if math.IsInf(z, -1) {
				t.Fatalf("%s: zero sentence probability", bracketed)
			}
			c := p.Chart()
			for _, span := range cc.OpenCells() {
				for depth := 0; depth < c.UnaryChainLength(span[0], span[1]); depth++ {
					total := grammar.LogZero
					for k := 0; k < c.Splits(span[0], span[1], depth); k++ {
						total = grammar.LogSum(total, c.Posterior(span[0], span[1], depth, k))
					}
					if math.Abs(total-z) > 1e-6 {
						t.Errorf("%s %T %v depth %d: posteriors sum to %v, want %v", bracketed, noise, span, depth, total, z)
					}
				}
			}
		}
	}
}

func TestZeroNoiseSplit(t *testing.T) {
	f := newFixture(t)
	s := grammar.Split(f.unsplit, grammar.ZeroNoise{})
	p := New(s)
	runInsideOutside(t, p, f.chart)
	if got := p.SentenceLogProbability(); math.Abs(got-sampleLogProb) > eps {
		t.Errorf("split grammar changed the sentence probability: %v, want %v", got, sampleLogProb)
	}
	c := p.Chart()
	for k := 0; k < 2; k++ {
		if got := c.Inside(0, 1, 0, k); math.Abs(got-math.Log(2.0/3)) > 1e-3 {
			t.Errorf("inside of %s at [0,1] = %v, want log(2/3)", s.Vocabulary.Name(c.NonTerminal(0, 1, 0, k)), got)
		}
	}
}

func TestCountRuleOccurrences(t *testing.T) {
	f := newFixture(t)
	p := New(f.unsplit)
	runInsideOutside(t, p, f.chart)
	counts := grammar.NewFractionalCountGrammar(f.unsplit.Vocabulary, f.unsplit.Lexicon, f.unsplit.PackingKind)
	if err := p.CountRuleOccurrences(counts); err != nil {
		t.Fatal(err)
	}
	a, c := f.symbolOf(f.unsplit, "a"), f.symbolOf(f.unsplit, "c")
	e := f.unsplit.Lexicon.Get("e")
	if got := counts.LexicalLogCount(c, e); math.Abs(got-math.Log(2)) > eps {
		t.Errorf("count(c -> e) = %v, want 2", math.Exp(got))
	}
	if got := counts.BinaryLogCount(a, c, c); math.Abs(got) > eps {
		t.Errorf("count(a -> c c) = %v, want 1", math.Exp(got))
	}
	if got := counts.UnaryLogCount(grammar.StartSymbol, a); math.Abs(got) > eps {
		t.Errorf("count(top -> a) = %v, want 1", math.Exp(got))
	}

	reestimated := counts.Grammar(grammar.LogZero)
	if reestimated.String() != f.unsplit.String() {
		t.Errorf("re-estimated grammar differs:\n%s\nwant\n%s", reestimated, f.unsplit)
	}

	if err := p.CountRuleOccurrences(counts); err == nil {
		t.Error("counting twice should fail")
	}
}

func TestSplitCountsAreSymmetric(t *testing.T) {
	f := newFixture(t)
	s := grammar.Split(f.unsplit, grammar.ZeroNoise{})
	p := New(s)
	runInsideOutside(t, p, f.chart)
	counts := grammar.NewFractionalCountGrammar(s.Vocabulary, s.Lexicon, s.PackingKind)
	if err := p.CountRuleOccurrences(counts); err != nil {
		t.Fatal(err)
	}
	e := s.Lexicon.Get("e")
	for _, name := range []string{"c_0", "c_1"} {
		if got := counts.LexicalLogCount(f.symbolOf(s, name), e); math.Abs(got) > eps {
			t.Errorf("count(%s -> e) = %v, want 1", name, math.Exp(got))
		}
	}
	total := grammar.LogZero
	for _, v := range counts.ParentLogCounts() {
		total = grammar.LogSum(total, v)
	}
	// 9 nodes in the tree, each the parent of one rule application.
	if math.Abs(total-math.Log(9)) > 1e-6 {
		t.Errorf("total expected rule count = %v, want 9", math.Exp(total))
	}
}

func TestMergeCost(t *testing.T) {
	f := newFixture(t)
	s := grammar.Split(f.unsplit, grammar.ZeroNoise{})
	p := New(s)
	runInsideOutside(t, p, f.chart)
	counts := grammar.NewFractionalCountGrammar(s.Vocabulary, s.Lexicon, s.PackingKind)
	if err := p.CountRuleOccurrences(counts); err != nil {
		t.Fatal(err)
	}
	cost := make([]float64, s.Vocabulary.Size())
	if err := p.AccumulateMergeCost(counts.ParentLogCounts(), cost); err != nil {
		t.Fatal(err)
	}
	for _, i := range s.Vocabulary.SecondSiblings() {
		if math.Abs(cost[i]) > 1e-9 {
			t.Errorf("merging identical splits of %s costs %v, want 0", s.Vocabulary.UnsplitName(i), cost[i])
		}
	}

	// With equal mixing weights a node's loss is -(I1-I2)(O1-O2)/2.
	noisy := grammar.Split(f.unsplit, grammar.NewRandomNoise(3, 0.5))
	p = New(noisy)
	runInsideOutside(t, p, f.chart)
	cost = make([]float64, noisy.Vocabulary.Size())
	if err := p.AccumulateMergeCost(make([]float64, noisy.Vocabulary.Size()), cost); err != nil {
		t.Fatal(err)
	}
	c := p.Chart()
	z := math.Exp(p.SentenceLogProbability())
	want := make([]float64, len(cost))
	for _, span := range f.chart.OpenCells() {
		for depth := 0; depth < c.UnaryChainLength(span[0], span[1]); depth++ {
			for k := 1; k < c.Splits(span[0], span[1], depth); k += 2 {
				i1, o1 := math.Exp(c.Inside(span[0], span[1], depth, k-1)), math.Exp(c.Outside(span[0], span[1], depth, k-1))
				i2, o2 := math.Exp(c.Inside(span[0], span[1], depth, k)), math.Exp(c.Outside(span[0], span[1], depth, k))
				want[c.NonTerminal(span[0], span[1], depth, k)] += math.Log1p(-(i1 - i2) * (o1 - o2) / 2 / z)
			}
		}
	}
	nonZero := false
	for _, i := range noisy.Vocabulary.SecondSiblings() {
		if math.Abs(cost[i]-want[i]) > 1e-6 {
			t.Errorf("merge cost of %s = %v, want %v", noisy.Vocabulary.Name(i), cost[i], want[i])
		}
		if math.Abs(cost[i]) > 1e-9 {
			nonZero = true
		}
	}
	if !nonZero {
		t.Error("random splits should make some merges costly")
	}
}

func TestStateOrder(t *testing.T) {
	f := newFixture(t)
	p := New(f.unsplit)
	counts := grammar.NewFractionalCountGrammar(f.unsplit.Vocabulary, f.unsplit.Lexicon, f.unsplit.PackingKind)
	if err := p.Init(f.chart, Sum); err != nil {
		t.Fatal(err)
	}
	if err := p.Outside(); err == nil {
		t.Error("Outside before Inside should fail")
	}
	if err := p.CountRuleOccurrences(counts); err == nil {
		t.Error("CountRuleOccurrences before Outside should fail")
	}
	if err := p.AccumulateMergeCost(nil, nil); err == nil {
		t.Error("AccumulateMergeCost before Outside should fail")
	}
	if err := p.Inside(); err != nil {
		t.Fatal(err)
	}
	if p.State() != InsidePopulated {
		t.Errorf("state = %s, want inside", p.State())
	}
	if err := p.Inside(); err == nil {
		t.Error("Inside twice should fail")
	}

	if err := p.Init(f.chart, Viterbi); err != nil {
		t.Fatal(err)
	}
	if err := p.Inside(); err != nil {
		t.Fatal(err)
	}
	if err := p.Outside(); err == nil {
		t.Error("Outside after a Viterbi inside pass should fail")
	}

	other := grammar.NewFractionalCountGrammar(grammar.Split(f.unsplit, nil).Vocabulary, f.unsplit.Lexicon, f.unsplit.PackingKind)
	runInsideOutside(t, p, f.chart)
	if err := p.CountRuleOccurrences(other); err == nil {
		t.Error("counting into an accumulator over another vocabulary should fail")
	}
}

func TestFindBestParse(t *testing.T) {
	f := newFixture(t)
	for _, kind := range []grammar.PackingKind{grammar.PackingShift, grammar.PackingPerfectHash} {
		g, err := grammar.Induce([]*tree.Node{f.gold}, "top", kind)
		if err != nil {
			t.Fatal(err)
		}
		s := grammar.Split(g, grammar.NewRandomNoise(11, 0.4))
		p := New(s)

		best, err := p.FindBestParse(f.chart)
		if err != nil {
			t.Fatal(err)
		}
		if got := unsplitLabels(s, best); !got.Equal(f.gold) {
			t.Errorf("%s: FindBestParse = %s, want the gold tree", kind, best)
		}

		viterbi, err := p.FindViterbiParse(f.chart)
		if err != nil {
			t.Fatal(err)
		}
		if got := unsplitLabels(s, viterbi); !got.Equal(f.gold) {
			t.Errorf("%s: FindViterbiParse = %s, want the gold tree", kind, viterbi)
		}

		// The Viterbi tree's probability is the best derivation score.
		vc, err := chart.NewConstrainingChart(viterbi, s)
		if err != nil {
			t.Fatal(err)
		}
		if got, want := vc.Inside(0, 4, 1, 0), p.SentenceLogProbability(); math.Abs(got-want) > eps {
			t.Errorf("%s: Viterbi tree scores %v, best derivation %v", kind, got, want)
		}
	}
}

func TestConstrainingChartFromPosteriors(t *testing.T) {
	f := newFixture(t)
	s := grammar.Split(f.unsplit, grammar.BiasedNoise{Amount: 0.25})
	p := New(s)
	runInsideOutside(t, p, f.chart)
	derived, err := chart.NewConstrainingChartFromPosteriors(p.Chart())
	if err != nil {
		t.Fatal(err)
	}
	if derived.Vocabulary() != s.Vocabulary {
		t.Error("derived chart should use the split vocabulary")
	}
	if got := unsplitLabels(s, derived.ExtractBestParse()); !got.Equal(f.gold) {
		t.Errorf("derived chart = %s", derived.ExtractBestParse())
	}

	// The derived chart constrains the next split.
	next := grammar.Split(s, grammar.ZeroNoise{})
	q := New(next)
	runInsideOutside(t, q, derived)
	if got, want := q.SentenceLogProbability(), derived.Inside(0, 4, 1, 0); math.Abs(got-want) > 1e-9 {
		t.Errorf("next split sentence probability = %v, want %v", got, want)
	}
}

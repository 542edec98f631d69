package splitmerge

import (
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/happyhackingspace/splitmerge/chart"
	"github.com/happyhackingspace/splitmerge/grammar"
	"github.com/happyhackingspace/splitmerge/internal/treebank"
	"github.com/happyhackingspace/splitmerge/parser"
	"github.com/happyhackingspace/splitmerge/tree"
)

// TrainConfig holds split-merge training hyperparameters.
type TrainConfig struct {
	StartSymbol   string
	Cycles        int
	EMIterations  int
	Epsilon       float64 // EM stops early when the log likelihood gains less than this
	MergeFraction float64 // share of sibling pairs merged back after each split
	Noise         float64 // split perturbation amount
	Seed          int64
	Workers       int
	// Rules whose re-estimated log probability falls below this are pruned.
	MinRuleLogProbability float64
	PackingKind           grammar.PackingKind
	MaxLength             int // used by TrainFile
}

// DefaultTrainConfig returns the default training config.
func DefaultTrainConfig() *TrainConfig {
	return &TrainConfig{
		StartSymbol:           "ROOT",
		Cycles:                4,
		EMIterations:          20,
		Epsilon:               1e-4,
		MergeFraction:         0.5,
		Noise:                 0.01,
		Seed:                  1,
		Workers:               runtime.NumCPU(),
		MinRuleLogProbability: math.Log(1e-30),
		PackingKind:           grammar.PackingShift,
	}
}

func (c *TrainConfig) validate() error {
	switch {
	case c.StartSymbol == "":
		return fmt.Errorf("start symbol is empty")
	case c.Cycles < 0 || c.EMIterations < 0:
		return fmt.Errorf("negative cycle or iteration count")
	case c.MergeFraction < 0 || c.MergeFraction > 1:
		return fmt.Errorf("merge fraction %v outside [0, 1]", c.MergeFraction)
	case c.Noise < 0 || c.Noise >= 1:
		return fmt.Errorf("noise %v outside [0, 1)", c.Noise)
	case c.PackingKind != "" && c.PackingKind != grammar.PackingShift && c.PackingKind != grammar.PackingPerfectHash:
		return fmt.Errorf("unknown packing kind %q", c.PackingKind)
	}
	return nil
}

// TrainFile loads a bracketed treebank and trains on it.
func TrainFile(path string, config *TrainConfig) (*Model, error) {
	if config == nil {
		config = DefaultTrainConfig()
	}
	opts := treebank.DefaultOptions()
	opts.StartSymbol = config.StartSymbol
	opts.MaxLength = config.MaxLength
	trees, err := treebank.Load(path, opts)
	if err != nil {
		return nil, fmt.Errorf("splitmerge: %w", err)
	}
	if len(trees) == 0 {
		return nil, fmt.Errorf("splitmerge: no trees found in %s", path)
	}
	return Train(trees, config)
}

// Train learns a split grammar from treebank trees.
func Train(trees []*tree.Node, config *TrainConfig) (*Model, error) {
	if config == nil {
		config = DefaultTrainConfig()
	}
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("splitmerge: %w", err)
	}
	if len(trees) == 0 {
		return nil, fmt.Errorf("splitmerge: no training trees")
	}

	prepared := make([]*tree.Node, len(trees))
	for i, t := range trees {
		prepared[i] = prepare(t, config.StartSymbol)
	}
	g0, err := grammar.Induce(prepared, config.StartSymbol, config.PackingKind)
	if err != nil {
		return nil, fmt.Errorf("splitmerge: %w", err)
	}
	slog.Info("Induced treebank grammar", "trees", len(trees), "symbols", g0.Vocabulary.Size(),
		"words", g0.Lexicon.Size(), "rules", g0.NumRules())

	var charts []*chart.ConstrainingChart
	for i, t := range prepared {
		cc, err := chart.NewConstrainingChart(t, g0)
		if err != nil {
			slog.Warn("Skipping tree", "index", i, "error", err)
			continue
		}
		charts = append(charts, cc)
	}
	if len(charts) == 0 {
		return nil, fmt.Errorf("splitmerge: no usable training trees")
	}

	tr := &trainer{config: config, noise: grammar.NewRandomNoise(config.Seed, config.Noise)}
	g := g0
	for cycle := 1; cycle <= config.Cycles; cycle++ {
		if g, charts, err = tr.cycle(cycle, g, charts); err != nil {
			return nil, fmt.Errorf("splitmerge: cycle %d: %w", cycle, err)
		}
	}
	return newModel(config.StartSymbol, config.Cycles, g, g0), nil
}

type trainer struct {
	config *TrainConfig
	noise  grammar.Noise
}

// cycle splits g, re-estimates it, merges back the least useful splits,
// re-estimates again and re-derives the constraining charts from the merged
// grammar's best parses.
func (t *trainer) cycle(cycle int, g *grammar.Grammar, charts []*chart.ConstrainingChart) (*grammar.Grammar, []*chart.ConstrainingChart, error) {
	split := grammar.Split(g, t.noise)
	slog.Info("Split grammar", "cycle", cycle, "symbols", split.Vocabulary.Size(), "rules", split.NumRules())
	split, _, err := t.em(cycle, "split", split, charts)
	if err != nil {
		return nil, nil, err
	}

	merged, err := t.merge(split, charts)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("Merged grammar", "cycle", cycle, "symbols", merged.Vocabulary.Size(), "rules", merged.NumRules())
	merged, ll, err := t.em(cycle, "merge", merged, charts)
	if err != nil {
		return nil, nil, err
	}

	next, err := t.reconstrain(merged, charts)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("Finished cycle", "cycle", cycle, "symbols", merged.Vocabulary.Size(),
		"rules", merged.NumRules(), "logLikelihood", ll)
	return merged, next, nil
}

// em runs EM iterations until the configured count or convergence, then
// drops the symbols the estimate left without rules.
func (t *trainer) em(cycle int, phase string, g *grammar.Grammar, charts []*chart.ConstrainingChart) (*grammar.Grammar, float64, error) {
	prev := math.Inf(-1)
	ll := prev
	for iter := 0; iter < t.config.EMIterations; iter++ {
		counts, logLikelihood, err := t.expectation(g, charts)
		if err != nil {
			return nil, 0, err
		}
		ll = logLikelihood
		g = counts.Grammar(t.config.MinRuleLogProbability)
		slog.Debug("EM iteration", "cycle", cycle, "phase", phase, "iteration", iter+1,
			"logLikelihood", ll, "rules", g.NumRules())
		if ll-prev < t.config.Epsilon*math.Abs(ll) {
			break
		}
		prev = ll
	}
	compacted, oldToNew := grammar.Compact(g)
	if compacted != g {
		removed := 0
		for _, i := range oldToNew {
			if i < 0 {
				removed++
			}
		}
		slog.Debug("Removed symbols without rules", "cycle", cycle, "phase", phase, "removed", removed,
			"symbols", compacted.Vocabulary.Size())
	}
	return compacted, ll, nil
}

// expectation parses every chart with g and returns the expected rule
// counts and the corpus log likelihood.
func (t *trainer) expectation(g *grammar.Grammar, charts []*chart.ConstrainingChart) (*grammar.FractionalCountGrammar, float64, error) {
	type partial struct {
		counts  *grammar.FractionalCountGrammar
		ll      float64
		skipped int
		err     error
	}
	results := fanOut(len(charts), t.config.Workers, func(lo, hi int) partial {
		p := parser.New(g)
		out := partial{counts: grammar.NewFractionalCountGrammar(g.Vocabulary, g.Lexicon, g.PackingKind)}
		for _, cc := range charts[lo:hi] {
			if err := insideOutside(p, cc); err != nil {
				out.err = err
				return out
			}
			z := p.SentenceLogProbability()
			if math.IsInf(z, -1) {
				out.skipped++
				continue
			}
			if err := p.CountRuleOccurrences(out.counts); err != nil {
				out.err = err
				return out
			}
			out.ll += z
		}
		return out
	})

	total := grammar.NewFractionalCountGrammar(g.Vocabulary, g.Lexicon, g.PackingKind)
	ll, skipped := 0.0, 0
	for _, r := range results {
		if r.err != nil {
			return nil, 0, r.err
		}
		total.AddAll(r.counts)
		ll += r.ll
		skipped += r.skipped
	}
	if skipped > 0 {
		slog.Warn("Sentences with zero probability skipped", "count", skipped)
	}
	if skipped == len(charts) {
		return nil, 0, fmt.Errorf("no sentence has non-zero probability")
	}
	return total, ll, nil
}

// merge estimates the likelihood loss of merging every sibling pair of g and
// merges the cheapest MergeFraction of them.
func (t *trainer) merge(g *grammar.Grammar, charts []*chart.ConstrainingChart) (*grammar.Grammar, error) {
	candidates := g.Vocabulary.SecondSiblings()
	n := int(math.Round(float64(len(candidates)) * t.config.MergeFraction))
	if n == 0 {
		return g, nil
	}

	counts, _, err := t.expectation(g, charts)
	if err != nil {
		return nil, err
	}
	symbolCounts := counts.ParentLogCounts()

	type partial struct {
		cost []float64
		err  error
	}
	results := fanOut(len(charts), t.config.Workers, func(lo, hi int) partial {
		p := parser.New(g)
		out := partial{cost: make([]float64, g.Vocabulary.Size())}
		for _, cc := range charts[lo:hi] {
			if err := insideOutside(p, cc); err != nil {
				out.err = err
				return out
			}
			if math.IsInf(p.SentenceLogProbability(), -1) {
				continue
			}
			if err := p.AccumulateMergeCost(symbolCounts, out.cost); err != nil {
				out.err = err
				return out
			}
		}
		return out
	})
	cost := make([]float64, g.Vocabulary.Size())
	for _, r := range results {
		if r.err != nil {
			return nil, r.err
		}
		for i, c := range r.cost {
			cost[i] += c
		}
	}

	chosen := cheapestMerges(candidates, cost, n)
	for _, i := range chosen {
		slog.Debug("Merging splits", "symbol", g.Vocabulary.Name(i), "logLikelihoodLoss", -cost[i])
	}
	merged, _, err := grammar.Merge(g, chosen)
	return merged, err
}

// cheapestMerges returns the n candidates whose merge loses least likelihood.
// Ties keep vocabulary order.
func cheapestMerges(candidates []int, cost []float64, n int) []int {
	ranked := append([]int(nil), candidates...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return cost[ranked[i]] > cost[ranked[j]]
	})
	chosen := ranked[:n]
	sort.Ints(chosen)
	return chosen
}

// reconstrain replaces every chart with the max-posterior parse of its
// sentence under g, so that the next split refines g's symbols. Sentences g
// cannot parse are dropped with a warning.
func (t *trainer) reconstrain(g *grammar.Grammar, charts []*chart.ConstrainingChart) ([]*chart.ConstrainingChart, error) {
	type partial struct {
		charts  []*chart.ConstrainingChart
		dropped int
		err     error
	}
	results := fanOut(len(charts), t.config.Workers, func(lo, hi int) partial {
		p := parser.New(g)
		var out partial
		for _, cc := range charts[lo:hi] {
			if err := insideOutside(p, cc); err != nil {
				out.err = err
				return out
			}
			if math.IsInf(p.SentenceLogProbability(), -1) {
				out.dropped++
				continue
			}
			next, err := chart.NewConstrainingChartFromPosteriors(p.Chart())
			if err != nil {
				out.err = err
				return out
			}
			out.charts = append(out.charts, next)
		}
		return out
	})

	var next []*chart.ConstrainingChart
	dropped := 0
	for _, r := range results {
		if r.err != nil {
			return nil, r.err
		}
		next = append(next, r.charts...)
		dropped += r.dropped
	}
	if dropped > 0 {
		slog.Warn("Sentences dropped from training", "count", dropped)
	}
	if len(next) == 0 {
		return nil, fmt.Errorf("no sentence could be parsed with the merged grammar")
	}
	return next, nil
}

func insideOutside(p *parser.Parser, cc *chart.ConstrainingChart) error {
	if err := p.Init(cc, parser.Sum); err != nil {
		return err
	}
	if err := p.Inside(); err != nil {
		return err
	}
	return p.Outside()
}

// fanOut splits [0, n) into contiguous shards, runs fn on each in its own
// goroutine and returns the results in shard order.
func fanOut[T any](n, workers int, fn func(lo, hi int) T) []T {
	if workers < 1 {
		workers = 1
	}
	workers = min(workers, n)
	results := make([]T, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		w := w
		lo, hi := w*n/workers, (w+1)*n/workers
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[w] = fn(lo, hi)
		}()
	}
	wg.Wait()
	return results
}

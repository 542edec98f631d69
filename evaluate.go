package splitmerge

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/happyhackingspace/splitmerge/parser"
	"github.com/happyhackingspace/splitmerge/tree"
)

// EvalResult holds the likelihood a model assigns to a set of gold trees.
type EvalResult struct {
	Sentences     int
	Skipped       int // trees the treebank grammar cannot represent or the model gives zero probability
	Words         int
	LogLikelihood float64
}

// AverageLogLikelihood returns the log likelihood per scored sentence.
func (r *EvalResult) AverageLogLikelihood() float64 {
	if r.Sentences == 0 {
		return 0
	}
	return r.LogLikelihood / float64(r.Sentences)
}

// Perplexity returns exp of the negative log likelihood per word.
func (r *EvalResult) Perplexity() float64 {
	if r.Words == 0 {
		return math.Inf(1)
	}
	return math.Exp(-r.LogLikelihood / float64(r.Words))
}

// Evaluate scores gold trees with the model: each tree's probability is the
// sum over all split annotations of it.
func Evaluate(m *Model, trees []*tree.Node) (*EvalResult, error) {
	if m == nil || m.Grammar == nil {
		return nil, fmt.Errorf("splitmerge: model not initialized")
	}
	result := &EvalResult{}
	p := parser.New(m.rebased)
	for i, t := range trees {
		cc, err := m.constrain(t)
		if err != nil {
			slog.Debug("Skipping tree", "index", i, "error", err)
			result.Skipped++
			continue
		}
		if err := p.Init(cc, parser.Sum); err != nil {
			return nil, fmt.Errorf("splitmerge: %w", err)
		}
		if err := p.Inside(); err != nil {
			return nil, fmt.Errorf("splitmerge: %w", err)
		}
		z := p.SentenceLogProbability()
		if math.IsInf(z, -1) {
			result.Skipped++
			continue
		}
		result.Sentences++
		result.Words += cc.Size()
		result.LogLikelihood += z
	}
	if result.Skipped > 0 {
		slog.Warn("Trees skipped during evaluation", "count", result.Skipped)
	}
	return result, nil
}

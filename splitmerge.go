// Package splitmerge learns latent-annotation PCFGs from treebanks.
//
// Training starts from the relative-frequency grammar of the treebank and
// runs split-merge cycles: every symbol is split in two, EM re-estimates the
// split grammar under the constraint of the treebank trees, and the splits
// that gain least likelihood are merged back.
//
//	trees, _ := treebank.Load("train.mrg", treebank.DefaultOptions())
//	m, _ := splitmerge.Train(trees, splitmerge.DefaultTrainConfig())
//	parse, _ := m.Parse(trees[0]) // the tree with split labels
package splitmerge

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/happyhackingspace/splitmerge/chart"
	"github.com/happyhackingspace/splitmerge/grammar"
	"github.com/happyhackingspace/splitmerge/parser"
	"github.com/happyhackingspace/splitmerge/tree"
)

// Model is a trained split grammar together with the treebank grammar it was
// refined from.
type Model struct {
	StartSymbol string           `json:"start_symbol"`
	Cycles      int              `json:"cycles"`
	Grammar     *grammar.Grammar `json:"grammar"`
	Unsplit     *grammar.Grammar `json:"unsplit"`

	rebased *grammar.Grammar
}

func newModel(start string, cycles int, g, unsplit *grammar.Grammar) *Model {
	return &Model{StartSymbol: start, Cycles: cycles, Grammar: g, Unsplit: unsplit, rebased: g.Rebase()}
}

// Load reads a model written by Save.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("splitmerge: %w", err)
	}
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("splitmerge: %w", err)
	}
	if m.Grammar == nil || m.Unsplit == nil {
		return nil, fmt.Errorf("splitmerge: %s is not a model file", path)
	}
	if m.Grammar.Vocabulary.UnsplitSize() != m.Unsplit.Vocabulary.Size() {
		return nil, fmt.Errorf("splitmerge: grammar refines %d symbols, treebank grammar has %d",
			m.Grammar.Vocabulary.UnsplitSize(), m.Unsplit.Vocabulary.Size())
	}
	m.rebased = m.Grammar.Rebase()
	return &m, nil
}

// Save writes the model to a JSON file.
func (m *Model) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("splitmerge: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("splitmerge: %w", err)
	}
	return nil
}

// constrain builds the chart of a treebank tree in the model's unsplit
// labels.
func (m *Model) constrain(t *tree.Node) (*chart.ConstrainingChart, error) {
	return chart.NewConstrainingChart(prepare(t, m.StartSymbol), m.Unsplit)
}

// Parse returns the max-posterior split annotation of t, a tree in treebank
// labels. The result is binarized.
func (m *Model) Parse(t *tree.Node) (*tree.Node, error) {
	cc, err := m.constrain(t)
	if err != nil {
		return nil, fmt.Errorf("splitmerge: %w", err)
	}
	best, err := parser.New(m.rebased).FindBestParse(cc)
	if err != nil {
		return nil, fmt.Errorf("splitmerge: %w", err)
	}
	return best, nil
}

// ParseViterbi returns the most probable split derivation of t.
func (m *Model) ParseViterbi(t *tree.Node) (*tree.Node, float64, error) {
	cc, err := m.constrain(t)
	if err != nil {
		return nil, 0, fmt.Errorf("splitmerge: %w", err)
	}
	p := parser.New(m.rebased)
	best, err := p.FindViterbiParse(cc)
	if err != nil {
		return nil, 0, fmt.Errorf("splitmerge: %w", err)
	}
	return best, p.SentenceLogProbability(), nil
}

// prepare roots t at the start symbol and binarizes it.
func prepare(t *tree.Node, start string) *tree.Node {
	return t.WithRoot(start).Binarize()
}

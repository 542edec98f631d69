// Package treebank reads bracketed treebank files.
package treebank

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/edsrzf/mmap-go"

	"github.com/happyhackingspace/splitmerge/tree"
)

// Options controls how trees are read.
type Options struct {
	// StartSymbol labels unlabelled outer brackets and is added above
	// trees rooted at any other label.
	StartSymbol    string
	MaxLength      int // trees with more words are dropped; 0 keeps all
	Binarize       bool
	DropDuplicates bool
}

// DefaultOptions returns the options used for training.
func DefaultOptions() Options {
	return Options{
		StartSymbol: "ROOT",
		Binarize:    true,
	}
}

// Load memory-maps a treebank file and reads its trees. Malformed trees are
// skipped with a warning.
func Load(path string, opts Options) ([]*tree.Node, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open treebank: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat treebank: %w", err)
	}
	if info.Size() == 0 {
		return nil, nil
	}
	data, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("mmap treebank: %w", err)
	}
	defer func() { _ = data.Unmap() }()

	trees := Read(data, opts)
	slog.Debug("Loaded treebank", "path", path, "trees", len(trees))
	return trees, nil
}

// Read parses every bracketed tree in data. Text outside brackets is ignored.
func Read(data []byte, opts Options) []*tree.Node {
	var trees []*tree.Node
	seen := make(map[string]bool)
	for i, chunk := range split(data) {
		t, err := tree.Parse(chunk, opts.StartSymbol)
		if err != nil {
			slog.Warn("Skipping malformed tree", "index", i, "error", err)
			continue
		}
		if opts.StartSymbol != "" {
			t = t.WithRoot(opts.StartSymbol)
		}
		if opts.MaxLength > 0 && t.NumLeaves() > opts.MaxLength {
			slog.Debug("Skipping long tree", "index", i, "words", t.NumLeaves())
			continue
		}
		if opts.DropDuplicates {
			key := t.String()
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		if opts.Binarize {
			t = t.Binarize()
		}
		trees = append(trees, t)
	}
	return trees
}

// split cuts data into top-level bracketed spans. An unbalanced span at the
// end of the input is returned as is so that the parser reports it.
func split(data []byte) []string {
	var chunks []string
	depth, start := 0, -1
	for i, b := range data {
		switch b {
		case '(':
			if depth == 0 {
				start = i
			}
			depth++
		case ')':
			if depth == 0 {
				slog.Warn("Skipping unmatched ')'", "offset", i)
				continue
			}
			depth--
			if depth == 0 {
				chunks = append(chunks, string(data[start:i+1]))
			}
		}
	}
	if depth > 0 {
		chunks = append(chunks, string(data[start:]))
	}
	return chunks
}

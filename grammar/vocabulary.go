// Package grammar holds the latent-annotation PCFG: symbol vocabularies,
// rule tables with their packing functions, the split and merge transforms,
// and the fractional-count accumulator used for EM re-estimation.
package grammar

import "sort"

// Vocabulary is the lexicon of a grammar: the words it can generate, numbered
// in sorted order. Word indices are the Left field of lexical rules, so a
// lexicon is fixed when the grammar is built and never grows; words outside
// it are rejected by Get.
type Vocabulary struct {
	words []string
	index map[string]int
}

// NewLexicon returns the lexicon of the given words, sorted and deduplicated.
func NewLexicon(words ...string) *Vocabulary {
	sorted := append([]string(nil), words...)
	sort.Strings(sorted)
	v := &Vocabulary{index: make(map[string]int, len(sorted))}
	for _, w := range sorted {
		if _, ok := v.index[w]; ok {
			continue
		}
		v.index[w] = len(v.words)
		v.words = append(v.words, w)
	}
	return v
}

// Get returns the index of word, or -1 for a word outside the lexicon.
func (v *Vocabulary) Get(word string) int {
	if id, ok := v.index[word]; ok {
		return id
	}
	return -1
}

// Name returns the word with index id.
func (v *Vocabulary) Name(id int) string { return v.words[id] }

// Size returns the number of words.
func (v *Vocabulary) Size() int { return len(v.words) }

// Words returns the words in index order. The slice must not be modified.
func (v *Vocabulary) Words() []string { return v.words }

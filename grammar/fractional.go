package grammar

import "math"

// FractionalCountGrammar accumulates expected rule counts in log space. The
// E-step of EM fills one per worker; AddAll combines them and Grammar turns
// the totals into relative-frequency estimates.
type FractionalCountGrammar struct {
	Vocabulary  *SplitVocabulary
	Lexicon     *Vocabulary
	PackingKind PackingKind

	binary  map[[3]int]float64
	unary   map[[2]int]float64
	lexical map[[2]int]float64
}

// NewFractionalCountGrammar creates an empty accumulator.
func NewFractionalCountGrammar(vocab *SplitVocabulary, lexicon *Vocabulary, kind PackingKind) *FractionalCountGrammar {
	return &FractionalCountGrammar{
		Vocabulary:  vocab,
		Lexicon:     lexicon,
		PackingKind: kind,
		binary:      make(map[[3]int]float64),
		unary:       make(map[[2]int]float64),
		lexical:     make(map[[2]int]float64),
	}
}

// IncrementBinary adds exp(logCount) to parent -> left right.
func (f *FractionalCountGrammar) IncrementBinary(parent, left, right int, logCount float64) {
	addLog(f.binary, [3]int{parent, left, right}, logCount)
}

// IncrementUnary adds exp(logCount) to parent -> child.
func (f *FractionalCountGrammar) IncrementUnary(parent, child int, logCount float64) {
	addLog(f.unary, [2]int{parent, child}, logCount)
}

// IncrementLexical adds exp(logCount) to parent -> word.
func (f *FractionalCountGrammar) IncrementLexical(parent, word int, logCount float64) {
	addLog(f.lexical, [2]int{parent, word}, logCount)
}

// BinaryLogCount returns the accumulated log count of parent -> left right.
func (f *FractionalCountGrammar) BinaryLogCount(parent, left, right int) float64 {
	return logCount(f.binary, [3]int{parent, left, right})
}

// UnaryLogCount returns the accumulated log count of parent -> child.
func (f *FractionalCountGrammar) UnaryLogCount(parent, child int) float64 {
	return logCount(f.unary, [2]int{parent, child})
}

// LexicalLogCount returns the accumulated log count of parent -> word.
func (f *FractionalCountGrammar) LexicalLogCount(parent, word int) float64 {
	return logCount(f.lexical, [2]int{parent, word})
}

// ParentLogCounts returns the summed log count of every parent's rules.
func (f *FractionalCountGrammar) ParentLogCounts() []float64 {
	b, u, l := f.productions()
	return parentTotals(f.Vocabulary.Size(), b, u, l)
}

// AddAll adds every count of other into f. Both must share a vocabulary.
func (f *FractionalCountGrammar) AddAll(other *FractionalCountGrammar) {
	for k, v := range other.binary {
		addLog(f.binary, k, v)
	}
	for k, v := range other.unary {
		addLog(f.unary, k, v)
	}
	for k, v := range other.lexical {
		addLog(f.lexical, k, v)
	}
}

// Grammar normalizes the counts per parent into a grammar, dropping rules
// whose log probability falls below minLogProb.
func (f *FractionalCountGrammar) Grammar(minLogProb float64) *Grammar {
	b, u, l := f.productions()
	b, u, l = normalize(f.Vocabulary.Size(), b, u, l, minLogProb)
	return New(f.Vocabulary, f.Lexicon, b, u, l, f.PackingKind)
}

func (f *FractionalCountGrammar) productions() (binary, unary, lexical []Production) {
	for k, v := range f.binary {
		binary = append(binary, Production{Parent: k[0], Left: k[1], Right: k[2], LogProb: v})
	}
	for k, v := range f.unary {
		unary = append(unary, Production{Parent: k[0], Left: k[1], LogProb: v})
	}
	for k, v := range f.lexical {
		lexical = append(lexical, Production{Parent: k[0], Left: k[1], LogProb: v})
	}
	sortProductions(binary)
	sortProductions(unary)
	sortProductions(lexical)
	return binary, unary, lexical
}

func addLog[K comparable](m map[K]float64, key K, logCount float64) {
	if math.IsInf(logCount, -1) {
		return
	}
	if old, ok := m[key]; ok {
		m[key] = LogSum(old, logCount)
		return
	}
	m[key] = logCount
}

func logCount[K comparable](m map[K]float64, key K) float64 {
	if v, ok := m[key]; ok {
		return v
	}
	return LogZero
}

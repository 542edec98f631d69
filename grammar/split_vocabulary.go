package grammar

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// StartSymbol is the index of the start symbol in every SplitVocabulary.
const StartSymbol = 0

// SplitVocabulary is the nonterminal vocabulary of a (possibly split)
// grammar. Every symbol belongs to the split group of exactly one base symbol,
// the symbol of the coarser vocabulary it was derived from, and the members
// of a group occupy a contiguous index range. Symbols also remember the
// unsplit treebank label they ultimately derive from.
//
// A SplitVocabulary is never modified after construction; Split, Merge and
// Rebase return new vocabularies.
type SplitVocabulary struct {
	names []string
	toID  map[string]int

	base       []int // symbol -> base symbol
	firstSplit []int // base symbol -> first symbol of its group
	splitCount []int // base symbol -> group size
	maxSplits  int

	unsplit      []int // symbol -> unsplit symbol
	unsplitNames []string

	merged []bool // symbol was produced by the most recent merge
}

// NewUnsplitVocabulary creates a vocabulary in which every symbol is its own
// base and unsplit symbol. names[0] is the start symbol.
func NewUnsplitVocabulary(names []string) (*SplitVocabulary, error) {
	if len(names) == 0 {
		return nil, errors.New("grammar: empty vocabulary")
	}
	identity := make([]int, len(names))
	seen := make(map[string]bool, len(names))
	for i, name := range names {
		if seen[name] {
			return nil, errors.Errorf("grammar: duplicate symbol %q", name)
		}
		seen[name] = true
		identity[i] = i
	}
	if err := checkSplitNames(names); err != nil {
		return nil, err
	}
	unsplitNames := append([]string(nil), names...)
	return newSplitVocabulary(identity, len(names), append([]int(nil), identity...), unsplitNames, nil), nil
}

func newSplitVocabulary(base []int, baseSize int, unsplit []int, unsplitNames []string, merged []bool) *SplitVocabulary {
	v := &SplitVocabulary{
		base:         base,
		unsplit:      unsplit,
		unsplitNames: unsplitNames,
		merged:       merged,
		firstSplit:   make([]int, baseSize),
		splitCount:   make([]int, baseSize),
	}
	if v.merged == nil {
		v.merged = make([]bool, len(base))
	}
	for i := range v.firstSplit {
		v.firstSplit[i] = -1
	}
	for i, b := range base {
		if v.firstSplit[b] < 0 {
			v.firstSplit[b] = i
		} else if v.base[i-1] != b {
			panic(fmt.Sprintf("grammar: split group of base symbol %d is not contiguous", b))
		}
		v.splitCount[b]++
		if v.splitCount[b] > v.maxSplits {
			v.maxSplits = v.splitCount[b]
		}
	}
	v.buildNames()
	return v
}

// buildNames names symbols <unsplit>_<k> when their unsplit label has more
// than one split and uses the bare label otherwise.
func (v *SplitVocabulary) buildNames() {
	perUnsplit := make([]int, len(v.unsplitNames))
	for _, u := range v.unsplit {
		perUnsplit[u]++
	}
	seen := make([]int, len(v.unsplitNames))
	v.names = make([]string, len(v.base))
	v.toID = make(map[string]int, len(v.base))
	for i, u := range v.unsplit {
		name := v.unsplitNames[u]
		if perUnsplit[u] > 1 {
			name = fmt.Sprintf("%s_%d", name, seen[u])
		}
		seen[u]++
		v.names[i] = name
		v.toID[name] = i
	}
}

// Size returns the number of symbols.
func (v *SplitVocabulary) Size() int { return len(v.names) }

// Name returns the name of symbol i.
func (v *SplitVocabulary) Name(i int) string { return v.names[i] }

// Index returns the index of the named symbol.
func (v *SplitVocabulary) Index(name string) (int, bool) {
	i, ok := v.toID[name]
	return i, ok
}

// BaseSize returns the size of the vocabulary the split groups refer to.
func (v *SplitVocabulary) BaseSize() int { return len(v.firstSplit) }

// BaseSymbol returns the base symbol of symbol i.
func (v *SplitVocabulary) BaseSymbol(i int) int { return v.base[i] }

// FirstSplit returns the first symbol in the split group of base symbol b.
func (v *SplitVocabulary) FirstSplit(b int) int { return v.firstSplit[b] }

// SplitCount returns the size of the split group of base symbol b.
func (v *SplitVocabulary) SplitCount(b int) int { return v.splitCount[b] }

// FirstSibling returns the first symbol of i's split group.
func (v *SplitVocabulary) FirstSibling(i int) int { return v.firstSplit[v.base[i]] }

// SiblingCount returns the size of i's split group.
func (v *SplitVocabulary) SiblingCount(i int) int { return v.splitCount[v.base[i]] }

// MaxSplits returns the size of the largest split group.
func (v *SplitVocabulary) MaxSplits() int { return v.maxSplits }

// UnsplitSymbol returns the treebank symbol that i derives from.
func (v *SplitVocabulary) UnsplitSymbol(i int) int { return v.unsplit[i] }

// UnsplitName returns the treebank label that i derives from.
func (v *SplitVocabulary) UnsplitName(i int) string { return v.unsplitNames[v.unsplit[i]] }

// UnsplitSize returns the number of treebank symbols.
func (v *SplitVocabulary) UnsplitSize() int { return len(v.unsplitNames) }

// IsMerged reports whether symbol i was produced by merging two siblings.
func (v *SplitVocabulary) IsMerged(i int) bool { return v.merged[i] }

// IsSecondSibling reports whether i sits at an odd position of its group, the
// position a merge folds into the preceding sibling.
func (v *SplitVocabulary) IsSecondSibling(i int) bool {
	return (i-v.FirstSibling(i))%2 == 1
}

// SecondSiblings returns every symbol that can be merged into its preceding
// sibling, in increasing order.
func (v *SplitVocabulary) SecondSiblings() []int {
	var out []int
	for i := range v.base {
		if v.IsSecondSibling(i) {
			out = append(out, i)
		}
	}
	return out
}

// Split returns the vocabulary in which every symbol except the start symbol
// is divided in two. Symbol i > 0 becomes 2i-1 and 2i; the start symbol keeps
// index 0. The old vocabulary's indices become the new base symbols.
func (v *SplitVocabulary) Split() *SplitVocabulary {
	n := v.Size()
	base := make([]int, 2*n-1)
	unsplit := make([]int, 2*n-1)
	unsplit[StartSymbol] = v.unsplit[StartSymbol]
	for i := 1; i < n; i++ {
		for _, j := range SplitIndices(i) {
			base[j] = i
			unsplit[j] = v.unsplit[i]
		}
	}
	return newSplitVocabulary(base, n, unsplit, v.unsplitNames, nil)
}

// SplitIndices returns the indices symbol i maps to after a split.
func SplitIndices(i int) []int {
	if i == StartSymbol {
		return []int{StartSymbol}
	}
	return []int{2*i - 1, 2 * i}
}

// Merge folds every symbol in secondSiblings into its preceding sibling and
// renumbers the remaining symbols. It returns the new vocabulary and a map
// from old to new indices. Merged symbols are flagged with IsMerged.
func (v *SplitVocabulary) Merge(secondSiblings []int) (*SplitVocabulary, []int, error) {
	fold := make([]bool, v.Size())
	for _, i := range sortedUnique(secondSiblings) {
		if i <= StartSymbol || i >= v.Size() {
			return nil, nil, errors.Errorf("grammar: merge index %d out of range", i)
		}
		if !v.IsSecondSibling(i) {
			return nil, nil, errors.Errorf("grammar: %s is not a second sibling", v.names[i])
		}
		fold[i] = true
	}

	oldToNew := make([]int, v.Size())
	var base, unsplit []int
	var merged []bool
	for i := range v.names {
		if fold[i] {
			target := oldToNew[i-1]
			oldToNew[i] = target
			merged[target] = true
			continue
		}
		oldToNew[i] = len(base)
		base = append(base, v.base[i])
		unsplit = append(unsplit, v.unsplit[i])
		merged = append(merged, false)
	}
	return newSplitVocabulary(base, v.BaseSize(), unsplit, v.unsplitNames, merged), oldToNew, nil
}

// Rebase returns the same symbols grouped by their unsplit treebank label, so
// that charts constrained by gold trees can license them.
func (v *SplitVocabulary) Rebase() *SplitVocabulary {
	base := append([]int(nil), v.unsplit...)
	return newSplitVocabulary(base, len(v.unsplitNames), append([]int(nil), v.unsplit...), v.unsplitNames, nil)
}

// Remove drops every symbol whose keep entry is false; the start symbol is
// always kept. Groups keep their base symbols, so a base symbol may end up
// with no splits. The returned slice maps old indices to new ones, -1 for
// removed symbols.
func (v *SplitVocabulary) Remove(keep []bool) (*SplitVocabulary, []int) {
	oldToNew := make([]int, v.Size())
	var base, unsplit []int
	var merged []bool
	for i := range v.names {
		if i != StartSymbol && !keep[i] {
			oldToNew[i] = -1
			continue
		}
		oldToNew[i] = len(base)
		base = append(base, v.base[i])
		unsplit = append(unsplit, v.unsplit[i])
		merged = append(merged, v.merged[i])
	}
	return newSplitVocabulary(base, v.BaseSize(), unsplit, v.unsplitNames, merged), oldToNew
}

// checkSplitNames rejects label sets in which a label equals another label
// plus a split suffix, such as NP and NP_1: the split names of one would
// shadow the other.
func checkSplitNames(names []string) error {
	labels := make(map[string]bool, len(names))
	for _, name := range names {
		labels[name] = true
	}
	for _, name := range names {
		i := strings.LastIndexByte(name, '_')
		if i <= 0 {
			continue
		}
		if _, err := strconv.Atoi(name[i+1:]); err != nil {
			continue
		}
		if labels[name[:i]] {
			return errors.Errorf("grammar: label %q collides with the split names of %q", name, name[:i])
		}
	}
	return nil
}

// sortedUnique sorts and deduplicates indices.
func sortedUnique(indices []int) []int {
	out := append([]int(nil), indices...)
	sort.Ints(out)
	j := 0
	for i, x := range out {
		if i == 0 || x != out[j-1] {
			out[j] = x
			j++
		}
	}
	return out[:j]
}

package grammar

import "testing"

func TestLexicon(t *testing.T) {
	v := NewLexicon("the", "dog", "the")
	if v.Size() != 2 {
		t.Fatalf("Size = %d, want 2", v.Size())
	}
	if v.Get("dog") != 0 || v.Get("the") != 1 || v.Get("cat") != -1 {
		t.Errorf("Get: dog=%d the=%d cat=%d", v.Get("dog"), v.Get("the"), v.Get("cat"))
	}
	if words := v.Words(); len(words) != 2 || words[0] != "dog" || v.Name(1) != "the" {
		t.Errorf("Words = %v", words)
	}
}

func TestNewUnsplitVocabularyErrors(t *testing.T) {
	if _, err := NewUnsplitVocabulary(nil); err == nil {
		t.Error("expected error for empty vocabulary")
	}
	if _, err := NewUnsplitVocabulary([]string{"S", "NP", "S"}); err == nil {
		t.Error("expected error for duplicate symbol")
	}
	// NP_1 is the name NP's second split would get.
	if _, err := NewUnsplitVocabulary([]string{"ROOT", "NP", "NP_1"}); err == nil {
		t.Error("expected error for a label that shadows a split name")
	}
	if _, err := NewUnsplitVocabulary([]string{"ROOT", "NP", "NP_A", "PP_1"}); err != nil {
		t.Errorf("labels without a colliding base were rejected: %v", err)
	}
}

func TestRemoveSymbols(t *testing.T) {
	v, _ := NewUnsplitVocabulary([]string{"ROOT", "NP", "VP"})
	s := v.Split() // ROOT NP_0 NP_1 VP_0 VP_1
	r, oldToNew := s.Remove([]bool{true, false, true, false, false})
	want := []string{"ROOT", "NP"}
	if r.Size() != len(want) {
		t.Fatalf("Size = %d, want %d", r.Size(), len(want))
	}
	for i, name := range want {
		if r.Name(i) != name {
			t.Errorf("Name(%d) = %q, want %q", i, r.Name(i), name)
		}
	}
	wantMap := []int{0, -1, 1, -1, -1}
	for i := range wantMap {
		if oldToNew[i] != wantMap[i] {
			t.Errorf("oldToNew = %v, want %v", oldToNew, wantMap)
			break
		}
	}
	if r.BaseSize() != 3 || r.SplitCount(2) != 0 || r.SplitCount(1) != 1 || r.FirstSplit(1) != 1 {
		t.Errorf("groups: base size %d, NP count %d, VP count %d", r.BaseSize(), r.SplitCount(1), r.SplitCount(2))
	}
	if r.IsSecondSibling(1) || len(r.SecondSiblings()) != 0 {
		t.Errorf("SecondSiblings = %v, want none", r.SecondSiblings())
	}
}

func TestSplitVocabulary(t *testing.T) {
	v, err := NewUnsplitVocabulary([]string{"ROOT", "NP", "VP"})
	if err != nil {
		t.Fatal(err)
	}
	s := v.Split()
	want := []string{"ROOT", "NP_0", "NP_1", "VP_0", "VP_1"}
	if s.Size() != len(want) {
		t.Fatalf("Size = %d, want %d", s.Size(), len(want))
	}
	for i, name := range want {
		if s.Name(i) != name {
			t.Errorf("Name(%d) = %q, want %q", i, s.Name(i), name)
		}
		if j, ok := s.Index(name); !ok || j != i {
			t.Errorf("Index(%q) = %d, %v", name, j, ok)
		}
	}
	if s.BaseSize() != 3 || s.MaxSplits() != 2 {
		t.Errorf("BaseSize = %d, MaxSplits = %d", s.BaseSize(), s.MaxSplits())
	}
	if s.FirstSplit(2) != 3 || s.SplitCount(2) != 2 || s.SplitCount(0) != 1 {
		t.Errorf("group of VP: first %d count %d", s.FirstSplit(2), s.SplitCount(2))
	}
	if s.FirstSibling(4) != 3 || s.SiblingCount(4) != 2 || s.BaseSymbol(4) != 2 {
		t.Errorf("VP_1: first sibling %d, count %d, base %d", s.FirstSibling(4), s.SiblingCount(4), s.BaseSymbol(4))
	}
	got := s.SecondSiblings()
	if len(got) != 2 || got[0] != 2 || got[1] != 4 {
		t.Errorf("SecondSiblings = %v, want [2 4]", got)
	}

	s2 := s.Split()
	if s2.Size() != 9 || s2.UnsplitName(8) != "VP" || s2.Name(8) != "VP_3" || s2.BaseSymbol(8) != 4 {
		t.Errorf("second split: size %d, symbol 8 = %q base %d", s2.Size(), s2.Name(8), s2.BaseSymbol(8))
	}

	r := s2.Rebase()
	if r.BaseSize() != 3 || r.SplitCount(2) != 4 || r.FirstSplit(2) != 5 || r.MaxSplits() != 4 {
		t.Errorf("rebased: base size %d, VP count %d first %d", r.BaseSize(), r.SplitCount(2), r.FirstSplit(2))
	}
}

func TestMergeVocabulary(t *testing.T) {
	v, _ := NewUnsplitVocabulary([]string{"ROOT", "NP", "VP"})
	s := v.Split()
	m, oldToNew, err := s.Merge([]int{4, 4})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"ROOT", "NP_0", "NP_1", "VP"}
	for i, name := range want {
		if m.Name(i) != name {
			t.Errorf("Name(%d) = %q, want %q", i, m.Name(i), name)
		}
	}
	if oldToNew[3] != 3 || oldToNew[4] != 3 {
		t.Errorf("oldToNew = %v", oldToNew)
	}
	if !m.IsMerged(3) || m.IsMerged(1) {
		t.Error("only VP should be flagged as merged")
	}
	if m.BaseSymbol(3) != 2 || m.SplitCount(2) != 1 {
		t.Errorf("merged VP keeps base %d, count %d", m.BaseSymbol(3), m.SplitCount(2))
	}
	if _, _, err := s.Merge([]int{3}); err == nil {
		t.Error("merging a first sibling should fail")
	}
}

func TestPacking(t *testing.T) {
	shift := NewPacking(PackingShift, 5, nil)
	for _, pair := range [][2]int{{0, 0}, {4, 3}, {2, 4}} {
		key := shift.Pack(pair[0], pair[1])
		if key < 0 {
			t.Fatalf("Pack(%v) = %d", pair, key)
		}
		if l, r := shift.Unpack(key); l != pair[0] || r != pair[1] {
			t.Errorf("Unpack(Pack(%v)) = %d, %d", pair, l, r)
		}
	}
	if shift.Pack(5, 0) != InvalidKey || shift.Pack(0, -1) != InvalidKey {
		t.Error("out-of-range pairs should pack to InvalidKey")
	}

	ph := NewPacking(PackingPerfectHash, 5, [][2]int{{1, 2}, {3, 4}, {1, 2}})
	if ph.Pack(1, 2) != 0 || ph.Pack(3, 4) != 1 {
		t.Errorf("perfect hash keys: %d %d", ph.Pack(1, 2), ph.Pack(3, 4))
	}
	if ph.Pack(1, 3) != InvalidKey || ph.Pack(0, 0) != InvalidKey || ph.Pack(7, 0) != InvalidKey {
		t.Error("unobserved pairs should pack to InvalidKey")
	}
	if l, r := ph.Unpack(1); l != 3 || r != 4 {
		t.Errorf("Unpack(1) = %d, %d", l, r)
	}

	if PackUnary(0) != -1 || UnpackUnary(PackUnary(7)) != 7 || UnpackLexical(PackLexical(3)) != 3 {
		t.Error("unary/lexical packing should round trip through negative keys")
	}
}

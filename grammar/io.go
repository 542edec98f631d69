package grammar

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// grammarJSON is the serialized form of a Grammar. Symbols are stored with
// their base and unsplit groups so that a loaded grammar keeps its split
// structure.
type grammarJSON struct {
	Symbols      []string     `json:"symbols"`
	Base         []int        `json:"base"`
	BaseSize     int          `json:"base_size"`
	Unsplit      []int        `json:"unsplit"`
	UnsplitNames []string     `json:"unsplit_names"`
	Words        []string     `json:"words"`
	PackingKind  PackingKind  `json:"packing"`
	Binary       []Production `json:"binary"`
	Unary        []Production `json:"unary"`
	Lexical      []Production `json:"lexical"`
}

// MarshalJSON implements json.Marshaler.
func (g *Grammar) MarshalJSON() ([]byte, error) {
	v := g.Vocabulary
	doc := grammarJSON{
		Symbols:      v.names,
		Base:         v.base,
		BaseSize:     v.BaseSize(),
		Unsplit:      v.unsplit,
		UnsplitNames: v.unsplitNames,
		Words:        g.Lexicon.Words(),
		PackingKind:  g.PackingKind,
		Binary:       g.Binary,
		Unary:        g.Unary,
		Lexical:      g.Lexical,
	}
	return json.Marshal(doc)
}

// UnmarshalJSON implements json.Unmarshaler.
func (g *Grammar) UnmarshalJSON(data []byte) error {
	var doc grammarJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	if err := doc.validate(); err != nil {
		return err
	}
	vocab := newSplitVocabulary(doc.Base, doc.BaseSize, doc.Unsplit, doc.UnsplitNames, nil)
	lexicon := NewLexicon(doc.Words...)
	*g = *New(vocab, lexicon, doc.Binary, doc.Unary, doc.Lexical, doc.PackingKind)
	return nil
}

func (doc *grammarJSON) validate() error {
	n := len(doc.Base)
	if n == 0 {
		return errors.New("grammar: no symbols")
	}
	if len(doc.Unsplit) != n {
		return errors.Errorf("grammar: %d unsplit entries for %d symbols", len(doc.Unsplit), n)
	}
	for i := range doc.Base {
		if doc.Base[i] < 0 || doc.Base[i] >= doc.BaseSize {
			return errors.Errorf("grammar: symbol %d has base %d out of range", i, doc.Base[i])
		}
		if i > 0 && doc.Base[i] < doc.Base[i-1] {
			return errors.Errorf("grammar: split groups out of order at symbol %d", i)
		}
		if doc.Unsplit[i] < 0 || doc.Unsplit[i] >= len(doc.UnsplitNames) {
			return errors.Errorf("grammar: symbol %d has unsplit label %d out of range", i, doc.Unsplit[i])
		}
	}
	if err := checkSplitNames(doc.UnsplitNames); err != nil {
		return err
	}
	for i := 1; i < len(doc.Words); i++ {
		if doc.Words[i-1] >= doc.Words[i] {
			return errors.Errorf("grammar: words not sorted at %q", doc.Words[i])
		}
	}
	switch doc.PackingKind {
	case PackingShift, PackingPerfectHash, "":
	default:
		return errors.Errorf("grammar: unknown packing kind %q", doc.PackingKind)
	}
	check := func(kind string, rules []Production, children int, words bool) error {
		for _, r := range rules {
			ok := r.Parent >= 0 && r.Parent < n
			if words {
				ok = ok && r.Left >= 0 && r.Left < len(doc.Words)
			} else {
				ok = ok && r.Left >= 0 && r.Left < n
			}
			if children == 2 {
				ok = ok && r.Right >= 0 && r.Right < n
			}
			if !ok {
				return errors.Errorf("grammar: %s rule %+v references an unknown symbol", kind, r)
			}
		}
		return nil
	}
	if err := check("binary", doc.Binary, 2, false); err != nil {
		return err
	}
	if err := check("unary", doc.Unary, 1, false); err != nil {
		return err
	}
	return check("lexical", doc.Lexical, 1, true)
}

// Save writes the grammar to path as indented JSON.
func Save(g *Grammar, path string) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "grammar: save %s", path)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, "grammar: save %s", path)
	}
	return nil
}

// Package tree reads, prints and binarizes bracketed parse trees.
package tree

import (
	"strings"

	"github.com/pkg/errors"
)

// BinarizedPrefix marks the intermediate nodes introduced by Binarize.
const BinarizedPrefix = "@"

// Node is a node of a parse tree. Leaves carry words and have no children.
type Node struct {
	Label    string
	Children []*Node
}

// NewLeaf creates a leaf node.
func NewLeaf(word string) *Node {
	return &Node{Label: word}
}

// NewNode creates an internal node.
func NewNode(label string, children ...*Node) *Node {
	return &Node{Label: label, Children: children}
}

// IsLeaf reports whether n is a word.
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// IsPreterminal reports whether n's only child is a word.
func (n *Node) IsPreterminal() bool {
	return len(n.Children) == 1 && n.Children[0].IsLeaf()
}

// Leaves returns the words under n, left to right.
func (n *Node) Leaves() []string {
	var words []string
	n.walkLeaves(func(leaf *Node) { words = append(words, leaf.Label) })
	return words
}

// NumLeaves returns the number of words under n.
func (n *Node) NumLeaves() int {
	count := 0
	n.walkLeaves(func(*Node) { count++ })
	return count
}

func (n *Node) walkLeaves(fn func(*Node)) {
	if n.IsLeaf() {
		fn(n)
		return
	}
	for _, c := range n.Children {
		c.walkLeaves(fn)
	}
}

// Walk calls fn for n and all its descendants in pre-order. Returning false
// skips the node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Equal reports whether two trees have identical labels and structure.
func (n *Node) Equal(o *Node) bool {
	if n.Label != o.Label || len(n.Children) != len(o.Children) {
		return false
	}
	for i := range n.Children {
		if !n.Children[i].Equal(o.Children[i]) {
			return false
		}
	}
	return true
}

// String prints the tree in single-line bracketed form.
func (n *Node) String() string {
	var sb strings.Builder
	n.write(&sb)
	return sb.String()
}

func (n *Node) write(sb *strings.Builder) {
	if n.IsLeaf() {
		sb.WriteString(n.Label)
		return
	}
	sb.WriteByte('(')
	sb.WriteString(n.Label)
	for _, c := range n.Children {
		sb.WriteByte(' ')
		c.write(sb)
	}
	sb.WriteByte(')')
}

// Parse reads one bracketed tree such as "(S (NP (DT the) (NN dog)) (VP (VBZ barks)))".
// An outer bracket without a label, as in Penn Treebank files, gets rootLabel.
func Parse(s string, rootLabel string) (*Node, error) {
	tokens := tokenize(s)
	if len(tokens) == 0 {
		return nil, errors.New("tree: empty input")
	}
	p := &parser{tokens: tokens}
	n, err := p.node()
	if err != nil {
		return nil, err
	}
	if p.pos != len(tokens) {
		return nil, errors.Errorf("tree: unexpected %q after tree", tokens[p.pos])
	}
	if n.IsLeaf() {
		return nil, errors.Errorf("tree: %q is not a tree", s)
	}
	if n.Label == "" {
		n.Label = rootLabel
	}
	return n, nil
}

func tokenize(s string) []string {
	var tokens []string
	start := -1
	for i, r := range s {
		switch {
		case r == '(' || r == ')':
			if start >= 0 {
				tokens = append(tokens, s[start:i])
				start = -1
			}
			tokens = append(tokens, string(r))
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			if start >= 0 {
				tokens = append(tokens, s[start:i])
				start = -1
			}
		default:
			if start < 0 {
				start = i
			}
		}
	}
	if start >= 0 {
		tokens = append(tokens, s[start:])
	}
	return tokens
}

type parser struct {
	tokens []string
	pos    int
}

func (p *parser) node() (*Node, error) {
	if p.pos >= len(p.tokens) {
		return nil, errors.New("tree: unexpected end of input")
	}
	tok := p.tokens[p.pos]
	p.pos++
	switch tok {
	case ")":
		return nil, errors.Errorf("tree: unexpected ')' at token %d", p.pos-1)
	case "(":
	default:
		return NewLeaf(tok), nil
	}

	n := &Node{}
	if p.pos < len(p.tokens) && p.tokens[p.pos] != "(" && p.tokens[p.pos] != ")" {
		n.Label = p.tokens[p.pos]
		p.pos++
	}
	for {
		if p.pos >= len(p.tokens) {
			return nil, errors.Errorf("tree: unbalanced brackets in (%s ...)", n.Label)
		}
		if p.tokens[p.pos] == ")" {
			p.pos++
			break
		}
		child, err := p.node()
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, child)
	}
	if len(n.Children) == 0 {
		return nil, errors.Errorf("tree: empty constituent (%s)", n.Label)
	}
	return n, nil
}

package tree

import "strings"

// Binarize returns a copy of n in which every node has at most two children.
// Wider constituents are right-factored: (X a b c) becomes (X a (@X b c)).
func (n *Node) Binarize() *Node {
	if n.IsLeaf() {
		return NewLeaf(n.Label)
	}
	children := make([]*Node, len(n.Children))
	for i, c := range n.Children {
		children[i] = c.Binarize()
	}
	return factor(n.Label, n.Label, children)
}

func factor(label, base string, children []*Node) *Node {
	if len(children) <= 2 {
		return &Node{Label: label, Children: children}
	}
	intermediate := BinarizedPrefix + strings.TrimPrefix(base, BinarizedPrefix)
	return &Node{
		Label:    label,
		Children: []*Node{children[0], factor(intermediate, base, children[1:])},
	}
}

// Unbinarize returns a copy of n with the intermediate nodes introduced by
// Binarize spliced back into their parents.
func (n *Node) Unbinarize() *Node {
	if n.IsLeaf() {
		return NewLeaf(n.Label)
	}
	out := &Node{Label: n.Label}
	for _, c := range n.Children {
		u := c.Unbinarize()
		if !u.IsLeaf() && strings.HasPrefix(u.Label, BinarizedPrefix) {
			out.Children = append(out.Children, u.Children...)
			continue
		}
		out.Children = append(out.Children, u)
	}
	return out
}

// IsBinary reports whether every node under n has at most two children.
func (n *Node) IsBinary() bool {
	binary := true
	n.Walk(func(x *Node) bool {
		if len(x.Children) > 2 {
			binary = false
		}
		return binary
	})
	return binary
}

// WithRoot returns n unchanged when its label is root, otherwise a new node
// labelled root with n as its only child.
func (n *Node) WithRoot(root string) *Node {
	if n.Label == root {
		return n
	}
	return NewNode(root, n)
}

// MapLabels returns a copy of n with fn applied to every internal node label.
func (n *Node) MapLabels(fn func(string) string) *Node {
	if n.IsLeaf() {
		return NewLeaf(n.Label)
	}
	out := &Node{Label: fn(n.Label), Children: make([]*Node, len(n.Children))}
	for i, c := range n.Children {
		out.Children[i] = c.MapLabels(fn)
	}
	return out
}

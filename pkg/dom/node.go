// Package dom models a rendered page as a tree of nodes where any element may
// own a separate shadow tree. Trees arrive as JSON snapshots taken inside the
// page and are queried on the Go side: CSS selectors never cross a shadow
// boundary, while the deep helpers (Walk, FindByText, DeepText)
// descend into every shadow root they meet.
package dom

import (
	"strings"
	"sync"

	"github.com/ipcheck/ipcheck/pkg/jsonutil"
)

// Kind mirrors the DOM nodeType values carried in snapshots.
type Kind int

const (
	ElementNode  Kind = 1
	TextNode     Kind = 3
	DocumentNode Kind = 9
	FragmentNode Kind = 11
)

// Node is one node of a snapshot. Shadow holds the element's shadow root as a
// FragmentNode; it is not part of Children.
type Node struct {
	Kind     Kind              `json:"k"`
	Tag      string            `json:"n,omitempty"`
	Attrs    map[string]string `json:"a,omitempty"`
	Value    string            `json:"v,omitempty"`
	Shadow   *Node             `json:"s,omitempty"`
	Children []*Node           `json:"c,omitempty"`

	parent *Node
	host   *Node

	// set on scope roots only
	indexOnce sync.Once
	index     *scopeIndex
}

// Decode parses a JSON snapshot tree and links parent pointers.
func Decode(data []byte) (*Node, error) {
	var root Node
	if err := jsonutil.UnmarshalLenient(data, &root); err != nil {
		return nil, err
	}
	root.Link()
	return &root, nil
}

// Link sets parent and host pointers for the whole tree. Decode calls it;
// callers that assemble or edit trees by hand call it before querying.
func (n *Node) Link() {
	n.link(nil, 0)
}

func (n *Node) link(parent *Node, depth int) {
	n.parent = parent
	if depth > maxDepth {
		return
	}
	n.Tag = strings.ToLower(n.Tag)
	if n.Shadow != nil {
		n.Shadow.link(nil, depth+1)
		n.Shadow.host = n
	}
	for _, c := range n.Children {
		if c != nil {
			c.link(n, depth+1)
		}
	}
}

// Parent returns the parent node, or nil for a scope root.
func (n *Node) Parent() *Node {
	if n == nil {
		return nil
	}
	return n.parent
}

// Host returns the element owning this shadow root, or nil.
func (n *Node) Host() *Node {
	if n == nil {
		return nil
	}
	return n.host
}

// ShadowRoot returns the element's shadow root, or nil.
func (n *Node) ShadowRoot() *Node {
	if n == nil {
		return nil
	}
	return n.Shadow
}

// IsElement reports whether n is an element.
func (n *Node) IsElement() bool {
	return n != nil && n.Kind == ElementNode
}

// Attr returns the named attribute.
func (n *Node) Attr(name string) (string, bool) {
	if n == nil || n.Attrs == nil {
		return "", false
	}
	v, ok := n.Attrs[name]
	return v, ok
}

// Text returns the light-tree text content of n: all descendant text nodes
// concatenated, shadow trees excluded.
func (n *Node) Text() string {
	if n == nil {
		return ""
	}
	if n.Kind == TextNode {
		return n.Value
	}
	var sb strings.Builder
	n.appendText(&sb, 0)
	return sb.String()
}

func (n *Node) appendText(sb *strings.Builder, depth int) {
	if depth > maxDepth {
		return
	}
	for _, c := range n.Children {
		if c == nil {
			continue
		}
		if c.Kind == TextNode {
			sb.WriteString(c.Value)
			continue
		}
		c.appendText(sb, depth+1)
	}
}

// TrimmedText is Text with surrounding whitespace removed and inner runs of
// whitespace collapsed to one space.
func (n *Node) TrimmedText() string {
	return strings.Join(strings.Fields(n.Text()), " ")
}

// DeepText returns the text of n including every shadow tree below it,
// shadow content first, each text node trimmed and followed by a space.
func (n *Node) DeepText() string {
	var sb strings.Builder
	Walk(n, func(v *Node) bool {
		if v.Kind == TextNode {
			if t := strings.TrimSpace(v.Value); t != "" {
				sb.WriteString(t)
				sb.WriteByte(' ')
			}
		}
		return true
	})
	return sb.String()
}

// NextElementSibling returns the next sibling element, or nil.
func (n *Node) NextElementSibling() *Node {
	if n == nil || n.parent == nil {
		return nil
	}
	siblings := n.parent.Children
	for i, s := range siblings {
		if s != n {
			continue
		}
		for _, next := range siblings[i+1:] {
			if next.IsElement() {
				return next
			}
		}
		return nil
	}
	return nil
}

// scopeRoot returns the top of n's tree: the document or shadow root that
// selector queries from n are evaluated against.
func (n *Node) scopeRoot() *Node {
	cur := n
	for cur.parent != nil {
		cur = cur.parent
	}
	return cur
}

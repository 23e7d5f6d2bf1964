package dom

import (
	"fmt"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// scopeIndex is an x/net/html mirror of one scope (a document or a shadow
// root) so cascadia can evaluate selectors with full sibling and ancestor
// context. Shadow trees below the scope are separate scopes and are not
// mirrored here.
type scopeIndex struct {
	toHTML   map[*Node]*html.Node
	fromHTML map[*html.Node]*Node
}

func (n *Node) scope() *scopeIndex {
	root := n.scopeRoot()
	root.indexOnce.Do(func() {
		root.index = buildIndex(root)
	})
	return root.index
}

func buildIndex(root *Node) *scopeIndex {
	idx := &scopeIndex{
		toHTML:   make(map[*Node]*html.Node),
		fromHTML: make(map[*html.Node]*Node),
	}
	top := &html.Node{Type: html.DocumentNode}
	if root.Kind == ElementNode {
		// A detached element tree: hang it under a synthetic document.
		top.AppendChild(idx.mirror(root, 0))
	} else {
		idx.toHTML[root] = top
		idx.fromHTML[top] = root
		idx.mirrorChildren(root, top, 0)
	}
	return idx
}

func (idx *scopeIndex) mirror(n *Node, depth int) *html.Node {
	var h *html.Node
	switch n.Kind {
	case ElementNode:
		h = &html.Node{
			Type:     html.ElementNode,
			Data:     n.Tag,
			DataAtom: atom.Lookup([]byte(n.Tag)),
		}
		for k, v := range n.Attrs {
			h.Attr = append(h.Attr, html.Attribute{Key: k, Val: v})
		}
		idx.mirrorChildren(n, h, depth)
	case TextNode:
		h = &html.Node{Type: html.TextNode, Data: n.Value}
	default:
		return nil
	}
	idx.toHTML[n] = h
	idx.fromHTML[h] = n
	return h
}

func (idx *scopeIndex) mirrorChildren(n *Node, h *html.Node, depth int) {
	if depth > maxDepth {
		return
	}
	for _, c := range n.Children {
		if c == nil {
			continue
		}
		if m := idx.mirror(c, depth+1); m != nil {
			h.AppendChild(m)
		}
	}
}

var selectorCache sync.Map // string -> cascadia.SelectorGroup

func compile(selector string) (cascadia.SelectorGroup, error) {
	if v, ok := selectorCache.Load(selector); ok {
		return v.(cascadia.SelectorGroup), nil
	}
	sel, err := cascadia.ParseGroup(selector)
	if err != nil {
		return nil, fmt.Errorf("dom: invalid selector %q: %w", selector, err)
	}
	selectorCache.Store(selector, sel)
	return sel, nil
}

// QuerySelector returns the first descendant of n, in document order, that
// matches selector. Matching sees n's whole scope, so combinators may refer
// to ancestors of n, but never looks inside shadow roots.
func (n *Node) QuerySelector(selector string) (*Node, error) {
	if n == nil {
		return nil, nil
	}
	sel, err := compile(selector)
	if err != nil {
		return nil, err
	}
	idx := n.scope()
	start, ok := idx.toHTML[n]
	if !ok {
		return nil, nil
	}
	var hit *html.Node
	var visit func(h *html.Node) bool
	visit = func(h *html.Node) bool {
		for c := h.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && sel.Match(c) {
				hit = c
				return true
			}
			if visit(c) {
				return true
			}
		}
		return false
	}
	visit(start)
	if hit == nil {
		return nil, nil
	}
	return idx.fromHTML[hit], nil
}

// Query is QuerySelector with invalid selectors treated as no match.
func (n *Node) Query(selector string) *Node {
	found, err := n.QuerySelector(selector)
	if err != nil {
		return nil
	}
	return found
}

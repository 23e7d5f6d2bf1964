package dom

import (
	"strings"

	"github.com/ipcheck/ipcheck/pkg/defaults"
)

const maxDepth = defaults.MaxDOMDepth

// Visitor is called for every node reached by Walk. Returning false stops
// the walk.
type Visitor func(n *Node) bool

// Walk visits root and its descendants depth first. An element's shadow root
// is visited before its light children. Descent stops at the depth guard,
// and a visitor panic on one node skips that node's subtree instead of
// aborting the walk.
func Walk(root *Node, fn Visitor) {
	if root == nil {
		return
	}
	walk(root, fn, 0)
}

func walk(n *Node, fn Visitor, depth int) (cont bool) {
	if n == nil || depth > maxDepth {
		return true
	}

	var keepGoing, descend bool
	func() {
		defer func() {
			if recover() != nil {
				keepGoing, descend = true, false
			}
		}()
		keepGoing = fn(n)
		descend = true
	}()
	if !keepGoing {
		return false
	}
	if !descend {
		return true
	}

	if n.Shadow != nil {
		if !walk(n.Shadow, fn, depth+1) {
			return false
		}
	}
	for _, c := range n.Children {
		if !walk(c, fn, depth+1) {
			return false
		}
	}
	return true
}

// FindByText returns the parent of the first text node below root whose
// content contains text. The parent may be a shadow root fragment.
func FindByText(root *Node, text string) *Node {
	var found *Node
	Walk(root, func(n *Node) bool {
		if n.Kind == TextNode && strings.Contains(n.Value, text) {
			found = n.parent
			return false
		}
		return true
	})
	return found
}

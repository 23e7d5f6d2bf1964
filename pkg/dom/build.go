package dom

// Constructors for assembling trees in code. Trees built this way must be
// linked with Link before they are queried.

// Doc returns a document node.
func Doc(children ...*Node) *Node {
	return &Node{Kind: DocumentNode, Children: children}
}

// El returns an element node. attrs may be nil.
func El(tag string, attrs map[string]string, children ...*Node) *Node {
	return &Node{Kind: ElementNode, Tag: tag, Attrs: attrs, Children: children}
}

// Txt returns a text node.
func Txt(s string) *Node {
	return &Node{Kind: TextNode, Value: s}
}

// WithShadow attaches a shadow root holding children to element n and
// returns n.
func (n *Node) WithShadow(children ...*Node) *Node {
	n.Shadow = &Node{Kind: FragmentNode, Children: children}
	return n
}

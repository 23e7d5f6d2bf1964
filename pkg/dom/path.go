package dom

import "strings"

// ShadowStep is the token that marks a shadow boundary crossing in a path
// written as a list of strings.
const ShadowStep = "SHADOW"

// Step is one move of a Path: either cross into the current element's
// shadow root, or descend to the first descendant matching Selector.
type Step struct {
	Shadow   bool
	Selector string
}

// Path is a declarative chain of steps resolved from a starting node.
type Path []Step

// ParsePath builds a Path from string tokens, where ShadowStep crosses a
// shadow boundary and any other token is a CSS selector.
func ParsePath(tokens ...string) Path {
	p := make(Path, 0, len(tokens))
	for _, t := range tokens {
		if t == ShadowStep {
			p = append(p, Step{Shadow: true})
			continue
		}
		p = append(p, Step{Selector: t})
	}
	return p
}

// Tokens is the inverse of ParsePath.
func (p Path) Tokens() []string {
	out := make([]string, len(p))
	for i, s := range p {
		if s.Shadow {
			out[i] = ShadowStep
		} else {
			out[i] = s.Selector
		}
	}
	return out
}

func (p Path) String() string {
	return strings.Join(p.Tokens(), " | ")
}

// Resolve walks the path from start. It returns nil as soon as a step finds
// nothing or a selector is invalid.
func (p Path) Resolve(start *Node) *Node {
	cur := start
	for _, s := range p {
		if cur == nil {
			return nil
		}
		if s.Shadow {
			cur = cur.Shadow
			continue
		}
		cur = cur.Query(s.Selector)
	}
	return cur
}

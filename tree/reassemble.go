package tree

import (
	"slices"

	"golang.org/x/net/html"
)

type placed struct {
	path []int
	node *html.Node
}

// Reassemble rebuilds a document from an ordered unit sequence by reading
// each unit's identity back out of its id attribute. Units are nested under
// their nearest surviving ancestor in document order; units without a
// readable identity are appended at the end. The id attributes are dropped.
func Reassemble(seq []string) string {
	var known []placed
	var loose []*html.Node
	for _, s := range seq {
		n := firstElement(Parse(s))
		if n == nil {
			continue
		}
		id, err := ParseIdentity(getAttr(n, "id"))
		removeAttr(n, "id")
		if err != nil {
			loose = append(loose, n)
			continue
		}
		known = append(known, placed{path: append(slices.Clone(id.Family), id.Index), node: n})
	}

	// Lexicographic path order is pre-order document order.
	slices.SortStableFunc(known, func(a, b placed) int { return slices.Compare(a.path, b.path) })

	root := &html.Node{Type: html.ElementNode, Data: rootTag}
	byPath := make(map[string]*html.Node, len(known))
	for _, p := range known {
		parent := root
		for i := len(p.path) - 1; i > 0; i-- {
			if n, ok := byPath[Family(p.path[:i]).String()]; ok {
				parent = n
				break
			}
		}
		parent.AppendChild(p.node)
		byPath[Family(p.path).String()] = p.node
	}
	for _, n := range loose {
		root.AppendChild(n)
	}

	var out []byte
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, render(c)...)
	}
	return string(out)
}

func firstElement(nodes []*html.Node) *html.Node {
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			if n.Parent != nil {
				n.Parent.RemoveChild(n)
			}
			return n
		}
	}
	return nil
}

func removeAttr(n *html.Node, key string) {
	attrs := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != key {
			attrs = append(attrs, a)
		}
	}
	n.Attr = attrs
}

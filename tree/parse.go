// CLAUDE:SUMMARY HTML fragment parsing and node helpers shared by the annotate/flatten/sequence stages.
// Package tree turns rendered markup into an ordered sequence of addressable
// units.
//
// Stages:
//   - Parse: markup string → fragment nodes (best-effort, never fails)
//   - Annotate: assign every node a structural Identity, wrap bare leaves
//   - Flatten: pick renderable units, strip nested element children
//   - Sequence: sort units into reveal order and serialise them
package tree

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// rootTag names the synthetic container. It is never serialised.
const rootTag = "unveil-root"

// Parse parses markup as a fragment in a <div> context. Malformed input
// yields whatever the HTML5 parser recovers; a parser error yields nil.
func Parse(markup string) []*html.Node {
	ctx := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(markup), ctx)
	if err != nil {
		return nil
	}
	return nodes
}

// Container wraps detached nodes in a synthetic root element.
func Container(nodes []*html.Node) *html.Node {
	root := &html.Node{Type: html.ElementNode, Data: rootTag}
	for _, n := range nodes {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
		root.AppendChild(n)
	}
	return root
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// setAttr replaces every key attribute with a single key=val at the end.
func setAttr(n *html.Node, key, val string) {
	attrs := n.Attr[:0:0]
	for _, a := range n.Attr {
		if a.Key != key {
			attrs = append(attrs, a)
		}
	}
	n.Attr = append(attrs, html.Attribute{Key: key, Val: val})
}

func hasElementChild(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return true
		}
	}
	return false
}

// clone deep-copies n and its subtree. The copy is detached.
func clone(n *html.Node) *html.Node {
	cp := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		cp.AppendChild(clone(c))
	}
	return cp
}

// render serialises n. Render errors only come from the writer, which is a
// strings.Builder here.
func render(n *html.Node) string {
	var sb strings.Builder
	_ = html.Render(&sb, n)
	return sb.String()
}

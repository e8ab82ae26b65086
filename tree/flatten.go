package tree

import (
	"golang.org/x/net/html"
)

// UnitTags lists the element names that become units when flattening.
var UnitTags = []string{
	"span", "pre", "li", "ul", "ol", "a", "div",
	"h1", "h2", "h3", "h4", "h5", "h6",
	"section", "code",
}

var unitTagSet = func() map[string]bool {
	m := make(map[string]bool, len(UnitTags))
	for _, t := range UnitTags {
		m[t] = true
	}
	return m
}()

// Unit is a detached, shallow copy of one addressable element.
type Unit struct {
	Node     *html.Node
	Identity Identity
	// Known is false when the source element had no identity.
	Known bool
}

// HTML serialises the unit, identity included as its id attribute.
func (u Unit) HTML() string {
	return render(u.Node)
}

// Flatten collects every descendant of root whose tag is in UnitTags, in
// document order. An element with at least one element child is copied
// without children, since those children are units of their own; an
// element holding only leaves keeps them.
func Flatten(root *html.Node, ids Identities) []Unit {
	var units []Unit
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && unitTagSet[c.Data] {
				units = append(units, newUnit(c, ids))
			}
			walk(c)
		}
	}
	walk(root)
	return units
}

func newUnit(n *html.Node, ids Identities) Unit {
	cp := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
	if !hasElementChild(n) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			cp.AppendChild(clone(c))
		}
	}
	id, ok := ids[n]
	if ok {
		setAttr(cp, "id", id.String())
	}
	return Unit{Node: cp, Identity: id, Known: ok}
}

package tree

import (
	"log/slog"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// CodeClass replaces the class of a re-highlighted code block.
const CodeClass = "code"

// Highlighter re-renders the text of embedded code blocks.
// markup.Source satisfies it.
type Highlighter interface {
	Highlight(text, hint string) (string, error)
}

// Annotator assigns structural identities. A nil Highlighter leaves embedded
// code blocks as plain text.
type Annotator struct {
	hl     Highlighter
	logger *slog.Logger
}

// NewAnnotator creates an Annotator.
func NewAnnotator(hl Highlighter, logger *slog.Logger) *Annotator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Annotator{hl: hl, logger: logger}
}

// Annotate walks the children of root, starting at generation 0 under family,
// and returns the identity of every element it saw. The tree is rewritten in
// place: each bare text or comment leaf is moved into a synthetic <span>
// carrier that takes the leaf's identity, and embedded code blocks are
// re-highlighted before their children are visited.
func (a *Annotator) Annotate(root *html.Node, family Family) Identities {
	ids := make(Identities)
	a.annotate(root, 0, family, ids)
	return ids
}

func (a *Annotator) annotate(parent *html.Node, gen int, family Family, ids Identities) {
	index := 0
	for n := parent.FirstChild; n != nil; index++ {
		next := n.NextSibling
		id := Identity{Generation: gen, Index: index, Family: family}

		switch n.Type {
		case html.ElementNode:
			a.rehighlight(n)
			ids[n] = id
			a.annotate(n, gen+1, family.Child(index), ids)
		case html.TextNode, html.CommentNode:
			ids[wrapLeaf(n)] = id
		}
		n = next
	}
}

// wrapLeaf moves leaf into a new <span> placed where leaf was.
func wrapLeaf(leaf *html.Node) *html.Node {
	carrier := &html.Node{Type: html.ElementNode, Data: "span", DataAtom: atom.Span}
	parent := leaf.Parent
	parent.InsertBefore(carrier, leaf)
	parent.RemoveChild(leaf)
	carrier.AppendChild(leaf)
	return carrier
}

// codeBlock reports whether n is <pre><code class="…-LANG">TEXT</code></pre>
// and returns LANG and TEXT.
func codeBlock(n *html.Node) (lang, code string, ok bool) {
	if n.Type != html.ElementNode || n.DataAtom != atom.Pre {
		return "", "", false
	}
	c := n.FirstChild
	if c == nil || c.NextSibling != nil || c.Type != html.ElementNode || c.DataAtom != atom.Code {
		return "", "", false
	}
	class := getAttr(c, "class")
	if class == "" {
		return "", "", false
	}
	lang = class[strings.LastIndexByte(class, '-')+1:]
	t := c.FirstChild
	if lang == "" || t == nil || t.NextSibling != nil || t.Type != html.TextNode {
		return "", "", false
	}
	return lang, t.Data, true
}

// rehighlight replaces the children of an embedded code block with freshly
// highlighted markup. Failures leave the block untouched.
func (a *Annotator) rehighlight(n *html.Node) {
	if a.hl == nil {
		return
	}
	lang, code, ok := codeBlock(n)
	if !ok {
		return
	}
	out, err := a.hl.Highlight(code, lang)
	if err != nil {
		a.logger.Debug("tree: code block left plain", "lang", lang, "error", err)
		return
	}
	n.RemoveChild(n.FirstChild)
	for _, c := range Parse(out) {
		n.AppendChild(c)
	}
	setAttr(n, "class", CodeClass)
}

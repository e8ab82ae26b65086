package reveal

import (
	"fmt"
	"strings"

	"github.com/hazyhaar/unveil/snapshot"
	"github.com/hazyhaar/unveil/tree"
)

// Transcript returns what has been revealed so far for class, as Markdown.
func (p *Pipeline) Transcript(class snapshot.Class) (string, error) {
	units, err := p.session.Snapshot(class)
	if err != nil {
		return "", err
	}
	return p.ToMarkdown(class, units)
}

// ToMarkdown reassembles a unit sequence into a document and converts it to
// Markdown. Code sequences become a single fenced block.
func (p *Pipeline) ToMarkdown(class snapshot.Class, units []string) (string, error) {
	if len(units) == 0 {
		return "", nil
	}
	doc := tree.Reassemble(units)
	if class == snapshot.ClassCode {
		doc = "<pre><code>" + doc + "</code></pre>"
	}
	md, err := p.mdConverter.ConvertString(doc)
	if err != nil {
		return "", fmt.Errorf("reveal: transcript: %w", err)
	}
	return strings.TrimSpace(md), nil
}

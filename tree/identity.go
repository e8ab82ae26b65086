// CLAUDE:SUMMARY Structural identity (generation, index, family) attached to every node of an annotated tree.
package tree

import (
	"cmp"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// ErrBadIdentity is returned by ParseIdentity for malformed identity strings.
var ErrBadIdentity = errors.New("tree: malformed identity")

// Family is the path of ancestor sibling indices from the tree root down to a
// node's parent. The first two entries are a sentinel naming the buffer class.
type Family []int

var (
	// CodeFamily roots identities of code buffers.
	CodeFamily = Family{-2, -1}
	// ProseFamily roots identities of prose buffers.
	ProseFamily = Family{-1, -1}
)

// Child returns a new Family extended by index. The receiver is not modified.
func (f Family) Child(index int) Family {
	out := make(Family, len(f)+1)
	copy(out, f)
	out[len(f)] = index
	return out
}

func (f Family) String() string {
	parts := make([]string, len(f))
	for i, v := range f {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ":")
}

// Identity places a node within its annotated tree.
type Identity struct {
	Generation int    `json:"generation"` // nesting depth
	Index      int    `json:"index"`      // position among siblings
	Family     Family `json:"family"`
}

// String renders the identity as "generation:index@family", the form used
// for the id attribute of serialised units.
func (id Identity) String() string {
	return fmt.Sprintf("%d:%d@%s", id.Generation, id.Index, id.Family)
}

// Depth is the ancestry depth, i.e. the number of family segments.
func (id Identity) Depth() int { return len(id.Family) }

// Compare orders identities by (depth, generation, index).
func Compare(a, b Identity) int {
	if c := cmp.Compare(a.Depth(), b.Depth()); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Generation, b.Generation); c != 0 {
		return c
	}
	return cmp.Compare(a.Index, b.Index)
}

// ParseIdentity is the inverse of Identity.String.
func ParseIdentity(s string) (Identity, error) {
	pos, fam, ok := strings.Cut(s, "@")
	if !ok {
		return Identity{}, fmt.Errorf("%w: %q", ErrBadIdentity, s)
	}
	g, i, ok := strings.Cut(pos, ":")
	if !ok {
		return Identity{}, fmt.Errorf("%w: %q", ErrBadIdentity, s)
	}
	gen, err := strconv.Atoi(g)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: generation in %q", ErrBadIdentity, s)
	}
	index, err := strconv.Atoi(i)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: index in %q", ErrBadIdentity, s)
	}
	var family Family
	if fam != "" {
		for _, part := range strings.Split(fam, ":") {
			v, err := strconv.Atoi(part)
			if err != nil {
				return Identity{}, fmt.Errorf("%w: family in %q", ErrBadIdentity, s)
			}
			family = append(family, v)
		}
	}
	return Identity{Generation: gen, Index: index, Family: family}, nil
}

// Identities maps annotated element nodes to their identity. It is filled by
// an Annotator and read by Flatten.
type Identities map[*html.Node]Identity

package tree

import "slices"

// Sort orders units in place into reveal order: ancestry depth, then
// generation, then sibling index. Units without an identity compare equal
// to everything, so the sort is stable with respect to them.
func Sort(units []Unit) {
	slices.SortStableFunc(units, func(a, b Unit) int {
		if !a.Known || !b.Known {
			return 0
		}
		return Compare(a.Identity, b.Identity)
	})
}

// Sequence sorts a copy of units and returns their serialised markup.
func Sequence(units []Unit) []string {
	sorted := slices.Clone(units)
	Sort(sorted)
	out := make([]string, len(sorted))
	for i, u := range sorted {
		out[i] = u.HTML()
	}
	return out
}

// Units runs the whole chain over markup: parse, annotate under family,
// flatten and sequence.
func (a *Annotator) Units(markup string, family Family) []string {
	root := Container(Parse(markup))
	ids := a.Annotate(root, family)
	return Sequence(Flatten(root, ids))
}

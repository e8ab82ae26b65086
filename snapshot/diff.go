// CLAUDE:SUMMARY Line-oriented Myers diff between two ordered unit sequences, emitting insert/delete ops.
// Package snapshot remembers the last unit sequence seen per buffer class
// and reports what changed since.
package snapshot

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Sign tells the caller whether to add or remove a unit.
type Sign string

const (
	Insert Sign = "insert"
	Delete Sign = "delete"
)

// Op is one change between two sequences.
type Op struct {
	Sign    Sign   `json:"sign"`
	Content string `json:"content"`
}

func (o Op) String() string {
	return fmt.Sprintf("%s %q", o.Sign, o.Content)
}

// Ops is a poll's change list. It encodes as a JSON array even when empty,
// so clients never see null.
type Ops []Op

// MarshalJSON implements json.Marshaler.
func (o Ops) MarshalJSON() ([]byte, error) {
	if o == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Op(o))
}

// newlineMark stands in for newlines inside a unit while the sequences are
// joined line by line. The HTML serialiser never emits NUL.
const newlineMark = "\x00"

// join writes every unit on its own newline-terminated line.
func join(units []string) string {
	var sb strings.Builder
	for _, u := range units {
		sb.WriteString(strings.ReplaceAll(u, "\n", newlineMark))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Diff compares old and new unit sequences and returns one op per removed or
// added unit, in the order the diff produces them. Unchanged units produce
// nothing.
func Diff(old, new []string) []Op {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0

	a, b, lines := dmp.DiffLinesToChars(join(old), join(new))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var ops []Op
	for _, d := range diffs {
		var sign Sign
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			sign = Insert
		case diffmatchpatch.DiffDelete:
			sign = Delete
		default:
			continue
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			line = strings.TrimSuffix(line, "\n")
			ops = append(ops, Op{Sign: sign, Content: strings.ReplaceAll(line, newlineMark, "\n")})
		}
	}
	return ops
}

package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
)

func seq(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf(`<span id="0:%d@-2:-1">u%d</span>`, i, i)
	}
	return out
}

func TestDiffIdentical(t *testing.T) {
	a := seq(5)
	if ops := Diff(a, slices.Clone(a)); len(ops) != 0 {
		t.Fatalf("identical sequences: got %v", ops)
	}
	if ops := Diff(nil, nil); len(ops) != 0 {
		t.Fatalf("empty sequences: got %v", ops)
	}
}

func TestDiffAppend(t *testing.T) {
	a := seq(4)
	x := `<span id="0:9@-2:-1">x</span>`
	ops := Diff(a, append(slices.Clone(a), x))
	if len(ops) != 1 {
		t.Fatalf("expected 1 op, got %v", ops)
	}
	if ops[0].Sign != Insert || ops[0].Content != x {
		t.Fatalf("got %v, want insert %q", ops[0], x)
	}
}

func TestDiffRemove(t *testing.T) {
	a := seq(5)
	removed := a[2]
	b := slices.Delete(slices.Clone(a), 2, 3)
	ops := Diff(a, b)
	if len(ops) != 1 {
		t.Fatalf("expected 1 op, got %v", ops)
	}
	if ops[0].Sign != Delete || ops[0].Content != removed {
		t.Fatalf("got %v, want delete %q", ops[0], removed)
	}
}

func TestDiffFromEmpty(t *testing.T) {
	a := seq(3)
	ops := Diff(nil, a)
	if len(ops) != 3 {
		t.Fatalf("expected 3 inserts, got %v", ops)
	}
	for i, op := range ops {
		if op.Sign != Insert || op.Content != a[i] {
			t.Errorf("op %d: got %v, want insert %q", i, op, a[i])
		}
	}
}

func TestDiffReplace(t *testing.T) {
	a := []string{"<a>1</a>", "<a>2</a>", "<a>3</a>"}
	b := []string{"<a>1</a>", "<a>two</a>", "<a>3</a>"}
	ops := Diff(a, b)
	want := []Op{{Delete, "<a>2</a>"}, {Insert, "<a>two</a>"}}
	if !slices.Equal(ops, want) {
		t.Fatalf("got %v, want %v", ops, want)
	}
}

func TestDiffEmbeddedNewlines(t *testing.T) {
	a := []string{"<span>a</span>"}
	unit := "<span>line one\nline two\n</span>"
	ops := Diff(a, []string{a[0], unit})
	if len(ops) != 1 || ops[0].Content != unit {
		t.Fatalf("embedded newline split the unit: %v", ops)
	}

	ops = Diff([]string{a[0], unit}, a)
	if len(ops) != 1 || ops[0].Sign != Delete || ops[0].Content != unit {
		t.Fatalf("delete of multi-line unit: %v", ops)
	}
}

func TestOpsMarshalJSON(t *testing.T) {
	data, err := json.Marshal(Ops(nil))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[]" {
		t.Fatalf("got %s, want []", data)
	}
	data, err = json.Marshal(struct {
		Ops Ops `json:"ops"`
	}{Ops{{Insert, "<a>x</a>"}}})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"ops":[{"sign":"insert","content":"<a>x</a>"}]}` {
		t.Fatalf("got %s", data)
	}
}

func TestSessionReplacesSnapshot(t *testing.T) {
	s := NewSession()
	a := seq(3)

	ops, err := s.Compare(ClassCode, a)
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 3 {
		t.Fatalf("first compare: expected 3 inserts, got %v", ops)
	}

	ops, err = s.Compare(ClassCode, a)
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 0 {
		t.Fatalf("second compare: expected no ops, got %v", ops)
	}

	got, err := s.Snapshot(ClassCode)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got, a) {
		t.Fatalf("snapshot = %v, want %v", got, a)
	}
}

func TestSessionStoresCopy(t *testing.T) {
	s := NewSession()
	a := seq(2)
	if _, err := s.Compare(ClassProse, a); err != nil {
		t.Fatal(err)
	}
	a[0] = "mutated"
	got, _ := s.Snapshot(ClassProse)
	if got[0] == "mutated" {
		t.Fatal("session aliases the caller's slice")
	}
}

func TestSessionClassIsolation(t *testing.T) {
	s := NewSession()
	code := seq(2)
	if _, err := s.Compare(ClassCode, code); err != nil {
		t.Fatal(err)
	}
	prose, _ := s.Snapshot(ClassProse)
	if len(prose) != 0 {
		t.Fatalf("code compare leaked into prose: %v", prose)
	}

	if _, err := s.Compare(ClassProse, seq(4)); err != nil {
		t.Fatal(err)
	}
	got, _ := s.Snapshot(ClassCode)
	if !slices.Equal(got, code) {
		t.Fatalf("prose compare changed code snapshot: %v", got)
	}
}

func TestSessionReset(t *testing.T) {
	s := NewSession()
	a := seq(2)
	s.Compare(ClassCode, a)
	if err := s.Reset(ClassCode); err != nil {
		t.Fatal(err)
	}
	ops, _ := s.Compare(ClassCode, a)
	if len(ops) != 2 {
		t.Fatalf("after reset expected full reveal, got %v", ops)
	}
}

func TestSessionUnknownClass(t *testing.T) {
	s := NewSession()
	if _, err := s.Compare("html", seq(1)); !errors.Is(err, ErrUnknownClass) {
		t.Fatalf("Compare: expected ErrUnknownClass, got %v", err)
	}
	if _, err := s.Snapshot("html"); !errors.Is(err, ErrUnknownClass) {
		t.Fatalf("Snapshot: expected ErrUnknownClass, got %v", err)
	}
	if err := s.Reset("html"); !errors.Is(err, ErrUnknownClass) {
		t.Fatalf("Reset: expected ErrUnknownClass, got %v", err)
	}
	if _, err := ParseClass("html"); !errors.Is(err, ErrUnknownClass) {
		t.Fatalf("ParseClass: expected ErrUnknownClass, got %v", err)
	}
	if c, err := ParseClass("prose"); err != nil || c != ClassProse {
		t.Fatalf("ParseClass(prose) = %q, %v", c, err)
	}
}

func TestSessionConcurrentSameClass(t *testing.T) {
	s := NewSession()
	a := seq(10)
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Compare(ClassCode, a); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	ops, _ := s.Compare(ClassCode, a)
	if len(ops) != 0 {
		t.Fatalf("snapshot torn by concurrent compares: %v", ops)
	}
}

func TestSessionRestart(t *testing.T) {
	s := NewSession()
	a := seq(3)
	s.Compare(ClassCode, a)

	ops, err := s.Restart(ClassCode, a)
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 3 {
		t.Fatalf("restart: expected 3 inserts, got %v", ops)
	}
	for _, op := range ops {
		if op.Sign != Insert {
			t.Fatalf("restart produced %v", op)
		}
	}
	if ops, _ := s.Compare(ClassCode, a); len(ops) != 0 {
		t.Fatalf("compare after restart: %v", ops)
	}
	if _, err := s.Restart("html", a); !errors.Is(err, ErrUnknownClass) {
		t.Fatalf("Restart: expected ErrUnknownClass, got %v", err)
	}
}

// A Compare racing a Restart on the same class never takes the full
// reveal away from the Restart.
func TestSessionRestartAtomic(t *testing.T) {
	s := NewSession()
	a := seq(20)
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if ops, _ := s.Restart(ClassCode, a); len(ops) != len(a) {
				t.Errorf("restart returned %d ops, want %d", len(ops), len(a))
			}
		}()
		go func() {
			defer wg.Done()
			s.Compare(ClassCode, a)
		}()
	}
	wg.Wait()
	if ops, _ := s.Compare(ClassCode, a); len(ops) != 0 {
		t.Fatalf("snapshot torn: %v", ops)
	}
}

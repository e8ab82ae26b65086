package idgen

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestUUIDv7(t *testing.T) {
	gen := UUIDv7()
	id := gen()
	if len(id) != 36 {
		t.Fatalf("len = %d, want 36: %q", len(id), id)
	}
	if id[14] != '7' {
		t.Fatalf("version nibble = %c, want 7: %q", id[14], id)
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("uuid.Parse(%q): %v", id, err)
	}
}

func TestUUIDv7Sortable(t *testing.T) {
	gen := UUIDv7()
	prev := gen()
	for range 100 {
		next := gen()
		if next <= prev {
			t.Fatalf("not monotonic: %q then %q", prev, next)
		}
		prev = next
	}
}

func TestPrefixed(t *testing.T) {
	id := Prefixed("poll_", UUIDv7())()
	if !strings.HasPrefix(id, "poll_") || len(id) != len("poll_")+36 {
		t.Fatalf("missing prefix: %q", id)
	}
}

func TestSequential(t *testing.T) {
	gen := Sequential("p")
	if a, b := gen(), gen(); a != "p1" || b != "p2" {
		t.Fatalf("got %q %q", a, b)
	}
}

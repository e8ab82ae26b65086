package horosafe

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestSafePath(t *testing.T) {
	base := filepath.Join(string(filepath.Separator), "srv", "lessons")
	tests := []struct {
		input string
		want  string
		err   bool
	}{
		{"main.rs", filepath.Join(base, "main.rs"), false},
		{"ch1/notes.md", filepath.Join(base, "ch1", "notes.md"), false},
		{"/ch1/main.rs", filepath.Join(base, "ch1", "main.rs"), false},
		{"", base, false},
		{"../etc/passwd", "", true},
		{"ch1/../../x", "", true},
		{"..", "", true},
	}
	for _, tt := range tests {
		got, err := SafePath(base, tt.input)
		if tt.err {
			if !errors.Is(err, ErrPathTraversal) {
				t.Errorf("SafePath(%q): expected ErrPathTraversal, got %v", tt.input, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("SafePath(%q): %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("SafePath(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestLimitedReadAll(t *testing.T) {
	data, err := LimitedReadAll(strings.NewReader("hello"), 5)
	if err != nil || string(data) != "hello" {
		t.Fatalf("at limit: %q, %v", data, err)
	}
	if _, err := LimitedReadAll(strings.NewReader("hello!"), 5); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("over limit: expected ErrTooLarge, got %v", err)
	}
	data, err = LimitedReadAll(strings.NewReader(""), 5)
	if err != nil || len(data) != 0 {
		t.Fatalf("empty: %q, %v", data, err)
	}
}

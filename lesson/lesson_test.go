package lesson

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/hazyhaar/unveil/horosafe"
)

func writeLesson(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestKeysOrder(t *testing.T) {
	m := &Manifest{Lessons: map[string]string{
		"10": "j.rs", "2": "b.rs", "1": "a.rs", "intro": "i.md", "appendix": "z.md",
	}}
	want := []string{"1", "2", "10", "appendix", "intro"}
	if got := m.Keys(); !slices.Equal(got, want) {
		t.Fatalf("Keys() = %v, want %v", got, want)
	}
}

func TestOpenJSON(t *testing.T) {
	dir := writeLesson(t, "config.json", `{"name":"ownership","lessons":{"2":"02.rs","1":"01.rs"}}`)
	l, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if l.Manifest.Name != "ownership" || l.Len() != 2 {
		t.Fatalf("manifest = %+v", l.Manifest)
	}
	s, err := l.Snippet(0)
	if err != nil {
		t.Fatal(err)
	}
	if s.Key != "1" || s.Path != filepath.Join(dir, "01.rs") {
		t.Fatalf("snippet 0 = %+v", s)
	}
}

func TestOpenYAML(t *testing.T) {
	dir := writeLesson(t, "lesson.yaml", "name: traits\nlessons:\n  \"1\": intro.md\n  \"2\": impl.rs\n")
	l, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if l.Manifest.Name != "traits" || l.Len() != 2 {
		t.Fatalf("manifest = %+v", l.Manifest)
	}
}

func TestOpenErrors(t *testing.T) {
	if _, err := Open(t.TempDir()); !errors.Is(err, ErrNoManifest) {
		t.Fatalf("empty dir: expected ErrNoManifest, got %v", err)
	}
	dir := writeLesson(t, "config.json", `{"name":"x","lessons":{}}`)
	if _, err := Open(dir); !errors.Is(err, ErrEmptyManifest) {
		t.Fatalf("no snippets: expected ErrEmptyManifest, got %v", err)
	}
	dir = writeLesson(t, "config.json", `{"name":`)
	if _, err := Open(dir); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSnippetTraversal(t *testing.T) {
	l := New(t.TempDir(), &Manifest{Lessons: map[string]string{"1": "../../etc/passwd"}})
	if _, err := l.Snippet(0); !errors.Is(err, horosafe.ErrPathTraversal) {
		t.Fatalf("expected ErrPathTraversal, got %v", err)
	}
	if _, err := l.Snippet(5); err == nil {
		t.Fatal("expected out of range error")
	}
}

func TestCursorClamps(t *testing.T) {
	l := New("/lessons", &Manifest{Lessons: map[string]string{"1": "a.rs", "2": "b.rs", "3": "c.rs"}})
	c, err := NewCursor(l)
	if err != nil {
		t.Fatal(err)
	}

	if _, moved, _ := c.Previous(); moved {
		t.Fatal("Previous on first snippet moved")
	}
	for _, want := range []string{"2", "3"} {
		s, moved, err := c.Next()
		if err != nil || !moved || s.Key != want {
			t.Fatalf("Next() = %+v, %v, %v; want key %s", s, moved, err, want)
		}
	}
	s, moved, _ := c.Next()
	if moved || s.Key != "3" {
		t.Fatalf("Next on last snippet: %+v moved=%v", s, moved)
	}
	if s, _, _ := c.Previous(); s.Key != "2" {
		t.Fatalf("Previous() = %+v", s)
	}
	if s, _ := c.Rewind(); s.Index != 0 {
		t.Fatalf("Rewind() = %+v", s)
	}
	if s, _ := c.Current(); s.Key != "1" {
		t.Fatalf("Current() = %+v", s)
	}
}

func TestNewCursorEmpty(t *testing.T) {
	if _, err := NewCursor(New("/x", &Manifest{})); !errors.Is(err, ErrEmptyManifest) {
		t.Fatalf("expected ErrEmptyManifest, got %v", err)
	}
}

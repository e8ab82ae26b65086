// CLAUDE:SUMMARY Lesson manifests (name + numbered snippet files) and a clamped cursor over their snippets.
// Package lesson loads a lesson folder's manifest and walks its snippets in
// order.
//
// A manifest names the lesson and maps snippet keys to file names relative to
// the folder:
//
//	{"name": "ownership", "lessons": {"1": "01_move.rs", "2": "02_borrow.rs"}}
//
// Keys that parse as integers are ordered numerically and come first; any
// other keys follow in lexical order.
package lesson

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/unveil/horosafe"
)

// ManifestNames are the file names Open looks for, in order.
var ManifestNames = []string{"config.json", "lesson.yaml", "lesson.yml"}

var (
	// ErrEmptyManifest is returned for a manifest with no snippets.
	ErrEmptyManifest = errors.New("lesson: manifest lists no snippets")
	// ErrNoManifest is returned by Open when a folder has no manifest file.
	ErrNoManifest = errors.New("lesson: no manifest found")
)

// Manifest is the on-disk description of a lesson.
type Manifest struct {
	Name    string            `json:"name" yaml:"name"`
	Lessons map[string]string `json:"lessons" yaml:"lessons"`
}

// Validate checks that the manifest lists at least one snippet and that no
// snippet file is blank.
func (m *Manifest) Validate() error {
	if len(m.Lessons) == 0 {
		return ErrEmptyManifest
	}
	for k, v := range m.Lessons {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("lesson: snippet %q has no file", k)
		}
	}
	return nil
}

// Keys returns the snippet keys in reveal order.
func (m *Manifest) Keys() []string {
	keys := make([]string, 0, len(m.Lessons))
	for k := range m.Lessons {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeys)
	return keys
}

func compareKeys(a, b string) int {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil:
		if c := cmp.Compare(na, nb); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	return strings.Compare(a, b)
}

// LoadManifest reads a manifest file. Files ending in .yaml or .yml are
// parsed as YAML, everything else as JSON.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	var m Manifest
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &m)
	default:
		err = json.Unmarshal(data, &m)
	}
	if err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}

// Lesson is a manifest bound to the folder it was loaded from.
type Lesson struct {
	Dir      string
	Manifest *Manifest
	keys     []string
}

// Open loads the first manifest found in dir.
func Open(dir string) (*Lesson, error) {
	for _, name := range ManifestNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		m, err := LoadManifest(path)
		if err != nil {
			return nil, err
		}
		return New(dir, m), nil
	}
	return nil, fmt.Errorf("%w in %s", ErrNoManifest, dir)
}

// New binds m to dir.
func New(dir string, m *Manifest) *Lesson {
	return &Lesson{Dir: dir, Manifest: m, keys: m.Keys()}
}

// Len is the number of snippets.
func (l *Lesson) Len() int { return len(l.keys) }

// Snippet is one step of a lesson.
type Snippet struct {
	Index int    `json:"index"`
	Key   string `json:"key"`
	File  string `json:"file"` // as written in the manifest
	Path  string `json:"path"` // File resolved under the lesson folder
}

// Snippet returns the i-th snippet in order. Its path is resolved under the
// lesson folder and may not escape it.
func (l *Lesson) Snippet(i int) (Snippet, error) {
	if i < 0 || i >= len(l.keys) {
		return Snippet{}, fmt.Errorf("lesson: snippet %d out of range [0,%d)", i, len(l.keys))
	}
	key := l.keys[i]
	file := l.Manifest.Lessons[key]
	path, err := horosafe.SafePath(l.Dir, file)
	if err != nil {
		return Snippet{}, fmt.Errorf("lesson: snippet %q: %w", key, err)
	}
	return Snippet{Index: i, Key: key, File: file, Path: path}, nil
}

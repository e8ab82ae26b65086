package snapshot

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrUnknownClass is returned for a buffer class other than code or prose.
var ErrUnknownClass = errors.New("snapshot: unknown buffer class")

// Class names an independent content stream.
type Class string

const (
	ClassCode  Class = "code"
	ClassProse Class = "prose"
)

// ParseClass validates s as a Class.
func ParseClass(s string) (Class, error) {
	switch c := Class(s); c {
	case ClassCode, ClassProse:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownClass, s)
}

type slot struct {
	mu    sync.Mutex
	units []string
}

// Session holds the last sequence seen for each buffer class. The zero value
// is ready to use. Polls of different classes never contend; polls of the
// same class are serialised.
type Session struct {
	code  slot
	prose slot
}

// NewSession returns an empty Session.
func NewSession() *Session {
	return &Session{}
}

func (s *Session) slot(c Class) (*slot, error) {
	switch c {
	case ClassCode:
		return &s.code, nil
	case ClassProse:
		return &s.prose, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownClass, c)
}

// Compare diffs units against the stored snapshot for class and then
// replaces the snapshot with units, whether or not anything changed.
func (s *Session) Compare(c Class, units []string) ([]Op, error) {
	sl, err := s.slot(c)
	if err != nil {
		return nil, err
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()

	ops := Diff(sl.units, units)
	sl.units = slices.Clone(units)
	return ops, nil
}

// Restart empties the snapshot for class and compares units against it in
// one step, so a concurrent Compare cannot land in between. Every unit comes
// back as an insert.
func (s *Session) Restart(c Class, units []string) ([]Op, error) {
	sl, err := s.slot(c)
	if err != nil {
		return nil, err
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()

	sl.units = slices.Clone(units)
	return Diff(nil, units), nil
}

// Snapshot returns a copy of the stored sequence for class.
func (s *Session) Snapshot(c Class) ([]string, error) {
	sl, err := s.slot(c)
	if err != nil {
		return nil, err
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return slices.Clone(sl.units), nil
}

// Reset empties the snapshot for class, so the next poll reveals everything.
func (s *Session) Reset(c Class) error {
	sl, err := s.slot(c)
	if err != nil {
		return err
	}
	sl.mu.Lock()
	sl.units = nil
	sl.mu.Unlock()
	return nil
}

package lesson

import "sync"

// Cursor tracks the current snippet of a lesson. Moving past either end
// stays put. It is safe for concurrent use.
type Cursor struct {
	mu     sync.Mutex
	lesson *Lesson
	index  int
}

// NewCursor positions a cursor on the first snippet.
func NewCursor(l *Lesson) (*Cursor, error) {
	if l.Len() == 0 {
		return nil, ErrEmptyManifest
	}
	return &Cursor{lesson: l}, nil
}

// Lesson returns the lesson being walked.
func (c *Cursor) Lesson() *Lesson { return c.lesson }

// Current returns the snippet under the cursor.
func (c *Cursor) Current() (Snippet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lesson.Snippet(c.index)
}

// Next advances one snippet. moved is false when already on the last one.
func (c *Cursor) Next() (s Snippet, moved bool, err error) {
	return c.step(1)
}

// Previous goes back one snippet. moved is false when already on the first.
func (c *Cursor) Previous() (s Snippet, moved bool, err error) {
	return c.step(-1)
}

// Rewind returns to the first snippet.
func (c *Cursor) Rewind() (Snippet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = 0
	return c.lesson.Snippet(0)
}

func (c *Cursor) step(delta int) (Snippet, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.index + delta
	moved := next >= 0 && next < c.lesson.Len()
	if moved {
		c.index = next
	}
	s, err := c.lesson.Snippet(c.index)
	return s, moved, err
}

package logging

import (
	"strings"
	"sync"
)

// Capture retains the most recent log lines so a run summary can be
// attached to outbound notifications. It drops the oldest lines once the
// limit is reached and is safe for concurrent writes.
type Capture struct {
	mu    sync.Mutex
	lines []string
	max   int
}

func NewCapture(max int) *Capture {
	if max < 1 {
		max = 200
	}
	return &Capture{max: max}
}

func (c *Capture) Write(p []byte) (int, error) {
	line := strings.TrimRight(string(p), "\n")
	if line == "" {
		return len(p), nil
	}
	c.mu.Lock()
	c.lines = append(c.lines, line)
	if over := len(c.lines) - c.max; over > 0 {
		c.lines = c.lines[over:]
	}
	c.mu.Unlock()
	return len(p), nil
}

// Lines returns a copy of the retained lines, oldest first.
func (c *Capture) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.lines))
	copy(out, c.lines)
	return out
}

package repl

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Item is one line entered during the session.
type Item struct {
	At   time.Time
	Line string
}

func (it Item) String() string {
	return fmt.Sprintf("(%s): %s", it.At.Format("15:04:05"), it.Line)
}

// History keeps the session's input and writes it to a session directory.
type History struct {
	dir   string
	items []Item
}

func NewHistory(dir string) *History {
	return &History{dir: dir}
}

func (h *History) Add(at time.Time, line string) {
	h.items = append(h.items, Item{At: at, Line: line})
}

func (h *History) Len() int { return len(h.items) }

// Range returns items from..to inclusive, clamped to the history.
func (h *History) Range(from, to int) []Item {
	if from < 0 {
		from = 0
	}
	if to >= len(h.items) {
		to = len(h.items) - 1
	}
	if from > to {
		return nil
	}
	return h.items[from : to+1]
}

// Save writes every line to <dir>/<HHMMSS><suffix>.txt and returns the path.
func (h *History) Save(at time.Time, suffix string) (string, error) {
	if h.dir == "" {
		return "", fmt.Errorf("no history directory configured")
	}
	if err := os.MkdirAll(h.dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(h.dir, at.Format("150405")+suffix+".txt")
	var b strings.Builder
	for _, it := range h.items {
		b.WriteString(it.Line)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Purge removes every saved session and returns the removed file names.
func (h *History) Purge() ([]string, error) {
	if h.dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(h.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(h.dir, e.Name())); err != nil {
			return removed, err
		}
		removed = append(removed, e.Name())
	}
	return removed, nil
}

package app

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DefaultHistorySize is used when a history is created with no limit.
const DefaultHistorySize = 500

// History holds submitted commands, oldest first, with a navigation cursor
// for stepping through them.
type History struct {
	mu      sync.Mutex
	entries []string
	max     int
	cursor  int
}

// NewHistory creates a history keeping at most max entries.
func NewHistory(max int) *History {
	if max <= 0 {
		max = DefaultHistorySize
	}
	return &History{max: max}
}

// Add records cmd. Blank commands and immediate repeats are skipped. The
// navigation cursor moves past the newest entry.
func (h *History) Add(cmd string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cmd = strings.TrimSpace(cmd)
	if cmd != "" && (len(h.entries) == 0 || h.entries[len(h.entries)-1] != cmd) {
		h.entries = append(h.entries, cmd)
		if over := len(h.entries) - h.max; over > 0 {
			h.entries = append([]string(nil), h.entries[over:]...)
		}
	}
	h.cursor = len(h.entries)
}

// Entries returns a copy of the history, oldest first.
func (h *History) Entries() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.entries...)
}

// Len returns the number of entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// At returns the entry idx steps back from the newest; At(0) is the
// newest entry. It lets a terminal line editor navigate the history.
func (h *History) At(idx int) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if idx < 0 || idx >= len(h.entries) {
		return ""
	}
	return h.entries[len(h.entries)-1-idx]
}

// Prev moves the cursor to the previous command and returns it.
func (h *History) Prev() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cursor == 0 {
		return "", false
	}
	h.cursor--
	return h.entries[h.cursor], true
}

// Next moves the cursor to the next command. Moving past the newest entry
// returns an empty line and false.
func (h *History) Next() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cursor >= len(h.entries)-1 {
		h.cursor = len(h.entries)
		return "", false
	}
	h.cursor++
	return h.entries[h.cursor], true
}

// ResetCursor moves the cursor past the newest entry.
func (h *History) ResetCursor() {
	h.mu.Lock()
	h.cursor = len(h.entries)
	h.mu.Unlock()
}

// Search finds the newest entry before index from that contains term,
// ignoring case. Pass from < 0 to start at the newest entry; pass the
// returned index to find older matches. An empty term matches any entry.
func (h *History) Search(term string, from int) (string, int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if from < 0 || from > len(h.entries) {
		from = len(h.entries)
	}
	needle := strings.ToLower(term)
	for i := from - 1; i >= 0; i-- {
		if strings.Contains(strings.ToLower(h.entries[i]), needle) {
			return h.entries[i], i, true
		}
	}
	return "", -1, false
}

// Load replaces the history with the commands in path, one per line. A
// missing file leaves the history empty.
func (h *History) Load(path string) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer f.Close()

	var entries []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			entries = append(entries, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read history: %w", err)
	}
	if over := len(entries) - h.max; over > 0 {
		entries = entries[over:]
	}

	h.mu.Lock()
	h.entries = entries
	h.cursor = len(entries)
	h.mu.Unlock()
	return nil
}

// Save writes the history to path, one command per line.
func (h *History) Save(path string) error {
	entries := h.Entries()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}

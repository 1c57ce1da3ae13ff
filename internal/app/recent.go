package app

import (
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// MaxRecentFiles is the number of recently loaded UDF files remembered.
const MaxRecentFiles = 8

// RecentFiles lists recently loaded UDF files, most recent first.
type RecentFiles struct {
	mu    sync.Mutex
	files []string
	stat  func(string) (os.FileInfo, error)
}

// NewRecentFiles creates an empty list.
func NewRecentFiles() *RecentFiles {
	return &RecentFiles{stat: os.Stat}
}

// Add moves path to the front of the list.
func (r *RecentFiles) Add(path string) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.files = slices.DeleteFunc(r.files, func(p string) bool { return p == path })
	r.files = slices.Insert(r.files, 0, path)
	if len(r.files) > MaxRecentFiles {
		r.files = r.files[:MaxRecentFiles]
	}
}

// List returns the files that still exist, pruning the rest.
func (r *RecentFiles) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files = slices.DeleteFunc(r.files, func(p string) bool {
		_, err := r.stat(p)
		return err != nil
	})
	return append([]string(nil), r.files...)
}

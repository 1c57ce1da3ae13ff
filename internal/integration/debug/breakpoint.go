package debug

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// breakpointGateway is the part of Gateway the store needs.
type breakpointGateway interface {
	SetBreakpoint(req BreakpointRequest) error
	ViewBreakpoints(file string) ([]int, error)
}

// BreakpointStore mirrors the engine's breakpoints per UDF file.
type BreakpointStore struct {
	gw breakpointGateway

	mu          sync.RWMutex
	byFile      map[string]map[int]struct{}
	persistPath string
}

// NewBreakpointStore creates an empty store backed by gw.
func NewBreakpointStore(gw breakpointGateway) *BreakpointStore {
	return &BreakpointStore{
		gw:     gw,
		byFile: make(map[string]map[int]struct{}),
	}
}

// Toggle sets or clears the breakpoint at file:line. The request is validated
// before the engine is contacted. After the engine accepts it, the store
// reads back the engine's view of the file.
func (s *BreakpointStore) Toggle(file string, line int, enable bool) error {
	if file == "" {
		return &InvalidBreakpointError{File: file, Line: line, Reason: "no file"}
	}
	if line <= 0 {
		return &InvalidBreakpointError{File: file, Line: line, Reason: "line must be positive"}
	}

	var req BreakpointRequest = AddBreakpoint{File: file, Line: line}
	if !enable {
		req = RemoveBreakpoint{File: file, Line: line}
	}
	if err := s.gw.SetBreakpoint(req); err != nil {
		return err
	}

	lines, err := s.gw.ViewBreakpoints(file)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		s.replace(file, lines)
		return nil
	}
	set := s.byFile[file]
	if enable {
		if set == nil {
			set = make(map[int]struct{})
			s.byFile[file] = set
		}
		set[line] = struct{}{}
	} else if set != nil {
		delete(set, line)
		if len(set) == 0 {
			delete(s.byFile, file)
		}
	}
	return nil
}

// Flip toggles file:line relative to the current view and reports whether
// the breakpoint is now set.
func (s *BreakpointStore) Flip(file string, line int) (bool, error) {
	enable := !s.Has(file, line)
	if err := s.Toggle(file, line, enable); err != nil {
		return !enable, err
	}
	return enable, nil
}

func (s *BreakpointStore) replace(file string, lines []int) {
	set := make(map[int]struct{}, len(lines))
	for _, l := range lines {
		if l > 0 {
			set[l] = struct{}{}
		}
	}
	if len(set) == 0 {
		delete(s.byFile, file)
		return
	}
	s.byFile[file] = set
}

// View returns the breakpoint lines of file in ascending order.
func (s *BreakpointStore) View(file string) []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedLines(s.byFile[file])
}

func sortedLines(set map[int]struct{}) []int {
	lines := make([]int, 0, len(set))
	for l := range set {
		lines = append(lines, l)
	}
	sort.Ints(lines)
	return lines
}

// Has reports whether file:line is a breakpoint.
func (s *BreakpointStore) Has(file string, line int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byFile[file][line]
	return ok
}

// Files returns the files that have breakpoints, sorted.
func (s *BreakpointStore) Files() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	files := make([]string, 0, len(s.byFile))
	for f := range s.byFile {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// Count returns the total number of breakpoints.
func (s *BreakpointStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, set := range s.byFile {
		n += len(set)
	}
	return n
}

// Resync pushes the stored lines of file to the engine and adopts the
// engine's view afterwards. Used when a UDF is loaded or reloaded.
func (s *BreakpointStore) Resync(file string) error {
	lines := s.View(file)
	if len(lines) == 0 {
		return nil
	}
	var firstErr error
	for _, l := range lines {
		if err := s.gw.SetBreakpoint(AddBreakpoint{File: file, Line: l}); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return firstErr
	}
	view, err := s.gw.ViewBreakpoints(file)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.replace(file, view)
	s.mu.Unlock()
	return nil
}

// ResyncAll resyncs every file and returns the first error.
func (s *BreakpointStore) ResyncAll() error {
	var firstErr error
	for _, f := range s.Files() {
		if err := s.Resync(f); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SetPersistPath sets the file used by Save and Load.
func (s *BreakpointStore) SetPersistPath(path string) {
	s.mu.Lock()
	s.persistPath = path
	s.mu.Unlock()
}

type persistedFile struct {
	File  string `json:"file"`
	Lines []int  `json:"lines"`
}

// persistedBreakpoints is the format for persisted breakpoints.
type persistedBreakpoints struct {
	Version     int             `json:"version"`
	Breakpoints []persistedFile `json:"breakpoints"`
}

// Save persists breakpoints to disk.
func (s *BreakpointStore) Save() error {
	s.mu.RLock()
	path := s.persistPath
	data := persistedBreakpoints{Version: 1}
	for file, set := range s.byFile {
		data.Breakpoints = append(data.Breakpoints, persistedFile{File: file, Lines: sortedLines(set)})
	}
	s.mu.RUnlock()

	if path == "" {
		return fmt.Errorf("persist path not set")
	}
	sort.Slice(data.Breakpoints, func(i, j int) bool {
		return data.Breakpoints[i].File < data.Breakpoints[j].File
	})

	content, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal breakpoints: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// Load replaces the stored breakpoints with the persisted ones. The engine
// is not contacted; call ResyncAll or Resync once the UDFs are available.
func (s *BreakpointStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.persistPath == "" {
		return fmt.Errorf("persist path not set")
	}

	content, err := os.ReadFile(s.persistPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // No persisted breakpoints
		}
		return fmt.Errorf("read file: %w", err)
	}

	var data persistedBreakpoints
	if err := json.Unmarshal(content, &data); err != nil {
		return fmt.Errorf("unmarshal breakpoints: %w", err)
	}

	s.byFile = make(map[string]map[int]struct{})
	for _, pf := range data.Breakpoints {
		if pf.File != "" {
			s.replace(pf.File, pf.Lines)
		}
	}
	return nil
}

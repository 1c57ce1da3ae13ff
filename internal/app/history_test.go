package app

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestHistoryAdd(t *testing.T) {
	h := NewHistory(3)
	for _, cmd := range []string{"a", " ", "b", "b", "c", "d"} {
		h.Add(cmd)
	}
	if got, want := h.Entries(), []string{"b", "c", "d"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Entries() = %q, want %q", got, want)
	}
}

func TestHistoryNavigation(t *testing.T) {
	h := NewHistory(10)
	h.Add("one")
	h.Add("two")

	steps := []struct {
		prev bool
		want string
		ok   bool
	}{
		{true, "two", true},
		{true, "one", true},
		{true, "", false},
		{false, "two", true},
		{false, "", false},
		{true, "two", true},
	}
	for i, s := range steps {
		var got string
		var ok bool
		if s.prev {
			got, ok = h.Prev()
		} else {
			got, ok = h.Next()
		}
		if got != s.want || ok != s.ok {
			t.Errorf("step %d = %q, %v; want %q, %v", i, got, ok, s.want, s.ok)
		}
	}
}

func TestHistorySearch(t *testing.T) {
	h := NewHistory(10)
	for _, cmd := range []string{"x = 1", "plot(X)", "y = 2", "x + y"} {
		h.Add(cmd)
	}

	tests := []struct {
		term    string
		from    int
		want    string
		wantIdx int
		ok      bool
	}{
		{"x", -1, "x + y", 3, true},
		{"x", 3, "plot(X)", 1, true},
		{"x", 1, "x = 1", 0, true},
		{"x", 0, "", -1, false},
		{"", -1, "x + y", 3, true},
		{"zzz", -1, "", -1, false},
		{"Y =", 99, "y = 2", 2, true},
	}
	for _, tt := range tests {
		got, idx, ok := h.Search(tt.term, tt.from)
		if got != tt.want || idx != tt.wantIdx || ok != tt.ok {
			t.Errorf("Search(%q, %d) = %q, %d, %v; want %q, %d, %v",
				tt.term, tt.from, got, idx, ok, tt.want, tt.wantIdx, tt.ok)
		}
	}
}

func TestHistoryPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history")
	h := NewHistory(10)
	h.Add("a = 1")
	h.Add("b = 2")
	if err := h.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	os.WriteFile(path, []byte("a = 1\n\n  \nb = 2\n"), 0644)
	loaded := NewHistory(1)
	if err := loaded.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := loaded.Entries(); !reflect.DeepEqual(got, []string{"b = 2"}) {
		t.Errorf("loaded = %q", got)
	}
	if prev, _ := loaded.Prev(); prev != "b = 2" {
		t.Errorf("Prev after load = %q", prev)
	}

	if err := NewHistory(1).Load(filepath.Join(t.TempDir(), "none")); err != nil {
		t.Errorf("missing history file = %v", err)
	}
}

func TestRecentFiles(t *testing.T) {
	dir := t.TempDir()
	r := NewRecentFiles()
	for i := 0; i < MaxRecentFiles+2; i++ {
		path := filepath.Join(dir, string(rune('a'+i))+".aux")
		os.WriteFile(path, nil, 0644)
		r.Add(path)
	}
	r.Add(filepath.Join(dir, "c.aux"))

	list := r.List()
	if len(list) != MaxRecentFiles {
		t.Fatalf("len = %d, want %d", len(list), MaxRecentFiles)
	}
	if filepath.Base(list[0]) != "c.aux" || filepath.Base(list[1]) != "j.aux" {
		t.Errorf("order = %q", list)
	}

	os.Remove(filepath.Join(dir, "j.aux"))
	if list := r.List(); len(list) != MaxRecentFiles-1 {
		t.Errorf("missing file not pruned: %q", list)
	}
}

func TestUDFWatcher(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "foo.aux")
	other := filepath.Join(dir, "bar.aux")
	os.WriteFile(path, []byte("-- v1\n"), 0644)
	os.WriteFile(other, []byte("-- v1\n"), 0644)

	changed := make(chan string, 4)
	w, err := NewUDFWatcher(100*time.Millisecond, func(p string) { changed <- p }, nil)
	if err != nil {
		t.Fatalf("NewUDFWatcher: %v", err)
	}
	defer w.Close()

	if err := w.Watch(path); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if err := w.Watch(path); err != ErrAlreadyWatched {
		t.Errorf("second Watch = %v", err)
	}
	if !w.IsWatching(path) || w.IsWatching(other) {
		t.Error("IsWatching mismatch")
	}

	os.WriteFile(other, []byte("-- v2\n"), 0644)
	for i := 0; i < 3; i++ {
		os.WriteFile(path, []byte("-- v2\n"), 0644)
	}

	select {
	case got := <-changed:
		if got != path {
			t.Errorf("change reported for %q, want %q", got, path)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no change reported")
	}
	select {
	case got := <-changed:
		t.Errorf("extra change for %q", got)
	case <-time.After(200 * time.Millisecond):
	}

	if err := w.Unwatch(path); err != nil {
		t.Errorf("Unwatch: %v", err)
	}
	if err := w.Unwatch(path); err != ErrNotWatched {
		t.Errorf("second Unwatch = %v", err)
	}
	w.Close()
	if err := w.Watch(path); err != ErrWatcherClosed {
		t.Errorf("Watch after Close = %v", err)
	}
}

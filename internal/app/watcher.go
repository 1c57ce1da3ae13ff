package app

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultReloadDelay coalesces the burst of events an editor produces when
// saving a file.
const DefaultReloadDelay = 150 * time.Millisecond

// Watcher errors.
var (
	ErrWatcherClosed  = errors.New("watcher is closed")
	ErrAlreadyWatched = errors.New("file already watched")
	ErrNotWatched     = errors.New("file not watched")
)

// UDFWatcher reports changes to loaded UDF files. It watches each file's
// directory, so files replaced by rename are still seen, and debounces
// changes per file.
type UDFWatcher struct {
	mu sync.Mutex

	watcher  *fsnotify.Watcher
	delay    time.Duration
	files    map[string]bool
	dirs     map[string]int
	timers   map[string]*time.Timer
	onChange func(path string)
	onError  func(err error)

	closed   bool
	closeCh  chan struct{}
	closedWg sync.WaitGroup
}

// NewUDFWatcher starts a watcher. onChange receives the absolute path of a
// changed file once the delay passes without further events for it.
func NewUDFWatcher(delay time.Duration, onChange func(path string), onError func(err error)) (*UDFWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if delay <= 0 {
		delay = DefaultReloadDelay
	}
	if onError == nil {
		onError = func(error) {}
	}

	w := &UDFWatcher{
		watcher:  fsw,
		delay:    delay,
		files:    make(map[string]bool),
		dirs:     make(map[string]int),
		timers:   make(map[string]*time.Timer),
		onChange: onChange,
		onError:  onError,
		closeCh:  make(chan struct{}),
	}

	w.closedWg.Add(1)
	go w.processLoop()
	return w, nil
}

// Watch starts watching the file at path.
func (w *UDFWatcher) Watch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(abs); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if w.files[abs] {
		return ErrAlreadyWatched
	}

	dir := filepath.Dir(abs)
	if w.dirs[dir] == 0 {
		if err := w.watcher.Add(dir); err != nil {
			return err
		}
	}
	w.dirs[dir]++
	w.files[abs] = true
	return nil
}

// Unwatch stops watching the file at path.
func (w *UDFWatcher) Unwatch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if !w.files[abs] {
		return ErrNotWatched
	}
	delete(w.files, abs)
	if t, ok := w.timers[abs]; ok {
		t.Stop()
		delete(w.timers, abs)
	}

	dir := filepath.Dir(abs)
	w.dirs[dir]--
	if w.dirs[dir] == 0 {
		delete(w.dirs, dir)
		return w.watcher.Remove(dir)
	}
	return nil
}

// IsWatching reports whether path is watched.
func (w *UDFWatcher) IsWatching(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.files[abs]
}

// Close stops the watcher. Pending changes are discarded.
func (w *UDFWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	for _, t := range w.timers {
		t.Stop()
	}
	w.timers = nil
	w.mu.Unlock()

	w.closedWg.Wait()
	return w.watcher.Close()
}

func (w *UDFWatcher) processLoop() {
	defer w.closedWg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				w.schedule(filepath.Clean(ev.Name))
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.onError(err)
		}
	}
}

// schedule restarts the debounce timer of a watched file.
func (w *UDFWatcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || !w.files[path] {
		return
	}
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.delay, func() {
		w.mu.Lock()
		fire := !w.closed && w.files[path]
		if fire {
			delete(w.timers, path)
		}
		w.mu.Unlock()

		if fire {
			w.onChange(path)
		}
	})
}

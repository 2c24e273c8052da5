// Package watcher follows the Claude Code projects directory and keeps session
// timelines synchronized as logs grow. File events are debounced per path so a
// burst of appends triggers one re-parse.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/farouqaldori/claude-island/internal/history"
	"github.com/farouqaldori/claude-island/internal/parse"
)

const debounceDelay = 500 * time.Millisecond

// Watcher drives history loads and syncs from filesystem events on session
// logs.
type Watcher struct {
	fs          *fsnotify.Watcher
	accessor    *history.Accessor
	projectsDir string

	mu       sync.Mutex
	debounce map[string]*time.Timer

	done chan struct{}
}

// New creates a watcher over projectsDir feeding the given accessor and starts
// its event loop.
func New(projectsDir string, accessor *history.Accessor) (*Watcher, error) {
	if projectsDir == "" {
		projectsDir = parse.DefaultProjectsDir()
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fs:          fs,
		accessor:    accessor,
		projectsDir: projectsDir,
		debounce:    map[string]*time.Timer{},
		done:        make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Close stops the event loop and cancels pending debounce timers.
func (w *Watcher) Close() error {
	close(w.done)
	w.mu.Lock()
	for _, timer := range w.debounce {
		timer.Stop()
	}
	w.debounce = map[string]*time.Timer{}
	w.mu.Unlock()
	return w.fs.Close()
}

// WatchProject starts watching the project folder for one working directory.
func (w *Watcher) WatchProject(cwd string) error {
	return w.fs.Add(filepath.Join(w.projectsDir, parse.EncodeCwd(cwd)))
}

// WatchAll watches every existing project folder. Folders created later are
// picked up when WatchProject is called for them (the hook server does this on
// session start).
func (w *Watcher) WatchAll() error {
	entries, err := os.ReadDir(w.projectsDir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		_ = w.fs.Add(filepath.Join(w.projectsDir, entry.Name()))
	}
	return nil
}

// =============================================================================
// EVENT LOOP
// =============================================================================

func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !isSessionLog(ev.Name) {
				continue
			}
			w.schedule(ev.Name)
		case _, ok := <-w.fs.Errors:
			if !ok {
				return
			}
		}
	}
}

// isSessionLog reports whether a path is a main-session JSONL log. Sub-agent
// logs (agent-*.jsonl) are skipped: their activity reaches the main log as
// sidechain events.
func isSessionLog(path string) bool {
	base := filepath.Base(path)
	return strings.HasSuffix(base, ".jsonl") && !strings.HasPrefix(base, "agent-")
}

// schedule arms (or re-arms) the per-path debounce timer.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.debounce[path]; ok {
		timer.Stop()
	}
	w.debounce[path] = time.AfterFunc(debounceDelay, func() {
		w.mu.Lock()
		delete(w.debounce, path)
		w.mu.Unlock()

		select {
		case <-w.done:
			return
		default:
		}
		w.handleFile(path)
	})
}

func (w *Watcher) handleFile(path string) {
	sessionID := strings.TrimSuffix(filepath.Base(path), ".jsonl")
	cwd := decodeProjectDir(filepath.Base(filepath.Dir(path)))

	ctx := context.Background()
	if w.accessor.IsLoaded(sessionID) {
		_ = w.accessor.SyncFromFile(ctx, sessionID, cwd)
		return
	}
	_ = w.accessor.LoadFromFile(ctx, sessionID, cwd)
}

// decodeProjectDir maps a project folder name back to a working directory.
// The encoding is lossy (dashes inside path segments also decode to slashes),
// but the parser only needs a cwd that re-encodes to the same folder, which
// this guarantees. Hook events supply the exact cwd when one is available.
func decodeProjectDir(name string) string {
	return strings.ReplaceAll(name, "-", "/")
}

package workflow

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Loader loads WorkflowDefinitions from a directory of YAML files and,
// optionally, watches that directory for changes between workflow runs.
// Definitions are immutable once loaded into a run (spec.md §3.1, §3.7):
// a watch-triggered reload only replaces the Loader's cache, never a
// Definition a run already holds.
type Loader struct {
	dir    string
	logger *slog.Logger

	mu          sync.RWMutex
	definitions map[string]*Definition

	watcher *fsnotify.Watcher
}

// NewLoader loads every `*.yaml`/`*.yml` file in dir.
func NewLoader(dir string, logger *slog.Logger) (*Loader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loader{dir: dir, logger: logger, definitions: make(map[string]*Definition)}
	if err := l.reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Get returns the named definition.
func (l *Loader) Get(name string) (*Definition, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	d, ok := l.definitions[name]
	return d, ok
}

// All returns every loaded definition.
func (l *Loader) All() []*Definition {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Definition, 0, len(l.definitions))
	for _, d := range l.definitions {
		out = append(out, d)
	}
	return out
}

func (l *Loader) reload() error {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return fmt.Errorf("workflow loader: read dir %s: %w", l.dir, err)
	}

	loaded := make(map[string]*Definition, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		path := filepath.Join(l.dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("workflow loader: read %s: %w", path, err)
		}
		var def Definition
		if err := yaml.Unmarshal(data, &def); err != nil {
			return fmt.Errorf("workflow loader: parse %s: %w", path, err)
		}
		if err := def.Validate(); err != nil {
			return fmt.Errorf("workflow loader: %s: %w", path, err)
		}
		loaded[def.Name] = &def
	}

	l.mu.Lock()
	l.definitions = loaded
	l.mu.Unlock()
	return nil
}

// Watch starts an fsnotify watch on the loader's directory, reloading the
// definition cache on every write/create/remove event. Reloads apply only
// between runs: the coordinator must re-fetch the definition for each new
// workflow run rather than holding a stale pointer, and an in-flight run's
// *Definition is never mutated out from under it. Watch returns once the
// watcher is installed; it stops when stopCh is closed.
func (l *Loader) Watch(stopCh <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("workflow loader: new watcher: %w", err)
	}
	if err := watcher.Add(l.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("workflow loader: watch %s: %w", l.dir, err)
	}
	l.watcher = watcher

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-stopCh:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)) {
					continue
				}
				if err := l.reload(); err != nil {
					l.logger.Warn("workflow definitions reload failed", "error", err)
					continue
				}
				l.logger.Info("workflow definitions reloaded", "dir", l.dir)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				l.logger.Warn("workflow loader watch error", "error", err)
			}
		}
	}()
	return nil
}

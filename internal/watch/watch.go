// Package watch triggers rebuilds when files under the build context change.
package watch

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// DefaultDebounce is how long the watcher waits for changes to settle.
const DefaultDebounce = 100 * time.Millisecond

// ChangeFunc receives the sorted set of paths that changed since the last call.
type ChangeFunc func(ctx context.Context, changed []string)

type Options struct {
	// Ignore lists directories (absolute, or relative to the root) that are never watched
	Ignore   []string
	Debounce time.Duration
}

// Watcher watches a directory tree. node_modules and dot-directories are
// skipped along with Options.Ignore.
type Watcher struct {
	root     string
	ignore   []string
	debounce time.Duration
	onChange ChangeFunc
	fsw      *fsnotify.Watcher
}

// New starts watching root; changes are delivered once Run is called.
func New(root string, opts Options, onChange ChangeFunc) (*Watcher, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		root:     root,
		debounce: opts.Debounce,
		onChange: onChange,
		fsw:      fsw,
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	for _, dir := range opts.Ignore {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(root, dir)
		}
		w.ignore = append(w.ignore, filepath.Clean(dir))
	}

	if err := w.addTree(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run delivers debounced changes until ctx is cancelled. The watcher is
// closed when Run returns.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	pending := map[string]struct{}{}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				// new directories need their own watches
				_ = w.addTree(ev.Name)
			}
			pending[ev.Name] = struct{}{}
			timer.Reset(w.debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("File watcher error")

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			sort.Strings(changed)
			clear(pending)

			log.Debug().Strs("changed", changed).Msg("Files changed")
			w.onChange(ctx, changed)
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	return !w.ignored(ev.Name)
}

func (w *Watcher) ignored(path string) bool {
	for _, dir := range w.ignore {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}

	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if part == "node_modules" || (len(part) > 1 && strings.HasPrefix(part, ".") && part != "..") {
			return true
		}
	}
	return false
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// the directory may be gone again by the time we get here
			return nil //nolint:nilerr
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.ignored(path) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

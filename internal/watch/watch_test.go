package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	calls [][]string
}

func (r *recorder) onChange(_ context.Context, changed []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, changed)
}

func (r *recorder) snapshot() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.calls...)
}

func start(t *testing.T, root string, opts Options) *recorder {
	t.Helper()
	rec := &recorder{}
	w, err := New(root, opts, rec.onChange)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return rec
}

func write(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
}

func TestWatcherDebouncesChanges(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "src", "index.js"), "1")

	rec := start(t, root, Options{Debounce: 200 * time.Millisecond})

	write(t, filepath.Join(root, "src", "index.js"), "2")
	write(t, filepath.Join(root, "src", "print.js"), "3")

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, 5*time.Second, 20*time.Millisecond)

	calls := rec.snapshot()
	require.Contains(t, calls[0], filepath.Join(root, "src", "index.js"))
	require.Contains(t, calls[0], filepath.Join(root, "src", "print.js"))
}

func TestWatcherIgnoresOutputAndHiddenDirs(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"dist", "node_modules", ".git", "src"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0o755))
	}

	rec := start(t, root, Options{Ignore: []string{"dist"}, Debounce: 50 * time.Millisecond})

	write(t, filepath.Join(root, "dist", "index.bundle.js"), "x")
	write(t, filepath.Join(root, "node_modules", "lib.js"), "x")
	write(t, filepath.Join(root, ".git", "HEAD"), "x")

	time.Sleep(300 * time.Millisecond)
	require.Empty(t, rec.snapshot())

	write(t, filepath.Join(root, "src", "index.js"), "x")
	require.Eventually(t, func() bool { return len(rec.snapshot()) > 0 }, 5*time.Second, 20*time.Millisecond)
	for _, call := range rec.snapshot() {
		for _, p := range call {
			require.Contains(t, p, filepath.Join(root, "src"))
		}
	}
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	root := t.TempDir()
	rec := start(t, root, Options{Debounce: 50 * time.Millisecond})

	require.NoError(t, os.MkdirAll(filepath.Join(root, "components"), 0o755))
	require.Eventually(t, func() bool { return len(rec.snapshot()) > 0 }, 5*time.Second, 20*time.Millisecond)

	write(t, filepath.Join(root, "components", "button.js"), "x")
	require.Eventually(t, func() bool {
		for _, call := range rec.snapshot() {
			for _, p := range call {
				if p == filepath.Join(root, "components", "button.js") {
					return true
				}
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)
}

func TestIgnored(t *testing.T) {
	w := &Watcher{root: "/app", ignore: []string{"/app/dist"}}

	tests := []struct {
		path     string
		expected bool
	}{
		{path: "/app/src/index.js", expected: false},
		{path: "/app/dist", expected: true},
		{path: "/app/dist/index.bundle.js", expected: true},
		{path: "/app/distribution/a.js", expected: false},
		{path: "/app/node_modules/lodash/index.js", expected: true},
		{path: "/app/src/.cache/x", expected: true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			require.Equal(t, tt.expected, w.ignored(filepath.FromSlash(tt.path)))
		})
	}
}

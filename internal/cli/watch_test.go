package cli

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileWatcher_DebouncesChanges(t *testing.T) {
	dir := t.TempDir()

	w, err := newFileWatcher([]string{dir}, 50*time.Millisecond, func(path string) bool {
		return filepath.Ext(path) == ".xml"
	}, (&RootOptions{}).Logger())
	require.NoError(t, err)

	var calls atomic.Int32
	w.onChange = func() { calls.Add(1) }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	path := filepath.Join(dir, "account.xml")
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte("<mapper/>"), 0644))
	}

	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	// A burst of writes collapses into one change.
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	// Unmatched files are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestNewFileWatcher_MissingDir(t *testing.T) {
	_, err := newFileWatcher([]string{filepath.Join(t.TempDir(), "missing")}, time.Millisecond,
		func(string) bool { return true }, (&RootOptions{}).Logger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to watch directory")
}

func TestWatchDirs(t *testing.T) {
	configPath := writeProject(t, nil)
	root := filepath.Dir(configPath)

	dirs := watchDirs(configPath)
	assert.Equal(t, []string{root, filepath.Join(root, "mappers")}, dirs)
}

func TestWatchDirs_BadConfig(t *testing.T) {
	configPath := writeProject(t, map[string]string{"app.cue": "mappers: ["})

	// The config directory is still watched so a fix is noticed.
	dirs := watchDirs(configPath)
	assert.Equal(t, []string{filepath.Dir(configPath)}, dirs)
}

func TestWatchedFile(t *testing.T) {
	configPath := writeProject(t, nil)
	match := watchedFile(configPath)
	root := filepath.Dir(configPath)

	assert.True(t, match(configPath))
	assert.True(t, match(filepath.Join(root, "mappers", "account.xml")))
	assert.True(t, match(filepath.Join(root, "other", "LEDGER.XML")))
	assert.False(t, match(filepath.Join(root, "other.cue")))
	assert.False(t, match(filepath.Join(root, "mappers", "notes.txt")))
}

func TestRunWatch_StopsOnCancel(t *testing.T) {
	configPath := writeProject(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetContext(ctx)
	buf := &safeBuffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&safeBuffer{})

	opts := &CompileOptions{RootOptions: &RootOptions{Format: "text"}, Debounce: 20 * time.Millisecond}
	done := make(chan error, 1)
	go func() { done <- runWatch(ctx, opts, configPath, cmd) }()

	require.Eventually(t, func() bool {
		return countOf(buf.String(), "✓ Compiled") == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Editing a mapper triggers a recompile.
	mapper := filepath.Join(filepath.Dir(configPath), "mappers", "ledger.xml")
	require.NoError(t, os.WriteFile(mapper, []byte(ledgerMapper), 0644))
	require.Eventually(t, func() bool {
		return countOf(buf.String(), "✓ Compiled") >= 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}

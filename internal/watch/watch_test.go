package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunReportsSettledScans(t *testing.T) {
	dir := t.TempDir()
	w := &Watcher{Dir: dir, Settle: 20 * time.Millisecond, Scan: 10 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	found := make(chan string, 4)
	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx, func(p string) { found <- p }) }()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Shelf 3.png"), []byte("x"), 0o644))

	select {
	case p := <-found:
		assert.Equal(t, filepath.Join(dir, "Shelf 3.png"), p)
	case <-time.After(5 * time.Second):
		t.Fatal("no scan reported")
	}

	select {
	case p := <-found:
		t.Fatalf("unexpected report %s", p)
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	assert.NoError(t, <-errc)
}

func TestRunMissingDirectory(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "missing"))
	err := w.Run(context.Background(), func(string) {})
	assert.Error(t, err)
}

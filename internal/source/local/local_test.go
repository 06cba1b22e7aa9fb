package local

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, body string, mod time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func TestListPDFs_FiltersAndOrders(t *testing.T) {
	root := t.TempDir()
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	writeFile(t, filepath.Join(root, "old.pdf"), "%PDF-old", t1)
	writeFile(t, filepath.Join(root, "sub", "new.PDF"), "%PDF-new", t2)
	writeFile(t, filepath.Join(root, "notes.txt"), "x", t2)
	writeFile(t, filepath.Join(root, ".hidden", "secret.pdf"), "%PDF-", t2)
	writeFile(t, filepath.Join(root, ".dot.pdf"), "%PDF-", t2)

	files, err := New(root, nil).ListPDFs(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, files, 2)

	assert.Equal(t, "sub/new.PDF", files[0].ID)
	assert.Equal(t, "sub/new.PDF", files[0].Name)
	assert.Equal(t, "2024-02-01T00:00:00.000Z", files[0].ModifiedTime)
	assert.Equal(t, "application/pdf", files[0].MimeType)
	assert.Equal(t, int64(8), *files[0].Size)
	assert.Equal(t, "old.pdf", files[1].ID)
}

func TestListPDFs_FolderScope(t *testing.T) {
	root := t.TempDir()
	now := time.Now()
	writeFile(t, filepath.Join(root, "a.pdf"), "%PDF-", now)
	writeFile(t, filepath.Join(root, "q1", "b.pdf"), "%PDF-", now)

	files, err := New(root, nil).ListPDFs(context.Background(), "q1")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "q1/b.pdf", files[0].ID)
}

func TestListPDFs_MissingRoot(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope"), nil).ListPDFs(context.Background(), "")
	assert.Error(t, err)
}

func TestDownload(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "sub", "x.pdf"), "%PDF-body", time.Now())
	s := New(root, nil)

	b, err := s.Download(context.Background(), "sub/x.pdf")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-body", string(b))

	_, err = s.Download(context.Background(), "../etc/passwd")
	assert.True(t, errors.Is(err, ErrOutsideRoot))

	_, err = s.Download(context.Background(), "sub/missing.pdf")
	assert.Error(t, err)
}

func TestModTimeStringSortsLikeTime(t *testing.T) {
	a := ModTimeString(time.Date(2024, 1, 1, 0, 0, 9, 0, time.UTC))
	b := ModTimeString(time.Date(2024, 1, 1, 0, 0, 10, 5e8, time.UTC))
	assert.Less(t, a, b)
}

func TestWatch_EmitsPDFWrites(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, _, err := Watch(ctx, WatchConfig{Roots: []string{root}, Debounce: 20 * time.Millisecond})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "ignored.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "new.pdf"), []byte("%PDF-"), 0o644))

	select {
	case p := <-events:
		assert.Equal(t, filepath.Join(root, "new.pdf"), p)
	case <-time.After(3 * time.Second):
		t.Fatal("no watch event")
	}

	cancel()
	for range events {
	}
}

func TestWatch_NoRoots(t *testing.T) {
	_, _, err := Watch(context.Background(), WatchConfig{})
	assert.Error(t, err)
}

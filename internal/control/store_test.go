package control

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/pdf-cost-reports/internal/entity"
)

func TestFileStore_LoadMissingReturnsEmpty(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "control.json"), nil)

	st := s.Load(context.Background())
	assert.NotNil(t, st.Processed)
	assert.Empty(t, st.Processed)
	_, err := time.Parse(time.RFC3339, st.LastUpdated)
	assert.NoError(t, err)
}

func TestFileStore_LoadCorruptReturnsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "control.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	st := NewFileStore(path, nil).Load(context.Background())
	assert.Empty(t, st.Processed)
}

func TestFileStore_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "control.json")
	s := NewFileStore(path, nil)
	want := entity.ControlState{
		Processed:   []entity.ProcessedFileRecord{rec("a.pdf", "2024-01-01T00:00:00Z", "1")},
		LastUpdated: "2024-01-02T00:00:00Z",
	}

	require.NoError(t, s.Save(context.Background(), want))
	assert.Equal(t, want, s.Load(context.Background()))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestFileStore_SaveWritesEmptyArrayNotNull(t *testing.T) {
	path := filepath.Join(t.TempDir(), "control.json")
	s := NewFileStore(path, nil)

	require.NoError(t, s.Save(context.Background(), entity.ControlState{LastUpdated: "x"}))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"processed": []`)
}

func TestFileStore_Reset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "control.json")
	s := NewFileStore(path, nil)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, entity.ControlState{Processed: []entity.ProcessedFileRecord{rec("a.pdf", "t", "1")}}))

	require.NoError(t, s.Reset(ctx))
	assert.Empty(t, s.Load(ctx).Processed)
}

package control

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/joseph-ayodele/pdf-cost-reports/internal/entity"
)

func src(id, name, mod string) entity.SourceFile {
	return entity.SourceFile{ID: id, Name: name, ModifiedTime: mod, MimeType: "application/pdf"}
}

func rec(name, mod, id string) entity.ProcessedFileRecord {
	return entity.ProcessedFileRecord{Name: name, ModifiedTime: mod, ID: id}
}

func names(files []entity.SourceFile) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Name)
	}
	return out
}

func TestComputeNewFiles_UnseenAndUpdated(t *testing.T) {
	state := entity.ControlState{Processed: []entity.ProcessedFileRecord{
		rec("a.pdf", "2024-01-01T00:00:00Z", "1"),
	}}
	candidates := []entity.SourceFile{
		src("1", "a.pdf", "2024-02-01T00:00:00Z"),
		src("2", "b.pdf", "2024-01-15T00:00:00Z"),
	}

	got := ComputeNewFiles(candidates, state)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, names(got))
}

func TestComputeNewFiles_UnchangedIsNotNew(t *testing.T) {
	state := entity.ControlState{Processed: []entity.ProcessedFileRecord{
		rec("a.pdf", "2024-01-01T00:00:00Z", "1"),
	}}
	got := ComputeNewFiles([]entity.SourceFile{src("1", "a.pdf", "2024-01-01T00:00:00Z")}, state)
	assert.Empty(t, got)
}

func TestComputeNewFiles_OlderTimestampIsNotNew(t *testing.T) {
	state := entity.ControlState{Processed: []entity.ProcessedFileRecord{
		rec("a.pdf", "2024-03-01T00:00:00Z", "1"),
	}}
	got := ComputeNewFiles([]entity.SourceFile{src("1", "a.pdf", "2024-01-01T00:00:00Z")}, state)
	assert.Empty(t, got)
}

func TestComputeNewFiles_KeyedByNameNotID(t *testing.T) {
	state := entity.ControlState{Processed: []entity.ProcessedFileRecord{
		rec("a.pdf", "2024-01-01T00:00:00Z", "old-id"),
	}}
	got := ComputeNewFiles([]entity.SourceFile{src("new-id", "a.pdf", "2024-01-01T00:00:00Z")}, state)
	assert.Empty(t, got, "a new id under a known name and timestamp is not new")

	got = ComputeNewFiles([]entity.SourceFile{src("old-id", "renamed.pdf", "2024-01-01T00:00:00Z")}, state)
	assert.Equal(t, []string{"renamed.pdf"}, names(got))
}

func TestComputeNewFiles_LastDuplicateWins(t *testing.T) {
	state := entity.ControlState{Processed: []entity.ProcessedFileRecord{
		rec("a.pdf", "2024-05-01T00:00:00Z", "1"),
		rec("a.pdf", "2024-01-01T00:00:00Z", "1"),
	}}
	got := ComputeNewFiles([]entity.SourceFile{src("1", "a.pdf", "2024-03-01T00:00:00Z")}, state)
	assert.Equal(t, []string{"a.pdf"}, names(got))
}

func TestComputeNewFiles_StringComparison(t *testing.T) {
	// Fractional seconds sort after the bare form even though they denote
	// the same instant.
	state := entity.ControlState{Processed: []entity.ProcessedFileRecord{
		rec("a.pdf", "2024-01-01T00:00:00Z", "1"),
	}}
	got := ComputeNewFiles([]entity.SourceFile{src("1", "a.pdf", "2024-01-01T00:00:00.000Z")}, state)
	assert.Equal(t, []string{"a.pdf"}, names(got))
}

func TestComputeNewFiles_SubsetInCandidateOrder(t *testing.T) {
	state := entity.ControlState{Processed: []entity.ProcessedFileRecord{
		rec("b.pdf", "2024-01-01T00:00:00Z", "2"),
	}}
	candidates := []entity.SourceFile{
		src("3", "c.pdf", "2024-01-03T00:00:00Z"),
		src("2", "b.pdf", "2024-01-01T00:00:00Z"),
		src("1", "a.pdf", "2024-01-02T00:00:00Z"),
	}
	got := ComputeNewFiles(candidates, state)
	assert.Equal(t, []string{"c.pdf", "a.pdf"}, names(got))
	assert.LessOrEqual(t, len(got), len(candidates))
}

func TestComputeNewFiles_EmptyInputs(t *testing.T) {
	assert.Empty(t, ComputeNewFiles(nil, entity.ControlState{}))
	got := ComputeNewFiles([]entity.SourceFile{src("1", "a.pdf", "x")}, entity.ControlState{})
	assert.Len(t, got, 1)
}

func TestMarkAttempted_AppendsAndStamps(t *testing.T) {
	base := entity.ControlState{Processed: []entity.ProcessedFileRecord{rec("a.pdf", "t1", "1")}}
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))

	next := MarkAttempted(base, []entity.SourceFile{src("2", "b.pdf", "t2")}, now)

	assert.Len(t, base.Processed, 1, "input must not be mutated")
	assert.Equal(t, []entity.ProcessedFileRecord{rec("a.pdf", "t1", "1"), rec("b.pdf", "t2", "2")}, next.Processed)
	assert.Equal(t, "2024-06-01T11:00:00Z", next.LastUpdated)
}

func TestMarkAttempted_ThenDiffIsEmpty(t *testing.T) {
	candidates := []entity.SourceFile{src("1", "a.pdf", "2024-01-01T00:00:00Z"), src("2", "b.pdf", "2024-01-02T00:00:00Z")}
	first := ComputeNewFiles(candidates, entity.ControlState{})
	state := MarkAttempted(entity.ControlState{}, first, time.Now())

	assert.Empty(t, ComputeNewFiles(candidates, state))
}

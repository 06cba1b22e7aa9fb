package control

import (
	"time"

	"github.com/joseph-ayodele/pdf-cost-reports/internal/entity"
)

// ComputeNewFiles returns the candidates that have not been attempted yet,
// in candidate order. A candidate is new when no record carries its name or
// when the last recorded modifiedTime for that name sorts before the
// candidate's as a plain string. Equal timestamps are not new.
func ComputeNewFiles(candidates []entity.SourceFile, state entity.ControlState) []entity.SourceFile {
	seen := make(map[string]string, len(state.Processed))
	for _, rec := range state.Processed {
		// later records for the same name win
		seen[rec.Name] = rec.ModifiedTime
	}

	out := make([]entity.SourceFile, 0, len(candidates))
	for _, c := range candidates {
		last, ok := seen[c.Name]
		if !ok || last < c.ModifiedTime {
			out = append(out, c)
		}
	}
	return out
}

// MarkAttempted appends one record per attempted file and stamps lastUpdated.
// The input state is not modified.
func MarkAttempted(state entity.ControlState, attempted []entity.SourceFile, now time.Time) entity.ControlState {
	processed := make([]entity.ProcessedFileRecord, 0, len(state.Processed)+len(attempted))
	processed = append(processed, state.Processed...)
	for _, f := range attempted {
		processed = append(processed, entity.ProcessedFileRecord{
			Name:         f.Name,
			ModifiedTime: f.ModifiedTime,
			ID:           f.ID,
		})
	}
	return entity.ControlState{
		Processed:   processed,
		LastUpdated: now.UTC().Format(time.RFC3339),
	}
}

// Empty returns a state with no records stamped with now.
func Empty(now time.Time) entity.ControlState {
	return entity.ControlState{
		Processed:   []entity.ProcessedFileRecord{},
		LastUpdated: now.UTC().Format(time.RFC3339),
	}
}

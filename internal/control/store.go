package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/pdf-cost-reports/internal/entity"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/utils"
)

// Store persists ControlState as a single JSON document.
type Store interface {
	Load(ctx context.Context) entity.ControlState
	Save(ctx context.Context, state entity.ControlState) error
	Reset(ctx context.Context) error
	Path() string
}

type fileStore struct {
	path   string
	now    func() time.Time
	logger *slog.Logger
}

func NewFileStore(path string, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &fileStore{path: path, now: time.Now, logger: logger}
}

func (s *fileStore) Path() string { return s.path }

// Load never fails: a missing or unreadable control file yields an empty state.
func (s *fileStore) Load(_ context.Context) entity.ControlState {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Info("control.load.missing", "path", s.path)
		} else {
			s.logger.Warn("control.load.read_error", "path", s.path, "error", err)
		}
		return Empty(s.now())
	}

	var st entity.ControlState
	if err := json.Unmarshal(b, &st); err != nil {
		s.logger.Warn("control.load.corrupt", "path", s.path, "error", err)
		return Empty(s.now())
	}
	if st.Processed == nil {
		st.Processed = []entity.ProcessedFileRecord{}
	}
	s.logger.Info("control.load.ok", "path", s.path, "records", len(st.Processed), "last_updated", st.LastUpdated)
	return st
}

// Save replaces the control file atomically.
func (s *fileStore) Save(_ context.Context, state entity.ControlState) error {
	if state.Processed == nil {
		state.Processed = []entity.ProcessedFileRecord{}
	}
	b, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode control state: %w", err)
	}
	if err := utils.WriteFileAtomic(s.path, b); err != nil {
		s.logger.Error("control.save.error", "path", s.path, "error", err)
		return err
	}
	s.logger.Info("control.save.ok", "path", s.path, "records", len(state.Processed))
	return nil
}

func (s *fileStore) Reset(ctx context.Context) error {
	return s.Save(ctx, Empty(s.now()))
}

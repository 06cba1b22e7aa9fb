package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joseph-ayodele/pdf-cost-reports/internal/common"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/entity"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/utils"
)

// Store keeps one JSON document per report under a directory.
type Store interface {
	Save(ctx context.Context, r entity.ReportRecord) (string, error)
	Load(ctx context.Context, id string) (entity.ReportRecord, error)
	List(ctx context.Context) ([]entity.ReportRecord, error)
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) (int, error)
}

type fileStore struct {
	dir    string
	logger *slog.Logger
}

func NewFileStore(dir string, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &fileStore{dir: dir, logger: logger}
}

// Validate checks the fields a report must carry before it is written.
func Validate(r entity.ReportRecord) error {
	v := common.NewValidator()
	v.Field("id", r.ID, common.Required, common.ReportID)
	v.Field("name", r.Name, common.Required, common.MaxLength(500))
	v.Field("currency", r.Currency, common.CurrencyCode)
	v.Field("sourcePdf", r.SourcePDF, common.Required)
	return v.Error()
}

func (s *fileStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *fileStore) Save(_ context.Context, r entity.ReportRecord) (string, error) {
	if err := Validate(r); err != nil {
		return "", err
	}
	if r.Items == nil {
		r.Items = []entity.CostItem{}
	}
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	p := s.path(r.ID)
	if err := utils.WriteFileAtomic(p, b); err != nil {
		s.logger.Error("report.save.error", "report_id", r.ID, "error", err)
		return "", fmt.Errorf("write report %s: %w", r.ID, err)
	}
	s.logger.Info("report.save.ok", "report_id", r.ID, "path", p)
	return p, nil
}

func (s *fileStore) Load(_ context.Context, id string) (entity.ReportRecord, error) {
	if err := common.ReportID("id", id); err != nil {
		return entity.ReportRecord{}, common.NewAppError("NOT_FOUND", "report "+id, common.ErrNotFound)
	}
	b, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return entity.ReportRecord{}, common.NewAppError("NOT_FOUND", "report "+id, common.ErrNotFound)
		}
		return entity.ReportRecord{}, fmt.Errorf("read report %s: %w", id, err)
	}
	var r entity.ReportRecord
	if err := json.Unmarshal(b, &r); err != nil {
		return entity.ReportRecord{}, fmt.Errorf("decode report %s: %w", id, err)
	}
	return r, nil
}

// List returns every readable report, newest first. Unreadable documents are skipped.
func (s *fileStore) List(ctx context.Context) ([]entity.ReportRecord, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []entity.ReportRecord{}, nil
		}
		return nil, fmt.Errorf("list reports: %w", err)
	}
	out := make([]entity.ReportRecord, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
			continue
		}
		r, err := s.Load(ctx, strings.TrimSuffix(name, ".json"))
		if err != nil {
			s.logger.Warn("report.list.skip", "file", name, "error", err)
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].GeneratedAt.After(out[j].GeneratedAt) })
	return out, nil
}

// Delete removes one report document. A missing document is not an error.
func (s *fileStore) Delete(_ context.Context, id string) error {
	if err := common.ReportID("id", id); err != nil {
		return common.NewAppError("INVALID_INPUT", "report "+id, common.ErrInvalidInput)
	}
	if err := os.Remove(s.path(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove report %s: %w", id, err)
	}
	s.logger.Info("report.delete.ok", "report_id", id)
	return nil
}

// Clear deletes every report document and returns how many were removed.
func (s *fileStore) Clear(_ context.Context) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("list reports: %w", err)
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
			return n, fmt.Errorf("remove %s: %w", e.Name(), err)
		}
		n++
	}
	s.logger.Info("report.clear.ok", "dir", s.dir, "removed", n)
	return n, nil
}

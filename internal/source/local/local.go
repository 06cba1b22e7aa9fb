// Package local serves PDFs from a directory tree on disk.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joseph-ayodele/pdf-cost-reports/constants"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/entity"
)

// timeLayout is fixed width so string order matches time order.
const timeLayout = "2006-01-02T15:04:05.000Z"

var ErrOutsideRoot = errors.New("path escapes source root")

// DirStats summarizes one listing walk.
type DirStats struct {
	Scanned int
	Matched int
	Skipped int
	Failed  int
}

// Source lists PDFs under Root. File ids and names are both the
// slash-separated path relative to Root; a non-empty folderID narrows the
// walk to that subdirectory.
type Source struct {
	Root       string
	SkipHidden bool
	logger     *slog.Logger
}

func New(root string, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{Root: root, SkipHidden: true, logger: logger}
}

func (s *Source) ListPDFs(ctx context.Context, folderID string) ([]entity.SourceFile, error) {
	if strings.TrimSpace(s.Root) == "" {
		return nil, errors.New("source root is required")
	}
	base := s.Root
	if folderID != "" {
		p, err := s.resolve(folderID)
		if err != nil {
			return nil, err
		}
		base = p
	}

	var out []entity.SourceFile
	var stats DirStats
	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			if p == base {
				return walkErr
			}
			s.logger.Warn("source.local.walk_error", "path", p, "error", walkErr)
			stats.Failed++
			return nil
		}
		if s.SkipHidden && p != base && isHidden(p) {
			stats.Skipped++
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !hasPDFExt(p) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			stats.Failed++
			return nil
		}
		rel, err := filepath.Rel(s.Root, p)
		if err != nil {
			stats.Failed++
			return nil
		}
		size := info.Size()
		id := filepath.ToSlash(rel)
		out = append(out, entity.SourceFile{
			ID:           id,
			Name:         id, // unique across subdirectories
			ModifiedTime: info.ModTime().UTC().Format(timeLayout),
			MimeType:     constants.MimeTypePDF,
			Size:         &size,
		})
		stats.Matched++
		return nil
	})
	if err != nil {
		s.logger.Error("source.local.list_error", "root", base, "error", err)
		return nil, fmt.Errorf("walk %s: %w", base, err)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].ModifiedTime > out[j].ModifiedTime })
	s.logger.Info("source.local.list_ok",
		"root", base,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
	)
	return out, nil
}

func (s *Source) Download(ctx context.Context, fileID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.resolve(fileID)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", fileID, err)
	}
	defer func(f *os.File) {
		if err := f.Close(); err != nil {
			s.logger.Warn("source.local.close_error", "file_id", fileID, "error", err)
		}
	}(f)

	b, err := io.ReadAll(io.LimitReader(f, constants.MaxPDFBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fileID, err)
	}
	if len(b) > constants.MaxPDFBytes {
		return nil, fmt.Errorf("%s exceeds %d bytes", fileID, constants.MaxPDFBytes)
	}
	return b, nil
}

// Ping checks that the root exists and is a directory.
func (s *Source) Ping(_ context.Context) error {
	st, err := os.Stat(s.Root)
	if err != nil {
		return err
	}
	if !st.IsDir() {
		return fmt.Errorf("%s is not a directory", s.Root)
	}
	return nil
}

// resolve maps an id onto a path inside Root.
func (s *Source) resolve(id string) (string, error) {
	for _, seg := range strings.Split(filepath.ToSlash(id), "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: %q", ErrOutsideRoot, id)
		}
	}
	clean := path.Clean("/" + filepath.ToSlash(id))
	if clean == "/" {
		return "", fmt.Errorf("%w: %q", ErrOutsideRoot, id)
	}
	return filepath.Join(s.Root, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

// ModTimeString formats t the way ListPDFs reports modification times.
func ModTimeString(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

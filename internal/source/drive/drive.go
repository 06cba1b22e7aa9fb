// Package drive lists and downloads PDFs from Google Drive.
package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/joseph-ayodele/pdf-cost-reports/constants"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/entity"
)

const listFields = "nextPageToken, files(id, name, modifiedTime, mimeType, size)"

type Source struct {
	svc    *gdrive.Service
	logger *slog.Logger
}

// New builds a read-only Drive client from service-account credentials.
// credentials is either the JSON document itself or a path to it.
func New(ctx context.Context, credentials string, logger *slog.Logger, opts ...option.ClientOption) (*Source, error) {
	raw, err := resolveCredentials(credentials)
	if err != nil {
		return nil, err
	}
	opts = append([]option.ClientOption{
		option.WithCredentialsJSON(raw),
		option.WithScopes(gdrive.DriveReadonlyScope),
	}, opts...)
	svc, err := gdrive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("drive: new service: %w", err)
	}
	return NewFromService(svc, logger), nil
}

// NewFromService wraps an existing Drive service.
func NewFromService(svc *gdrive.Service, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{svc: svc, logger: logger}
}

func resolveCredentials(credentials string) ([]byte, error) {
	c := strings.TrimSpace(credentials)
	if c == "" {
		return nil, errors.New("drive: credentials are empty")
	}
	if strings.HasPrefix(c, "{") {
		return []byte(c), nil
	}
	b, err := os.ReadFile(c)
	if err != nil {
		return nil, fmt.Errorf("drive: read credentials file: %w", err)
	}
	return b, nil
}

// Query builds the Drive search expression for PDFs, optionally scoped to a folder.
func Query(folderID string) string {
	q := fmt.Sprintf("mimeType='%s' and trashed=false", constants.MimeTypePDF)
	if folderID = strings.TrimSpace(folderID); folderID != "" {
		q += fmt.Sprintf(" and '%s' in parents", strings.ReplaceAll(folderID, "'", `\'`))
	}
	return q
}

func (s *Source) ListPDFs(ctx context.Context, folderID string) ([]entity.SourceFile, error) {
	start := time.Now()
	var out []entity.SourceFile

	call := s.svc.Files.List().
		Q(Query(folderID)).
		Fields(googleapi.Field(listFields)).
		OrderBy("modifiedTime desc").
		PageSize(100).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true)

	err := call.Pages(ctx, func(page *gdrive.FileList) error {
		for _, f := range page.Files {
			sf := entity.SourceFile{
				ID:           f.Id,
				Name:         f.Name,
				ModifiedTime: f.ModifiedTime,
				MimeType:     f.MimeType,
			}
			if f.Size > 0 {
				size := f.Size
				sf.Size = &size
			}
			out = append(out, sf)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("source.drive.list_error", "folder_id", folderID, "error", err)
		return nil, fmt.Errorf("drive: list files: %w", err)
	}

	s.logger.Info("source.drive.list_ok",
		"folder_id", folderID,
		"files", len(out),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func (s *Source) Download(ctx context.Context, fileID string) ([]byte, error) {
	start := time.Now()
	resp, err := s.svc.Files.Get(fileID).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("drive: download %s: %w", fileID, err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			s.logger.Warn("source.drive.body_close_error", "file_id", fileID, "error", err)
		}
	}(resp.Body)

	b, err := io.ReadAll(io.LimitReader(resp.Body, constants.MaxPDFBytes+1))
	if err != nil {
		return nil, fmt.Errorf("drive: read %s: %w", fileID, err)
	}
	if len(b) > constants.MaxPDFBytes {
		return nil, fmt.Errorf("drive: %s exceeds %d bytes", fileID, constants.MaxPDFBytes)
	}

	s.logger.Info("source.drive.download_ok",
		"file_id", fileID,
		"bytes", len(b),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return b, nil
}

// Ping lists a single file to prove the credentials work.
func (s *Source) Ping(ctx context.Context) error {
	_, err := s.svc.Files.List().PageSize(1).Fields("files(id)").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("drive: ping: %w", err)
	}
	return nil
}

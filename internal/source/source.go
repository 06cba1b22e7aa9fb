// Package source defines where PDFs come from.
package source

import (
	"context"

	"github.com/joseph-ayodele/pdf-cost-reports/internal/entity"
)

// FileSource lists PDFs and downloads their bytes.
// ListPDFs follows pagination internally and returns every match.
type FileSource interface {
	ListPDFs(ctx context.Context, folderID string) ([]entity.SourceFile, error)
	Download(ctx context.Context, fileID string) ([]byte, error)
}

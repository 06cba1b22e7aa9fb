package llm

import (
	"context"

	"github.com/joseph-ayodele/pdf-cost-reports/internal/entity"
)

// ExtractRequest carries one downloaded PDF to a provider.
type ExtractRequest struct {
	Filename string
	PDF      []byte
}

// ExtractionResult is always well formed. When Success is false, Report holds
// the default report for the file and Err says why.
type ExtractionResult struct {
	Success bool
	Report  entity.ReportRecord
	Raw     []byte // model text as returned, for logging
	Err     error
}

// ReportExtractor is the interface the pipeline depends on.
type ReportExtractor interface {
	ExtractReport(ctx context.Context, req ExtractRequest) ExtractionResult
}

// Pinger is implemented by providers that can run a connectivity check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Package server exposes reports and runs over HTTP, MCP and gRPC health.
package server

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/pdf-cost-reports/internal/entity"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/export"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/report"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/repository"
)

// Runner starts ingestion runs on demand. *async.Scheduler implements it.
type Runner interface {
	RunNow(ctx context.Context, reason string) (entity.RunResult, bool)
	Last() (entity.RunResult, bool)
}

// Deps holds everything the handlers read from.
type Deps struct {
	Reports  report.Store
	Renderer *report.Renderer
	Catalog  repository.ReportRepository
	Exporter *export.Service
	Runner   Runner
	Logger   *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

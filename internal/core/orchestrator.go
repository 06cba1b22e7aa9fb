package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/pdf-cost-reports/constants"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/common"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/control"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/entity"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/llm"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/pdftext"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/report"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/repository"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/source"
)

// Deps are the collaborators of an Orchestrator. Catalog may be nil.
type Deps struct {
	Source    source.FileSource
	Extractor llm.ReportExtractor
	Control   control.Store
	Reports   report.Store
	Renderer  *report.Renderer
	Catalog   repository.ReportRepository
}

// Orchestrator runs one ingestion pass: list, diff, extract, persist, record.
type Orchestrator struct {
	deps   Deps
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

func NewOrchestrator(deps Deps, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		deps:   deps,
		logger: logger,
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
}

// fileOutcome is what processing one new file contributes to the run.
type fileOutcome struct {
	report *entity.ReportRecord
	err    error
}

// Run never returns an error: failures are reported through the result.
// Success is false only when the source could not be listed.
func (o *Orchestrator) Run(ctx context.Context, folderID string) entity.RunResult {
	runID := o.newID()
	ctx = common.WithRunID(ctx, runID)
	log := o.logger.With("run_id", runID)
	start := o.now()

	res := entity.RunResult{
		RunID:          runID,
		Success:        true,
		Status:         constants.RunStatusSuccess,
		ProcessedFiles: []string{},
		NewReports:     []entity.ReportRecord{},
		Errors:         []string{},
		StartedAt:      start.UTC(),
	}
	log.Info("orchestrator.run.start", "folder_id", folderID)

	candidates, err := o.deps.Source.ListPDFs(ctx, folderID)
	if err != nil {
		log.Error("orchestrator.list.failed", "error", err)
		res.Success = false
		res.Status = constants.RunStatusFailure
		res.Errors = append(res.Errors, "Error general: "+fmt.Errorf("%w: %w", common.ErrListing, err).Error())
		return o.finish(log, res)
	}

	state := o.deps.Control.Load(ctx)
	pending := control.ComputeNewFiles(candidates, state)
	log.Info("orchestrator.diff",
		"candidates", len(candidates),
		"known", len(state.Processed),
		"new", len(pending),
	)
	if len(pending) == 0 {
		return o.finish(log, res)
	}

	attempted := make([]entity.SourceFile, 0, len(pending))
	for _, f := range pending {
		if ctx.Err() != nil {
			break
		}
		out := o.processFile(ctx, log, f)
		if out.err != nil && ctx.Err() != nil {
			// cut short by cancellation, not a failure of the file itself
			break
		}
		attempted = append(attempted, f)
		if out.err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("Error processing %s: %v", f.Name, out.err))
			continue
		}
		res.ProcessedFiles = append(res.ProcessedFiles, f.Name)
		res.NewReports = append(res.NewReports, *out.report)
	}
	if skipped := len(pending) - len(attempted); skipped > 0 {
		log.Warn("orchestrator.run.interrupted", "error", ctx.Err(), "attempted", len(attempted), "skipped", skipped)
		res.Errors = append(res.Errors, fmt.Sprintf("Run interrupted: %v (%d files left for the next run)", ctx.Err(), skipped))
	}
	if len(res.Errors) > 0 {
		res.Status = constants.RunStatusPartialFailure
	}
	if len(attempted) == 0 {
		return o.finish(log, res)
	}

	// persist what was attempted even when the run context is gone
	persistCtx := context.WithoutCancel(ctx)
	next := control.MarkAttempted(state, attempted, o.now())
	if err := o.deps.Control.Save(persistCtx, next); err != nil {
		// files are re-attempted next run; nothing else to do
		log.Error("orchestrator.control.save_failed", "error", err)
	}
	if err := o.RefreshIndex(persistCtx); err != nil {
		log.Error("orchestrator.index.failed", "error", err)
	}
	return o.finish(log, res)
}

func (o *Orchestrator) finish(log *slog.Logger, res entity.RunResult) entity.RunResult {
	res.FinishedAt = o.now().UTC()
	log.Info("orchestrator.run.done",
		"status", res.Status,
		"success", res.Success,
		"processed", len(res.ProcessedFiles),
		"errors", len(res.Errors),
		"elapsed_ms", res.FinishedAt.Sub(res.StartedAt).Milliseconds(),
	)
	return res
}

func (o *Orchestrator) processFile(ctx context.Context, log *slog.Logger, f entity.SourceFile) fileOutcome {
	start := o.now()
	log = log.With("file_id", f.ID, "file_name", f.Name)
	log.Info("orchestrator.file.start", "modified_time", f.ModifiedTime)

	data, err := o.deps.Source.Download(ctx, f.ID)
	if err != nil {
		log.Error("orchestrator.file.download_failed", "error", err)
		return fileOutcome{err: common.WrapError(err, "download")}
	}
	if !pdftext.LooksLikePDF(data) {
		log.Warn("orchestrator.file.not_pdf_header", "bytes", len(data))
	}

	ext := o.deps.Extractor.ExtractReport(ctx, llm.ExtractRequest{Filename: f.Name, PDF: data})
	if !ext.Success {
		log.Error("orchestrator.file.extract_failed", "error", ext.Err, "raw_bytes", len(ext.Raw))
		cause := ext.Err
		if cause == nil {
			cause = errors.New("extraction failed")
		}
		return fileOutcome{err: cause}
	}

	// the extraction is paid for; finish storing it even if the run is cancelled now
	ctx = context.WithoutCancel(ctx)

	// page first, document second: a stored document means the report is complete
	rep := o.finalizeReport(ext.Report, f)
	pagePath, err := o.deps.Renderer.RenderReport(rep)
	if err != nil {
		log.Error("orchestrator.file.render_failed", "error", err)
		return fileOutcome{err: common.WrapError(err, "render")}
	}
	docPath, err := o.deps.Reports.Save(ctx, rep)
	if err != nil {
		log.Error("orchestrator.file.save_failed", "error", err)
		o.discard(ctx, log, rep)
		return fileOutcome{err: common.WrapError(err, "save report")}
	}
	if o.deps.Catalog != nil {
		entry := repository.CatalogEntry{Report: rep, DocumentPath: docPath, PagePath: pagePath}
		if err := o.deps.Catalog.Upsert(ctx, entry); err != nil {
			log.Error("orchestrator.file.catalog_failed", "error", err)
			o.discard(ctx, log, rep)
			return fileOutcome{err: common.WrapError(err, "catalog")}
		}
	}

	log.Info("orchestrator.file.ok",
		"report_id", rep.ID,
		"items", len(rep.Items),
		"total", rep.TotalCost.String(),
		"currency", rep.Currency,
		"elapsed_ms", o.now().Sub(start).Milliseconds(),
	)
	return fileOutcome{report: &rep}
}

// discard removes whatever was written for rep before a later step failed.
func (o *Orchestrator) discard(ctx context.Context, log *slog.Logger, rep entity.ReportRecord) {
	if err := o.deps.Reports.Delete(ctx, rep.ID); err != nil {
		log.Warn("orchestrator.file.discard_document_failed", "report_id", rep.ID, "error", err)
	}
	if err := o.deps.Renderer.RemoveReport(rep); err != nil {
		log.Warn("orchestrator.file.discard_page_failed", "report_id", rep.ID, "error", err)
	}
}

// finalizeReport stamps the fields the pipeline owns onto an extracted report.
func (o *Orchestrator) finalizeReport(rep entity.ReportRecord, f entity.SourceFile) entity.ReportRecord {
	rep.ID = o.newID()
	if rep.GeneratedAt.IsZero() {
		rep.GeneratedAt = o.now().UTC()
	}
	rep.SourcePDF = f.Name
	if strings.TrimSpace(rep.Currency) == "" {
		rep.Currency = constants.DefaultCurrency
	}
	if strings.TrimSpace(rep.Name) == "" {
		rep.Name = "Report for " + f.Name
	}
	if rep.Items == nil {
		rep.Items = []entity.CostItem{}
	}
	return rep
}

// RefreshIndex rewrites the listing page from every stored report.
func (o *Orchestrator) RefreshIndex(ctx context.Context) error {
	all, err := o.deps.Reports.List(ctx)
	if err != nil {
		return fmt.Errorf("list reports: %w", err)
	}
	_, err = o.deps.Renderer.RenderIndex(all)
	return err
}

// Reindex rebuilds the catalog from the stored report documents.
func (o *Orchestrator) Reindex(ctx context.Context) (int, error) {
	if o.deps.Catalog == nil {
		return 0, nil
	}
	all, err := o.deps.Reports.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list reports: %w", err)
	}
	n := 0
	for _, rep := range all {
		entry := repository.CatalogEntry{
			Report:   rep,
			PagePath: filepath.Join(o.deps.Renderer.Dir(), report.PageFileName(rep)),
		}
		if err := o.deps.Catalog.Upsert(ctx, entry); err != nil {
			return n, err
		}
		n++
	}
	o.logger.Info("orchestrator.reindex.ok", "reports", n)
	return n, nil
}

// ResetSummary says what Reset removed.
type ResetSummary struct {
	Reports int
	Pages   int
	Catalog int64
}

// Reset deletes generated reports and pages, clears the catalog and control
// state, and writes an empty index. The next run reprocesses every file.
func (o *Orchestrator) Reset(ctx context.Context) (ResetSummary, error) {
	var sum ResetSummary
	var err error

	if sum.Reports, err = o.deps.Reports.Clear(ctx); err != nil {
		return sum, fmt.Errorf("clear reports: %w", err)
	}
	if sum.Pages, err = o.deps.Renderer.Clear(); err != nil {
		return sum, fmt.Errorf("clear pages: %w", err)
	}
	if o.deps.Catalog != nil {
		if sum.Catalog, err = o.deps.Catalog.DeleteAll(ctx); err != nil {
			return sum, err
		}
	}
	if err := o.deps.Control.Reset(ctx); err != nil {
		return sum, fmt.Errorf("reset control state: %w", err)
	}
	if _, err := o.deps.Renderer.RenderIndex(nil); err != nil {
		return sum, err
	}
	o.logger.Info("orchestrator.reset.ok",
		"reports", sum.Reports, "pages", sum.Pages, "catalog_rows", sum.Catalog)
	return sum, nil
}

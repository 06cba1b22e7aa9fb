package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/pdf-cost-reports/constants"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/control"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/entity"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/llm"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/report"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/repository"
)

var pdfBytes = []byte("%PDF-1.4\n%test\n")

type fakeSource struct {
	files         []entity.SourceFile
	listErr       error
	downloadErr   map[string]error
	downloads     []string
	afterList     func()
	afterDownload func(id string)
}

func (f *fakeSource) ListPDFs(_ context.Context, _ string) ([]entity.SourceFile, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if f.afterList != nil {
		f.afterList()
	}
	return f.files, nil
}

func (f *fakeSource) Download(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.downloads = append(f.downloads, id)
	if err := f.downloadErr[id]; err != nil {
		return nil, err
	}
	if f.afterDownload != nil {
		f.afterDownload(id)
	}
	return pdfBytes, nil
}

type failingCatalog struct {
	repository.ReportRepository
}

func (failingCatalog) Upsert(context.Context, repository.CatalogEntry) error {
	return errors.New("catalog offline")
}

type fakeExtractor struct {
	mu    sync.Mutex
	fail  map[string]error
	calls []string
}

func (f *fakeExtractor) ExtractReport(_ context.Context, req llm.ExtractRequest) llm.ExtractionResult {
	f.mu.Lock()
	f.calls = append(f.calls, req.Filename)
	f.mu.Unlock()

	now := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)
	if err := f.fail[req.Filename]; err != nil {
		return llm.Failure(req.Filename, []byte("garbage"), err, now)
	}
	return llm.ExtractionResult{
		Success: true,
		Report: entity.ReportRecord{
			Name:      "Costs in " + req.Filename,
			TotalCost: decimal.RequireFromString("12.50"),
			Items: []entity.CostItem{
				{Description: "Widget", Cost: decimal.RequireFromString("12.50"), Category: "Materials"},
			},
		},
	}
}

type harness struct {
	src       *fakeSource
	ext       *fakeExtractor
	ctl       control.Store
	reports   report.Store
	renderDir string
	catalog   repository.ReportRepository
	orch      *Orchestrator
}

func newHarness(t *testing.T, files ...entity.SourceFile) *harness {
	t.Helper()
	dir := t.TempDir()

	renderer, err := report.NewRenderer(filepath.Join(dir, "web"), nil)
	require.NoError(t, err)
	db, err := repository.Open(context.Background(), repository.Config{SQLitePath: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	h := &harness{
		src:       &fakeSource{files: files, downloadErr: map[string]error{}},
		ext:       &fakeExtractor{fail: map[string]error{}},
		ctl:       control.NewFileStore(filepath.Join(dir, "control.json"), nil),
		reports:   report.NewFileStore(filepath.Join(dir, "reports"), nil),
		renderDir: filepath.Join(dir, "web"),
		catalog:   repository.NewReportRepository(db, nil),
	}
	h.orch = NewOrchestrator(Deps{
		Source:    h.src,
		Extractor: h.ext,
		Control:   h.ctl,
		Reports:   h.reports,
		Renderer:  renderer,
		Catalog:   h.catalog,
	}, nil)
	return h
}

func file(id, name, mod string) entity.SourceFile {
	return entity.SourceFile{ID: id, Name: name, ModifiedTime: mod, MimeType: constants.MimeTypePDF}
}

func TestRun_SingleNewFile(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, file("1", "a.pdf", "2024-01-01T00:00:00Z"))

	res := h.orch.Run(ctx, "")
	assert.True(t, res.Success)
	assert.Equal(t, constants.RunStatusSuccess, res.Status)
	assert.Equal(t, []string{"a.pdf"}, res.ProcessedFiles)
	assert.Empty(t, res.Errors)
	require.Len(t, res.NewReports, 1)
	assert.NotEmpty(t, res.RunID)

	rep := res.NewReports[0]
	assert.Equal(t, "a.pdf", rep.SourcePDF)
	assert.Equal(t, "USD", rep.Currency)
	assert.Len(t, rep.ID, 36)
	assert.False(t, rep.GeneratedAt.IsZero())

	stored, err := h.reports.Load(ctx, rep.ID)
	require.NoError(t, err)
	assert.Equal(t, rep.Name, stored.Name)
	assert.True(t, rep.TotalCost.Equal(stored.TotalCost))

	_, err = os.Stat(filepath.Join(h.renderDir, report.PageFileName(rep)))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(h.renderDir, report.IndexFileName))
	assert.NoError(t, err)

	row, err := h.catalog.Get(ctx, rep.ID)
	require.NoError(t, err)
	assert.Equal(t, "a.pdf", row.Report.SourcePDF)

	state := h.ctl.Load(ctx)
	require.Len(t, state.Processed, 1)
	assert.Equal(t, entity.ProcessedFileRecord{Name: "a.pdf", ModifiedTime: "2024-01-01T00:00:00Z", ID: "1"}, state.Processed[0])
}

func TestRun_AlreadyProcessedIsSkipped(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, file("1", "a.pdf", "2024-01-01T00:00:00Z"))
	require.NoError(t, h.ctl.Save(ctx, entity.ControlState{
		Processed:   []entity.ProcessedFileRecord{{Name: "a.pdf", ModifiedTime: "2024-01-01T00:00:00Z", ID: "1"}},
		LastUpdated: "2024-01-02T00:00:00Z",
	}))

	res := h.orch.Run(ctx, "")
	assert.True(t, res.Success)
	assert.Empty(t, res.ProcessedFiles)
	assert.Empty(t, h.src.downloads)
	assert.Empty(t, h.ext.calls)
}

func TestRun_SecondRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t,
		file("1", "a.pdf", "2024-01-01T00:00:00Z"),
		file("2", "b.pdf", "2024-01-02T00:00:00Z"),
	)

	first := h.orch.Run(ctx, "")
	require.Len(t, first.ProcessedFiles, 2)

	ctlPath := h.ctl.Path()
	before, err := os.ReadFile(ctlPath)
	require.NoError(t, err)
	indexPath := filepath.Join(h.renderDir, report.IndexFileName)
	require.NoError(t, os.Remove(indexPath))

	second := h.orch.Run(ctx, "")
	assert.True(t, second.Success)
	assert.Empty(t, second.ProcessedFiles)
	assert.Empty(t, second.NewReports)

	after, err := os.ReadFile(ctlPath)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))

	_, err = os.Stat(indexPath)
	assert.True(t, os.IsNotExist(err), "index must not be regenerated on an empty diff")
	assert.Len(t, h.ext.calls, 2)
}

func TestRun_ListingFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.src.listErr = errors.New("drive unavailable")

	res := h.orch.Run(ctx, "folder")
	assert.False(t, res.Success)
	assert.Equal(t, constants.RunStatusFailure, res.Status)
	require.Len(t, res.Errors, 1)
	assert.Regexp(t, `^Error general: .*drive unavailable$`, res.Errors[0])
	assert.Empty(t, res.ProcessedFiles)
	assert.Empty(t, res.NewReports)

	_, err := os.Stat(h.ctl.Path())
	assert.True(t, os.IsNotExist(err), "nothing is persisted on listing failure")
}

func TestRun_PerFileFailuresContinue(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t,
		file("1", "good.pdf", "2024-01-01T00:00:00Z"),
		file("2", "bad.pdf", "2024-01-01T00:00:00Z"),
		file("3", "gone.pdf", "2024-01-01T00:00:00Z"),
	)
	h.ext.fail["bad.pdf"] = errors.New("no JSON object in model response")
	h.src.downloadErr["3"] = errors.New("404")

	res := h.orch.Run(ctx, "")
	assert.True(t, res.Success)
	assert.Equal(t, constants.RunStatusPartialFailure, res.Status)
	assert.Equal(t, []string{"good.pdf"}, res.ProcessedFiles)
	require.Len(t, res.NewReports, 1)
	assert.Equal(t, []string{
		"Error processing bad.pdf: no JSON object in model response",
		"Error processing gone.pdf: download: 404",
	}, res.Errors)

	// extraction is not attempted when the download fails
	assert.Equal(t, []string{"good.pdf", "bad.pdf"}, h.ext.calls)

	// every attempted file is recorded, failed or not
	state := h.ctl.Load(ctx)
	assert.Len(t, state.Processed, 3)

	all, err := h.reports.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRun_UpdatedFileIsReprocessed(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, file("1", "a.pdf", "2024-01-01T00:00:00Z"))
	require.Len(t, h.orch.Run(ctx, "").ProcessedFiles, 1)

	h.src.files = []entity.SourceFile{file("1", "a.pdf", "2024-02-01T00:00:00Z")}
	res := h.orch.Run(ctx, "")
	assert.Equal(t, []string{"a.pdf"}, res.ProcessedFiles)

	state := h.ctl.Load(ctx)
	assert.Len(t, state.Processed, 2)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, file("1", "a.pdf", "2024-01-01T00:00:00Z"))
	require.True(t, h.orch.Run(ctx, "").Success)

	sum, err := h.orch.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Reports)
	assert.Equal(t, 1, sum.Pages)
	assert.EqualValues(t, 1, sum.Catalog)

	assert.Empty(t, h.ctl.Load(ctx).Processed)
	_, err = os.Stat(filepath.Join(h.renderDir, report.IndexFileName))
	assert.NoError(t, err)

	res := h.orch.Run(ctx, "")
	assert.Equal(t, []string{"a.pdf"}, res.ProcessedFiles)
}

func TestReindex(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, file("1", "a.pdf", "2024-01-01T00:00:00Z"))
	res := h.orch.Run(ctx, "")
	require.Len(t, res.NewReports, 1)

	_, err := h.catalog.DeleteAll(ctx)
	require.NoError(t, err)

	n, err := h.orch.Reindex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	row, err := h.catalog.Get(ctx, res.NewReports[0].ID)
	require.NoError(t, err)
	assert.Contains(t, row.PagePath, report.PageFileName(res.NewReports[0]))
}

func TestRun_CancelledBeforeFirstFileRecordsNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := newHarness(t,
		file("1", "a.pdf", "2024-01-01T00:00:00Z"),
		file("2", "b.pdf", "2024-01-01T00:00:00Z"),
	)
	h.src.afterList = cancel

	res := h.orch.Run(ctx, "")
	assert.True(t, res.Success)
	assert.Equal(t, constants.RunStatusPartialFailure, res.Status)
	assert.Empty(t, res.ProcessedFiles)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "Run interrupted: context canceled")
	assert.Empty(t, h.ext.calls)

	_, err := os.Stat(h.ctl.Path())
	assert.True(t, os.IsNotExist(err), "control state is untouched when nothing was attempted")

	h.src.afterList = nil
	next := h.orch.Run(context.Background(), "")
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, next.ProcessedFiles)
}

func TestRun_CancelledMidRunKeepsRemainingFilesPending(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := newHarness(t,
		file("1", "a.pdf", "2024-01-01T00:00:00Z"),
		file("2", "b.pdf", "2024-01-01T00:00:00Z"),
		file("3", "c.pdf", "2024-01-01T00:00:00Z"),
	)
	h.src.afterDownload = func(id string) {
		if id == "1" {
			cancel()
		}
	}

	res := h.orch.Run(ctx, "")
	assert.Equal(t, []string{"a.pdf"}, res.ProcessedFiles)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "2 files left for the next run")

	state := h.ctl.Load(context.Background())
	require.Len(t, state.Processed, 1)
	assert.Equal(t, "a.pdf", state.Processed[0].Name)

	h.src.afterDownload = nil
	next := h.orch.Run(context.Background(), "")
	assert.Equal(t, []string{"b.pdf", "c.pdf"}, next.ProcessedFiles)
	assert.Empty(t, next.Errors)
}

func TestRun_RenderFailureStoresNoReport(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, file("1", "a.pdf", "2024-01-01T00:00:00Z"))
	require.NoError(t, os.WriteFile(h.renderDir, []byte("not a directory"), 0o644))

	res := h.orch.Run(ctx, "")
	assert.Empty(t, res.ProcessedFiles)
	assert.Empty(t, res.NewReports)
	require.Len(t, res.Errors, 1)
	assert.Regexp(t, `^Error processing a\.pdf: render: `, res.Errors[0])

	all, err := h.reports.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Len(t, h.ctl.Load(ctx).Processed, 1)
}

func TestRun_CatalogFailureDiscardsDocumentAndPage(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, file("1", "a.pdf", "2024-01-01T00:00:00Z"))
	h.orch.deps.Catalog = failingCatalog{}

	res := h.orch.Run(ctx, "")
	assert.Empty(t, res.ProcessedFiles)
	assert.Equal(t, []string{"Error processing a.pdf: catalog: catalog offline"}, res.Errors)

	all, err := h.reports.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	pages, err := filepath.Glob(filepath.Join(h.renderDir, "Report_*.html"))
	require.NoError(t, err)
	assert.Empty(t, pages)
}

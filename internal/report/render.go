package report

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/pdf-cost-reports/internal/entity"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/utils"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const (
	IndexFileName = "index.html"
	pagePrefix    = "Report_"
)

// PageFileName is the rendered file name for a report: Report_<safe-name>_<id>.html.
func PageFileName(r entity.ReportRecord) string {
	return pagePrefix + utils.SafeName(r.Name) + "_" + r.ID + ".html"
}

// IndexEntry is one report on the listing page.
type IndexEntry struct {
	Report entity.ReportRecord
	Href   string
}

type pageData struct {
	Report    entity.ReportRecord
	IndexHref string
}

type indexData struct {
	Entries   []IndexEntry
	UpdatedAt time.Time
}

// Renderer turns reports into static HTML pages plus an index.
type Renderer struct {
	dir    string
	tmpl   *template.Template
	now    func() time.Time
	logger *slog.Logger
}

func NewRenderer(dir string, logger *slog.Logger) (*Renderer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	tmpl, err := template.New("reports").Funcs(template.FuncMap{
		"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
		"date":  func(t time.Time) string { return t.UTC().Format("2006-01-02 15:04 MST") },
	}).ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{dir: dir, tmpl: tmpl, now: time.Now, logger: logger}, nil
}

func (r *Renderer) Dir() string { return r.dir }

// WriteReport renders one report page to w.
func (r *Renderer) WriteReport(w io.Writer, rep entity.ReportRecord, indexHref string) error {
	return r.tmpl.ExecuteTemplate(w, "report", pageData{Report: rep, IndexHref: indexHref})
}

// WriteIndex renders the listing page to w.
func (r *Renderer) WriteIndex(w io.Writer, entries []IndexEntry) error {
	return r.tmpl.ExecuteTemplate(w, "index", indexData{Entries: entries, UpdatedAt: r.now()})
}

// RenderReport writes the static page for rep and returns its path.
func (r *Renderer) RenderReport(rep entity.ReportRecord) (string, error) {
	var buf bytes.Buffer
	if err := r.WriteReport(&buf, rep, IndexFileName); err != nil {
		return "", fmt.Errorf("render report %s: %w", rep.ID, err)
	}
	p := filepath.Join(r.dir, PageFileName(rep))
	if err := utils.WriteFileAtomic(p, buf.Bytes()); err != nil {
		return "", fmt.Errorf("write report page %s: %w", rep.ID, err)
	}
	r.logger.Info("report.render.ok", "report_id", rep.ID, "path", p)
	return p, nil
}

// RemoveReport deletes the page RenderReport wrote for rep, if any.
func (r *Renderer) RemoveReport(rep entity.ReportRecord) error {
	p := filepath.Join(r.dir, PageFileName(rep))
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove report page %s: %w", rep.ID, err)
	}
	return nil
}

// RenderIndex rewrites index.html from the given reports.
func (r *Renderer) RenderIndex(reports []entity.ReportRecord) (string, error) {
	entries := make([]IndexEntry, 0, len(reports))
	for _, rep := range reports {
		entries = append(entries, IndexEntry{Report: rep, Href: PageFileName(rep)})
	}
	var buf bytes.Buffer
	if err := r.WriteIndex(&buf, entries); err != nil {
		return "", fmt.Errorf("render index: %w", err)
	}
	p := filepath.Join(r.dir, IndexFileName)
	if err := utils.WriteFileAtomic(p, buf.Bytes()); err != nil {
		return "", fmt.Errorf("write index: %w", err)
	}
	r.logger.Info("report.index.ok", "path", p, "reports", len(reports))
	return p, nil
}

// Clear removes every rendered report page. The index is left for RenderIndex to rewrite.
func (r *Renderer) Clear() (int, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("list pages: %w", err)
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), pagePrefix) || !strings.HasSuffix(e.Name(), ".html") {
			continue
		}
		if err := os.Remove(filepath.Join(r.dir, e.Name())); err != nil {
			return n, fmt.Errorf("remove %s: %w", e.Name(), err)
		}
		n++
	}
	r.logger.Info("report.render.clear_ok", "dir", r.dir, "removed", n)
	return n, nil
}

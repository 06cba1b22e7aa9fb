package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/joseph-ayodele/pdf-cost-reports/internal/common"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/entity"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/report"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/repository"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// NewRouter returns the daemon's HTTP handler, including the MCP endpoint.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(deps))

	r.Get("/healthz", handleHealth(deps))

	r.Get("/reports", handleReportIndex(deps))
	r.Get("/reports/{id}", handleReportPage(deps))

	r.Route("/api", func(r chi.Router) {
		r.Get("/reports", handleListReports(deps))
		r.Get("/reports/{id}", handleGetReport(deps))
		r.Get("/export.xlsx", handleExport(deps))
		r.Post("/runs", handleRun(deps))
	})

	r.Handle("/mcp", mcpserver.NewStreamableHTTPServer(NewMCPServer(deps)))
	return r
}

func requestLogger(deps Deps) func(http.Handler) http.Handler {
	log := deps.logger()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			rid := middleware.GetReqID(r.Context())
			ctx := common.WithRequestID(r.Context(), rid)
			next.ServeHTTP(ww, r.WithContext(ctx))
			log.Info("http.request",
				"req_id", rid,
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{"status": "ok"}
		if deps.Runner != nil {
			if last, ok := deps.Runner.Last(); ok {
				body["lastRun"] = map[string]any{
					"runId":      last.RunID,
					"status":     last.Status,
					"success":    last.Success,
					"finishedAt": last.FinishedAt,
					"processed":  len(last.ProcessedFiles),
					"errors":     len(last.Errors),
				}
			}
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func handleReportIndex(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := deps.Reports.List(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list reports: %v", err)
			return
		}
		entries := make([]report.IndexEntry, 0, len(all))
		for _, rep := range all {
			entries = append(entries, report.IndexEntry{Report: rep, Href: "/reports/" + rep.ID})
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := deps.Renderer.WriteIndex(w, entries); err != nil {
			deps.logger().Error("http.render.index_failed", "error", err)
		}
	}
}

func handleReportPage(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, ok := loadReport(w, r, deps)
		if !ok {
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := deps.Renderer.WriteReport(w, rep, "/reports"); err != nil {
			deps.logger().Error("http.render.report_failed", "report_id", rep.ID, "error", err)
		}
	}
}

func handleGetReport(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, ok := loadReport(w, r, deps)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, rep)
	}
}

func loadReport(w http.ResponseWriter, r *http.Request, deps Deps) (entity.ReportRecord, bool) {
	id := chi.URLParam(r, "id")
	rep, err := deps.Reports.Load(r.Context(), id)
	switch {
	case err == nil:
		return rep, true
	case errors.Is(err, common.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found", "report %s not found", id)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "failed to load report: %v", err)
	}
	return entity.ReportRecord{}, false
}

func parseListFilter(r *http.Request) (repository.ListFilter, error) {
	q := r.URL.Query()
	f := repository.ListFilter{Currency: q.Get("currency")}
	if s := q.Get("since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			if t, err = time.Parse("2006-01-02", s); err != nil {
				return f, fmt.Errorf("since must be RFC 3339 or YYYY-MM-DD")
			}
		}
		f.Since = &t
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return f, fmt.Errorf("limit must be a non-negative integer")
		}
		f.Limit = n
	}
	return f, nil
}

func handleListReports(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := parseListFilter(r)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		rows, err := deps.Catalog.List(r.Context(), f)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list reports: %v", err)
			return
		}
		out := make([]entity.ReportRecord, 0, len(rows))
		for _, row := range rows {
			out = append(out, row.Report)
		}
		writeJSON(w, http.StatusOK, map[string]any{"reports": out, "count": len(out)})
	}
}

func handleExport(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := parseListFilter(r)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		buf, err := deps.Exporter.ExportReportsXLSX(r.Context(), f)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "export failed: %v", err)
			return
		}
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", `attachment; filename="cost-reports.xlsx"`)
		_, _ = w.Write(buf)
	}
}

func handleRun(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Runner == nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "runs are not enabled")
			return
		}
		res, ran := deps.Runner.RunNow(context.WithoutCancel(r.Context()), "http")
		if !ran {
			httpError(w, http.StatusConflict, "conflict", "%v", common.ErrRunInProgress)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

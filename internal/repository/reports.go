package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/pdf-cost-reports/internal/common"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/entity"
)

const reportsTable = "reports"

// sortable: fixed width so string order is time order
const tsLayout = "2006-01-02T15:04:05.000000000Z"

var reportColumns = []string{
	"id", "name", "generated_at", "total_cost", "currency", "item_count",
	"items_json", "source_pdf", "summary", "document_path", "page_path", "indexed_at",
}

// CatalogEntry is a report row plus where its artifacts live on disk.
type CatalogEntry struct {
	Report       entity.ReportRecord
	DocumentPath string
	PagePath     string
	IndexedAt    time.Time
}

type ListFilter struct {
	Currency string
	Since    *time.Time
	Limit    int
}

// ReportRepository indexes saved reports for querying and export.
type ReportRepository interface {
	Upsert(ctx context.Context, e CatalogEntry) error
	Get(ctx context.Context, id string) (*CatalogEntry, error)
	List(ctx context.Context, f ListFilter) ([]CatalogEntry, error)
	Count(ctx context.Context) (int, error)
	DeleteAll(ctx context.Context) (int64, error)
}

type reportRepository struct {
	db     *DB
	logger *slog.Logger
	now    func() time.Time
}

func NewReportRepository(db *DB, logger *slog.Logger) ReportRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &reportRepository{db: db, logger: logger, now: time.Now}
}

func (r *reportRepository) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.db.Dialect())
}

func (r *reportRepository) Upsert(ctx context.Context, e CatalogEntry) error {
	rep := e.Report
	if strings.TrimSpace(rep.ID) == "" {
		return common.NewAppError("INVALID_INPUT", "report id is required", common.ErrInvalidInput)
	}
	items := rep.Items
	if items == nil {
		items = []entity.CostItem{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}
	indexed := e.IndexedAt
	if indexed.IsZero() {
		indexed = r.now()
	}

	query, args := r.builder().Insert(reportsTable).
		Columns(reportColumns...).
		Values(
			rep.ID, rep.Name, rep.GeneratedAt.UTC().Format(tsLayout), rep.TotalCost.String(), rep.Currency,
			len(items), string(itemsJSON), rep.SourcePDF, rep.Summary, e.DocumentPath, e.PagePath,
			indexed.UTC().Format(tsLayout),
		).
		OnConflict(entsql.ConflictColumns("id"), entsql.ResolveWithNewValues()).
		Query()

	if err := r.db.drv.Exec(ctx, query, args, nil); err != nil {
		r.logger.Error("catalog.upsert.failed", "report_id", rep.ID, "error", err)
		return dbError("failed to upsert report", err)
	}
	r.logger.Debug("catalog.upsert.ok", "report_id", rep.ID, "items", len(items))
	return nil
}

func (r *reportRepository) Get(ctx context.Context, id string) (*CatalogEntry, error) {
	query, args := r.builder().Select(reportColumns...).
		From(entsql.Table(reportsTable)).
		Where(entsql.EQ("id", id)).
		Query()

	out, err := r.query(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, common.NewAppError("NOT_FOUND", fmt.Sprintf("report %s not found", id), common.ErrNotFound)
	}
	return &out[0], nil
}

// List returns catalog rows newest first.
func (r *reportRepository) List(ctx context.Context, f ListFilter) ([]CatalogEntry, error) {
	sel := r.builder().Select(reportColumns...).From(entsql.Table(reportsTable))

	var preds []*entsql.Predicate
	if c := strings.ToUpper(strings.TrimSpace(f.Currency)); c != "" {
		preds = append(preds, entsql.EQ("currency", c))
	}
	if f.Since != nil {
		preds = append(preds, entsql.GTE("generated_at", f.Since.UTC().Format(tsLayout)))
	}
	if len(preds) > 0 {
		sel.Where(entsql.And(preds...))
	}
	sel.OrderBy(entsql.Desc("generated_at"), entsql.Asc("id"))
	if f.Limit > 0 {
		sel.Limit(f.Limit)
	}

	query, args := sel.Query()
	return r.query(ctx, query, args)
}

func (r *reportRepository) Count(ctx context.Context) (int, error) {
	query, args := r.builder().Select(entsql.Count("*")).From(entsql.Table(reportsTable)).Query()

	var rows entsql.Rows
	if err := r.db.drv.Query(ctx, query, args, &rows); err != nil {
		return 0, dbError("failed to count reports", err)
	}
	defer rows.Close()

	n := 0
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, dbError("failed to scan count", err)
		}
	}
	return n, rows.Err()
}

// DeleteAll clears the catalog and reports how many rows went.
func (r *reportRepository) DeleteAll(ctx context.Context) (int64, error) {
	query, args := r.builder().Delete(reportsTable).Query()

	var res sql.Result
	if err := r.db.drv.Exec(ctx, query, args, &res); err != nil {
		return 0, dbError("failed to clear catalog", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, dbError("failed to read affected rows", err)
	}
	r.logger.Info("catalog.cleared", "rows", n)
	return n, nil
}

func (r *reportRepository) query(ctx context.Context, query string, args []any) ([]CatalogEntry, error) {
	var rows entsql.Rows
	if err := r.db.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, dbError("failed to query reports", err)
	}
	defer rows.Close()

	var out []CatalogEntry
	for rows.Next() {
		var (
			e                    CatalogEntry
			generatedAt, total   string
			itemCount            int
			itemsJSON, indexedAt string
		)
		if err := rows.Scan(
			&e.Report.ID, &e.Report.Name, &generatedAt, &total, &e.Report.Currency, &itemCount,
			&itemsJSON, &e.Report.SourcePDF, &e.Report.Summary, &e.DocumentPath, &e.PagePath, &indexedAt,
		); err != nil {
			return nil, dbError("failed to scan report row", err)
		}
		if t, err := time.Parse(tsLayout, generatedAt); err == nil {
			e.Report.GeneratedAt = t
		}
		if t, err := time.Parse(tsLayout, indexedAt); err == nil {
			e.IndexedAt = t
		}
		d, err := decimal.NewFromString(total)
		if err != nil {
			r.logger.Warn("catalog.row.bad_total", "report_id", e.Report.ID, "value", total)
		}
		e.Report.TotalCost = d
		if err := json.Unmarshal([]byte(itemsJSON), &e.Report.Items); err != nil {
			r.logger.Warn("catalog.row.bad_items", "report_id", e.Report.ID, "error", err)
		}
		if len(e.Report.Items) != itemCount {
			r.logger.Warn("catalog.row.item_count_mismatch", "report_id", e.Report.ID,
				"stored", itemCount, "decoded", len(e.Report.Items))
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("failed to iterate reports", err)
	}
	return out, nil
}

func dbError(msg string, err error) error {
	return common.NewAppError("DATABASE_ERROR", msg, fmt.Errorf("%w: %w", common.ErrDatabase, err))
}

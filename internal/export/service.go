package export

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/pdf-cost-reports/constants"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/entity"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/repository"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/utils"
)

const (
	SheetReports = "Reports"
	SheetItems   = "Items"
	SheetSummary = "Summary"
)

// Service produces XLSX bytes from the report catalog.
type Service struct {
	repo   repository.ReportRepository
	logger *slog.Logger
}

func NewService(repo repository.ReportRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// ExportReportsXLSX returns a workbook for every catalog row matching f.
func (s *Service) ExportReportsXLSX(ctx context.Context, f repository.ListFilter) ([]byte, error) {
	start := time.Now()

	rows, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	reports := make([]entity.ReportRecord, 0, len(rows))
	for _, r := range rows {
		reports = append(reports, r.Report)
	}

	buf, err := BuildWorkbook(reports)
	if err != nil {
		return nil, err
	}
	s.logger.Info("export.xlsx.ok",
		"reports", len(reports),
		"bytes", len(buf),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf, nil
}

// BuildWorkbook writes three sheets: one row per report, one row per item,
// and item totals per currency and canonical category.
func BuildWorkbook(reports []entity.ReportRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetReports); err != nil {
		return nil, err
	}
	for _, name := range []string{SheetItems, SheetSummary} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}
	idx, _ := f.GetSheetIndex(SheetReports)
	f.SetActiveSheet(idx)

	if err := writeReports(f, reports); err != nil {
		return nil, err
	}
	if err := writeItems(f, reports); err != nil {
		return nil, err
	}
	if err := writeSummary(f, reports); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func writeReports(f *excelize.File, reports []entity.ReportRecord) error {
	if err := writeRow(f, SheetReports, 1,
		"Report ID", "Name", "Generated At", "Currency", "Total Cost", "Items", "Source PDF", "Summary",
	); err != nil {
		return err
	}
	for i, r := range reports {
		if err := writeRow(f, SheetReports, i+2,
			r.ID,
			r.Name,
			r.GeneratedAt.UTC().Format(time.RFC3339),
			r.Currency,
			r.TotalCost.InexactFloat64(),
			len(r.Items),
			r.SourcePDF,
			utils.Truncate(r.Summary, 200),
		); err != nil {
			return err
		}
	}

	_ = f.SetColWidth(SheetReports, "A", "A", 38) // id
	_ = f.SetColWidth(SheetReports, "B", "B", 36)
	_ = f.SetColWidth(SheetReports, "C", "C", 22)
	_ = f.SetColWidth(SheetReports, "E", "E", 14)
	_ = f.SetColWidth(SheetReports, "G", "G", 40)
	_ = f.SetColWidth(SheetReports, "H", "H", 60)
	return nil
}

func writeItems(f *excelize.File, reports []entity.ReportRecord) error {
	if err := writeRow(f, SheetItems, 1,
		"Report ID", "Report", "Description", "Category", "Group", "Cost", "Currency",
	); err != nil {
		return err
	}
	row := 2
	for _, r := range reports {
		for _, it := range r.Items {
			group, _ := constants.Canonicalize(it.Category)
			if err := writeRow(f, SheetItems, row,
				r.ID, r.Name, it.Description, it.Category, string(group), it.Cost.InexactFloat64(), r.Currency,
			); err != nil {
				return err
			}
			row++
		}
	}

	_ = f.SetColWidth(SheetItems, "A", "A", 38)
	_ = f.SetColWidth(SheetItems, "B", "C", 36)
	_ = f.SetColWidth(SheetItems, "D", "E", 18)
	return nil
}

type summaryKey struct {
	currency string
	group    constants.Category
}

type summaryRow struct {
	items int
	total decimal.Decimal
}

func writeSummary(f *excelize.File, reports []entity.ReportRecord) error {
	sums := map[summaryKey]*summaryRow{}
	for _, r := range reports {
		for _, it := range r.Items {
			group, _ := constants.Canonicalize(it.Category)
			k := summaryKey{currency: r.Currency, group: group}
			s, ok := sums[k]
			if !ok {
				s = &summaryRow{total: decimal.Zero}
				sums[k] = s
			}
			s.items++
			s.total = s.total.Add(it.Cost)
		}
	}

	keys := make([]summaryKey, 0, len(sums))
	for k := range sums {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].currency != keys[j].currency {
			return keys[i].currency < keys[j].currency
		}
		return keys[i].group < keys[j].group
	})

	if err := writeRow(f, SheetSummary, 1, "Currency", "Category", "Items", "Total"); err != nil {
		return err
	}
	for i, k := range keys {
		s := sums[k]
		if err := writeRow(f, SheetSummary, i+2,
			k.currency, string(k.group), s.items, s.total.InexactFloat64(),
		); err != nil {
			return err
		}
	}
	_ = f.SetColWidth(SheetSummary, "B", "B", 18)
	return nil
}

package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Persisted reports carry amounts as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// CostItem is one extracted line of a report.
type CostItem struct {
	Description string          `json:"description"`
	Cost        decimal.Decimal `json:"cost"`
	Category    string          `json:"category,omitempty"`
}

// ReportRecord is the structured result of extracting one PDF.
// It is written once and never updated.
type ReportRecord struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	GeneratedAt time.Time       `json:"generatedAt"`
	TotalCost   decimal.Decimal `json:"totalCost"`
	Currency    string          `json:"currency"`
	Items       []CostItem      `json:"items"`
	SourcePDF   string          `json:"sourcePdf"`
	Summary     string          `json:"summary,omitempty"`
}

// ItemsTotal sums the item costs. Used only to fill a missing total.
func (r ReportRecord) ItemsTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range r.Items {
		sum = sum.Add(it.Cost)
	}
	return sum
}

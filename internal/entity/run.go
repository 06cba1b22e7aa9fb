package entity

import (
	"time"

	"github.com/joseph-ayodele/pdf-cost-reports/constants"
)

// RunResult summarizes one orchestrator run.
type RunResult struct {
	RunID          string              `json:"runId"`
	Success        bool                `json:"success"`
	Status         constants.RunStatus `json:"status"`
	ProcessedFiles []string            `json:"processedFiles"`
	NewReports     []ReportRecord      `json:"newReports"`
	Errors         []string            `json:"errors"`
	StartedAt      time.Time           `json:"startedAt"`
	FinishedAt     time.Time           `json:"finishedAt"`
}

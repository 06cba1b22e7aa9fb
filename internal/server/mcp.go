package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joseph-ayodele/pdf-cost-reports/internal/common"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/repository"
)

// NewMCPServer registers the report tools.
func NewMCPServer(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"pdf-cost-reports",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("Cost reports extracted from PDF documents. List them, read one, or start an ingestion run."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("list_reports",
			mcp.WithDescription("List extracted cost reports, newest first."),
			mcp.WithString("currency", mcp.Description("Only reports in this ISO 4217 currency")),
			mcp.WithString("since", mcp.Description("Only reports generated at or after this RFC 3339 time")),
			mcp.WithNumber("limit", mcp.Description("Maximum number of reports (default 20)")),
		),
		mcpListReports(deps),
	)

	s.AddTool(
		mcp.NewTool("get_report",
			mcp.WithDescription("Return one cost report with all of its line items."),
			mcp.WithString("id", mcp.Description("Report id"), mcp.Required()),
		),
		mcpGetReport(deps),
	)

	s.AddTool(
		mcp.NewTool("run_ingestion",
			mcp.WithDescription("Look for new or updated PDFs and extract reports from them now."),
		),
		mcpRunIngestion(deps),
	)

	return s
}

type reportSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	GeneratedAt time.Time `json:"generatedAt"`
	TotalCost   string    `json:"totalCost"`
	Currency    string    `json:"currency"`
	Items       int       `json:"items"`
	SourcePDF   string    `json:"sourcePdf"`
}

func mcpListReports(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		f := repository.ListFilter{
			Currency: req.GetString("currency", ""),
			Limit:    req.GetInt("limit", 20),
		}
		if s := req.GetString("since", ""); s != "" {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return mcpError("since must be an RFC 3339 timestamp"), nil
			}
			f.Since = &t
		}

		rows, err := deps.Catalog.List(ctx, f)
		if err != nil {
			return mcpError(fmt.Sprintf("list failed: %v", err)), nil
		}
		if len(rows) == 0 {
			return mcpText("[]"), nil
		}
		out := make([]reportSummary, 0, len(rows))
		for _, row := range rows {
			r := row.Report
			out = append(out, reportSummary{
				ID:          r.ID,
				Name:        r.Name,
				GeneratedAt: r.GeneratedAt,
				TotalCost:   r.TotalCost.StringFixed(2),
				Currency:    r.Currency,
				Items:       len(r.Items),
				SourcePDF:   r.SourcePDF,
			})
		}
		b, err := json.Marshal(out)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal reports: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGetReport(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}
		rep, err := deps.Reports.Load(ctx, id)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return mcpError(fmt.Sprintf("report %s not found", id)), nil
			}
			return mcpError(fmt.Sprintf("failed to load report: %v", err)), nil
		}
		b, err := json.Marshal(rep)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal report: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpRunIngestion(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Runner == nil {
			return mcpError("runs are not enabled"), nil
		}
		res, ran := deps.Runner.RunNow(context.WithoutCancel(ctx), "mcp")
		if !ran {
			return mcpError(common.ErrRunInProgress.Error()), nil
		}
		b, err := json.Marshal(res)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		if !res.Success {
			return mcpError(string(b)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}

package server

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/pdf-cost-reports/constants"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/entity"
)

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", res.Content[0])
	return tc.Text
}

func TestMCPListReports(t *testing.T) {
	deps, _ := newTestDeps(t)
	handler := mcpListReports(deps)

	res, err := handler(context.Background(), makeCallToolRequest("list_reports", map[string]interface{}{
		"currency": "USD",
		"limit":    float64(10),
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	var got []reportSummary
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &got))
	require.Len(t, got, 1)
	assert.Equal(t, reportID, got[0].ID)
	assert.Equal(t, "42.50", got[0].TotalCost)
	assert.Equal(t, 1, got[0].Items)
}

func TestMCPListReports_EmptyAndBadSince(t *testing.T) {
	deps, _ := newTestDeps(t)
	handler := mcpListReports(deps)

	res, err := handler(context.Background(), makeCallToolRequest("list_reports", map[string]interface{}{
		"currency": "EUR",
	}))
	require.NoError(t, err)
	assert.Equal(t, "[]", resultText(t, res))

	res, err = handler(context.Background(), makeCallToolRequest("list_reports", map[string]interface{}{
		"since": "yesterday",
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestMCPGetReport(t *testing.T) {
	deps, _ := newTestDeps(t)
	handler := mcpGetReport(deps)

	res, err := handler(context.Background(), makeCallToolRequest("get_report", map[string]interface{}{
		"id": reportID,
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	var rep entity.ReportRecord
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &rep))
	assert.Equal(t, "Site <costs>", rep.Name)

	res, err = handler(context.Background(), makeCallToolRequest("get_report", map[string]interface{}{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "id is required", resultText(t, res))

	res, err = handler(context.Background(), makeCallToolRequest("get_report", map[string]interface{}{
		"id": "00000000-0000-0000-0000-000000000000",
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "not found")
}

func TestMCPRunIngestion(t *testing.T) {
	deps, runner := newTestDeps(t)
	handler := mcpRunIngestion(deps)

	res, err := handler(context.Background(), makeCallToolRequest("run_ingestion", nil))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, resultText(t, res), `"status":"SUCCESS"`)
	assert.Equal(t, []string{"mcp"}, runner.calls)

	runner.result = entity.RunResult{Success: false, Status: constants.RunStatusFailure, Errors: []string{"Error general: boom"}}
	res, err = handler(context.Background(), makeCallToolRequest("run_ingestion", nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "Error general: boom")

	runner.busy = true
	res, err = handler(context.Background(), makeCallToolRequest("run_ingestion", nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestMCPRunIngestion_DetachedFromCallContext(t *testing.T) {
	deps, runner := newTestDeps(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := mcpRunIngestion(deps)(ctx, makeCallToolRequest("run_ingestion", nil))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.NoError(t, runner.ctxErr)
}

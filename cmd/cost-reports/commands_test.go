package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/pdf-cost-reports/internal/app"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/common"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/entity"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/repository"
)

const seededID = "5f0c1e0a-6a43-4c59-8b55-8a4bb0b8b6d1"

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "inbox"), 0o755))

	t.Setenv("CONFIG_FILE", "")
	t.Setenv("SOURCE_KIND", "local")
	t.Setenv("SOURCE_DIR", filepath.Join(dir, "inbox"))
	t.Setenv("LLM_PROVIDER", "anthropic")
	t.Setenv("CLAUDE_API_KEY", "")
	t.Setenv("CONTROL_FILE", filepath.Join(dir, "control.json"))
	t.Setenv("REPORTS_DATA_DIR", filepath.Join(dir, "reports"))
	t.Setenv("RENDER_DIR", filepath.Join(dir, "web"))
	t.Setenv("SQLITE_PATH", filepath.Join(dir, "catalog.db"))
	t.Setenv("DB_URL", "")
	t.Setenv("LOG_LEVEL", "error")
	noColor = true
	return dir
}

func seed(t *testing.T) {
	t.Helper()
	cfg, err := common.LoadConfig()
	require.NoError(t, err)
	ctx := context.Background()
	a, err := app.NewOffline(ctx, cfg, nil)
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	rep := entity.ReportRecord{
		ID:          seededID,
		Name:        "Warehouse fit-out",
		GeneratedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		TotalCost:   decimal.RequireFromString("980.4"),
		Currency:    "EUR",
		Items: []entity.CostItem{
			{Description: "Shelving", Cost: decimal.RequireFromString("980.4"), Category: "Equipment"},
		},
		SourcePDF: "warehouse.pdf",
	}
	_, err = a.Reports.Save(ctx, rep)
	require.NoError(t, err)
	require.NoError(t, a.Catalog.Upsert(ctx, repository.CatalogEntry{Report: rep}))
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestExitCode(t *testing.T) {
	missing := common.NewAppError("CONFIG_ERROR", "CLAUDE_API_KEY is required", common.ErrMissingCredentials)
	assert.Equal(t, 2, exitCode(missing))
	assert.Equal(t, 2, exitCode(fmt.Errorf("startup: %w", missing)))
	assert.Equal(t, 1, exitCode(errRunFailed))
	assert.Equal(t, 1, exitCode(errors.New("boom")))
}

func TestRunCommand_MissingCredentials(t *testing.T) {
	setupEnv(t)

	_, err := execute(t, "run")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrMissingCredentials))
	assert.Equal(t, 2, exitCode(err))
}

func TestListCommand(t *testing.T) {
	setupEnv(t)
	seed(t)

	out, err := execute(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, seededID)
	assert.Contains(t, out, "EUR 980.40")
	assert.Contains(t, out, "warehouse.pdf")

	out, err = execute(t, "list", "--currency", "USD")
	require.NoError(t, err)
	assert.NotContains(t, out, seededID)
}

func TestExportCommand(t *testing.T) {
	dir := setupEnv(t)
	seed(t)
	dest := filepath.Join(dir, "out", "reports.xlsx")

	_, err := execute(t, "export", "--out", dest)
	require.NoError(t, err)

	st, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Greater(t, st.Size(), int64(0))

	_, err = execute(t, "export", "--out", dest, "--since", "March 1st")
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
}

func TestResetCommand(t *testing.T) {
	dir := setupEnv(t)
	seed(t)

	_, err := execute(t, "reset")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "--yes"))

	_, err = execute(t, "reset", "--yes")
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(dir, "reports"))
	require.NoError(t, err)
	assert.Empty(t, entries)
	_, err = os.Stat(filepath.Join(dir, "web", "index.html"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "control.json"))
	assert.NoError(t, err)
}

func TestReindexCommand(t *testing.T) {
	dir := setupEnv(t)
	seed(t)

	_, err := execute(t, "reindex")
	require.NoError(t, err)

	b, err := os.ReadFile(filepath.Join(dir, "web", "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(b), "Warehouse fit-out")
}

func TestCheckCommand_UnknownTarget(t *testing.T) {
	setupEnv(t)

	_, err := execute(t, "check", "printer")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown check target")
}

func TestCheckCommand_ChecksOnlyNeedTheirOwnCredentials(t *testing.T) {
	setupEnv(t)

	_, err := execute(t, "check", "db")
	require.NoError(t, err)

	_, err = execute(t, "check", "source")
	require.NoError(t, err)

	_, err = execute(t, "check", "llm")
	require.Error(t, err)
	assert.Equal(t, 2, exitCode(err))
}

package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/pdf-cost-reports/constants"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/entity"
)

// ParseOutcome tags the result of interpreting a model response.
type ParseOutcome int

const (
	ParsedOK ParseOutcome = iota + 1
	ParseFailed
)

func (o ParseOutcome) String() string {
	switch o {
	case ParsedOK:
		return "parsed_ok"
	case ParseFailed:
		return "parse_failed"
	default:
		return "unknown"
	}
}

// ParseResult holds either a parsed report or the default one plus the cause.
type ParseResult struct {
	Outcome ParseOutcome
	Report  entity.ReportRecord
	Dropped []string
	Err     error
}

var ErrNoJSONObject = errors.New("no JSON object in model response")

// ExtractJSONObject returns the text from the first '{' to the last '}'.
// The match is greedy: prose between two objects ends up inside the result.
func ExtractJSONObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", false
	}
	return text[start : end+1], true
}

// DefaultReport is stored in place of a report the model failed to produce.
func DefaultReport(filename string, now time.Time) entity.ReportRecord {
	return entity.ReportRecord{
		ID:          "default-" + strconv.FormatInt(now.UnixMilli(), 10),
		Name:        "Report for " + filename,
		GeneratedAt: now.UTC(),
		TotalCost:   decimal.Zero,
		Currency:    constants.DefaultCurrency,
		Items:       []entity.CostItem{},
		SourcePDF:   filename,
		Summary:     "Failed to process the PDF",
	}
}

// Failure builds the envelope returned for any extraction error.
func Failure(filename string, raw []byte, err error, now time.Time) ExtractionResult {
	return ExtractionResult{
		Success: false,
		Report:  DefaultReport(filename, now),
		Raw:     raw,
		Err:     err,
	}
}

// FromParse converts a ParseResult into the provider envelope.
func FromParse(pr ParseResult, raw []byte) ExtractionResult {
	return ExtractionResult{
		Success: pr.Outcome == ParsedOK,
		Report:  pr.Report,
		Raw:     raw,
		Err:     pr.Err,
	}
}

// ParseReportResponse interprets the text a model returned for filename.
// The object may be the bare report or wrapped as {"reportData": {...}}.
func ParseReportResponse(text, filename string, now time.Time, logger *slog.Logger) ParseResult {
	if logger == nil {
		logger = slog.Default()
	}
	failed := func(err error) ParseResult {
		return ParseResult{Outcome: ParseFailed, Report: DefaultReport(filename, now), Err: err}
	}

	obj, ok := ExtractJSONObject(text)
	if !ok {
		return failed(ErrNoJSONObject)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(obj)))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return failed(fmt.Errorf("decode model json: %w", err))
	}
	if _, err := dec.Token(); err != io.EOF {
		return failed(errors.New("decode model json: trailing data after object"))
	}
	if inner, ok := m["reportData"].(map[string]any); ok {
		m = inner
	}
	if name, _ := m["name"].(string); strings.TrimSpace(name) == "" {
		m["name"] = strings.TrimSuffix(filename, filepath.Ext(filename))
	}

	normalized, dropped, err := NormalizeReportJSON(m, logger)
	if err != nil {
		return failed(err)
	}
	if err := ValidateReportJSON(normalized); err != nil {
		logger.Warn("llm.parse.schema_validation_failed", "file", filename, "error", err)
		return failed(fmt.Errorf("schema validation failed: %w", err))
	}

	var rep entity.ReportRecord
	if err := json.Unmarshal(normalized, &rep); err != nil {
		return failed(fmt.Errorf("unmarshal report: %w", err))
	}
	if rep.Items == nil {
		rep.Items = []entity.CostItem{}
	}
	return ParseResult{Outcome: ParsedOK, Report: rep, Dropped: dropped}
}

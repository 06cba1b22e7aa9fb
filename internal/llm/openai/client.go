package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/pdf-cost-reports/internal/common"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/llm"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/pdftext"
)

// ExtractReport implements llm.ReportExtractor using chat/completions.
// The prompt carries the PDF's extracted text; the file itself is attached
// when AttachPDF is set or when no text could be extracted.
func (c *Client) ExtractReport(ctx context.Context, req llm.ExtractRequest) llm.ExtractionResult {
	rid := uuid.New().String()
	ctx = common.WithRequestID(ctx, rid)
	start := time.Now()

	doc, perr := pdftext.Extract(req.PDF, 0)
	if perr != nil {
		c.logger.Warn("llm.extract.pdf_text_unavailable", "req_id", rid, "file", req.Filename, "error", perr)
	}
	attach := c.cfg.AttachPDF || doc.Text == ""

	c.logger.Info("llm.extract.start",
		"req_id", rid,
		"provider", "openai",
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"file", req.Filename,
		"pages", doc.Pages,
		"text_len", len(doc.Text),
		"attach_pdf", attach,
	)

	userContent := []map[string]any{
		{"type": "text", "text": llm.BuildUserPrompt(req.Filename, doc.Text)},
	}
	if attach {
		userContent = append(userContent, map[string]any{
			"type": "file",
			"file": map[string]any{
				"filename":  req.Filename,
				"file_data": llm.PDFDataURL(req.PDF),
			},
		})
	}

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": llm.BuildSystemPrompt()},
			{"role": "user", "content": userContent},
		},
	}
	if c.cfg.MaxTokens > 0 {
		body["max_tokens"] = c.cfg.MaxTokens
	}

	content, err := c.complete(ctx, body)
	if err != nil {
		c.logger.Error("llm.extract.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Failure(req.Filename, nil, err, c.now())
	}

	pr := llm.ParseReportResponse(content, req.Filename, c.now(), c.logger)
	if pr.Outcome != llm.ParsedOK {
		c.logger.Error("llm.extract.parse_failed",
			"req_id", rid, "error", pr.Err, "content", content,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.FromParse(pr, []byte(content))
	}

	c.logger.Info("llm.extract.ok",
		"req_id", rid,
		"name", pr.Report.Name,
		"total", pr.Report.TotalCost.String(),
		"currency", pr.Report.Currency,
		"items", len(pr.Report.Items),
		"dropped", len(pr.Dropped),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return llm.FromParse(pr, []byte(content))
}

// Ping issues a one-token completion.
func (c *Client) Ping(ctx context.Context) error {
	body := map[string]any{
		"model":      c.cfg.Model,
		"max_tokens": 1,
		"messages": []map[string]any{
			{"role": "user", "content": "ping"},
		},
	}
	_, err := c.complete(ctx, body)
	return err
}

func (c *Client) complete(ctx context.Context, body map[string]any) (string, error) {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}

	raw, _, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, c.logger)
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		return "", errors.New("no choices in openai response")
	}
	return strings.TrimSpace(cc.Choices[0].Message.Content), nil
}

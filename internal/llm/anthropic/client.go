package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/pdf-cost-reports/constants"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/common"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/llm"
)

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// ExtractReport implements llm.ReportExtractor by sending the PDF as a base64 document block.
func (c *Client) ExtractReport(ctx context.Context, req llm.ExtractRequest) llm.ExtractionResult {
	rid := uuid.New().String()
	ctx = common.WithRequestID(ctx, rid)
	start := time.Now()

	c.logger.Info("llm.extract.start",
		"req_id", rid,
		"provider", "anthropic",
		"model", c.cfg.Model,
		"file", req.Filename,
		"pdf_bytes", len(req.PDF),
	)

	body := map[string]any{
		"model":       c.cfg.Model,
		"max_tokens":  c.cfg.MaxTokens,
		"temperature": c.cfg.Temperature,
		"system":      llm.BuildSystemPrompt(),
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{
						"type": "document",
						"source": map[string]any{
							"type":       "base64",
							"media_type": constants.MimeTypePDF,
							"data":       llm.EncodeBase64(req.PDF),
						},
					},
					{"type": "text", "text": llm.BuildUserPrompt(req.Filename, "")},
				},
			},
		},
	}

	text, err := c.send(ctx, body)
	if err != nil {
		c.logger.Error("llm.extract.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Failure(req.Filename, nil, err, c.now())
	}

	pr := llm.ParseReportResponse(text, req.Filename, c.now(), c.logger)
	if pr.Outcome != llm.ParsedOK {
		c.logger.Error("llm.extract.parse_failed",
			"req_id", rid, "error", pr.Err, "content", text,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.FromParse(pr, []byte(text))
	}

	c.logger.Info("llm.extract.ok",
		"req_id", rid,
		"name", pr.Report.Name,
		"total", pr.Report.TotalCost.String(),
		"currency", pr.Report.Currency,
		"items", len(pr.Report.Items),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return llm.FromParse(pr, []byte(text))
}

// Ping sends a minimal message to check the key and endpoint.
func (c *Client) Ping(ctx context.Context) error {
	body := map[string]any{
		"model":      c.cfg.Model,
		"max_tokens": 16,
		"messages": []map[string]any{
			{"role": "user", "content": "Reply with OK."},
		},
	}
	_, err := c.send(ctx, body)
	return err
}

func (c *Client) send(ctx context.Context, body map[string]any) (string, error) {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/messages"
	headers := map[string]string{
		"x-api-key":         c.cfg.APIKey,
		"anthropic-version": apiVersion,
	}
	raw, _, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, c.logger)
	if err != nil {
		return "", fmt.Errorf("anthropic: %w", err)
	}

	var mr messagesResponse
	if err := json.Unmarshal(raw, &mr); err != nil {
		return "", fmt.Errorf("decode anthropic response: %w", err)
	}
	var b strings.Builder
	for _, block := range mr.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", errors.New("anthropic: no text content in response")
	}
	c.logger.Debug("llm.anthropic.usage",
		"req_id", common.RequestIDFromContext(ctx),
		"input_tokens", mr.Usage.InputTokens,
		"output_tokens", mr.Usage.OutputTokens,
		"stop_reason", mr.StopReason,
	)
	return b.String(), nil
}

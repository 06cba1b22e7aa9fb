package llm

import (
	"encoding/json"
	"strings"

	"github.com/joseph-ayodele/pdf-cost-reports/constants"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/utils"
)

// maxPromptText bounds, in runes, how much extracted PDF text goes into a prompt.
const maxPromptText = 12000

// BuildSystemPrompt tells the model what to extract and the exact JSON shape.
func BuildSystemPrompt() string {
	parts := []string{
		"You analyze PDF documents that contain costs, budgets, quotes or invoices.",
		"Extract every cost line-item with its description, its cost as a plain number and, when evident, a short category.",
		"Suggested categories: " + strings.Join(constants.AsStringSlice(), ", ") + ".",
		"Compute totalCost as the document's grand total; if none is printed, the sum of the items.",
		"Currency must be a 3-letter ISO 4217 code; default to " + constants.DefaultCurrency + " if uncertain.",
		"Give the report a short descriptive name and a one or two sentence summary.",
		"Return ONLY one JSON object of the form {\"reportData\": {...}} where reportData matches this JSON Schema:",
		mustJSON(BuildReportJSONSchema()),
		"Never output null. If a field is not present, omit it.",
	}
	return strings.Join(parts, "\n")
}

// BuildUserPrompt names the file and, when available, adds its extracted text.
func BuildUserPrompt(filename, text string) string {
	var b strings.Builder
	b.WriteString("Filename: ")
	b.WriteString(strings.TrimSpace(filename))
	b.WriteString("\n")

	text = strings.TrimSpace(text)
	if text != "" {
		b.WriteString("\nExtracted text:\n")
		// Cut on a rune boundary; the prompt must stay valid UTF-8.
		if short := utils.Truncate(text, maxPromptText); short != text {
			b.WriteString(short)
			b.WriteString("\n(truncated)")
		} else {
			b.WriteString(text)
		}
		b.WriteString("\n")
	}
	b.WriteString("\nAnalyze the attached PDF and return the JSON object.")
	return b.String()
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

package llm

// BuildReportJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a generic map.
// It is embedded in the prompt and used locally to validate normalized output.
func BuildReportJSONSchema() map[string]any {
	item := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"description": map[string]any{"type": "string", "minLength": 1},
			"cost":        map[string]any{"type": "number"},
			"category":    map[string]any{"type": "string"},
		},
		"required": []string{"description", "cost"},
	}

	props := map[string]any{
		"id":          map[string]any{"type": "string"},
		"name":        map[string]any{"type": "string", "minLength": 1},
		"generatedAt": map[string]any{"type": "string"},
		"totalCost":   map[string]any{"type": "number"},
		"currency":    map[string]any{"type": "string", "pattern": `^[A-Z]{3}$`},
		"items":       map[string]any{"type": "array", "items": item},
		"sourcePdf":   map[string]any{"type": "string"},
		"summary":     map[string]any{"type": "string"},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             []string{"name", "totalCost", "items"},
	}
}

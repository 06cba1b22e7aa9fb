package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerceMoney(t *testing.T) {
	cases := map[string]struct {
		in   any
		want json.Number
		ok   bool
	}{
		"number":          {json.Number("12.50"), "12.5", true},
		"float":           {float64(3), "3", true},
		"dollar string":   {"$1,234.56", "1234.56", true},
		"decimal comma":   {"12,50", "12.5", true},
		"european":        {"1.234,50 €", "1234.5", true},
		"thousands comma": {"1,234", "1234", true},
		"negative":        {"-20", "-20", true},
		"empty":           {"  ", "", false},
		"text":            {"n/a", "", false},
		"nil":             {nil, "", false},
		"bool":            {true, "", false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, ok := coerceMoney(tc.in)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeCurrency(t *testing.T) {
	got, ok := normalizeCurrency(" eur ")
	assert.True(t, ok)
	assert.Equal(t, "EUR", got)

	got, ok = normalizeCurrency("$")
	assert.True(t, ok)
	assert.Equal(t, "USD", got)

	_, ok = normalizeCurrency("dollars")
	assert.False(t, ok)
}

func TestNormalizeReportJSON_DropsUnknownAndBadItems(t *testing.T) {
	m := map[string]any{
		"name":          "  Report  ",
		"totalCost":     json.Number("10"),
		"componentCode": "<div/>",
		"currency":      "pesos",
		"summary":       nil,
		"items": []any{
			map[string]any{"description": "ok", "cost": json.Number("10"), "extra": 1},
			map[string]any{"description": "", "cost": json.Number("1")},
			map[string]any{"description": "no cost"},
			"not an object",
		},
	}

	out, dropped, err := NormalizeReportJSON(m, nil)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, "Report", got["name"])
	assert.NotContains(t, got, "componentCode")
	assert.NotContains(t, got, "currency")
	assert.NotContains(t, got, "summary")
	items := got["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, map[string]any{"description": "ok", "cost": float64(10)}, items[0])

	assert.Contains(t, dropped, "componentCode(unknown)")
	assert.Contains(t, dropped, "currency(invalid)")
	assert.Contains(t, dropped, "items[3](type)")
	require.NoError(t, ValidateReportJSON(out))
}

func TestValidateReportJSON_RejectsMissingRequired(t *testing.T) {
	err := ValidateReportJSON([]byte(`{"name":"x"}`))
	assert.Error(t, err)
}

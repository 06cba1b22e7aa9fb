package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	reportKeys = map[string]struct{}{
		"id": {}, "name": {}, "generatedAt": {}, "totalCost": {}, "currency": {},
		"items": {}, "sourcePdf": {}, "summary": {},
	}
	itemKeys = map[string]struct{}{
		"description": {}, "cost": {}, "category": {},
	}
)

// NormalizeReportJSON
// - Drops unknown keys at report and item level
// - Trims strings and drops empty optionals
// - Coerces money fields to JSON numbers
// - Normalizes currency and generatedAt
// - Fills a missing totalCost from the item costs
func NormalizeReportJSON(m map[string]any, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dropped := make([]string, 0, 8)

	for k := range maps.Clone(m) {
		if _, ok := reportKeys[k]; !ok {
			delete(m, k)
			dropped = append(dropped, k+"(unknown)")
		}
	}

	for _, k := range []string{"id", "name", "sourcePdf", "summary"} {
		switch v := m[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				m[k] = s
			} else {
				delete(m, k)
				dropped = append(dropped, k+"(empty)")
			}
		case nil:
			if _, ok := m[k]; ok {
				delete(m, k)
				dropped = append(dropped, k+"(null)")
			}
		case json.Number:
			m[k] = v.String()
		default:
			delete(m, k)
			dropped = append(dropped, k+"(type)")
		}
	}

	if v, ok := m["currency"]; ok {
		s, _ := v.(string)
		if cur, ok := normalizeCurrency(s); ok {
			m["currency"] = cur
		} else {
			delete(m, "currency")
			dropped = append(dropped, "currency(invalid)")
		}
	}

	if v, ok := m["generatedAt"]; ok {
		s, _ := v.(string)
		if t, ok := parseTimestamp(s); ok {
			m["generatedAt"] = t
		} else {
			delete(m, "generatedAt")
			dropped = append(dropped, "generatedAt(invalid)")
		}
	}

	items, itemDrops := normalizeItems(m["items"])
	m["items"] = items
	dropped = append(dropped, itemDrops...)

	if v, ok := m["totalCost"]; ok {
		if n, ok := coerceMoney(v); ok {
			m["totalCost"] = n
		} else {
			delete(m, "totalCost")
			dropped = append(dropped, "totalCost(invalid)")
		}
	}
	if _, ok := m["totalCost"]; !ok && len(items) > 0 {
		sum := decimal.Zero
		for _, it := range items {
			d, _ := decimal.NewFromString(string(it["cost"].(json.Number)))
			sum = sum.Add(d)
		}
		m["totalCost"] = json.Number(sum.String())
		dropped = append(dropped, "totalCost(from items)")
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(dropped) > 0 {
		logger.Warn("llm.extract.normalize_sanitize", "dropped", dropped)
	}
	return out, dropped, nil
}

func normalizeItems(v any) ([]map[string]any, []string) {
	items := []map[string]any{}
	var dropped []string

	raw, ok := v.([]any)
	if !ok {
		if v != nil {
			dropped = append(dropped, "items(type)")
		}
		return items, dropped
	}

	for i, e := range raw {
		it, ok := e.(map[string]any)
		if !ok {
			dropped = append(dropped, fmt.Sprintf("items[%d](type)", i))
			continue
		}
		for k := range maps.Clone(it) {
			if _, ok := itemKeys[k]; !ok {
				delete(it, k)
			}
		}

		desc, _ := it["description"].(string)
		desc = strings.TrimSpace(desc)
		if desc == "" {
			dropped = append(dropped, fmt.Sprintf("items[%d](no description)", i))
			continue
		}
		it["description"] = desc

		cost, ok := coerceMoney(it["cost"])
		if !ok {
			dropped = append(dropped, fmt.Sprintf("items[%d](cost)", i))
			continue
		}
		it["cost"] = cost

		if c, ok := it["category"].(string); ok && strings.TrimSpace(c) != "" {
			it["category"] = strings.TrimSpace(c)
		} else {
			delete(it, "category")
		}
		items = append(items, it)
	}
	return items, dropped
}

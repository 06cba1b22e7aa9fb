package llm

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	reCurrency  = regexp.MustCompile(`^[A-Z]{3}$`)
	reMoneyJunk = regexp.MustCompile(`[^0-9.,\-]`)

	currencySymbols = map[string]string{
		"$":   "USD",
		"US$": "USD",
		"€":   "EUR",
		"£":   "GBP",
		"¥":   "JPY",
		"R$":  "BRL",
	}

	timestampLayouts = []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
)

// coerceMoney accepts JSON numbers and loosely formatted strings such as
// "$1,234.50" or "1.234,50" and returns a canonical JSON number.
func coerceMoney(v any) (json.Number, bool) {
	switch t := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		if err != nil {
			return "", false
		}
		return json.Number(d.String()), true
	case float64:
		return json.Number(decimal.NewFromFloat(t).String()), true
	case string:
		s := reMoneyJunk.ReplaceAllString(strings.TrimSpace(t), "")
		if s == "" || s == "-" {
			return "", false
		}
		s = normalizeSeparators(s)
		d, err := decimal.NewFromString(s)
		if err != nil {
			return "", false
		}
		return json.Number(d.String()), true
	default:
		return "", false
	}
}

// normalizeSeparators resolves thousands and decimal separators. When both
// appear, the later one is the decimal separator. A lone comma followed by
// exactly two digits is a decimal comma.
func normalizeSeparators(s string) string {
	dot := strings.LastIndex(s, ".")
	comma := strings.LastIndex(s, ",")
	switch {
	case dot >= 0 && comma >= 0:
		if comma > dot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		if strings.Count(s, ",") == 1 && len(s)-comma-1 == 2 {
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	default:
		return s
	}
}

func normalizeCurrency(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if code, ok := currencySymbols[s]; ok {
		return code, true
	}
	s = strings.ToUpper(s)
	if reCurrency.MatchString(s) {
		return s, true
	}
	return "", false
}

func parseTimestamp(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format(time.RFC3339Nano), true
		}
	}
	return "", false
}

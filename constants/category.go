package constants

import (
	"strings"
)

// Category is the canonical bucket a cost line-item is grouped under in exports.
type Category string

const (
	Labor     Category = "Labor"
	Materials Category = "Materials"
	Equipment Category = "Equipment"
	Services  Category = "Services"
	Software  Category = "Software"
	Travel    Category = "Travel"
	Utilities Category = "Utilities"
	Taxes     Category = "Taxes"
	Fees      Category = "Fees"
	Other     Category = "Other"
)

var allCategories = []Category{
	Labor,
	Materials,
	Equipment,
	Services,
	Software,
	Travel,
	Utilities,
	Taxes,
	Fees,
	Other,
}

func AsStringSlice() []string {
	result := make([]string, len(allCategories))
	for i, cat := range allCategories {
		result[i] = string(cat)
	}
	return result
}

// Canonicalize maps a free-form category from the model onto a known bucket.
// The second return is false when nothing matched and Other was chosen.
func Canonicalize(input string) (Category, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return Other, false
	}

	synonyms := map[string]Category{
		"labour":        Labor,
		"personnel":     Labor,
		"salaries":      Labor,
		"wages":         Labor,
		"supplies":      Materials,
		"material":      Materials,
		"hardware":      Equipment,
		"machinery":     Equipment,
		"consulting":    Services,
		"service":       Services,
		"professional":  Services,
		"saas":          Software,
		"licenses":      Software,
		"subscription":  Software,
		"transport":     Travel,
		"lodging":       Travel,
		"accommodation": Travel,
		"electricity":   Utilities,
		"internet":      Utilities,
		"tax":           Taxes,
		"vat":           Taxes,
		"fee":           Fees,
		"commission":    Fees,
	}

	if cat, ok := synonyms[normalized]; ok {
		return cat, true
	}

	for _, cat := range allCategories {
		if normalized == strings.ToLower(string(cat)) {
			return cat, true
		}
	}

	return Other, false
}

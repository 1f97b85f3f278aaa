package postgres

import (
	"encoding/json"

	"github.com/prreview/reviewbot/internal/model"
)

// categoriesToJSON/categoriesFromJSON, rulesToJSON/rulesFromJSON, and
// the two histogram pairs below follow the teacher's text-column JSON
// marshaling pattern: every map/slice-valued field is round-tripped
// through a JSONB column rather than a bespoke SQL type.

func categoriesToJSON(cats []model.Category) string {
	if len(cats) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(cats)
	return string(b)
}

func categoriesFromJSON(s string) []model.Category {
	if s == "" || s == "null" {
		return nil
	}
	var cats []model.Category
	if err := json.Unmarshal([]byte(s), &cats); err != nil {
		return nil
	}
	return cats
}

func rulesToJSON(rules map[string]string) string {
	if len(rules) == 0 {
		return "null"
	}
	b, _ := json.Marshal(rules)
	return string(b)
}

func rulesFromJSON(s string) map[string]string {
	if s == "" || s == "null" {
		return nil
	}
	var rules map[string]string
	if err := json.Unmarshal([]byte(s), &rules); err != nil {
		return nil
	}
	return rules
}

func severityHistToJSON(hist map[model.Severity]int) string {
	if len(hist) == 0 {
		return "{}"
	}
	b, _ := json.Marshal(hist)
	return string(b)
}

func severityHistFromJSON(s string) map[model.Severity]int {
	if s == "" || s == "null" {
		return map[model.Severity]int{}
	}
	var hist map[model.Severity]int
	if err := json.Unmarshal([]byte(s), &hist); err != nil {
		return map[model.Severity]int{}
	}
	return hist
}

func categoryHistToJSON(hist map[model.Category]int) string {
	if len(hist) == 0 {
		return "{}"
	}
	b, _ := json.Marshal(hist)
	return string(b)
}

func categoryHistFromJSON(s string) map[model.Category]int {
	if s == "" || s == "null" {
		return map[model.Category]int{}
	}
	var hist map[model.Category]int
	if err := json.Unmarshal([]byte(s), &hist); err != nil {
		return map[model.Category]int{}
	}
	return hist
}

package enrich

import (
	"regexp"
	"strconv"
	"strings"
)

// Employee counts and revenue figures pulled from search snippets are
// normalized into the fixed buckets the downstream sheet expects. Bucket
// labels use en dashes to match the house reporting format.

var (
	employeeRangeRe  = regexp.MustCompile(`(\d+)[\s\-–—to]+(\d+)\s*(?:employees?|staff|people|workers)`)
	employeePlusRe   = regexp.MustCompile(`(?:over|more than|above|at least)\s*(\d+)\s*(?:employees?|staff|people)`)
	employeeSingleRe = regexp.MustCompile(`(\d+)\s*(?:employees?|staff|people|workers)`)

	revenueRe      = regexp.MustCompile(`\$?\s*(\d+(?:\.\d+)?)\s*(?:million|m\b|m\s)`)
	revenueUnderRe = regexp.MustCompile(`(?:under|less than|below)\s*\$?\s*(\d+(?:\.\d+)?)\s*(?:million|m\b)`)
)

// normalizeEmployeeRange maps free text mentioning a headcount onto one of
// the standard ranges. Returns "" when no headcount is recognizable.
func normalizeEmployeeRange(text string) string {
	if text == "" {
		return ""
	}
	lower := strings.ToLower(text)
	if !strings.ContainsAny(lower, "0123456789") {
		return ""
	}

	// "51-200 employees", "11 to 50 staff"
	if m := employeeRangeRe.FindStringSubmatch(lower); m != nil {
		maxVal, _ := strconv.Atoi(m[2])
		switch {
		case maxVal <= 10:
			return "1–10"
		case maxVal <= 50:
			return "11–50"
		case maxVal <= 200:
			return "51–200"
		case maxVal <= 500:
			return "201–500"
		case maxVal <= 1000:
			return "501–1000"
		case maxVal <= 5000:
			return "1001–5000"
		default:
			return "5000+"
		}
	}

	// "over 500 employees", "more than 50 staff"
	if m := employeePlusRe.FindStringSubmatch(lower); m != nil {
		val, _ := strconv.Atoi(m[1])
		return employeeBucketFor(val)
	}

	// "120 employees"
	if m := employeeSingleRe.FindStringSubmatch(lower); m != nil {
		val, _ := strconv.Atoi(m[1])
		return employeeBucketFor(val)
	}

	return ""
}

func employeeBucketFor(val int) string {
	switch {
	case val >= 5000:
		return "5000+"
	case val >= 1000:
		return "1001–5000"
	case val >= 500:
		return "501–1000"
	case val >= 200:
		return "201–500"
	case val >= 50:
		return "51–200"
	case val >= 10:
		return "11–50"
	default:
		return "1–10"
	}
}

// normalizeRevenueRange maps free text mentioning annual revenue onto one of
// the standard ranges. Returns "" when no figure is recognizable.
func normalizeRevenueRange(text string) string {
	if text == "" {
		return ""
	}
	lower := strings.ToLower(text)

	// "$45 million", "$12M"
	if m := revenueRe.FindStringSubmatch(lower); m != nil {
		val, _ := strconv.ParseFloat(m[1], 64)
		switch {
		case val >= 100:
			return "$100M+"
		case val >= 30:
			return "$30–100M"
		case val >= 10:
			return "$10–30M"
		default:
			return "<$10M"
		}
	}

	// "under 5m" without a leading figure match
	if m := revenueUnderRe.FindStringSubmatch(lower); m != nil {
		val, _ := strconv.ParseFloat(m[1], 64)
		if val <= 10 {
			return "<$10M"
		}
	}

	return ""
}

// Package classify scores companies for industry fit using weighted keyword
// matching over locally available fields. It is a pure function of its
// inputs: no network access, no external state.
package classify

import (
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/expo-cli/internal/model"
)

// Score thresholds: at or above YesThreshold is a YES, anything positive
// below it is a MAYBE, zero or less is a NO.
const (
	YesThreshold   = 3
	maybeThreshold = 1

	maxEvidenceKeywords = 5
	maxEvidenceLen      = 120
)

// Result is the raw scoring outcome for one text blob.
type Result struct {
	Bucket   model.FitBucket
	Score    int
	Matched  []string
	Evidence string
}

// Classifier buckets companies by keyword score.
type Classifier struct {
	kw Keywords
}

// New creates a Classifier with the given keyword set.
func New(kw Keywords) *Classifier {
	return &Classifier{kw: kw}
}

// Classify scores every company, preserving input order.
func (c *Classifier) Classify(companies []model.Company) []model.ScoredCompany {
	scored := make([]model.ScoredCompany, 0, len(companies))
	for _, company := range companies {
		text := company.Name + " " + company.Domain + " " + company.Blurb
		res := c.Score(text)

		scored = append(scored, model.ScoredCompany{
			Company:         company,
			IndustryGuess:   IndustryGuess(res.Matched),
			FitBucket:       res.Bucket,
			Score:           res.Score,
			EvidenceSnippet: res.Evidence,
			FitYesNo:        yesNo(res.Bucket),
		})

		zap.L().Debug("classified company",
			zap.String("company", company.Name),
			zap.String("bucket", string(res.Bucket)),
			zap.Int("score", res.Score),
		)
	}
	return scored
}

// Score evaluates one lowercase-insensitive text blob. Every positive
// keyword occurrence counts; each negative list fires at most once and only
// when nothing positive matched.
func (c *Classifier) Score(text string) Result {
	if strings.TrimSpace(text) == "" {
		return Result{Bucket: model.FitNo, Evidence: "no_data"}
	}

	lower := strings.ToLower(text)

	var matched []string
	positive := 0
	for _, kw := range c.kw.Strong {
		if strings.Contains(lower, kw) {
			matched = append(matched, kw)
			positive += c.kw.Weights.Strong
		}
	}
	for _, kw := range c.kw.Medium {
		if strings.Contains(lower, kw) {
			matched = append(matched, kw)
			positive += c.kw.Weights.Medium
		}
	}
	for _, kw := range c.kw.Weak {
		if strings.Contains(lower, kw) {
			matched = append(matched, kw)
			positive += c.kw.Weights.Weak
		}
	}

	negative := 0
	if positive == 0 {
		if containsAny(lower, c.kw.HardNegative...) {
			negative += c.kw.Weights.HardNegative
		}
		if containsAny(lower, c.kw.SoftNegative...) {
			negative += c.kw.Weights.SoftNegative
		}
	}

	score := positive + negative
	if score < 0 {
		score = 0
	}

	return Result{
		Bucket:   bucketFor(score),
		Score:    score,
		Matched:  matched,
		Evidence: evidence(matched),
	}
}

// Summary counts bucket outcomes for a scored batch.
type Summary struct {
	Total int `json:"total"`
	Yes   int `json:"yes"`
	Maybe int `json:"maybe"`
	No    int `json:"no"`
}

// Summarize tallies buckets over scored rows.
func Summarize(rows []model.ScoredCompany) Summary {
	s := Summary{Total: len(rows)}
	for _, row := range rows {
		switch row.FitBucket {
		case model.FitYes:
			s.Yes++
		case model.FitMaybe:
			s.Maybe++
		default:
			s.No++
		}
	}
	return s
}

// industryRules maps matched-keyword signals to a human-readable industry
// label. First rule whose probes hit wins.
var industryRules = []struct {
	probes []string
	label  string
}{
	{[]string{"large format", "wide format", "grand format", "printing", "print"}, "Large-format printing"},
	{[]string{"architectural graphics", "window film", "glass film", "wall graphics"}, "Architectural graphics"},
	{[]string{"vehicle wrap", "car wrap", "fleet graphics", "wraps"}, "Vehicle wraps"},
	{[]string{"signage", "sign shop", "wayfinding", "sign systems"}, "Commercial signage"},
	{[]string{"industrial graphics", "decals", "labels", "nameplates"}, "Industrial graphics"},
	{[]string{"graphics", "printing", "display"}, "Signage/Graphics"},
}

// IndustryGuess derives an industry label from the matched keywords.
func IndustryGuess(matched []string) string {
	if len(matched) == 0 {
		return ""
	}
	joined := strings.ToLower(strings.Join(matched, " "))
	for _, rule := range industryRules {
		if containsAny(joined, rule.probes...) {
			return rule.label
		}
	}
	return ""
}

func bucketFor(score int) model.FitBucket {
	switch {
	case score >= YesThreshold:
		return model.FitYes
	case score >= maybeThreshold:
		return model.FitMaybe
	default:
		return model.FitNo
	}
}

func yesNo(bucket model.FitBucket) string {
	if bucket == model.FitYes {
		return "YES"
	}
	return "NO"
}

func evidence(matched []string) string {
	if len(matched) == 0 {
		return "no_keywords"
	}
	head := matched
	if len(head) > maxEvidenceKeywords {
		head = head[:maxEvidenceKeywords]
	}
	s := strings.Join(head, ", ")
	if len(s) > maxEvidenceLen {
		s = s[:maxEvidenceLen-3] + "..."
	}
	return s
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

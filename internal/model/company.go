package model

import "strings"

// FitBucket is the classification outcome for a company.
type FitBucket string

const (
	FitYes   FitBucket = "YES"
	FitMaybe FitBucket = "MAYBE"
	FitNo    FitBucket = "NO"
)

// Company is one exhibitor row as produced by the scrape stage.
type Company struct {
	Name      string `json:"company_name"`
	Domain    string `json:"domain"`
	Blurb     string `json:"company_blurb"`
	SourceURL string `json:"source_url"`
}

// IdentityKey returns the normalized identifier used for dedup, cache keys,
// and ordering checks: the domain when present, otherwise the name.
func (c Company) IdentityKey() string {
	key := c.Domain
	if key == "" {
		key = c.Name
	}
	key = strings.ToLower(strings.TrimSpace(key))
	key = strings.TrimPrefix(key, "http://")
	key = strings.TrimPrefix(key, "https://")
	key = strings.TrimPrefix(key, "www.")
	return key
}

// ScoredCompany is a company after industry fit classification.
type ScoredCompany struct {
	Company
	IndustryGuess   string    `json:"industry_guess"`
	FitBucket       FitBucket `json:"fit_bucket"`
	Score           int       `json:"score"`
	EvidenceSnippet string    `json:"evidence_snippet"`
	FitYesNo        string    `json:"fit_yes_no"`
}

// DecisionMaker is one contact surfaced by the decision-maker search.
type DecisionMaker struct {
	Name          string `json:"name"`
	Title         string `json:"title"`
	LinkedInURL   string `json:"linkedin_url"`
	EmailIfPublic string `json:"email_if_public"`
	Source        string `json:"source"`
}

// EnrichedCompany is a company after firmographic enrichment. Empty
// enrichment fields plus a non-empty ErrorNote mark a row-level failure.
type EnrichedCompany struct {
	ScoredCompany
	EmployeeRange            string          `json:"employee_range"`
	EmployeeSource           string          `json:"employee_source"`
	EmployeeConfidence       float64         `json:"employee_confidence"`
	RevenueRange             string          `json:"revenue_range"`
	RevenueSource            string          `json:"revenue_source"`
	RevenueConfidence        float64         `json:"revenue_confidence"`
	DecisionMakers           []DecisionMaker `json:"decision_makers"`
	DecisionMakersSource     string          `json:"decision_makers_source"`
	DecisionMakersConfidence float64         `json:"decision_makers_confidence"`
	ErrorNote                string          `json:"error_note,omitempty"`
}

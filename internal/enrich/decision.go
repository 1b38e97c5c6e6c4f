package enrich

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sells-group/expo-cli/internal/model"
	"github.com/sells-group/expo-cli/pkg/serper"
)

// decisionMakerTitles lists target roles in priority order. Only the first
// few are searched to keep the per-company API budget bounded.
var decisionMakerTitles = []string{
	"Director of Product",
	"Head of Product",
	"R&D Director",
	"Director of R&D",
	"Materials Manager",
	"Engineering Director",
	"Innovation Director",
	"Procurement Director",
	"Strategic Sourcing Director",
}

const (
	searchedTitles    = 3
	maxDecisionMakers = 3
)

var (
	personNameRe = regexp.MustCompile(`([A-Z][a-z]+ [A-Z][a-z]+)`)
	pipeTitleRe  = regexp.MustCompile(`\|([^|]+)\|`)
)

// titleContextRes extracts the sentence fragment around each target role
// from a snippet.
var titleContextRes = func() map[string]*regexp.Regexp {
	res := make(map[string]*regexp.Regexp, len(decisionMakerTitles))
	for _, t := range decisionMakerTitles {
		res[t] = regexp.MustCompile(`(?i)([^.]*` + regexp.QuoteMeta(t) + `[^.]*)`)
	}
	return res
}()

// decisionMakers searches LinkedIn profiles for priority roles at the
// company. Profiles are deduplicated by URL and capped; the returned source
// is the most recently accepted profile link and the confidence is the best
// seen.
func (e *Enricher) decisionMakers(ctx context.Context, name, domain string) (makers []model.DecisionMaker, source string, confidence float64, err error) {
	domainPart := ""
	if domain != "" {
		domainPart = " " + domain
	}
	nameLower := strings.ToLower(name)
	domainLower := strings.ToLower(domain)

	for _, role := range decisionMakerTitles[:searchedTitles] {
		queries := []string{
			fmt.Sprintf(`"%s" "%s" LinkedIn%s`, name, role, domainPart),
			fmt.Sprintf(`"%s" %s%s`, name, role, domainPart),
		}

		for _, query := range queries {
			resp, err := e.search(ctx, query, 5)
			if err != nil {
				return nil, "", 0, err
			}

			for _, item := range resp.Organic {
				profile, ok := extractLinkedInProfile(item)
				if !ok {
					continue
				}

				snippetLower := strings.ToLower(item.Snippet)
				titleLower := strings.ToLower(item.Title)

				conf := 0.6
				if strings.Contains(snippetLower, nameLower) || strings.Contains(titleLower, nameLower) {
					conf = 0.8
				}
				if domain != "" && strings.Contains(snippetLower+titleLower, domainLower) {
					conf = 0.9
				}

				if conf < minConfidence || hasProfileURL(makers, profile.LinkedInURL) {
					continue
				}

				makers = append(makers, profile)
				source = item.Link
				if conf > confidence {
					confidence = conf
				}
				if len(makers) >= maxDecisionMakers {
					return makers, source, confidence, nil
				}
			}
		}
	}

	if len(makers) == 0 {
		return nil, "", 0, nil
	}
	return makers, source, confidence, nil
}

// extractLinkedInProfile pulls a contact out of one search result. The
// result must link to a LinkedIn profile and mention one of the target
// roles; names come from the "Name | Title | LinkedIn" headline shape.
func extractLinkedInProfile(item serper.OrganicResult) (model.DecisionMaker, bool) {
	if !strings.Contains(strings.ToLower(item.Link), "linkedin.com/in/") {
		return model.DecisionMaker{}, false
	}

	name := item.Title
	if i := strings.Index(name, "|"); i >= 0 {
		name = name[:i]
	}
	name = strings.TrimSpace(name)
	if name == "" {
		m := personNameRe.FindStringSubmatch(item.Snippet)
		if m == nil {
			return model.DecisionMaker{}, false
		}
		name = m[1]
	}

	jobTitle := ""
	titleText := strings.ToLower(item.Title + " " + item.Snippet)
	for _, role := range decisionMakerTitles {
		roleLower := strings.ToLower(role)
		if !strings.Contains(titleText, roleLower) {
			continue
		}
		if strings.Contains(strings.ToLower(item.Title), roleLower) {
			if m := pipeTitleRe.FindStringSubmatch(item.Title); m != nil {
				jobTitle = strings.TrimSpace(m[1])
			} else {
				jobTitle = role
			}
		} else if m := titleContextRes[role].FindStringSubmatch(item.Snippet); m != nil {
			jobTitle = strings.TrimSpace(m[1])
		} else {
			jobTitle = role
		}
		break
	}
	if jobTitle == "" {
		return model.DecisionMaker{}, false
	}

	return model.DecisionMaker{
		Name:          name,
		Title:         jobTitle,
		LinkedInURL:   item.Link,
		EmailIfPublic: "",
		Source:        "serper_linkedin_search",
	}, true
}

func hasProfileURL(makers []model.DecisionMaker, url string) bool {
	for _, m := range makers {
		if m.LinkedInURL == url {
			return true
		}
	}
	return false
}

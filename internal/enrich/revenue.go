package enrich

import (
	"context"
	"fmt"
	"strings"
)

// revenueRange runs the multi-pass revenue lookup. When a domain is known, a
// site-restricted query leads so the company's own pages are preferred over
// aggregators.
func (e *Enricher) revenueRange(ctx context.Context, name, domain string) (rng, source string, confidence float64, err error) {
	domainPart := ""
	if domain != "" {
		domainPart = " " + domain
	}

	queries := []string{
		fmt.Sprintf(`"%s"%s annual revenue`, name, domainPart),
		fmt.Sprintf(`"%s"%s revenue`, name, domainPart),
		fmt.Sprintf(`"%s"%s company revenue`, name, domainPart),
		fmt.Sprintf(`"%s"%s revenue employees`, name, domainPart),
	}
	if domain != "" {
		queries = append([]string{fmt.Sprintf("site:%s revenue", domain)}, queries...)
	}

	for _, query := range queries {
		resp, err := e.search(ctx, query, 5)
		if err != nil {
			return "", "", 0, err
		}

		for _, item := range resp.Organic {
			combined := strings.ToLower(item.Title + " " + item.Snippet)

			conf := 0.6
			if domain != "" && strings.Contains(combined, strings.ToLower(domain)) {
				conf = 0.9
			}

			if !strings.Contains(combined, "revenue") && !strings.Contains(combined, "million") {
				continue
			}

			if r := normalizeRevenueRange(item.Title + " " + item.Snippet); r != "" && conf >= minConfidence {
				return r, item.Link, conf, nil
			}
		}
	}

	return "", "", 0, nil
}

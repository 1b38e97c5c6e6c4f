package enrich

import (
	"context"
	"fmt"
	"strings"
)

// employeeRange runs the multi-pass employee headcount lookup. LinkedIn
// company pages are the strongest source, so that query goes first; later
// passes broaden to about/size pages. The first extractable result at or
// above the confidence floor wins.
func (e *Enricher) employeeRange(ctx context.Context, name, domain string) (rng, source string, confidence float64, err error) {
	domainPart := ""
	if domain != "" {
		domainPart = " " + domain
	}

	queries := []string{
		fmt.Sprintf(`site:linkedin.com/company "%s"%s`, name, domainPart),
		fmt.Sprintf(`"%s"%s about team employees`, name, domainPart),
		fmt.Sprintf(`"%s"%s revenue employees`, name, domainPart),
		fmt.Sprintf(`"%s"%s company size`, name, domainPart),
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
			} else if strings.Contains(strings.ToLower(item.Link), "linkedin.com/company") {
				conf = 0.8
			}

			if !strings.Contains(combined, "employee") &&
				!strings.Contains(combined, "staff") &&
				!strings.Contains(combined, "team") {
				continue
			}

			if r := normalizeEmployeeRange(item.Title + " " + item.Snippet); r != "" && conf >= minConfidence {
				return r, item.Link, conf, nil
			}
		}
	}

	return "", "", 0, nil
}

package enrich

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// skipDomainSites are hosts that rank for "official website" queries but
// are never the company's own site.
var skipDomainSites = []string{
	"facebook.com", "linkedin.com", "twitter.com", "instagram.com",
	"crunchbase", "zoominfo", "bloomberg", "wikipedia.org",
}

// discoverDomain looks up the company's official website for rows that
// arrived without a domain. Social and aggregator links are skipped; if
// nothing else ranks, any non-social domain from the results is better than
// none.
func (e *Enricher) discoverDomain(ctx context.Context, name string) (string, error) {
	resp, err := e.search(ctx, fmt.Sprintf("%s official website", name), 5)
	if err != nil {
		return "", err
	}

	for _, item := range resp.Organic {
		link := strings.ToLower(item.Link)
		if containsAnySubstring(link, skipDomainSites) {
			continue
		}
		if d := domainFromURL(item.Link); d != "" {
			return d, nil
		}
	}

	for _, item := range resp.Organic {
		d := domainFromURL(item.Link)
		if d == "" {
			continue
		}
		if containsAnySubstring(d, []string{"facebook", "linkedin", "twitter", "instagram"}) {
			continue
		}
		return d, nil
	}

	return "", nil
}

// cleanDomain strips scheme, www prefix, and any path from a domain value
// as it appears in upstream CSVs.
func cleanDomain(raw string) string {
	d := strings.TrimSpace(raw)
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "www.")
	if i := strings.Index(d, "/"); i >= 0 {
		d = d[:i]
	}
	return d
}

// domainFromURL extracts a bare hostname from a link, dropping the www
// prefix and any port.
func domainFromURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := u.Hostname()
	if host == "" {
		host, _, _ = strings.Cut(u.Path, "/")
		if i := strings.LastIndex(host, ":"); i >= 0 {
			host = host[:i]
		}
	}
	return strings.TrimPrefix(host, "www.")
}

func containsAnySubstring(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

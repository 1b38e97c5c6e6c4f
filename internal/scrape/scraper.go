// Package scrape extracts exhibitor listings from trade-show directory
// pages. It works against static HTML only: a selector ladder for the
// common directory layouts, then a link-scan fallback for everything else.
package scrape

import (
	"context"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/sells-group/expo-cli/internal/model"
	"github.com/sells-group/expo-cli/internal/resilience"
)

// DefaultMaxExhibitors caps a scrape when the caller sets no limit.
const DefaultMaxExhibitors = 200

// Options configures a Scraper.
type Options struct {
	// UserAgent sent with every request. Directory sites tend to reject
	// the Go default agent outright.
	UserAgent string

	// Timeout bounds one fetch. Default: 30s.
	Timeout time.Duration

	// MaxExhibitors caps results when the run config has no limit.
	// Default: DefaultMaxExhibitors.
	MaxExhibitors int
}

// Scraper fetches and parses exhibitor directory pages.
type Scraper struct {
	http       *http.Client
	userAgent  string
	defaultMax int
}

// New creates a Scraper.
func New(opts Options) *Scraper {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxResults := opts.MaxExhibitors
	if maxResults <= 0 {
		maxResults = DefaultMaxExhibitors
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	}
	return &Scraper{
		http:       &http.Client{Timeout: timeout},
		userAgent:  ua,
		defaultMax: maxResults,
	}
}

// Scrape fetches sourceURL and returns up to limit exhibitor rows in page
// order. A limit of zero falls back to the configured maximum.
func (s *Scraper) Scrape(ctx context.Context, sourceURL string, limit int) ([]model.Company, error) {
	if strings.TrimSpace(sourceURL) == "" {
		return nil, eris.New("scrape: source URL is empty")
	}
	if limit <= 0 {
		limit = s.defaultMax
	}

	log := zap.L().With(zap.String("source_url", sourceURL))

	doc, err := s.fetch(ctx, sourceURL)
	if err != nil {
		return nil, err
	}

	candidates := extractCandidates(doc)
	log.Debug("extracted raw candidates", zap.Int("count", len(candidates)))

	companies := make([]model.Company, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, cand := range candidates {
		name, blurb, ok := cleanCandidate(cand)
		if !ok {
			continue
		}
		key := strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true

		companies = append(companies, model.Company{
			Name:      name,
			Blurb:     blurb,
			SourceURL: sourceURL,
		})
		if len(companies) >= limit {
			break
		}
	}

	log.Info("scraped exhibitors",
		zap.Int("candidates", len(candidates)),
		zap.Int("companies", len(companies)),
	)

	return companies, nil
}

// fetch downloads and parses the page, decoding non-UTF-8 charsets declared
// in the Content-Type header. Transient HTTP failures are retried.
func (s *Scraper) fetch(ctx context.Context, url string) (*goquery.Document, error) {
	retryCfg := resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		OnRetry:        resilience.RetryLogger("scrape", "fetch"),
	}

	return resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*goquery.Document, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, eris.Wrap(err, "scrape: create request")
		}
		req.Header.Set("User-Agent", s.userAgent)
		req.Header.Set("Accept", "text/html,application/xhtml+xml")

		resp, err := s.http.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "scrape: fetch page")
		}
		defer resp.Body.Close() //nolint:errcheck

		if resp.StatusCode != http.StatusOK {
			err := eris.Errorf("scrape: unexpected status %d for %s", resp.StatusCode, url)
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(err, resp.StatusCode)
			}
			return nil, err
		}

		body := decodeCharset(resp.Body, resp.Header.Get("Content-Type"))
		doc, err := goquery.NewDocumentFromReader(body)
		if err != nil {
			return nil, eris.Wrap(err, "scrape: parse html")
		}
		return doc, nil
	})
}

// decodeCharset wraps body with a charset decoder when the Content-Type
// declares a non-UTF-8 encoding. Unknown encodings pass through untouched.
func decodeCharset(body io.Reader, contentType string) io.Reader {
	if contentType == "" {
		return body
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return body
	}
	name := strings.ToLower(params["charset"])
	if name == "" || name == "utf-8" || name == "utf8" {
		return body
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		zap.L().Warn("unknown charset, reading as-is", zap.String("charset", name))
		return body
	}
	return enc.NewDecoder().Reader(body)
}

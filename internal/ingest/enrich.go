package ingest

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	readability "github.com/go-shiori/go-readability"

	"github.com/TobiSchelling/Quantify/internal/posts"
)

// maxPageBytes caps how much of a linked page is read.
const maxPageBytes = 4 << 20

// EnrichResult holds the results of a content enrichment run.
type EnrichResult struct {
	Fetched int
	Skipped int
	Failed  int
}

// Enricher fills empty post content from the post's URL via readability
// extraction.
type Enricher struct {
	client *http.Client
}

// NewEnricher creates an Enricher with the given per-request timeout.
func NewEnricher(timeout time.Duration) *Enricher {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Enricher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// Enrich returns a copy of list where posts with a URL and no content carry
// the extracted page text. A failing domain is not retried within one run.
func (e *Enricher) Enrich(ctx context.Context, list []posts.Post) ([]posts.Post, *EnrichResult) {
	out := make([]posts.Post, len(list))
	copy(out, list)
	result := &EnrichResult{}
	failedDomains := make(map[string]struct{})

	for i := range out {
		p := &out[i]
		if p.Content != "" || p.URL == "" {
			result.Skipped++
			continue
		}

		u, err := url.Parse(p.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			result.Skipped++
			continue
		}
		domain := strings.ToLower(u.Host)
		if _, failed := failedDomains[domain]; failed {
			result.Failed++
			continue
		}

		text, err := e.fetch(ctx, u)
		if err != nil {
			failedDomains[domain] = struct{}{}
			result.Failed++
			log.Printf("Content fetch failed for %s: %v; skipping remaining from %s", p.URL, err, domain)
			continue
		}
		if text == "" {
			result.Failed++
			log.Printf("No extractable content from: %s", p.URL)
			continue
		}

		p.Content = text
		if p.ContentLength == 0 {
			p.ContentLength = utf8.RuneCountInString(text)
		}
		result.Fetched++
	}

	if result.Fetched > 0 || result.Failed > 0 {
		log.Printf("Content fetch complete: %d fetched, %d failed", result.Fetched, result.Failed)
	}
	return out, result
}

func (e *Enricher) fetch(ctx context.Context, u *url.URL) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Quantify/1.0 (post analytics)")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	article, err := readability.FromReader(io.LimitReader(resp.Body, maxPageBytes), u)
	if err != nil {
		return "", nil
	}
	return strings.Join(strings.Fields(article.TextContent), " "), nil
}

// Package scraper fetches full page text for evidence items that arrived
// with only a search snippet, so section writers see complete articles.
package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
)

// Scraper handles web page fetching.
type Scraper struct {
	userAgent      string
	requestTimeout time.Duration
	parallelLimit  int
}

// FetchResult is the outcome of fetching a single URL.
type FetchResult struct {
	URL     string
	Content string
	Err     error
}

// New creates a new Scraper.
func New() *Scraper {
	return &Scraper{
		userAgent:      "reportgen/1.0 (report research pipeline; +https://github.com/Daserxqc/reportgen)",
		requestTimeout: 30 * time.Second,
		parallelLimit:  5,
	}
}

// FetchPage downloads one page and extracts its readable text.
func (s *Scraper) FetchPage(ctx context.Context, pageURL string) (string, error) {
	if err := validateURL(pageURL); err != nil {
		return "", err
	}

	c := colly.NewCollector(
		colly.UserAgent(s.userAgent),
		colly.MaxDepth(1),
	)
	c.SetRequestTimeout(s.requestTimeout)

	var content strings.Builder
	var mu sync.Mutex

	contentSelectors := []string{
		"article", "main", ".content", ".post",
		".article", ".entry-content", "#content", "#main",
	}
	for _, selector := range contentSelectors {
		c.OnHTML(selector, func(e *colly.HTMLElement) {
			mu.Lock()
			defer mu.Unlock()
			text := cleanText(e.Text)
			if len(text) > 100 {
				content.WriteString(text)
				content.WriteString("\n\n")
			}
		})
	}

	c.OnHTML("p", func(e *colly.HTMLElement) {
		mu.Lock()
		defer mu.Unlock()
		text := cleanText(e.Text)
		if len(text) > 50 && len(text) < 2000 {
			content.WriteString(text)
			content.WriteString("\n")
		}
	})

	var fetchErr error
	c.OnError(func(r *colly.Response, err error) {
		fetchErr = fmt.Errorf("fetch error for %s: %w (status: %d)", pageURL, err, r.StatusCode)
	})

	if err := c.Visit(pageURL); err != nil {
		return "", fmt.Errorf("failed to visit %s: %w", pageURL, err)
	}
	c.Wait()

	if fetchErr != nil {
		return "", fetchErr
	}

	contentStr := content.String()
	if len(contentStr) < 100 {
		return "", fmt.Errorf("insufficient content fetched from %s", pageURL)
	}

	const maxLength = 20000
	if len(contentStr) > maxLength {
		contentStr = contentStr[:maxLength] + "..."
	}
	return contentStr, nil
}

// FetchAll downloads multiple pages concurrently, bounded by the parallel
// limit. Failed fetches are reported per URL, never fatal for the batch.
func (s *Scraper) FetchAll(ctx context.Context, urls []string) []FetchResult {
	var results []FetchResult
	var mu sync.Mutex

	sem := make(chan struct{}, s.parallelLimit)
	var wg sync.WaitGroup

	for _, pageURL := range urls {
		select {
		case <-ctx.Done():
			return results
		default:
		}

		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					mu.Lock()
					results = append(results, FetchResult{URL: u, Err: fmt.Errorf("panic while fetching: %v", r)})
					mu.Unlock()
				}
			}()

			sem <- struct{}{}
			defer func() { <-sem }()

			content, err := s.FetchPage(ctx, u)

			mu.Lock()
			results = append(results, FetchResult{URL: u, Content: content, Err: err})
			mu.Unlock()
		}(pageURL)
	}

	wg.Wait()
	return results
}

func validateURL(urlStr string) error {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL must use http or https scheme")
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}

func cleanText(s string) string {
	return strings.TrimSpace(strings.Join(strings.Fields(s), " "))
}

package search

import (
	"context"
	"fmt"
	"net/url"

	"github.com/mmcdole/gofeed"

	"github.com/Daserxqc/reportgen/internal/evidence"
)

const arxivEndpoint = "http://export.arxiv.org/api/query"

// Arxiv queries the arXiv API, which serves results as an Atom feed.
// No API key is required.
type Arxiv struct {
	parser *gofeed.Parser
}

// NewArxiv constructs an arXiv search provider.
func NewArxiv() *Arxiv {
	return &Arxiv{parser: gofeed.NewParser()}
}

func (a *Arxiv) Name() string { return "arxiv" }

// Search queries arXiv across all fields, newest submissions first.
func (a *Arxiv) Search(ctx context.Context, query string, max int) ([]evidence.Item, error) {
	endpoint := fmt.Sprintf(
		"%s?search_query=all:%s&start=0&max_results=%d&sortBy=submittedDate&sortOrder=descending",
		arxivEndpoint, url.QueryEscape(query), max)

	feed, err := a.parser.ParseURLWithContext(endpoint, ctx)
	if err != nil {
		return nil, fmt.Errorf("arxiv query failed: %w", err)
	}

	items := make([]evidence.Item, 0, len(feed.Items))
	for _, entry := range feed.Items {
		items = append(items, evidence.Item{
			Title:   entry.Title,
			Content: entry.Description, // the paper abstract
			Source:  "arxiv",
			URL:     entry.Link,
		})
		if len(items) >= max {
			break
		}
	}
	return items, nil
}

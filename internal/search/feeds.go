package search

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/Daserxqc/reportgen/internal/evidence"
)

// Feeds searches a configured list of RSS/Atom feeds by keyword match.
// Useful for industry topics whose trade press is better covered by feeds
// than by general web search.
type Feeds struct {
	urls   []string
	parser *gofeed.Parser
}

// NewFeeds constructs a feed-backed search provider.
func NewFeeds(urls []string) *Feeds {
	return &Feeds{urls: urls, parser: gofeed.NewParser()}
}

func (f *Feeds) Name() string { return "feeds" }

// Search fetches every configured feed and returns entries whose title or
// description contains any term of the query. A feed that fails to parse
// is skipped, not fatal.
func (f *Feeds) Search(ctx context.Context, query string, max int) ([]evidence.Item, error) {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, nil
	}

	var items []evidence.Item
	for _, feedURL := range f.urls {
		if ctx.Err() != nil {
			return items, ctx.Err()
		}

		feed, err := f.parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			slog.Debug("Feed fetch failed", "url", feedURL, "error", err)
			continue
		}

		source := feed.Title
		if source == "" {
			source = feedURL
		}

		for _, entry := range feed.Items {
			if !matchesAny(entry.Title+" "+entry.Description, terms) {
				continue
			}
			items = append(items, evidence.Item{
				Title:   entry.Title,
				Content: entry.Description,
				Source:  source,
				URL:     entry.Link,
			})
			if len(items) >= max {
				return items, nil
			}
		}
	}
	return items, nil
}

func matchesAny(text string, terms []string) bool {
	text = strings.ToLower(text)
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

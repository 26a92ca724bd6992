package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Daserxqc/reportgen/internal/evidence"
)

const braveEndpoint = "https://api.search.brave.com/res/v1/web/search"

// Brave uses the Brave Search API. An API key is required via
// X-Subscription-Token. Brave's free tier allows one request per second,
// so all calls through one provider instance share a rate limiter.
type Brave struct {
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
}

// NewBrave constructs a Brave search provider.
func NewBrave(apiKey string) *Brave {
	return &Brave{
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

func (b *Brave) Name() string { return "brave" }

// Search executes a Brave query. Concurrent calls are serialised through
// the limiter to respect the 1 req/s cap.
func (b *Brave) Search(ctx context.Context, query string, max int) ([]evidence.Item, error) {
	if strings.TrimSpace(b.apiKey) == "" {
		return nil, errors.New("brave: API key is missing")
	}

	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s?q=%s&count=%d", braveEndpoint, url.QueryEscape(query), max)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("brave http %d", resp.StatusCode)
	}

	var response struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, err
	}

	items := make([]evidence.Item, 0, len(response.Web.Results))
	for _, r := range response.Web.Results {
		items = append(items, evidence.Item{
			Title:   r.Title,
			Content: r.Description,
			Source:  "brave",
			URL:     r.URL,
		})
		if len(items) >= max {
			break
		}
	}
	return items, nil
}

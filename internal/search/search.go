// Package search fans queries out across multiple web-search providers and
// collects their results as evidence items.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Daserxqc/reportgen/internal/evidence"
)

// Query is one search request, tagged with the evidence category its
// results belong to.
type Query struct {
	Text     string
	Category string
}

// Provider is a single search backend.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, max int) ([]evidence.Item, error)
}

// Multi fans each query out to every provider with a bounded worker pool
// and a per-request timeout, collecting partial results. A provider error
// costs only that provider's results for that query, never the batch.
type Multi struct {
	providers   []Provider
	workers     int
	timeout     time.Duration
	maxPerQuery int
}

// NewMulti creates a fan-out searcher. workers, timeout, and maxPerQuery
// fall back to 4, 30s, and 5 when non-positive.
func NewMulti(providers []Provider, workers int, timeout time.Duration, maxPerQuery int) *Multi {
	if workers <= 0 {
		workers = 4
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxPerQuery <= 0 {
		maxPerQuery = 5
	}
	return &Multi{providers: providers, workers: workers, timeout: timeout, maxPerQuery: maxPerQuery}
}

// Search runs all queries against all providers. The returned map groups
// items by query category, preserving per-provider result order. The error
// is non-nil only when every single request failed and nothing was
// collected; partial failure is logged and absorbed.
func (m *Multi) Search(ctx context.Context, queries []Query) (map[string][]evidence.Item, error) {
	if len(queries) == 0 || len(m.providers) == 0 {
		return map[string][]evidence.Item{}, nil
	}

	type job struct {
		query    Query
		provider Provider
	}
	type outcome struct {
		category string
		items    []evidence.Item
		err      error
	}

	jobs := make([]job, 0, len(queries)*len(m.providers))
	for _, q := range queries {
		for _, p := range m.providers {
			jobs = append(jobs, job{query: q, provider: p})
		}
	}

	results := make([]outcome, len(jobs))
	sem := make(chan struct{}, m.workers)
	var wg sync.WaitGroup

	for i, j := range jobs {
		wg.Add(1)
		go func(i int, j job) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			reqCtx, cancel := context.WithTimeout(ctx, m.timeout)
			defer cancel()

			items, err := j.provider.Search(reqCtx, j.query.Text, m.maxPerQuery)
			if err != nil {
				slog.Warn("Search provider failed",
					"provider", j.provider.Name(), "query", j.query.Text, "error", err)
			}
			results[i] = outcome{category: j.query.Category, items: items, err: err}
		}(i, j)
	}
	wg.Wait()

	batch := make(map[string][]evidence.Item)
	collected := 0
	failures := 0
	for _, r := range results {
		if r.err != nil {
			failures++
			continue
		}
		if len(r.items) > 0 {
			batch[r.category] = append(batch[r.category], r.items...)
			collected += len(r.items)
		}
	}

	if collected == 0 && failures == len(jobs) {
		return map[string][]evidence.Item{}, fmt.Errorf("search: all %d requests failed", failures)
	}

	slog.Info("Search batch complete",
		"queries", len(queries), "providers", len(m.providers),
		"collected", collected, "failed_requests", failures)
	return batch, nil
}

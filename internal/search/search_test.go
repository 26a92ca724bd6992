package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Daserxqc/reportgen/internal/evidence"
)

// fakeProvider returns canned items or an error, tracking call counts.
type fakeProvider struct {
	name  string
	items []evidence.Item
	err   error
	calls atomic.Int32
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Search(ctx context.Context, query string, max int) ([]evidence.Item, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

func TestMultiCollectsAcrossProviders(t *testing.T) {
	p1 := &fakeProvider{name: "one", items: []evidence.Item{{Title: "a", Content: "1", Source: "one"}}}
	p2 := &fakeProvider{name: "two", items: []evidence.Item{{Title: "b", Content: "2", Source: "two"}}}
	m := NewMulti([]Provider{p1, p2}, 2, time.Second, 5)

	batch, err := m.Search(context.Background(), []Query{
		{Text: "some topic", Category: evidence.CategoryBreaking},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(batch[evidence.CategoryBreaking]) != 2 {
		t.Errorf("collected %d items, want 2", len(batch[evidence.CategoryBreaking]))
	}
	if p1.calls.Load() != 1 || p2.calls.Load() != 1 {
		t.Errorf("provider calls = %d/%d, want 1/1", p1.calls.Load(), p2.calls.Load())
	}
}

func TestMultiPartialFailure(t *testing.T) {
	ok := &fakeProvider{name: "ok", items: []evidence.Item{{Title: "a", Content: "1", Source: "ok"}}}
	bad := &fakeProvider{name: "bad", err: errors.New("boom")}
	m := NewMulti([]Provider{ok, bad}, 2, time.Second, 5)

	batch, err := m.Search(context.Background(), []Query{
		{Text: "q", Category: evidence.CategoryTrend},
	})
	if err != nil {
		t.Fatalf("partial failure must not error: %v", err)
	}
	if len(batch[evidence.CategoryTrend]) != 1 {
		t.Errorf("collected %d items, want 1 from the healthy provider", len(batch[evidence.CategoryTrend]))
	}
}

func TestMultiTotalFailure(t *testing.T) {
	bad1 := &fakeProvider{name: "bad1", err: errors.New("boom")}
	bad2 := &fakeProvider{name: "bad2", err: errors.New("boom")}
	m := NewMulti([]Provider{bad1, bad2}, 2, time.Second, 5)

	batch, err := m.Search(context.Background(), []Query{{Text: "q", Category: evidence.CategoryTrend}})
	if err == nil {
		t.Error("total failure should surface an error")
	}
	if len(batch) != 0 {
		t.Errorf("batch = %v, want empty", batch)
	}
}

func TestMultiRoutesCategories(t *testing.T) {
	p := &fakeProvider{name: "p", items: []evidence.Item{{Title: "x", Content: "y", Source: "p"}}}
	m := NewMulti([]Provider{p}, 4, time.Second, 5)

	batch, err := m.Search(context.Background(), []Query{
		{Text: "q1", Category: evidence.CategoryPolicy},
		{Text: "q2", Category: evidence.CategoryInvestment},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(batch[evidence.CategoryPolicy]) != 1 || len(batch[evidence.CategoryInvestment]) != 1 {
		t.Errorf("batch categories = %v, want one item under each query's category", batch)
	}
}

func TestMultiBoundsWorkers(t *testing.T) {
	var mu sync.Mutex
	inflight, peak := 0, 0

	slow := &slowProvider{onCall: func() {
		mu.Lock()
		inflight++
		if inflight > peak {
			peak = inflight
		}
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		inflight--
		mu.Unlock()
	}}

	m := NewMulti([]Provider{slow}, 2, time.Second, 5)
	queries := make([]Query, 8)
	for i := range queries {
		queries[i] = Query{Text: fmt.Sprintf("q%d", i), Category: evidence.CategoryTrend}
	}
	if _, err := m.Search(context.Background(), queries); err != nil {
		t.Fatal(err)
	}
	if peak > 2 {
		t.Errorf("peak concurrent requests = %d, want <= 2", peak)
	}
}

type slowProvider struct {
	onCall func()
}

func (s *slowProvider) Name() string { return "slow" }

func (s *slowProvider) Search(ctx context.Context, query string, max int) ([]evidence.Item, error) {
	s.onCall()
	return []evidence.Item{{Title: query, Content: "body", Source: "slow"}}, nil
}

func TestMultiEmptyInputs(t *testing.T) {
	m := NewMulti(nil, 2, time.Second, 5)
	batch, err := m.Search(context.Background(), []Query{{Text: "q", Category: "c"}})
	if err != nil || len(batch) != 0 {
		t.Errorf("no providers: batch=%v err=%v, want empty and nil", batch, err)
	}

	m = NewMulti([]Provider{&fakeProvider{name: "p"}}, 2, time.Second, 5)
	batch, err = m.Search(context.Background(), nil)
	if err != nil || len(batch) != 0 {
		t.Errorf("no queries: batch=%v err=%v, want empty and nil", batch, err)
	}
}

package refine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Daserxqc/reportgen/internal/evidence"
	"github.com/Daserxqc/reportgen/internal/quality"
	"github.com/Daserxqc/reportgen/internal/search"
)

// scriptedEvaluator returns canned results in order, repeating the last one.
type scriptedEvaluator struct {
	results []*quality.Result
	calls   int
}

func (s *scriptedEvaluator) Score(ctx context.Context, topic string, sample []evidence.Item) *quality.Result {
	i := s.calls
	s.calls++
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	return s.results[i]
}

func passing(score float64) *quality.Result {
	return &quality.Result{TotalScore: score}
}

func failing(score float64, weak ...string) *quality.Result {
	return &quality.Result{TotalScore: score, WeakDimensions: weak, NeedsIteration: true}
}

type fixedQueries struct{}

func (fixedQueries) Generate(ctx context.Context, weakDims []string, topic string) []search.Query {
	return []search.Query{{Text: topic + " latest", Category: evidence.CategoryTrend}}
}

// countingSearcher returns a fresh uniquely-titled item per call.
type countingSearcher struct {
	calls int
	err   error
}

func (c *countingSearcher) Search(ctx context.Context, queries []search.Query) (map[string][]evidence.Item, error) {
	c.calls++
	if c.err != nil {
		return map[string][]evidence.Item{}, c.err
	}
	return map[string][]evidence.Item{
		evidence.CategoryTrend: {{
			Title:   fmt.Sprintf("round %d story", c.calls),
			Content: "found in a later round",
			Source:  "fake",
		}},
	}, nil
}

func seedSet(t *testing.T, n int) *evidence.Set {
	t.Helper()
	set := evidence.NewSet()
	batch := map[string][]evidence.Item{}
	for i := 0; i < n; i++ {
		batch[evidence.CategoryBreaking] = append(batch[evidence.CategoryBreaking],
			evidence.Item{Title: fmt.Sprintf("seed %d", i), Content: "seed body", Source: "seed"})
	}
	if _, err := set.Merge(batch); err != nil {
		t.Fatal(err)
	}
	return set
}

func TestRunImmediateSufficiency(t *testing.T) {
	eval := &scriptedEvaluator{results: []*quality.Result{passing(8.0)}}
	searcher := &countingSearcher{}
	loop, err := New(eval, fixedQueries{}, searcher, 3, 7.0)
	if err != nil {
		t.Fatal(err)
	}

	out, err := loop.Run(context.Background(), "topic", seedSet(t, 4))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.State != StateSufficient {
		t.Errorf("state = %v, want sufficient", out.State)
	}
	if eval.calls != 1 {
		t.Errorf("evaluations = %d, want exactly 1", eval.calls)
	}
	if searcher.calls != 0 {
		t.Errorf("searches = %d, want 0", searcher.calls)
	}
	if out.FinalScore() != 8.0 {
		t.Errorf("final score = %v, want 8.0", out.FinalScore())
	}
}

func TestRunExhaustion(t *testing.T) {
	eval := &scriptedEvaluator{results: []*quality.Result{
		failing(3.0, "completeness", "accuracy", "depth", "relevance", "clarity"),
	}}
	searcher := &countingSearcher{}
	loop, err := New(eval, fixedQueries{}, searcher, 2, 7.0)
	if err != nil {
		t.Fatal(err)
	}

	initial := seedSet(t, 3)
	out, err := loop.Run(context.Background(), "topic", initial)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.State != StateExhausted {
		t.Errorf("state = %v, want exhausted", out.State)
	}
	if searcher.calls != 2 {
		t.Errorf("search rounds = %d, want exactly 2", searcher.calls)
	}
	if out.Iterations != 2 {
		t.Errorf("iterations = %d, want 2", out.Iterations)
	}
	// Initial 3 seeds plus one unique item per search round.
	if out.Evidence.TotalCount != 5 {
		t.Errorf("TotalCount = %d, want 5", out.Evidence.TotalCount)
	}
}

func TestRunEmptyInitialEvidenceTriggersSearch(t *testing.T) {
	eval := &scriptedEvaluator{results: []*quality.Result{
		failing(0, "completeness"),
		passing(8.0),
	}}
	searcher := &countingSearcher{}
	loop, err := New(eval, fixedQueries{}, searcher, 3, 7.0)
	if err != nil {
		t.Fatal(err)
	}

	out, err := loop.Run(context.Background(), "topic", evidence.NewSet())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if searcher.calls < 1 {
		t.Error("empty initial evidence must trigger at least one search round")
	}
	if out.State != StateSufficient {
		t.Errorf("state = %v, want sufficient after recovery", out.State)
	}
	if out.Evidence.TotalCount == 0 {
		t.Error("evidence still empty after a successful search round")
	}
}

func TestRunSearchFailureResilience(t *testing.T) {
	eval := &scriptedEvaluator{results: []*quality.Result{failing(2.0, "depth")}}
	searcher := &countingSearcher{err: errors.New("every provider is down")}
	loop, err := New(eval, fixedQueries{}, searcher, 3, 7.0)
	if err != nil {
		t.Fatal(err)
	}

	initial := seedSet(t, 2)
	before := initial.TotalCount

	out, err := loop.Run(context.Background(), "topic", initial)
	if err != nil {
		t.Fatalf("Run must absorb search failures, got: %v", err)
	}
	if out.State != StateExhausted {
		t.Errorf("state = %v, want exhausted", out.State)
	}
	if out.Iterations != 3 {
		t.Errorf("iterations = %d, want the full budget of 3", out.Iterations)
	}
	if out.Evidence.TotalCount != before {
		t.Errorf("TotalCount = %d, want unchanged %d", out.Evidence.TotalCount, before)
	}
}

func TestRunMergeCorruptionIsFatal(t *testing.T) {
	eval := &scriptedEvaluator{results: []*quality.Result{failing(2.0, "depth")}}
	bad := &badItemSearcher{}
	loop, err := New(eval, fixedQueries{}, bad, 3, 7.0)
	if err != nil {
		t.Fatal(err)
	}

	out, err := loop.Run(context.Background(), "topic", seedSet(t, 1))
	if err == nil {
		t.Fatal("merge corruption must surface an error")
	}
	if !errors.Is(err, evidence.ErrUnidentifiable) {
		t.Errorf("err = %v, want wrapped ErrUnidentifiable", err)
	}
	if out.State != StateError {
		t.Errorf("state = %v, want error", out.State)
	}
	if out.Evidence == nil {
		t.Error("evidence must still be returned on the error path")
	}
}

type badItemSearcher struct{}

func (badItemSearcher) Search(ctx context.Context, queries []search.Query) (map[string][]evidence.Item, error) {
	return map[string][]evidence.Item{
		evidence.CategoryTrend: {{Title: "", Content: "", Source: "broken"}},
	}, nil
}

func TestRunCancellationBetweenIterations(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	eval := &scriptedEvaluator{results: []*quality.Result{failing(2.0, "depth")}}
	searcher := &cancellingSearcher{cancel: cancel}
	loop, err := New(eval, fixedQueries{}, searcher, 10, 7.0)
	if err != nil {
		t.Fatal(err)
	}

	out, err := loop.Run(ctx, "topic", seedSet(t, 1))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	// The in-flight unit of work finished before the check fired.
	if searcher.calls != 1 {
		t.Errorf("search calls = %d, want exactly 1 before cancellation took effect", searcher.calls)
	}
	if out.Evidence == nil {
		t.Error("cancelled run must still return collected evidence")
	}
}

// cancellingSearcher cancels the context during its first call, simulating
// a caller abort while a search is in flight.
type cancellingSearcher struct {
	cancel context.CancelFunc
	calls  int
}

func (c *cancellingSearcher) Search(ctx context.Context, queries []search.Query) (map[string][]evidence.Item, error) {
	c.calls++
	c.cancel()
	return map[string][]evidence.Item{}, nil
}

func TestRunTerminationForAnyBudget(t *testing.T) {
	for _, max := range []int{1, 2, 5} {
		t.Run(fmt.Sprintf("budget_%d", max), func(t *testing.T) {
			eval := &scriptedEvaluator{results: []*quality.Result{failing(1.0, "completeness")}}
			searcher := &countingSearcher{}
			loop, err := New(eval, fixedQueries{}, searcher, max, 7.0)
			if err != nil {
				t.Fatal(err)
			}
			out, err := loop.Run(context.Background(), "topic", evidence.NewSet())
			if err != nil {
				t.Fatal(err)
			}
			if searcher.calls != max {
				t.Errorf("search rounds = %d, want %d", searcher.calls, max)
			}
			if out.State != StateExhausted {
				t.Errorf("state = %v, want exhausted", out.State)
			}
		})
	}
}

func TestRunRepeatedResultsDoNotInflateEvidence(t *testing.T) {
	// A searcher that finds the same story every round: dedup holds the
	// count flat and the loop still terminates on its budget.
	eval := &scriptedEvaluator{results: []*quality.Result{failing(1.0, "completeness")}}
	searcher := &repeatSearcher{}
	loop, err := New(eval, fixedQueries{}, searcher, 4, 7.0)
	if err != nil {
		t.Fatal(err)
	}

	out, err := loop.Run(context.Background(), "topic", seedSet(t, 2))
	if err != nil {
		t.Fatal(err)
	}
	if out.Evidence.TotalCount != 3 {
		t.Errorf("TotalCount = %d, want 3 (2 seeds + 1 unique story)", out.Evidence.TotalCount)
	}
	if out.State != StateExhausted {
		t.Errorf("state = %v, want exhausted", out.State)
	}
}

type repeatSearcher struct{}

func (repeatSearcher) Search(ctx context.Context, queries []search.Query) (map[string][]evidence.Item, error) {
	return map[string][]evidence.Item{
		evidence.CategoryTrend: {{Title: "the one story", Content: "same body", Source: "fake"}},
	}, nil
}

func TestNewValidation(t *testing.T) {
	eval := &scriptedEvaluator{results: []*quality.Result{passing(8)}}
	tests := []struct {
		name    string
		eval    Evaluator
		max     int
		min     float64
		wantErr bool
	}{
		{"valid", eval, 3, 7.0, false},
		{"nil evaluator", nil, 3, 7.0, true},
		{"zero iterations", eval, 0, 7.0, true},
		{"score out of range", eval, 3, 11.0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.eval, fixedQueries{}, &countingSearcher{}, tt.max, tt.min)
			if (err != nil) != tt.wantErr {
				t.Errorf("New err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// Package refine drives the evaluate → generate queries → search → merge
// cycle that decides when collected evidence is good enough to write a
// report from.
package refine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Daserxqc/reportgen/internal/evidence"
	"github.com/Daserxqc/reportgen/internal/quality"
	"github.com/Daserxqc/reportgen/internal/search"
)

// State tracks where a loop run is, or how it ended.
type State int

const (
	StateInitial State = iota
	StateEvaluating
	StateSearching
	StateSufficient // terminal: quality bar met
	StateExhausted  // terminal: iteration budget spent
	StateError      // terminal: evidence merge failed
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StateEvaluating:
		return "evaluating"
	case StateSearching:
		return "searching"
	case StateSufficient:
		return "sufficient"
	case StateExhausted:
		return "exhausted"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether the state ends a run.
func (s State) Terminal() bool {
	return s == StateSufficient || s == StateExhausted || s == StateError
}

// Evaluator scores an evidence sample. *quality.Evaluator satisfies it.
type Evaluator interface {
	Score(ctx context.Context, topic string, sample []evidence.Item) *quality.Result
}

// QueryGenerator maps weak dimensions to targeted queries. *querygen.Mapper
// satisfies it.
type QueryGenerator interface {
	Generate(ctx context.Context, weakDims []string, topic string) []search.Query
}

// Searcher executes a batch of queries. *search.Multi satisfies it.
type Searcher interface {
	Search(ctx context.Context, queries []search.Query) (map[string][]evidence.Item, error)
}

// sampleCap bounds the evidence sample handed to the evaluator each pass.
const sampleCap = 30

// Outcome is what a finished run hands back: the evidence as it stands,
// how the run ended, and the last evaluation that was computed.
type Outcome struct {
	Evidence   *evidence.Set
	State      State
	Iterations int             // search rounds actually performed
	LastResult *quality.Result // nil only if the run was cancelled before the first evaluation
}

// FinalScore returns the last computed total score, or 0 before any
// evaluation happened.
func (o *Outcome) FinalScore() float64 {
	if o.LastResult == nil {
		return 0
	}
	return o.LastResult.TotalScore
}

// Loop owns the convergence control. One Loop value may be reused across
// runs, but each Run owns its evidence set exclusively — nothing here is
// shared between concurrent runs.
type Loop struct {
	evaluator Evaluator
	queries   QueryGenerator
	searcher  Searcher

	maxIterations   int
	minQualityScore float64
}

// New builds a loop, failing fast on configuration errors.
func New(evaluator Evaluator, queries QueryGenerator, searcher Searcher, maxIterations int, minQualityScore float64) (*Loop, error) {
	if evaluator == nil || queries == nil || searcher == nil {
		return nil, fmt.Errorf("refine: evaluator, query generator, and searcher are all required")
	}
	if maxIterations < 1 {
		return nil, fmt.Errorf("refine: max iterations %d, want >= 1", maxIterations)
	}
	if minQualityScore < 0 || minQualityScore > 10 {
		return nil, fmt.Errorf("refine: min quality score %v out of range [0,10]", minQualityScore)
	}
	return &Loop{
		evaluator:       evaluator,
		queries:         queries,
		searcher:        searcher,
		maxIterations:   maxIterations,
		minQualityScore: minQualityScore,
	}, nil
}

// Run repeats evaluate → query → search → merge until the evidence scores
// well enough or the iteration budget runs out. It always returns the best
// evidence collected so far, whatever happens to the collaborators: search
// and evaluation failures degrade, only a merge failure is fatal. The
// error is non-nil only for that fatal case and for context cancellation,
// which is honoured between units of work, never inside one.
func (l *Loop) Run(ctx context.Context, topic string, initial *evidence.Set) (*Outcome, error) {
	set := initial
	if set == nil {
		set = evidence.NewSet()
	}
	out := &Outcome{Evidence: set, State: StateInitial}

	for {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		out.State = StateEvaluating
		res := l.evaluator.Score(ctx, topic, set.Sample(sampleCap))
		out.LastResult = res

		slog.Info("Evidence evaluated",
			"topic", topic,
			"iteration", out.Iterations,
			"total_score", res.TotalScore,
			"weak_dimensions", res.WeakDimensions,
			"evidence_count", set.TotalCount,
			"degraded", res.Degraded)

		if res.TotalScore >= l.minQualityScore && len(res.WeakDimensions) == 0 {
			out.State = StateSufficient
			slog.Info("Evidence sufficient", "topic", topic, "score", res.TotalScore, "iterations", out.Iterations)
			return out, nil
		}

		if err := ctx.Err(); err != nil {
			return out, err
		}

		// Even on the final pass a supplementary search runs, so the caller
		// gets the benefit of the last round's gap analysis.
		out.State = StateSearching
		queries := l.queries.Generate(ctx, res.WeakDimensions, topic)
		batch, err := l.searcher.Search(ctx, queries)
		if err != nil {
			slog.Warn("Search round failed, continuing with existing evidence",
				"topic", topic, "iteration", out.Iterations, "error", err)
		}

		if batchSize(batch) > 0 {
			added, err := set.Merge(batch)
			if err != nil {
				out.State = StateError
				return out, fmt.Errorf("merge evidence: %w", err)
			}
			slog.Info("Evidence merged", "topic", topic, "added", added, "total", set.TotalCount)
		}

		out.Iterations++
		if out.Iterations >= l.maxIterations {
			out.State = StateExhausted
			slog.Info("Iteration budget exhausted",
				"topic", topic, "iterations", out.Iterations, "final_score", res.TotalScore)
			return out, nil
		}
	}
}

func batchSize(batch map[string][]evidence.Item) int {
	n := 0
	for _, items := range batch {
		n += len(items)
	}
	return n
}

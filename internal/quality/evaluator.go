package quality

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/Daserxqc/reportgen/internal/evidence"
)

const (
	// sampleCap bounds how many items go into one scoring prompt.
	sampleCap = 30
	// contentTruncate bounds each item's content inside the prompt.
	contentTruncate = 300
	// weightTolerance is how far dimension weights may drift from 1.0.
	weightTolerance = 0.01
)

// Generator is the LLM capability the evaluator needs. *ai.Client satisfies it.
type Generator interface {
	GenerateJSON(ctx context.Context, prompt, system string, maxTokens int) (string, error)
}

// Evaluator scores evidence samples against a topic. The primary path is a
// single structured LLM call covering every dimension; any failure there
// falls back wholesale to a deterministic heuristic. Score never returns
// an error — availability over accuracy in the degraded mode.
type Evaluator struct {
	llm       Generator
	dims      []Dimension
	threshold float64
}

// NewEvaluator validates the dimension registry up front: configuration
// errors surface here, before the first iteration, not mid-run.
func NewEvaluator(llm Generator, dims []Dimension, threshold float64) (*Evaluator, error) {
	if len(dims) == 0 {
		return nil, fmt.Errorf("quality: no evaluation dimensions configured")
	}
	sum := 0.0
	for _, d := range dims {
		if d.Name == "" {
			return nil, fmt.Errorf("quality: dimension with empty name")
		}
		if d.Weight <= 0 || d.Weight > 1 {
			return nil, fmt.Errorf("quality: dimension %q has weight %v, want (0,1]", d.Name, d.Weight)
		}
		if d.MinScore < 0 || d.MinScore > 10 {
			return nil, fmt.Errorf("quality: dimension %q has min score %v, want [0,10]", d.Name, d.MinScore)
		}
		sum += d.Weight
	}
	if math.Abs(sum-1.0) > weightTolerance {
		return nil, fmt.Errorf("quality: dimension weights sum to %.3f, want 1.0", sum)
	}
	if threshold < 0 || threshold > 10 {
		return nil, fmt.Errorf("quality: threshold %v out of range [0,10]", threshold)
	}
	return &Evaluator{llm: llm, dims: dims, threshold: threshold}, nil
}

// Dimensions returns the registry the evaluator was configured with.
func (e *Evaluator) Dimensions() []Dimension {
	return e.dims
}

// Score evaluates a sample of evidence for the topic. An empty sample
// scores zero on every dimension. The sample is capped and item content is
// truncated before prompting; callers pass evidence.Set.Sample output.
func (e *Evaluator) Score(ctx context.Context, topic string, sample []evidence.Item) *Result {
	if len(sample) == 0 {
		scores := make(map[string]float64, len(e.dims))
		for _, d := range e.dims {
			scores[d.Name] = 0
		}
		return e.compile(scores, false)
	}

	if len(sample) > sampleCap {
		sample = evidence.SampleItems(sample, sampleCap)
	}

	scores, err := e.scoreLLM(ctx, topic, sample)
	if err != nil {
		slog.Warn("LLM quality scoring failed, using heuristic fallback", "topic", topic, "error", err)
		return e.compile(e.scoreHeuristic(topic, sample), true)
	}
	return e.compile(scores, false)
}

// scoreLLM asks for all dimension scores in one structured call.
func (e *Evaluator) scoreLLM(ctx context.Context, topic string, sample []evidence.Item) (map[string]float64, error) {
	prompt := e.buildPrompt(topic, sample)
	system := fmt.Sprintf("You are a senior industry analyst for %s, strict about evidence quality.", topic)

	raw, err := e.llm.GenerateJSON(ctx, prompt, system, 1500)
	if err != nil {
		return nil, err
	}

	var parsed map[string]float64
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("parse score response: %w", err)
	}

	// Every configured dimension must be present and in range; a partial
	// response triggers the wholesale fallback rather than patching.
	scores := make(map[string]float64, len(e.dims))
	for _, d := range e.dims {
		v, ok := parsed[d.Name]
		if !ok {
			return nil, fmt.Errorf("score response missing dimension %q", d.Name)
		}
		if v < 0 || v > 10 {
			return nil, fmt.Errorf("score for %q out of range: %v", d.Name, v)
		}
		scores[d.Name] = v
	}
	return scores, nil
}

func (e *Evaluator) buildPrompt(topic string, sample []evidence.Item) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Evaluate the quality of the following evidence collected for a report on %q.\n\n", topic))
	sb.WriteString("Evidence sample:\n")
	for i, it := range sample {
		content := it.Content
		if runes := []rune(content); len(runes) > contentTruncate {
			content = string(runes[:contentTruncate])
		}
		sb.WriteString(fmt.Sprintf("%d. [%s] %s\n%s\n\n", i+1, it.Source, it.Title, content))
	}

	sb.WriteString("Score each dimension from 0 to 10:\n")
	for _, d := range e.dims {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", d.Name, d.Description))
	}

	sb.WriteString("\nScore strictly against professional standards; do not be lenient.\n")
	sb.WriteString("Return ONLY a JSON object mapping each dimension name to its numeric score, e.g. ")
	sb.WriteString(`{"completeness": 6.5, "accuracy": 8.0}`)
	sb.WriteString(". No other keys, no commentary.")

	return sb.String()
}

// scoreHeuristic is the degraded-mode scorer: deterministic signals from
// evidence volume, topic keyword overlap, content length, and source
// variety. Availability, not accuracy.
func (e *Evaluator) scoreHeuristic(topic string, sample []evidence.Item) map[string]float64 {
	count := float64(len(sample))

	// Volume: 30 sampled items is a full plate.
	volume := math.Min(10, count/3)

	// Relevance: share of items mentioning a topic term.
	terms := strings.Fields(strings.ToLower(topic))
	matched := 0.0
	for _, it := range sample {
		text := strings.ToLower(it.Title + " " + it.Content)
		for _, term := range terms {
			if strings.Contains(text, term) {
				matched++
				break
			}
		}
	}
	relevance := 0.0
	if count > 0 {
		relevance = 10 * matched / count
	}

	// Depth: average content length, saturating at ~1000 chars.
	totalLen := 0
	for _, it := range sample {
		totalLen += len([]rune(it.Content))
	}
	depth := math.Min(10, float64(totalLen)/count/100)

	// Source variety stands in for accuracy: more independent origins,
	// more opportunity for corroboration.
	sources := make(map[string]struct{})
	for _, it := range sample {
		sources[it.Source] = struct{}{}
	}
	variety := math.Min(10, float64(len(sources))*2.5)

	scores := make(map[string]float64, len(e.dims))
	for _, d := range e.dims {
		switch d.Name {
		case "completeness":
			scores[d.Name] = volume
		case "accuracy":
			scores[d.Name] = variety
		case "depth":
			scores[d.Name] = depth
		case "relevance":
			scores[d.Name] = relevance
		case "clarity":
			scores[d.Name] = (volume + depth) / 2
		default:
			scores[d.Name] = volume
		}
	}
	return scores
}

// compile turns raw per-dimension scores into a Result. A dimension is weak
// iff its score is strictly below its minimum; hitting the bar exactly passes.
func (e *Evaluator) compile(scores map[string]float64, degraded bool) *Result {
	res := &Result{
		DimensionScores: make(map[string]DimensionScore, len(e.dims)),
		Degraded:        degraded,
	}
	for _, d := range e.dims {
		score := scores[d.Name]
		passed := score >= d.MinScore
		res.DimensionScores[d.Name] = DimensionScore{Score: score, Passed: passed}
		res.TotalScore += score * d.Weight
		if !passed {
			res.WeakDimensions = append(res.WeakDimensions, d.Name)
		}
	}
	res.NeedsIteration = len(res.WeakDimensions) > 0 || res.TotalScore < e.threshold
	return res
}

// Package quality scores collected evidence across weighted dimensions and
// decides whether another search round is worth running.
package quality

// Dimension is one named axis of quality assessment. Dimensions are
// configuration data: defined once, never created or destroyed at runtime.
type Dimension struct {
	Name        string
	Weight      float64 // share of the total score, (0,1]
	MinScore    float64 // passing bar on the 0-10 scale
	Description string
}

// DefaultDimensions returns the standard registry. Weights sum to 1.0.
func DefaultDimensions() []Dimension {
	return []Dimension{
		{Name: "completeness", Weight: 0.30, MinScore: 7.0, Description: "coverage of the key facets of the topic, no major gaps"},
		{Name: "accuracy", Weight: 0.25, MinScore: 8.0, Description: "credibility and consistency of the information"},
		{Name: "depth", Weight: 0.20, MinScore: 6.0, Description: "analytical depth beyond headlines and announcements"},
		{Name: "relevance", Weight: 0.15, MinScore: 7.0, Description: "how directly the material bears on the topic"},
		{Name: "clarity", Weight: 0.10, MinScore: 6.0, Description: "how clearly the material can support a readable report"},
	}
}

// DimensionScore is one dimension's outcome in an evaluation.
type DimensionScore struct {
	Score  float64
	Passed bool
}

// Result is one evaluation of an evidence sample. Created fresh each
// iteration and never mutated.
type Result struct {
	DimensionScores map[string]DimensionScore
	TotalScore      float64  // weighted sum
	WeakDimensions  []string // registry order, score strictly below the minimum
	NeedsIteration  bool
	Degraded        bool // true when the heuristic fallback produced the scores
}

package classifier

import (
	"context"
	"fmt"
	"math"
)

type Label string

const (
	LabelAnxiety    Label = "Anxiety"
	LabelDepression Label = "Depression"
	LabelBipolar    Label = "Bipolar"
	LabelADHD       Label = "ADHD"
	LabelStress     Label = "Stress"
	LabelNeutral    Label = "Neutral"
)

// Label sets used by the deployments this service supports. Order matters:
// it is the tie-break order for equal scores.
var (
	ExclusiveLabels = []Label{LabelAnxiety, LabelBipolar, LabelDepression}
	HybridLabels    = []Label{LabelDepression, LabelADHD, LabelBipolar, LabelAnxiety}
	NeutralLabels   = []Label{LabelAnxiety, LabelDepression, LabelStress, LabelNeutral}
)

// ParseLabels converts configured label names.
func ParseLabels(names []string) []Label {
	if len(names) == 0 {
		return nil
	}
	labels := make([]Label, len(names))
	for i, n := range names {
		labels[i] = Label(n)
	}
	return labels
}

type Score struct {
	Label Label   `json:"label"`
	Score float64 `json:"score"`
}

// Distribution is a normalized score list, sorted descending.
type Distribution []Score

// Top returns the label of the highest score.
func (d Distribution) Top() Label {
	if len(d) == 0 {
		return ""
	}
	return d[0].Label
}

func (d Distribution) Sum() float64 {
	var total float64
	for _, s := range d {
		total += s.Score
	}
	return total
}

// Validate checks the output contract every strategy must meet.
func (d Distribution) Validate() error {
	if len(d) == 0 {
		return fmt.Errorf("empty distribution")
	}

	seen := make(map[Label]bool, len(d))
	for i, s := range d {
		if s.Label == "" {
			return fmt.Errorf("entry %d has no label", i)
		}
		if seen[s.Label] {
			return fmt.Errorf("duplicate label %q", s.Label)
		}
		seen[s.Label] = true

		if math.IsNaN(s.Score) || math.IsInf(s.Score, 0) || s.Score < 0 {
			return fmt.Errorf("label %q has invalid score %v", s.Label, s.Score)
		}
		if i > 0 && s.Score > d[i-1].Score {
			return fmt.Errorf("scores not sorted at %q", s.Label)
		}
	}

	if sum := d.Sum(); math.Abs(sum-1) > SumTolerance {
		return fmt.Errorf("scores sum to %v", sum)
	}

	return nil
}

// Result is the response contract shared by every strategy.
type Result struct {
	TopPattern       Label        `json:"topPattern"`
	ConfidenceScores Distribution `json:"confidenceScores"`

	// Strategy names the strategy that answered. Not part of the response body.
	Strategy string `json:"-"`
}

func newResult(strategy string, d Distribution) *Result {
	return &Result{
		TopPattern:       d.Top(),
		ConfidenceScores: d,
		Strategy:         strategy,
	}
}

// Strategy produces a distribution over its own fixed label set, or fails.
type Strategy interface {
	Name() string
	Labels() []Label
	Predict(ctx context.Context, text string) (Distribution, error)
}

// Describer is implemented by strategies that report extra status details.
type Describer interface {
	Describe() map[string]any
}

type unavailable struct {
	name   string
	labels []Label
	err    error
}

// Unavailable returns a placeholder for a strategy whose artifacts failed to
// load. Every Predict call fails with *ErrModelUnavailable.
func Unavailable(name string, labels []Label, cause error) Strategy {
	return &unavailable{name: name, labels: labels, err: cause}
}

func (u *unavailable) Name() string    { return u.name }
func (u *unavailable) Labels() []Label { return u.labels }

func (u *unavailable) Predict(_ context.Context, _ string) (Distribution, error) {
	return nil, &ErrModelUnavailable{Strategy: u.name, Err: u.err}
}

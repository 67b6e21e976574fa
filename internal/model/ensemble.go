package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"mindpattern/internal/classifier"
)

// Ensemble evaluates a gradient-boosted tree classifier saved in the XGBoost
// JSON model format.
type Ensemble struct {
	objective  string
	numClass   int
	numFeature int
	baseMargin []float64
	trees      []tree
	groups     []int
}

type tree struct {
	left        []int
	right       []int
	feature     []int
	threshold   []float64
	defaultLeft []bool
}

type xgbModel struct {
	Learner struct {
		Params struct {
			BaseScore  string `json:"base_score"`
			NumClass   string `json:"num_class"`
			NumFeature string `json:"num_feature"`
		} `json:"learner_model_param"`
		Objective struct {
			Name string `json:"name"`
		} `json:"objective"`
		Booster struct {
			Name  string `json:"name"`
			Model struct {
				Trees    []xgbTree `json:"trees"`
				TreeInfo []int     `json:"tree_info"`
			} `json:"model"`
		} `json:"gradient_booster"`
	} `json:"learner"`
}

type xgbTree struct {
	LeftChildren    []int      `json:"left_children"`
	RightChildren   []int      `json:"right_children"`
	SplitIndices    []int      `json:"split_indices"`
	SplitConditions []float64  `json:"split_conditions"`
	DefaultLeft     []flexBool `json:"default_left"`
	SplitType       []int      `json:"split_type"`
}

// flexBool accepts both 0/1 and true/false; exporters disagree.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch s := string(bytes.TrimSpace(data)); s {
	case "true", "1":
		*b = true
	case "false", "0":
		*b = false
	default:
		return fmt.Errorf("invalid boolean %s", s)
	}
	return nil
}

// LoadEnsemble reads an XGBoost JSON model file.
func LoadEnsemble(path string) (*Ensemble, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return DecodeEnsemble(f)
}

// DecodeEnsemble parses an XGBoost JSON model.
func DecodeEnsemble(r io.Reader) (*Ensemble, error) {
	var m xgbModel
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode xgboost model: %w", err)
	}

	l := m.Learner
	if l.Booster.Name != "" && l.Booster.Name != "gbtree" {
		return nil, fmt.Errorf("unsupported booster %q", l.Booster.Name)
	}

	e := &Ensemble{objective: l.Objective.Name}

	switch e.objective {
	case "multi:softprob", "multi:softmax":
		n, err := atoi(l.Params.NumClass)
		if err != nil || n < 2 {
			return nil, fmt.Errorf("objective %s needs num_class >= 2, got %q", e.objective, l.Params.NumClass)
		}
		e.numClass = n
	case "binary:logistic":
		e.numClass = 2
	default:
		return nil, fmt.Errorf("unsupported objective %q", e.objective)
	}

	if l.Params.NumFeature != "" {
		n, err := atoi(l.Params.NumFeature)
		if err != nil {
			return nil, fmt.Errorf("num_feature: %w", err)
		}
		e.numFeature = n
	}

	base, err := parseBaseScore(l.Params.BaseScore)
	if err != nil {
		return nil, err
	}
	e.baseMargin = e.margins(base)

	trees := l.Booster.Model.Trees
	info := l.Booster.Model.TreeInfo
	if len(info) != len(trees) {
		return nil, fmt.Errorf("tree_info has %d entries for %d trees", len(info), len(trees))
	}

	groups := e.numClass
	if e.objective == "binary:logistic" {
		groups = 1
	}

	for i, t := range trees {
		if info[i] < 0 || info[i] >= groups {
			return nil, fmt.Errorf("tree %d: class %d out of range", i, info[i])
		}
		parsed, err := parseTree(t, e.numFeature)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		e.trees = append(e.trees, parsed)
	}
	e.groups = info

	return e, nil
}

func atoi(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

// parseBaseScore reads "5E-1" or the bracketed per-class form "[2.5E-1,...]".
func parseBaseScore(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return []float64{0.5}, nil
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")

	var out []float64
	for _, part := range strings.Split(s, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("base_score: %w", err)
		}
		out = append(out, v)
	}
	return out, nil
}

// margins converts base scores into the starting margin of each output group.
// Logistic models store a probability; multi-class models store the margin.
func (e *Ensemble) margins(base []float64) []float64 {
	if e.objective == "binary:logistic" {
		p := base[0]
		if p <= 0 || p >= 1 {
			return []float64{0}
		}
		return []float64{math.Log(p / (1 - p))}
	}

	out := make([]float64, e.numClass)
	for k := range out {
		if k < len(base) {
			out[k] = base[k]
		} else {
			out[k] = base[0]
		}
	}
	return out
}

func parseTree(t xgbTree, numFeature int) (tree, error) {
	n := len(t.LeftChildren)
	if n == 0 {
		return tree{}, fmt.Errorf("empty tree")
	}
	if len(t.RightChildren) != n || len(t.SplitIndices) != n || len(t.SplitConditions) != n {
		return tree{}, fmt.Errorf("node arrays have inconsistent lengths")
	}
	for i, st := range t.SplitType {
		if st != 0 && t.LeftChildren[i] != -1 {
			return tree{}, fmt.Errorf("node %d: categorical splits are not supported", i)
		}
	}

	out := tree{
		left:        t.LeftChildren,
		right:       t.RightChildren,
		feature:     t.SplitIndices,
		threshold:   t.SplitConditions,
		defaultLeft: make([]bool, n),
	}
	for i := range min(n, len(t.DefaultLeft)) {
		out.defaultLeft[i] = bool(t.DefaultLeft[i])
	}

	for i := range n {
		l, r := out.left[i], out.right[i]
		if l == -1 {
			continue
		}
		// Children always follow their parent, so traversal terminates.
		if l <= i || r <= i || l >= n || r >= n {
			return tree{}, fmt.Errorf("node %d: invalid children %d, %d", i, l, r)
		}
		if out.feature[i] < 0 || (numFeature > 0 && out.feature[i] >= numFeature) {
			return tree{}, fmt.Errorf("node %d: feature %d out of range", i, out.feature[i])
		}
	}

	return out, nil
}

func (t tree) leaf(x []float64) float64 {
	i := 0
	for t.left[i] != -1 {
		f := t.feature[i]
		var v float64
		if f < len(x) {
			v = x[f]
		} else {
			v = math.NaN()
		}

		switch {
		case math.IsNaN(v):
			if t.defaultLeft[i] {
				i = t.left[i]
			} else {
				i = t.right[i]
			}
		case v < t.threshold[i]:
			i = t.left[i]
		default:
			i = t.right[i]
		}
	}
	return t.threshold[i]
}

// NumClass is the number of classes the ensemble was trained on.
func (e *Ensemble) NumClass() int { return e.numClass }

// NumFeature is the feature width the ensemble was trained on, or 0 when the
// model does not record it.
func (e *Ensemble) NumFeature() int { return e.numFeature }

// PredictProba returns one probability per class.
func (e *Ensemble) PredictProba(features []float64) ([]float64, error) {
	if e.numFeature > 0 && len(features) != e.numFeature {
		return nil, fmt.Errorf("ensemble expects %d features, got %d", e.numFeature, len(features))
	}

	margin := append([]float64(nil), e.baseMargin...)
	for i, t := range e.trees {
		margin[e.groups[i]] += t.leaf(features)
	}

	if e.objective == "binary:logistic" {
		p := 1 / (1 + math.Exp(-margin[0]))
		return []float64{1 - p, p}, nil
	}

	return classifier.Softmax(margin), nil
}

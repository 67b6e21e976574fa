package classifier

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStrategy struct {
	name        string
	labels      []Label
	PredictFunc func(ctx context.Context, text string) (Distribution, error)

	mu        sync.Mutex
	CallCount int
}

func (f *fakeStrategy) Name() string    { return f.name }
func (f *fakeStrategy) Labels() []Label { return f.labels }

func (f *fakeStrategy) Predict(ctx context.Context, text string) (Distribution, error) {
	f.mu.Lock()
	f.CallCount++
	f.mu.Unlock()
	return f.PredictFunc(ctx, text)
}

func answering(name string, top Label) *fakeStrategy {
	return &fakeStrategy{
		name:   name,
		labels: HybridLabels,
		PredictFunc: func(context.Context, string) (Distribution, error) {
			raw := []Score{{Label: top, Score: 0.9}}
			for _, l := range HybridLabels {
				if l != top {
					raw = append(raw, Score{Label: l, Score: 0.1})
				}
			}
			return Normalize(raw), nil
		},
	}
}

func failing(name string, err error) *fakeStrategy {
	return &fakeStrategy{
		name:   name,
		labels: HybridLabels,
		PredictFunc: func(context.Context, string) (Distribution, error) {
			return nil, err
		},
	}
}

func newTestResolver(t *testing.T, strategies ...Strategy) *Resolver {
	return NewResolver(NewRegistry(strategies...), NewExclusiveLexicon(), WithLogger(t.Logf))
}

func TestResolve_RejectsShortText(t *testing.T) {
	hybrid := answering("hybrid", LabelDepression)
	r := newTestResolver(t, hybrid)

	for _, text := range []string{"", "    ", "hey", "  hi!  ", "abcd"} {
		_, err := r.Resolve(context.Background(), text)

		var verr *ErrValidation
		require.ErrorAs(t, err, &verr, "text %q", text)
		assert.Equal(t, DefaultMinLength, verr.Min)
	}
	assert.Zero(t, hybrid.CallCount)
}

func TestResolve_MinLengthCountsCharacters(t *testing.T) {
	r := newTestResolver(t)

	_, err := r.Resolve(context.Background(), "  héllo ")
	assert.NoError(t, err)

	r = NewResolver(nil, nil, WithMinLength(10), WithLogger(t.Logf))
	_, err = r.Resolve(context.Background(), "too short")
	var verr *ErrValidation
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 9, verr.Length)
}

func TestResolve_FallbackOnlyMatchesLexicon(t *testing.T) {
	r := newTestResolver(t)

	res, err := r.Resolve(context.Background(), anxiousText)
	require.NoError(t, err)

	want := Normalize(NewExclusiveLexicon().Score(anxiousText))
	assert.Equal(t, want, res.ConfidenceScores)
	assert.Equal(t, LabelAnxiety, res.TopPattern)
	assert.Equal(t, FallbackName, res.Strategy)

	for _, s := range res.ConfidenceScores[1:] {
		assert.Greater(t, res.ConfidenceScores[0].Score, s.Score)
	}
}

func TestResolve_NeutralFallbackVariant(t *testing.T) {
	r := NewResolver(nil, NewNeutralLexicon(), WithLogger(t.Logf))

	res, err := r.Resolve(context.Background(), neutralText)
	require.NoError(t, err)
	assert.Equal(t, LabelNeutral, res.TopPattern)
}

func TestResolve_PriorityOrder(t *testing.T) {
	hybrid := answering("hybrid", LabelDepression)
	single := answering("single", LabelBipolar)
	r := newTestResolver(t, hybrid, single)

	res, err := r.Resolve(context.Background(), anxiousText)
	require.NoError(t, err)

	assert.Equal(t, LabelDepression, res.TopPattern)
	assert.Equal(t, "hybrid", res.Strategy)
	assert.Equal(t, 1, hybrid.CallCount)
	assert.Zero(t, single.CallCount)
}

func TestResolve_FailureContainment(t *testing.T) {
	tests := []struct {
		name      string
		first     Strategy
		wantStrat string
		wantTop   Label
	}{
		{
			name:      "inference error",
			first:     failing("hybrid", &ErrInference{Strategy: "hybrid", Err: errors.New("shape mismatch")}),
			wantStrat: "single",
			wantTop:   LabelBipolar,
		},
		{
			name:      "plain error",
			first:     failing("hybrid", errors.New("connection refused")),
			wantStrat: "single",
			wantTop:   LabelBipolar,
		},
		{
			name:      "unavailable",
			first:     Unavailable("hybrid", HybridLabels, errors.New("weights not found")),
			wantStrat: "single",
			wantTop:   LabelBipolar,
		},
		{
			name: "panic",
			first: &fakeStrategy{name: "hybrid", PredictFunc: func(context.Context, string) (Distribution, error) {
				panic("index out of range")
			}},
			wantStrat: "single",
			wantTop:   LabelBipolar,
		},
		{
			name: "invalid distribution",
			first: &fakeStrategy{name: "hybrid", PredictFunc: func(context.Context, string) (Distribution, error) {
				return Distribution{{Label: LabelADHD, Score: 0.2}}, nil
			}},
			wantStrat: "single",
			wantTop:   LabelBipolar,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestResolver(t, tt.first, answering("single", LabelBipolar))

			res, err := r.Resolve(context.Background(), anxiousText)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStrat, res.Strategy)
			assert.Equal(t, tt.wantTop, res.TopPattern)
		})
	}
}

func TestResolve_AllLearnedFail(t *testing.T) {
	r := newTestResolver(t,
		failing("hybrid", &ErrInference{Strategy: "hybrid", Err: errors.New("nan")}),
		failing("single", &ErrInference{Strategy: "single", Err: errors.New("oom")}),
	)

	res, err := r.Resolve(context.Background(), anxiousText)
	require.NoError(t, err)
	assert.Equal(t, FallbackName, res.Strategy)
	assert.Equal(t, LabelAnxiety, res.TopPattern)
}

func TestResolve_FallbackFailureIsInternal(t *testing.T) {
	broken := failing("lexical", errors.New("boom"))
	r := NewResolver(nil, broken, WithLogger(t.Logf))

	_, err := r.Resolve(context.Background(), anxiousText)

	var ierr *ErrInternal
	require.ErrorAs(t, err, &ierr)
	assert.Contains(t, err.Error(), "boom")
}

func TestResolve_DistributionProperties(t *testing.T) {
	texts := []string{
		anxiousText, neutralText, downText, stressText,
		"hello world",
		strings.Repeat("manic panic sad ", 40),
		"WORRIED AND DEPRESSED AND STRESSED",
		"日本語のテキストです",
	}

	for _, lex := range []*Lexicon{NewExclusiveLexicon(), NewNeutralLexicon()} {
		r := NewResolver(nil, lex, WithLogger(t.Logf))
		for _, text := range texts {
			res, err := r.Resolve(context.Background(), text)
			require.NoError(t, err)
			assert.InDelta(t, 1.0, res.ConfidenceScores.Sum(), SumTolerance)
			assert.NoError(t, res.ConfidenceScores.Validate())
			assert.Equal(t, res.ConfidenceScores[0].Label, res.TopPattern)
		}
	}
}

func TestResolver_Status(t *testing.T) {
	r := newTestResolver(t,
		Unavailable("hybrid", HybridLabels, errors.New("weights not found")),
		answering("single", LabelAnxiety),
	)

	st := r.Status()
	require.Len(t, st.Strategies, 2)
	assert.False(t, st.Strategies[0].Loaded)
	assert.Equal(t, "weights not found", st.Strategies[0].Error)
	assert.True(t, st.Strategies[1].Loaded)
	assert.Equal(t, "single", st.Active)
	assert.Equal(t, FallbackName, st.Fallback)
	assert.Equal(t, ExclusiveLabels, st.FallbackLabels)
	assert.Equal(t, HybridLabels, r.Labels())
}

func TestResolver_StatusWithoutModels(t *testing.T) {
	r := newTestResolver(t)

	st := r.Status()
	assert.Empty(t, st.Strategies)
	assert.Equal(t, FallbackName, st.Active)
	assert.Equal(t, ExclusiveLabels, r.Labels())
}

func TestRegistry_IsACopy(t *testing.T) {
	in := []Strategy{answering("hybrid", LabelAnxiety), nil, answering("single", LabelBipolar)}
	reg := NewRegistry(in...)
	in[0] = nil

	require.Equal(t, 2, reg.Len())
	got := reg.Strategies()
	got[0] = nil

	s, ok := reg.Lookup("hybrid")
	require.True(t, ok)
	assert.Equal(t, "hybrid", s.Name())
	_, ok = reg.Lookup("missing")
	assert.False(t, ok)
}

func TestResolver_Validate(t *testing.T) {
	r := NewResolver(nil, nil)

	assert.NoError(t, r.Validate("  hello  "))

	var invalid *ErrValidation
	require.ErrorAs(t, r.Validate("  hey  "), &invalid)
	assert.Equal(t, 3, invalid.Length)
	assert.Equal(t, DefaultMinLength, invalid.Min)
}

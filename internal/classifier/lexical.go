package classifier

import (
	"context"
	"strings"
)

// FallbackName is the strategy name reported by the keyword fallback.
const FallbackName = "lexical"

// Group is the indicator word list of one label.
type Group struct {
	Label Label
	Words []string
}

// CrossCut is an indicator list that adds weight to several labels at once.
type CrossCut struct {
	Words   []string
	Weights map[Label]float64
}

// NeutralRule forces a neutral label's score depending on whether any group
// matched.
type NeutralRule struct {
	Label     Label
	Matched   float64
	Unmatched float64
}

// Lexicon is the deterministic keyword scorer used as the last-resort
// strategy. It holds no mutable state and is safe for concurrent use.
//
// Words match by substring containment on the lower-cased text, so "low"
// also matches "follow". Each entry of a word list counts once, including
// entries that appear twice in the list.
type Lexicon struct {
	Set          []Label
	Baseline     float64
	Groups       []Group
	Weight       float64
	Onset        float64
	Interference float64
	CrossCuts    []CrossCut
	Floor        float64
	Neutral      *NeutralRule
}

// NewExclusiveLexicon scores {Anxiety, Bipolar, Depression}. A match for one
// label is weak evidence against the others.
func NewExclusiveLexicon() *Lexicon {
	return &Lexicon{
		Set:      ExclusiveLabels,
		Baseline: 0.33,
		Groups: []Group{
			{Label: LabelAnxiety, Words: []string{
				"worry", "worried", "anxious", "anxiety", "panic", "nervous", "fear", "scared", "restless", "uneasy", "tense", "apprehensive",
				"replaying", "replay", "ruminating", "ruminate", "overthinking", "overthink", "obsessing", "obsess",
				"conversation", "embarrassed", "embarrassing", "awkward", "stupid", "idiot", "foolish", "fool",
				"judged", "judging", "criticized", "criticism", "rejected", "rejection", "humiliated", "humiliation",
				"social", "socially", "people", "others", "everyone", "everybody", "what if", "what ifs",
			}},
			{Label: LabelDepression, Words: []string{
				"sad", "hopeless", "down", "tired", "exhausted", "empty", "worthless", "guilty", "suicidal", "depressed", "melancholy", "gloomy",
			}},
			{Label: LabelBipolar, Words: []string{
				"manic", "euphoric", "hyperactive", "impulsive", "mood", "swing", "high", "low", "irritable", "agitated", "energetic", "racing",
			}},
		},
		Weight:       0.3,
		Interference: 0.1,
		CrossCuts: []CrossCut{
			{
				Words: []string{"overwhelmed", "pressure", "deadline", "stressed", "stress", "burnout", "overworked"},
				Weights: map[Label]float64{
					LabelAnxiety:    0.15,
					LabelDepression: 0.1,
					LabelBipolar:    0.05,
				},
			},
		},
		Floor: 0.1,
	}
}

// NewNeutralLexicon scores {Anxiety, Depression, Stress, Neutral}. Neutral
// wins when no indicator matched.
func NewNeutralLexicon() *Lexicon {
	return &Lexicon{
		Set:      NeutralLabels,
		Baseline: 0.1,
		Groups: []Group{
			{Label: LabelAnxiety, Words: []string{
				"worry", "anxious", "panic", "nervous", "fear", "scared", "worried", "anxiety", "panic", "restless", "uneasy",
			}},
			{Label: LabelDepression, Words: []string{
				"sad", "hopeless", "down", "tired", "depressed", "depression", "empty", "worthless", "guilty", "suicidal", "hopeless",
			}},
			{Label: LabelStress, Words: []string{
				"overwhelmed", "pressure", "deadline", "stressed", "stress", "burnout", "exhausted", "frustrated", "irritated", "tense",
			}},
		},
		Weight: 0.1,
		Onset:  0.3,
		Floor:  0.1,
		Neutral: &NeutralRule{
			Label:     LabelNeutral,
			Matched:   0.1,
			Unmatched: 0.7,
		},
	}
}

// LexiconFor returns the preset for a configured variant name.
func LexiconFor(variant string) (*Lexicon, bool) {
	switch variant {
	case "", "exclusive":
		return NewExclusiveLexicon(), true
	case "neutral":
		return NewNeutralLexicon(), true
	default:
		return nil, false
	}
}

func (l *Lexicon) Name() string    { return FallbackName }
func (l *Lexicon) Labels() []Label { return l.Set }

// Score returns raw, unnormalized scores in label order.
func (l *Lexicon) Score(text string) []Score {
	lowered := strings.ToLower(text)

	scores := make(map[Label]float64, len(l.Set))
	for _, label := range l.Set {
		scores[label] = l.Baseline
	}

	matched := false
	for _, g := range l.Groups {
		n := countMatches(lowered, g.Words)
		if n == 0 {
			continue
		}
		matched = true

		scores[g.Label] += l.Onset + float64(n)*l.Weight
		if l.Interference == 0 {
			continue
		}
		for _, other := range l.Set {
			if other == g.Label || (l.Neutral != nil && other == l.Neutral.Label) {
				continue
			}
			scores[other] -= float64(n) * l.Interference
		}
	}

	for _, cc := range l.CrossCuts {
		n := countMatches(lowered, cc.Words)
		if n == 0 {
			continue
		}
		for label, w := range cc.Weights {
			if _, ok := scores[label]; ok {
				scores[label] += float64(n) * w
			}
		}
	}

	if l.Neutral != nil {
		if matched {
			scores[l.Neutral.Label] = l.Neutral.Matched
		} else {
			scores[l.Neutral.Label] = l.Neutral.Unmatched
		}
	}

	raw := make([]Score, len(l.Set))
	for i, label := range l.Set {
		v := scores[label]
		if v < l.Floor {
			v = l.Floor
		}
		raw[i] = Score{Label: label, Score: v}
	}

	return raw
}

// Predict never fails.
func (l *Lexicon) Predict(_ context.Context, text string) (Distribution, error) {
	return Normalize(l.Score(text)), nil
}

func countMatches(lowered string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(lowered, w) {
			n++
		}
	}
	return n
}

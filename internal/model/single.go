package model

import (
	"context"
	"fmt"

	"mindpattern/internal/classifier"
)

const SingleName = "single"

// Single is a plain sequence classifier over a fixed label set.
type Single struct {
	encoder Encoder
	labels  []classifier.Label
}

// NewSingle wraps enc. labels defaults to classifier.ExclusiveLabels.
func NewSingle(enc Encoder, labels []classifier.Label) (*Single, error) {
	if enc == nil {
		return nil, fmt.Errorf("single model needs an encoder")
	}
	if len(labels) == 0 {
		labels = classifier.ExclusiveLabels
	}
	return &Single{encoder: enc, labels: append([]classifier.Label(nil), labels...)}, nil
}

func (s *Single) Name() string               { return SingleName }
func (s *Single) Labels() []classifier.Label { return s.labels }

func (s *Single) Predict(ctx context.Context, text string) (classifier.Distribution, error) {
	act, err := s.encoder.Encode(ctx, text)
	if err != nil {
		return nil, &classifier.ErrInference{Strategy: SingleName, Err: err}
	}
	if len(act.Logits) != len(s.labels) {
		return nil, &classifier.ErrInference{
			Strategy: SingleName,
			Err:      fmt.Errorf("got %d logits for %d labels", len(act.Logits), len(s.labels)),
		}
	}
	return classifier.Normalize(classifier.Zip(s.labels, classifier.Softmax(act.Logits))), nil
}

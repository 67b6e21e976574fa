package model

import (
	"context"
	"fmt"
	"log"

	"mindpattern/internal/classifier"
)

const (
	HybridName = "hybrid"

	// probeText is encoded once at construction to learn what the network
	// returns.
	probeText = "This is a test sentence for model detection."
)

// OutputMode is how the hybrid adapter turns an activation into scores.
type OutputMode string

const (
	// ModeLogits uses the network's own classifier output.
	ModeLogits OutputMode = "logits"
	// ModeFeatures feeds the network's features to the tree ensemble.
	ModeFeatures OutputMode = "features"
)

// Hybrid combines a neural encoder with an optional tree ensemble.
type Hybrid struct {
	encoder  Encoder
	ensemble *Ensemble
	labels   []classifier.Label
	mode     OutputMode
}

// NewHybrid reconciles the label set with the ensemble and detects the output
// mode with one probe inference. labels defaults to classifier.HybridLabels;
// ensemble may be nil.
func NewHybrid(ctx context.Context, enc Encoder, ens *Ensemble, labels []classifier.Label) (*Hybrid, error) {
	if enc == nil {
		return nil, fmt.Errorf("hybrid model needs an encoder")
	}
	if len(labels) == 0 {
		labels = classifier.HybridLabels
	}
	labels = append([]classifier.Label(nil), labels...)

	if ens != nil && ens.NumClass() != len(labels) {
		n := ens.NumClass()
		if n > len(classifier.HybridLabels) {
			return nil, fmt.Errorf("ensemble has %d classes, only %d labels are known", n, len(classifier.HybridLabels))
		}
		log.Printf("[MODEL] Ensemble has %d classes but %d labels are configured, using %v", n, len(labels), classifier.HybridLabels[:n])
		labels = append([]classifier.Label(nil), classifier.HybridLabels[:n]...)
	}

	h := &Hybrid{encoder: enc, ensemble: ens, labels: labels}
	h.mode = h.detect(ctx)
	log.Printf("[MODEL] Hybrid model output mode: %s", h.mode)

	return h, nil
}

func (h *Hybrid) detect(ctx context.Context) OutputMode {
	act, err := h.encoder.Encode(ctx, probeText)
	if err != nil {
		log.Printf("[MODEL] Output mode probe failed: %v", err)
		if h.ensemble != nil {
			return ModeFeatures
		}
		return ModeLogits
	}
	if len(act.Logits) == len(h.labels) {
		return ModeLogits
	}
	return ModeFeatures
}

func (h *Hybrid) Name() string               { return HybridName }
func (h *Hybrid) Labels() []classifier.Label { return h.labels }
func (h *Hybrid) Mode() OutputMode           { return h.mode }

func (h *Hybrid) Predict(ctx context.Context, text string) (classifier.Distribution, error) {
	act, err := h.encoder.Encode(ctx, text)
	if err != nil {
		return nil, &classifier.ErrInference{Strategy: HybridName, Err: err}
	}

	if h.mode == ModeLogits || h.ensemble == nil {
		if len(act.Logits) != len(h.labels) {
			return nil, &classifier.ErrInference{
				Strategy: HybridName,
				Err:      fmt.Errorf("got %d logits for %d labels", len(act.Logits), len(h.labels)),
			}
		}
		return classifier.Normalize(classifier.Zip(h.labels, classifier.Softmax(act.Logits))), nil
	}

	probs, err := h.ensemble.PredictProba(act.Features)
	if err != nil {
		return nil, &classifier.ErrInference{Strategy: HybridName, Err: err}
	}

	// Labels beyond the ensemble's classes score 0 before normalization.
	return classifier.Normalize(classifier.Zip(h.labels, probs)), nil
}

func (h *Hybrid) Describe() map[string]any {
	return map[string]any{
		"output_mode":     string(h.mode),
		"ensemble_loaded": h.ensemble != nil,
	}
}

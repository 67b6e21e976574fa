package model

import (
	"context"
	"fmt"
)

// LinearHead is the final classification layer of the network.
type LinearHead struct {
	weight [][]float64 // [labels][features]
	bias   []float64
}

var headPrefixes = []string{"classifier.1", "classifier"}

// NewLinearHead extracts the classification layer from a checkpoint. The
// layer sits behind a dropout in the hybrid network, hence classifier.1.
func NewLinearHead(cp *Checkpoint) (*LinearHead, error) {
	for _, prefix := range headPrefixes {
		w, ok := cp.State[prefix+".weight"]
		if !ok {
			continue
		}
		if len(w.Shape) != 2 {
			return nil, fmt.Errorf("%s.weight: expected 2 dimensions, got %v", prefix, w.Shape)
		}
		rows, cols := w.Shape[0], w.Shape[1]
		if rows < 1 || cols < 1 || len(w.Data) != rows*cols {
			return nil, fmt.Errorf("%s.weight: shape %v does not match %d values", prefix, w.Shape, len(w.Data))
		}

		h := &LinearHead{weight: make([][]float64, rows), bias: make([]float64, rows)}
		for i := range rows {
			h.weight[i] = w.Data[i*cols : (i+1)*cols]
		}

		if b, ok := cp.State[prefix+".bias"]; ok {
			if len(b.Data) != rows {
				return nil, fmt.Errorf("%s.bias: expected %d values, got %d", prefix, rows, len(b.Data))
			}
			copy(h.bias, b.Data)
		}

		if cp.NumLabels > 0 && cp.NumLabels != rows {
			return nil, fmt.Errorf("checkpoint declares %d labels but head has %d rows", cp.NumLabels, rows)
		}

		return h, nil
	}

	return nil, fmt.Errorf("checkpoint has no classifier layer")
}

// Outputs is the number of logits the head produces.
func (h *LinearHead) Outputs() int { return len(h.weight) }

// Inputs is the feature width the head expects.
func (h *LinearHead) Inputs() int {
	if len(h.weight) == 0 {
		return 0
	}
	return len(h.weight[0])
}

// Apply computes logits = W x + b.
func (h *LinearHead) Apply(features []float64) ([]float64, error) {
	if len(features) != h.Inputs() {
		return nil, fmt.Errorf("head expects %d features, got %d", h.Inputs(), len(features))
	}
	out := make([]float64, len(h.weight))
	for i, row := range h.weight {
		sum := h.bias[i]
		for j, w := range row {
			sum += w * features[j]
		}
		out[i] = sum
	}
	return out, nil
}

// HeadEncoder recomputes logits from remote features with locally loaded
// classifier weights.
type HeadEncoder struct {
	inner Encoder
	head  *LinearHead
}

func NewHeadEncoder(inner Encoder, head *LinearHead) *HeadEncoder {
	return &HeadEncoder{inner: inner, head: head}
}

func (e *HeadEncoder) Encode(ctx context.Context, text string) (*Activation, error) {
	act, err := e.inner.Encode(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(act.Features) == 0 {
		return act, nil
	}

	logits, err := e.head.Apply(act.Features)
	if err != nil {
		return nil, err
	}

	return &Activation{Features: act.Features, Logits: logits}, nil
}

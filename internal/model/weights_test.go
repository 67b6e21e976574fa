package model

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

// headState is a 2-label head over 3 features.
func headState(prefix string) map[string]Tensor {
	return map[string]Tensor{
		prefix + ".weight":  {Shape: []int{2, 3}, Data: []float64{1, 0, 0, 0, 1, 1}},
		prefix + ".bias":    {Shape: []int{2}, Data: []float64{0.5, -0.5}},
		"lstm.weight_ih_l0": {Shape: []int{1, 2}, Data: []float64{0.1, 0.2}},
	}
}

func encode(t *testing.T, v any) []byte {
	t.Helper()
	b, err := msgpack.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestDecodeCheckpoint_Formats(t *testing.T) {
	state := headState("classifier.1")

	tests := []struct {
		format WeightsFormat
		body   any
	}{
		{FormatStateDict, state},
		{FormatWrappedStateDict, map[string]any{"state_dict": state}},
		{FormatWrappedModelStateDict, map[string]any{"model_state_dict": state}},
		{FormatFullModel, map[string]any{
			"architecture": "DistilBertBiLSTM",
			"num_labels":   2,
			"hidden_dim":   256,
			"state":        state,
		}},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			cp, err := DecodeCheckpoint(bytes.NewReader(encode(t, tt.body)), tt.format)
			require.NoError(t, err)
			assert.Equal(t, tt.format, cp.Format)
			assert.Len(t, cp.State, 3)
			assert.Equal(t, state["classifier.1.weight"], cp.State["classifier.1.weight"])
		})
	}
}

func TestDecodeCheckpoint_FullModelMetadata(t *testing.T) {
	body := map[string]any{
		"architecture": "DistilBertBiLSTM",
		"num_labels":   2,
		"hidden_dim":   256,
		"state":        headState("classifier.1"),
	}

	cp, err := DecodeCheckpoint(bytes.NewReader(encode(t, body)), FormatFullModel)
	require.NoError(t, err)
	assert.Equal(t, "DistilBertBiLSTM", cp.Architecture)
	assert.Equal(t, 2, cp.NumLabels)
	assert.Equal(t, 256, cp.HiddenDim)
}

func TestDecodeCheckpoint_WrongTagFindsNoTensors(t *testing.T) {
	raw := encode(t, map[string]any{"model_state_dict": headState("classifier")})

	_, err := DecodeCheckpoint(bytes.NewReader(raw), FormatWrappedStateDict)
	assert.Error(t, err)
}

func TestDecodeCheckpoint_ShapeMismatch(t *testing.T) {
	tests := []struct {
		name   string
		tensor Tensor
	}{
		{"too few values", Tensor{Shape: []int{2, 3}, Data: []float64{1, 2, 3}}},
		{"negative dimensions", Tensor{Shape: []int{-1, -2}, Data: []float64{1, 2}}},
		{"zero dimension", Tensor{Shape: []int{0, 3}, Data: nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := encode(t, map[string]Tensor{"classifier.weight": tt.tensor})

			_, err := DecodeCheckpoint(bytes.NewReader(raw), FormatStateDict)
			assert.Error(t, err)
		})
	}
}

func TestParseWeightsFormat(t *testing.T) {
	f, err := ParseWeightsFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatStateDict, f)

	f, err = ParseWeightsFormat("full_model")
	require.NoError(t, err)
	assert.Equal(t, FormatFullModel, f)

	_, err = ParseWeightsFormat("pickle")
	assert.Error(t, err)
}

func TestLoadCheckpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hybrid.msgpack")
	require.NoError(t, os.WriteFile(path, encode(t, headState("classifier")), 0o600))

	cp, err := LoadCheckpoint(path, FormatStateDict)
	require.NoError(t, err)
	assert.Contains(t, cp.State, "classifier.weight")
}

func TestLinearHead(t *testing.T) {
	for _, prefix := range []string{"classifier.1", "classifier"} {
		t.Run(prefix, func(t *testing.T) {
			head, err := NewLinearHead(&Checkpoint{State: headState(prefix)})
			require.NoError(t, err)
			assert.Equal(t, 2, head.Outputs())
			assert.Equal(t, 3, head.Inputs())

			logits, err := head.Apply([]float64{2, 3, 4})
			require.NoError(t, err)
			assert.InDeltaSlice(t, []float64{2.5, 6.5}, logits, 1e-12)

			_, err = head.Apply([]float64{1})
			assert.Error(t, err)
		})
	}
}

func TestLinearHead_Errors(t *testing.T) {
	_, err := NewLinearHead(&Checkpoint{State: map[string]Tensor{"encoder.weight": {Shape: []int{1}, Data: []float64{1}}}})
	assert.Error(t, err)

	_, err = NewLinearHead(&Checkpoint{State: headState("classifier"), NumLabels: 4})
	assert.Error(t, err)

	for _, w := range []Tensor{
		{Shape: []int{-1, -2}, Data: []float64{1, 2}},
		{Shape: []int{2, 2}, Data: []float64{1, 2}},
	} {
		assert.NotPanics(t, func() {
			_, err = NewLinearHead(&Checkpoint{State: map[string]Tensor{"classifier.weight": w}})
		})
		assert.Error(t, err)
	}
}

type fakeEncoder struct {
	act   *Activation
	err   error
	calls int
	texts []string
}

func (f *fakeEncoder) Encode(_ context.Context, text string) (*Activation, error) {
	f.calls++
	f.texts = append(f.texts, text)
	if f.err != nil {
		return nil, f.err
	}
	return f.act, nil
}

func TestHeadEncoder_RecomputesLogits(t *testing.T) {
	head, err := NewLinearHead(&Checkpoint{State: headState("classifier.1")})
	require.NoError(t, err)

	inner := &fakeEncoder{act: &Activation{Features: []float64{2, 3, 4}, Logits: []float64{9, 9, 9, 9}}}
	act, err := NewHeadEncoder(inner, head).Encode(context.Background(), "some text")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2.5, 6.5}, act.Logits, 1e-12)
	assert.Equal(t, []float64{2, 3, 4}, act.Features)
}

func TestHeadEncoder_PassesErrors(t *testing.T) {
	head, err := NewLinearHead(&Checkpoint{State: headState("classifier.1")})
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = NewHeadEncoder(&fakeEncoder{err: boom}, head).Encode(context.Background(), "some text")
	assert.ErrorIs(t, err, boom)
}

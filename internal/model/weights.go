package model

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/vmihailenco/msgpack/v5"
)

// WeightsFormat names the container layout of a weights file. Training
// pipelines have produced all of them, so each is decoded explicitly.
type WeightsFormat string

const (
	FormatStateDict             WeightsFormat = "state_dict"
	FormatWrappedStateDict      WeightsFormat = "wrapped_state_dict"
	FormatWrappedModelStateDict WeightsFormat = "wrapped_model_state_dict"
	FormatFullModel             WeightsFormat = "full_model"
)

// ParseWeightsFormat accepts a configured format name. Empty means a bare
// state dict.
func ParseWeightsFormat(s string) (WeightsFormat, error) {
	switch f := WeightsFormat(s); f {
	case "":
		return FormatStateDict, nil
	case FormatStateDict, FormatWrappedStateDict, FormatWrappedModelStateDict, FormatFullModel:
		return f, nil
	default:
		return "", fmt.Errorf("unknown weights format %q", s)
	}
}

// Tensor is a dense row-major array.
type Tensor struct {
	Shape []int     `msgpack:"shape"`
	Data  []float64 `msgpack:"data"`
}

// size is the element count implied by Shape. Scalars have an empty shape.
func (t Tensor) size() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// Checkpoint is a decoded weights container.
type Checkpoint struct {
	Format       WeightsFormat
	State        map[string]Tensor
	Architecture string
	NumLabels    int
	HiddenDim    int
}

type wrappedStateDict struct {
	StateDict map[string]Tensor `msgpack:"state_dict"`
}

type wrappedModelStateDict struct {
	ModelStateDict map[string]Tensor `msgpack:"model_state_dict"`
}

type fullModel struct {
	Architecture string            `msgpack:"architecture"`
	NumLabels    int               `msgpack:"num_labels"`
	HiddenDim    int               `msgpack:"hidden_dim"`
	State        map[string]Tensor `msgpack:"state"`
}

// DecodeCheckpoint reads a msgpack weights container of the given format.
func DecodeCheckpoint(r io.Reader, format WeightsFormat) (*Checkpoint, error) {
	dec := msgpack.NewDecoder(r)
	cp := &Checkpoint{Format: format}

	switch format {
	case FormatStateDict:
		if err := dec.Decode(&cp.State); err != nil {
			return nil, fmt.Errorf("decode %s: %w", format, err)
		}
	case FormatWrappedStateDict:
		var w wrappedStateDict
		if err := dec.Decode(&w); err != nil {
			return nil, fmt.Errorf("decode %s: %w", format, err)
		}
		cp.State = w.StateDict
	case FormatWrappedModelStateDict:
		var w wrappedModelStateDict
		if err := dec.Decode(&w); err != nil {
			return nil, fmt.Errorf("decode %s: %w", format, err)
		}
		cp.State = w.ModelStateDict
	case FormatFullModel:
		var m fullModel
		if err := dec.Decode(&m); err != nil {
			return nil, fmt.Errorf("decode %s: %w", format, err)
		}
		cp.State = m.State
		cp.Architecture = m.Architecture
		cp.NumLabels = m.NumLabels
		cp.HiddenDim = m.HiddenDim
	default:
		return nil, fmt.Errorf("unknown weights format %q", format)
	}

	if len(cp.State) == 0 {
		return nil, fmt.Errorf("%s container holds no tensors", format)
	}

	for name, t := range cp.State {
		for _, d := range t.Shape {
			if d < 1 {
				return nil, fmt.Errorf("tensor %s: invalid shape %v", name, t.Shape)
			}
		}
		if t.size() != len(t.Data) && !(len(t.Shape) == 0 && len(t.Data) == 0) {
			return nil, fmt.Errorf("tensor %s: shape %v does not match %d values", name, t.Shape, len(t.Data))
		}
	}

	return cp, nil
}

// LoadCheckpoint decodes the weights file at path.
func LoadCheckpoint(path string, format WeightsFormat) (*Checkpoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return DecodeCheckpoint(bufio.NewReader(f), format)
}

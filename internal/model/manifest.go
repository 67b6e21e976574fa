package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"mindpattern/internal/config"
)

// Manifest is the model_info.json written next to the artifacts by the
// training pipeline.
type Manifest struct {
	PytorchPath   string   `json:"pytorch_path"`
	XGBPath       string   `json:"xgb_path"`
	Labels        []string `json:"labels"`
	ModelType     string   `json:"model_type"`
	NumLabels     int      `json:"num_labels,omitempty"`
	HiddenDim     int      `json:"hidden_dim,omitempty"`
	WeightsFormat string   `json:"weights_format,omitempty"`
	Tokenizer     string   `json:"tokenizer,omitempty"`

	dir string
}

const manifestSchema = `{
  "type": "object",
  "required": ["pytorch_path", "labels"],
  "properties": {
    "pytorch_path": {"type": "string", "minLength": 1},
    "xgb_path": {"type": "string"},
    "labels": {
      "type": "array",
      "minItems": 1,
      "uniqueItems": true,
      "items": {"type": "string", "minLength": 1}
    },
    "model_type": {"type": "string"},
    "num_labels": {"type": "integer", "minimum": 1},
    "hidden_dim": {"type": "integer", "minimum": 1},
    "weights_format": {
      "enum": ["state_dict", "wrapped_state_dict", "wrapped_model_state_dict", "full_model"]
    },
    "tokenizer": {"type": "string"}
  }
}`

var compiledManifestSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader([]byte(manifestSchema)))
	if err != nil {
		return nil, fmt.Errorf("parse manifest schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	const url = "schema://model_info.json"
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add resource: %w", err)
	}
	return c.Compile(url)
})

// LoadManifest reads and validates a model_info.json file.
func LoadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseManifest(raw, filepath.Dir(path))
}

// ParseManifest validates raw manifest JSON. Relative artifact paths resolve
// against dir.
func ParseManifest(raw []byte, dir string) (*Manifest, error) {
	schema, err := compiledManifestSchema()
	if err != nil {
		return nil, err
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid manifest JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("manifest validation failed: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	if m.NumLabels > 0 && m.NumLabels != len(m.Labels) {
		return nil, fmt.Errorf("manifest declares %d labels but lists %d", m.NumLabels, len(m.Labels))
	}
	m.dir = dir

	return &m, nil
}

// resolve locates an artifact named by the manifest. Training runs record
// absolute paths from their own machine, so a missing absolute path falls
// back to the file of the same name beside the manifest.
func (m *Manifest) resolve(p string) string {
	if p == "" {
		return ""
	}
	if !filepath.IsAbs(p) {
		return filepath.Join(m.dir, p)
	}
	if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
		local := filepath.Join(m.dir, filepath.Base(p))
		if _, err := os.Stat(local); err == nil {
			return local
		}
	}
	return p
}

// Apply fills the adapter settings the configuration left unset.
func (m *Manifest) Apply(cfg config.AdapterConfig) config.AdapterConfig {
	if cfg.WeightsPath == "" {
		cfg.WeightsPath = m.resolve(m.PytorchPath)
	}
	if cfg.XGBoostPath == "" {
		cfg.XGBoostPath = m.resolve(m.XGBPath)
	}
	if len(cfg.Labels) == 0 {
		cfg.Labels = append([]string(nil), m.Labels...)
	}
	if cfg.WeightsFormat == "" {
		cfg.WeightsFormat = m.WeightsFormat
	}
	if m.Tokenizer != "" && cfg.Tokenizer == "" {
		cfg.Tokenizer = m.Tokenizer
	}
	return cfg
}

// Package bert implements BERT sequence classification on top of the nn
// modules, with Hugging Face state-dict names so prajjwal1/bert-tiny
// weights load directly.
//
// The model is split in two the way the catalog exposes it: Embeddings maps
// token ids to hidden states, and SequenceClassifier maps hidden states to
// label logits.
package bert

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// HubName is the Hugging Face repository of BERT-tiny.
const HubName = "prajjwal1/bert-tiny"

// Config mirrors the fields of a Hugging Face BertConfig config.json.
type Config struct {
	VocabSize             int               `json:"vocab_size"`
	HiddenSize            int               `json:"hidden_size"`
	NumHiddenLayers       int               `json:"num_hidden_layers"`
	NumAttentionHeads     int               `json:"num_attention_heads"`
	IntermediateSize      int               `json:"intermediate_size"`
	HiddenAct             string            `json:"hidden_act"`
	HiddenDropoutProb     float32           `json:"hidden_dropout_prob"`
	MaxPositionEmbeddings int               `json:"max_position_embeddings"`
	TypeVocabSize         int               `json:"type_vocab_size"`
	LayerNormEps          float32           `json:"layer_norm_eps"`
	NumLabels             int               `json:"num_labels,omitempty"`
	ID2Label              map[string]string `json:"id2label,omitempty"`
}

// TinyConfig returns the prajjwal1/bert-tiny configuration with two labels.
func TinyConfig() Config {
	return Config{
		VocabSize:             30522,
		HiddenSize:            128,
		NumHiddenLayers:       2,
		NumAttentionHeads:     2,
		IntermediateSize:      512,
		HiddenAct:             "gelu",
		HiddenDropoutProb:     0.1,
		MaxPositionEmbeddings: 512,
		TypeVocabSize:         2,
		LayerNormEps:          1e-12,
		NumLabels:             2,
	}
}

// LoadConfig reads a config.json. Fields it omits keep their TinyConfig
// values; the label count comes from num_labels or, failing that, id2label.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := TinyConfig()
	cfg.NumLabels = 0
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if cfg.NumLabels == 0 {
		cfg.NumLabels = len(cfg.ID2Label)
	}
	if cfg.NumLabels == 0 {
		cfg.NumLabels = 2
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that the configuration describes a buildable model.
func (c Config) Validate() error {
	var errs []error
	for _, f := range []struct {
		name  string
		value int
	}{
		{"vocab_size", c.VocabSize},
		{"hidden_size", c.HiddenSize},
		{"num_hidden_layers", c.NumHiddenLayers},
		{"num_attention_heads", c.NumAttentionHeads},
		{"intermediate_size", c.IntermediateSize},
		{"max_position_embeddings", c.MaxPositionEmbeddings},
		{"type_vocab_size", c.TypeVocabSize},
		{"num_labels", c.NumLabels},
	} {
		if f.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", f.name, f.value))
		}
	}
	if c.NumAttentionHeads > 0 && c.HiddenSize%c.NumAttentionHeads != 0 {
		errs = append(errs, fmt.Errorf("hidden_size %d is not divisible by num_attention_heads %d", c.HiddenSize, c.NumAttentionHeads))
	}
	if c.HiddenAct != "gelu" {
		errs = append(errs, fmt.Errorf("unsupported hidden_act %q", c.HiddenAct))
	}
	if c.HiddenDropoutProb < 0 || c.HiddenDropoutProb >= 1 {
		errs = append(errs, fmt.Errorf("hidden_dropout_prob must be in [0, 1), got %g", c.HiddenDropoutProb))
	}
	if c.LayerNormEps <= 0 {
		errs = append(errs, fmt.Errorf("layer_norm_eps must be positive, got %g", c.LayerNormEps))
	}
	return errors.Join(errs...)
}

// HeadDim is the per-head attention width.
func (c Config) HeadDim() int { return c.HiddenSize / c.NumAttentionHeads }

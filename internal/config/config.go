// Package config loads the zoo service configuration from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/zoo/internal/zoo"
)

// BertWeightsKey names the BERT checkpoint in Config.Weights.
const BertWeightsKey = "bert_tiny"

// Config is the CLI and service configuration.
//
// Example:
//
//	listen: ":8080"
//	workers: 4
//	batch: 1
//	preload: [cifar10_lenet5, resnet50_classifier]
//	weights:
//	  mnist_aby3: /models/mnist_aby3.safetensors
//	  bert_tiny: /models/bert-tiny/model.safetensors
//	bert_config: /models/bert-tiny/config.json
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`
	// Workers caps CPU kernel parallelism; 0 uses every physical core.
	Workers int `yaml:"workers"`
	// Batch is the batch size for probe forward passes.
	Batch int `yaml:"batch"`
	// Preload lists models whose summaries are computed at startup.
	Preload []string `yaml:"preload"`
	// Weights maps a model name to a SafeTensors file.
	Weights map[string]string `yaml:"weights"`
	// BertConfig is an optional Hugging Face config.json for BERT.
	BertConfig string `yaml:"bert_config"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Listen: ":8080",
		Batch:  1,
	}
}

// Load reads path over the defaults and validates the result.
// Unknown keys are rejected.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every problem with the configuration.
func (c Config) Validate() error {
	var errs []error
	if c.Listen == "" {
		errs = append(errs, errors.New("listen address is required"))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must be >= 0, got %d", c.Workers))
	}
	if c.Batch < 1 {
		errs = append(errs, fmt.Errorf("batch must be >= 1, got %d", c.Batch))
	}
	for _, name := range c.Preload {
		if !zoo.Has(name) {
			errs = append(errs, fmt.Errorf("preload: %w: %q", zoo.ErrUnknownModel, name))
		}
	}
	for name, path := range c.Weights {
		if name != BertWeightsKey && !zoo.Has(name) {
			errs = append(errs, fmt.Errorf("weights: %w: %q", zoo.ErrUnknownModel, name))
		}
		if path == "" {
			errs = append(errs, fmt.Errorf("weights: empty path for %q", name))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// WeightsFor returns the checkpoint configured for name, if any.
func (c Config) WeightsFor(name string) (string, bool) {
	path, ok := c.Weights[name]
	return path, ok
}

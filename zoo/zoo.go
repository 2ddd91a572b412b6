// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package zoo is the public model catalog.
//
// Every catalog model classifies into ten classes for the input shape of
// the dataset it is evaluated on:
//
//	backend := cpu.New()
//	name, model, err := zoo.GetModel("mnist_sphinx", backend)
//	if err != nil {
//	    return err
//	}
//	_, shape := zoo.GetDataset(name) // mnist [32 1 28 28]
//	logits := model.Forward(tensor.Randn[float32](shape, backend)) // [32, 10]
//
// Architectures can also be inspected without allocating weights:
//
//	e, _ := zoo.Describe("resnet50_classifier")
//	s, _ := e.Summarize()
//	fmt.Print(s)
package zoo

import (
	"github.com/born-ml/zoo/internal/arch"
	"github.com/born-ml/zoo/internal/bert"
	"github.com/born-ml/zoo/internal/loader"
	internalzoo "github.com/born-ml/zoo/internal/zoo"
	"github.com/born-ml/zoo/nn"
	"github.com/born-ml/zoo/tensor"
)

// DefaultModel is the catalog's default choice. An empty name is not
// mapped to it.
const DefaultModel = internalzoo.DefaultModel

// ErrUnknownModel is returned for names outside the catalog.
var ErrUnknownModel = internalzoo.ErrUnknownModel

// Options overrides the class count and dropout of a catalog model.
type Options = internalzoo.Options

// Entry is a catalog model's static description.
type Entry = internalzoo.Entry

// Summary is a per-block overview computed by shape inference.
type Summary = arch.Summary

// LoadReport describes a weight load.
type LoadReport = loader.Report

// BertConfig is a Hugging Face BERT configuration.
type BertConfig = bert.Config

// BertEmbeddings maps token ids to hidden states.
type BertEmbeddings[B tensor.Backend] = bert.Embeddings[B]

// BertClassifier maps hidden states to class logits.
type BertClassifier[B tensor.Backend] = bert.SequenceClassifier[B]

// DefaultOptions returns ten classes and dropout 0.5.
func DefaultOptions() Options { return internalzoo.DefaultOptions() }

// DropoutRate returns p for Options.Dropout. DropoutRate(0) disables
// dropout.
func DropoutRate(p float32) *float32 { return internalzoo.DropoutRate(p) }

// Names returns the supported model names in sorted order.
func Names() []string { return internalzoo.Names() }

// Describe returns the static description of name.
func Describe(name string) (Entry, error) { return internalzoo.Describe(name) }

// GetModel builds the named model on backend.
func GetModel[B tensor.Backend](name string, backend B) (string, nn.Module[B], error) {
	return internalzoo.GetModel(name, backend)
}

// GetModelWithOptions builds the named model with custom options.
func GetModelWithOptions[B tensor.Backend](name string, opts Options, backend B) (string, nn.Module[B], error) {
	return internalzoo.GetModelWithOptions(name, opts, backend)
}

// GetDataset returns the dataset identifier and NCHW batch shape a model
// name is evaluated on.
func GetDataset(name string) (string, tensor.Shape) { return internalzoo.GetDataset(name) }

// TinyBertConfig returns the prajjwal1/bert-tiny configuration.
func TinyBertConfig() BertConfig { return bert.TinyConfig() }

// LoadBertConfig reads a Hugging Face config.json.
func LoadBertConfig(path string) (BertConfig, error) { return bert.LoadConfig(path) }

// NewTinySeqClassification builds BERT sequence classification split into
// its embedding and its encoder-plus-head.
func NewTinySeqClassification[B tensor.Backend](cfg BertConfig, backend B) (*BertEmbeddings[B], *BertClassifier[B], error) {
	return bert.NewTinySeqClassification(cfg, backend)
}

// LoadWeights fills target from a SafeTensors file. Hugging Face BERT names
// are recognised and mapped; anything else must match the state-dict keys.
func LoadWeights(path string, target nn.Stateful) (LoadReport, error) {
	return loader.LoadInto(path, target, nil)
}

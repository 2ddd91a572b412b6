// Package zoo is the model catalog: named architecture factories, the
// dataset each one is evaluated on, and lookup by name.
package zoo

import (
	"errors"
	"fmt"
	"sort"

	"github.com/born-ml/zoo/internal/arch"
	"github.com/born-ml/zoo/internal/dataset"
	"github.com/born-ml/zoo/internal/nn"
	"github.com/born-ml/zoo/internal/tensor"
)

// DefaultModel is the catalog's default choice. Callers pass it
// explicitly; an empty name is unknown like any other.
const DefaultModel = "cifar10_lenet5"

// ErrUnknownModel is returned for names outside the catalog.
var ErrUnknownModel = errors.New("unknown model")

// Factory builds an architecture description.
type Factory func(Options) arch.Sequential

type registration struct {
	factory Factory
	// dataset overrides the name-based dataset rule.
	dataset string
}

var catalog = map[string]registration{
	"mnist_aby3":             {factory: MNISTAby3},
	"mnist_chameleon":        {factory: MNISTChameleon},
	"mnist_sphinx":           {factory: MNISTSphinx},
	"mnist_quotient_3x128":   {factory: MNISTQuotient3x128},
	"mnist_quotient_2x512":   {factory: MNISTQuotient2x512},
	"cifar10_lenet5":         {factory: CIFAR10LeNet5},
	"cifar10_sphinx":         {factory: CIFAR10Sphinx},
	"alexnet":                {factory: AlexNet, dataset: dataset.CIFAR10224},
	"alexnet_classifier":     {factory: AlexNetClassifier},
	"resnet50_classifier":    {factory: ResNet50Classifier},
	"densenet121_classifier": {factory: DenseNet121Classifier},
}

// Entry describes one catalog model.
type Entry struct {
	Name    string          `json:"name"`
	Dataset dataset.Dataset `json:"dataset"`
	Arch    arch.Sequential `json:"-"`
}

// NumParameters counts every weight of the architecture.
func (e Entry) NumParameters() int { return e.Arch.NumParameters() }

// TrainableParameters counts the weights outside frozen feature extractors.
func (e Entry) TrainableParameters() int { return arch.TrainableParameters(e.Arch) }

// Summarize runs shape inference with the dataset's input shape.
func (e Entry) Summarize() (*arch.Summary, error) {
	return arch.Summarize(e.Arch, e.Dataset.Shape)
}

// Names returns the catalog keys in sorted order.
func Names() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether name is in the catalog.
func Has(name string) bool {
	_, ok := catalog[name]
	return ok
}

// Describe returns the entry for name with default options.
func Describe(name string) (Entry, error) {
	return DescribeWithOptions(name, DefaultOptions())
}

// DescribeWithOptions returns the entry for name built with opts.
func DescribeWithOptions(name string, opts Options) (Entry, error) {
	reg, ok := catalog[name]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}

	ds := dataset.For(name)
	if reg.dataset != "" {
		ds, _ = dataset.ByName(reg.dataset)
	}
	return Entry{Name: name, Dataset: ds, Arch: reg.factory(opts)}, nil
}

// GetModel builds the named model on backend and returns its name with it.
func GetModel[B tensor.Backend](name string, backend B) (string, nn.Module[B], error) {
	return GetModelWithOptions(name, DefaultOptions(), backend)
}

// GetModelWithOptions is GetModel with custom classes and dropout.
//
// The architecture is shape-checked against its dataset before any weight
// is allocated.
func GetModelWithOptions[B tensor.Backend](name string, opts Options, backend B) (string, nn.Module[B], error) {
	e, err := DescribeWithOptions(name, opts)
	if err != nil {
		return "", nil, err
	}
	if _, err := e.Arch.OutputShape(e.Dataset.Shape); err != nil {
		return "", nil, fmt.Errorf("%s: %w", e.Name, err)
	}
	m, err := arch.Build(e.Arch, backend)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", e.Name, err)
	}
	return e.Name, m, nil
}

// GetDataset returns the dataset a model name is evaluated on and its batch
// shape. Catalog entries may override the name-based rule.
func GetDataset(name string) (string, tensor.Shape) {
	if reg, ok := catalog[name]; ok && reg.dataset != "" {
		ds, _ := dataset.ByName(reg.dataset)
		return ds.Name, ds.Shape
	}
	ds := dataset.For(name)
	return ds.Name, ds.Shape
}

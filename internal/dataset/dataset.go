// Package dataset maps model names to the dataset they are evaluated on
// and its fixed input batch shape.
package dataset

import (
	"strings"

	"github.com/born-ml/zoo/internal/tensor"
)

// Dataset identifiers.
const (
	MNIST      = "mnist"
	CIFAR10    = "cifar10-32"
	CIFAR10224 = "cifar10-224"
)

// Dataset is a dataset identifier with its NCHW batch shape.
type Dataset struct {
	Name  string       `json:"name"`
	Shape tensor.Shape `json:"shape"`
}

// rule matches names containing substr.
type rule struct {
	substr string
	ds     Dataset
}

// rules are checked in order; the first match wins.
var rules = []rule{
	{"classifier", Dataset{CIFAR10224, tensor.Shape{64, 3, 224, 224}}},
	{"cifar10", Dataset{CIFAR10, tensor.Shape{64, 3, 32, 32}}},
	{"mnist", Dataset{MNIST, tensor.Shape{32, 1, 28, 28}}},
}

var fallback = Dataset{MNIST, tensor.Shape{32, 1, 28, 28}}

// For returns the dataset a model name is evaluated on.
// Names matching no rule fall back to MNIST. The shape is a fresh copy.
func For(name string) Dataset {
	for _, r := range rules {
		if strings.Contains(name, r.substr) {
			return r.ds.clone()
		}
	}
	return fallback.clone()
}

// ByName looks a dataset up by its identifier.
func ByName(id string) (Dataset, bool) {
	for _, r := range rules {
		if r.ds.Name == id {
			return r.ds.clone(), true
		}
	}
	return Dataset{}, false
}

// Names returns the known dataset identifiers.
func Names() []string {
	return []string{MNIST, CIFAR10, CIFAR10224}
}

// Classes returns the number of target classes (10 for MNIST and CIFAR-10).
func (d Dataset) Classes() int { return 10 }

// Batch returns the batch dimension.
func (d Dataset) Batch() int { return d.Shape[0] }

// WithBatch returns the shape with its batch dimension replaced.
func (d Dataset) WithBatch(n int) tensor.Shape {
	s := d.Shape.Clone()
	s[0] = n
	return s
}

func (d Dataset) clone() Dataset {
	return Dataset{Name: d.Name, Shape: d.Shape.Clone()}
}

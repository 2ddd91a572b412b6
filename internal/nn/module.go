// Package nn implements the neural network modules the zoo's architectures
// are built from.
//
// This package provides:
//   - Module interface: Base interface for all NN components
//   - Parameter: Named weight tensors
//   - Layers: Linear, Conv2D, pooling, BatchNorm2D, LayerNorm, Embedding
//   - Activations: ReLU, GELU, Tanh, Sigmoid
//   - Containers: Sequential, Residual, Concat, Frozen
//   - MultiHeadAttention for the BERT encoder
//
// Design inspired by PyTorch's nn.Module but adapted for Go generics.
package nn

import (
	"fmt"
	"sort"
	"strings"

	"github.com/born-ml/zoo/internal/tensor"
)

// Stateful is anything whose weights can be exported to and restored from
// a flat name → tensor map (PyTorch's state_dict).
type Stateful interface {
	// StateDict returns the module's tensors keyed by PyTorch-style names.
	// Returned tensors alias the module's storage.
	StateDict() map[string]*tensor.RawTensor

	// LoadStateDict copies values into the module. Every key the module
	// expects must be present with matching shape and dtype.
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
}

// Module is the base interface for all neural network components.
//
// Modules can be composed to build complex architectures:
//
//	model := nn.NewSequential[Backend](
//	    nn.NewFlatten[Backend](),
//	    nn.NewLinear(784, 128, backend),
//	    nn.NewReLU[Backend](),
//	    nn.NewLinear(128, 10, backend),
//	)
//
// Type parameter B must satisfy the tensor.Backend interface.
type Module[B tensor.Backend] interface {
	Stateful

	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns all trainable parameters of this module.
	// Returns an empty slice for modules without trainable parameters
	// and for frozen modules.
	Parameters() []*Parameter[B]
}

// Trainable is implemented by modules whose behavior differs between
// training and inference (Dropout, and containers forwarding the flag).
type Trainable interface {
	Train(training bool)
}

// SetTraining switches m and every nested module into training or
// inference mode. Modules without a training mode are unaffected.
func SetTraining(m any, training bool) {
	if t, ok := m.(Trainable); ok {
		t.Train(training)
	}
}

// NumParameters counts the scalar elements of params.
func NumParameters[B tensor.Backend](params []*Parameter[B]) int {
	n := 0
	for _, p := range params {
		n += p.Tensor().NumElements()
	}
	return n
}

// CountStateDict counts every scalar a module stores, trainable or not,
// excluding running statistics.
func CountStateDict(s Stateful) int {
	n := 0
	for name, raw := range s.StateDict() {
		if isBuffer(name) {
			continue
		}
		n += raw.NumElements()
	}
	return n
}

// SortedKeys returns the state-dict keys in lexical order.
func SortedKeys(stateDict map[string]*tensor.RawTensor) []string {
	keys := make([]string, 0, len(stateDict))
	for k := range stateDict {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// isBuffer reports whether a state-dict key names a non-parameter buffer.
func isBuffer(name string) bool {
	return strings.HasSuffix(name, "running_mean") || strings.HasSuffix(name, "running_var")
}

// PrefixInto copies src into dst with every key prefixed.
func PrefixInto(dst, src map[string]*tensor.RawTensor, prefix string) {
	for name, raw := range src {
		dst[prefix+name] = raw
	}
}

// SubDict extracts the entries under prefix, with the prefix stripped.
func SubDict(stateDict map[string]*tensor.RawTensor, prefix string) map[string]*tensor.RawTensor {
	sub := make(map[string]*tensor.RawTensor)
	for key, raw := range stateDict {
		if len(key) > len(prefix) && strings.HasPrefix(key, prefix) {
			sub[key[len(prefix):]] = raw
		}
	}
	return sub
}

// loadInto validates src against dst's shape and dtype, then copies it.
func loadInto(name string, dst, src *tensor.RawTensor) error {
	if src == nil {
		return fmt.Errorf("missing %s in state dict", name)
	}
	if !src.Shape().Equal(dst.Shape()) {
		return fmt.Errorf("%s shape mismatch: expected %v, got %v", name, dst.Shape(), src.Shape())
	}
	if src.DType() != dst.DType() {
		return fmt.Errorf("%s dtype mismatch: expected %s, got %s", name, dst.DType(), src.DType())
	}
	return dst.CopyFrom(src)
}

// LoadAll loads every entry of own from stateDict by name.
func LoadAll(own, stateDict map[string]*tensor.RawTensor) error {
	for _, name := range SortedKeys(own) {
		if err := loadInto(name, own[name], stateDict[name]); err != nil {
			return err
		}
	}
	return nil
}

package nn

import (
	"github.com/born-ml/zoo/internal/tensor"
)

// Parameter represents a trainable parameter in a neural network.
//
// Parameters are the tensors an optimizer would update: weights and biases.
// BatchNorm running statistics are buffers, not parameters.
//
// Example:
//
//	weight := nn.NewParameter("weight", weightTensor)
//	w := weight.Tensor()
type Parameter[B tensor.Backend] struct {
	name   string                     // Parameter name (e.g., "weight", "bias")
	tensor *tensor.Tensor[float32, B] // The parameter tensor
}

// NewParameter creates a new parameter around an initialized tensor.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{
		name:   name,
		tensor: t,
	}
}

// Name returns the parameter name.
func (p *Parameter[B]) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter[B]) Tensor() *tensor.Tensor[float32, B] {
	return p.tensor
}

// Raw returns the parameter's underlying storage.
func (p *Parameter[B]) Raw() *tensor.RawTensor {
	return p.tensor.Raw()
}

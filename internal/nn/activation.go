package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/zoo/internal/tensor"
)

// stateless supplies the Module bookkeeping for layers without weights.
type stateless[B tensor.Backend] struct{}

// Parameters returns an empty slice.
func (s stateless[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{}
}

// StateDict returns an empty map.
func (s stateless[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{}
}

// LoadStateDict is a no-op.
func (s stateless[B]) LoadStateDict(map[string]*tensor.RawTensor) error {
	return nil
}

// unary applies a backend element-wise op to x.
func unary[B tensor.Backend](x *tensor.Tensor[float32, B], op func(B, *tensor.RawTensor) *tensor.RawTensor) *tensor.Tensor[float32, B] {
	b := x.Backend()
	return tensor.New[float32, B](op(b, x.Raw()), b)
}

// ReLU applies f(x) = max(0, x) element-wise.
//
// Example:
//
//	relu := nn.NewReLU[Backend]()
//	output := relu.Forward(input)
type ReLU[B tensor.Backend] struct{ stateless[B] }

// NewReLU creates a new ReLU activation.
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return &ReLU[B]{}
}

// Forward applies ReLU.
func (r *ReLU[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return unary(input, func(b B, x *tensor.RawTensor) *tensor.RawTensor { return b.ReLU(x) })
}

// String returns "ReLU()".
func (r *ReLU[B]) String() string { return "ReLU()" }

// GELU applies the exact Gaussian Error Linear Unit, x * Φ(x).
type GELU[B tensor.Backend] struct{ stateless[B] }

// NewGELU creates a new GELU activation.
func NewGELU[B tensor.Backend]() *GELU[B] {
	return &GELU[B]{}
}

// Forward applies GELU.
func (g *GELU[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return unary(input, func(b B, x *tensor.RawTensor) *tensor.RawTensor { return b.GELU(x) })
}

// Tanh applies the hyperbolic tangent element-wise.
type Tanh[B tensor.Backend] struct{ stateless[B] }

// NewTanh creates a new Tanh activation.
func NewTanh[B tensor.Backend]() *Tanh[B] {
	return &Tanh[B]{}
}

// Forward applies tanh.
func (t *Tanh[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return unary(input, func(b B, x *tensor.RawTensor) *tensor.RawTensor { return b.Tanh(x) })
}

// Sigmoid applies σ(x) = 1 / (1 + exp(-x)) element-wise.
type Sigmoid[B tensor.Backend] struct{ stateless[B] }

// NewSigmoid creates a new Sigmoid activation.
func NewSigmoid[B tensor.Backend]() *Sigmoid[B] {
	return &Sigmoid[B]{}
}

// Forward applies the sigmoid.
func (s *Sigmoid[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return unary(input, func(b B, x *tensor.RawTensor) *tensor.RawTensor { return b.Sigmoid(x) })
}

// Flatten collapses every dimension after the batch: [N, ...] -> [N, prod(...)].
type Flatten[B tensor.Backend] struct{ stateless[B] }

// NewFlatten creates a new Flatten layer.
func NewFlatten[B tensor.Backend]() *Flatten[B] {
	return &Flatten[B]{}
}

// Forward flattens from dimension 1.
func (f *Flatten[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if len(input.Shape()) < 2 {
		panic(fmt.Sprintf("flatten: expected at least 2D input, got shape %v", input.Shape()))
	}
	return input.Flatten(1)
}

// String returns "Flatten()".
func (f *Flatten[B]) String() string { return "Flatten()" }

// Dropout zeroes elements with probability P during training and scales the
// survivors by 1/(1-P). At inference it is the identity, which is the mode
// every module starts in.
type Dropout[B tensor.Backend] struct {
	stateless[B]
	P        float32
	training bool
}

// NewDropout creates a Dropout layer. P must be in [0, 1).
func NewDropout[B tensor.Backend](p float32) *Dropout[B] {
	if p < 0 || p >= 1 {
		panic(fmt.Sprintf("dropout: probability must be in [0, 1), got %g", p))
	}
	return &Dropout[B]{P: p}
}

// Train switches between training (masking) and inference (identity).
func (d *Dropout[B]) Train(training bool) {
	d.training = training
}

// Training reports whether the layer is in training mode.
func (d *Dropout[B]) Training() bool {
	return d.training
}

// Forward applies the dropout mask in training mode.
func (d *Dropout[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if !d.training || d.P == 0 {
		return input
	}

	out := input.Clone()
	keep := 1 - d.P
	scale := 1 / keep
	data := out.Data()
	for i := range data {
		//nolint:gosec // math/rand is appropriate for dropout masks
		if rand.Float32() < keep {
			data[i] *= scale
		} else {
			data[i] = 0
		}
	}
	return out
}

// String returns a PyTorch-style description.
func (d *Dropout[B]) String() string {
	return fmt.Sprintf("Dropout(p=%g)", d.P)
}

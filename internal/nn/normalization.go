package nn

import (
	"fmt"

	"github.com/born-ml/zoo/internal/tensor"
)

// BatchNorm2D applies batch normalization over [N, C, H, W] inputs using
// running statistics (inference mode):
//
//	y = (x - running_mean) / sqrt(running_var + eps) * weight + bias
//
// weight and bias are parameters; running_mean and running_var are buffers
// that appear in the state dict but not in Parameters.
type BatchNorm2D[B tensor.Backend] struct {
	numFeatures int
	Epsilon     float32

	weight      *Parameter[B] // gamma [C]
	bias        *Parameter[B] // beta [C]
	runningMean *tensor.Tensor[float32, B]
	runningVar  *tensor.Tensor[float32, B]

	backend B
}

// NewBatchNorm2D creates a BatchNorm2D with PyTorch's defaults: weight=1,
// bias=0, running_mean=0, running_var=1, eps=1e-5.
func NewBatchNorm2D[B tensor.Backend](numFeatures int, backend B) *BatchNorm2D[B] {
	if numFeatures <= 0 {
		panic(fmt.Sprintf("batchnorm2d: invalid num_features %d", numFeatures))
	}
	shape := tensor.Shape{numFeatures}
	return &BatchNorm2D[B]{
		numFeatures: numFeatures,
		Epsilon:     1e-5,
		weight:      NewParameter("weight", Ones(shape, backend)),
		bias:        NewParameter("bias", Zeros(shape, backend)),
		runningMean: Zeros(shape, backend),
		runningVar:  Ones(shape, backend),
		backend:     backend,
	}
}

// Forward normalizes each channel with its running statistics.
func (bn *BatchNorm2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 4 || shape[1] != bn.numFeatures {
		panic(fmt.Sprintf("batchnorm2d: expected [N,%d,H,W] input, got shape %v", bn.numFeatures, shape))
	}

	// Fold the statistics into one scale and shift per channel.
	scale := bn.runningVar.AddScalar(bn.Epsilon).Rsqrt().Mul(bn.weight.Tensor())
	shift := bn.bias.Tensor().Sub(bn.runningMean.Mul(scale))

	c := bn.numFeatures
	return input.Mul(scale.Reshape(c, 1, 1)).Add(shift.Reshape(c, 1, 1))
}

// Parameters returns [weight, bias].
func (bn *BatchNorm2D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{bn.weight, bn.bias}
}

// StateDict returns weight, bias and the running statistics.
func (bn *BatchNorm2D[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{
		"weight":       bn.weight.Raw(),
		"bias":         bn.bias.Raw(),
		"running_mean": bn.runningMean.Raw(),
		"running_var":  bn.runningVar.Raw(),
	}
}

// LoadStateDict loads parameters and running statistics.
func (bn *BatchNorm2D[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return LoadAll(bn.StateDict(), stateDict)
}

// String returns a PyTorch-style description.
func (bn *BatchNorm2D[B]) String() string {
	return fmt.Sprintf("BatchNorm2d(%d, eps=%g)", bn.numFeatures, bn.Epsilon)
}

// LayerNorm applies Layer Normalization over the last dimension.
//
// Formula: Y = weight * (X - mean(X)) / sqrt(var(X) + eps) + bias
//
// Example:
//
//	layernorm := nn.NewLayerNorm(128, 1e-12, backend) // BERT-tiny
//	output := layernorm.Forward(hiddenStates)          // [..., 128] -> [..., 128]
type LayerNorm[B tensor.Backend] struct {
	normalizedShape int
	Epsilon         float32
	weight          *Parameter[B] // gamma [d_model]
	bias            *Parameter[B] // beta [d_model]
}

// NewLayerNorm creates a new LayerNorm layer with weight=1 and bias=0.
func NewLayerNorm[B tensor.Backend](normalizedShape int, epsilon float32, backend B) *LayerNorm[B] {
	if normalizedShape <= 0 {
		panic(fmt.Sprintf("layernorm: invalid normalized shape %d", normalizedShape))
	}
	return &LayerNorm[B]{
		normalizedShape: normalizedShape,
		Epsilon:         epsilon,
		weight:          NewParameter("weight", Ones(tensor.Shape{normalizedShape}, backend)),
		bias:            NewParameter("bias", Zeros(tensor.Shape{normalizedShape}, backend)),
	}
}

// Forward applies LayerNorm to the input tensor.
//
// Algorithm:
//  1. mean = mean(x) along last dimension (keepdim=true)
//  2. x_centered = x - mean
//  3. variance = mean(x_centered^2) along last dimension
//  4. x_norm = x_centered * rsqrt(variance + epsilon)
//  5. output = weight * x_norm + bias
func (l *LayerNorm[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	if shape[len(shape)-1] != l.normalizedShape {
		panic(fmt.Sprintf("layernorm: expected last dimension %d, got shape %v", l.normalizedShape, shape))
	}

	mean := x.MeanDim(-1, true)
	xCentered := x.Sub(mean)
	variance := xCentered.Mul(xCentered).MeanDim(-1, true)
	xNorm := xCentered.Mul(variance.AddScalar(l.Epsilon).Rsqrt())

	// [d_model] broadcasts against [..., d_model].
	return xNorm.Mul(l.weight.Tensor()).Add(l.bias.Tensor())
}

// Parameters returns [weight, bias].
func (l *LayerNorm[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{l.weight, l.bias}
}

// StateDict returns weight and bias.
func (l *LayerNorm[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{
		"weight": l.weight.Raw(),
		"bias":   l.bias.Raw(),
	}
}

// LoadStateDict loads weight and bias.
func (l *LayerNorm[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return LoadAll(l.StateDict(), stateDict)
}

package nn

import (
	"fmt"

	"github.com/born-ml/zoo/internal/tensor"
)

// Linear implements a fully connected (dense) layer.
//
// Performs the transformation: y = x @ W.T + b
// where:
//   - x is the input tensor with shape [..., in_features]
//   - W is the weight matrix with shape [out_features, in_features]
//   - b is the bias vector with shape [out_features]
//   - y is the output tensor with shape [..., out_features]
//
// Leading dimensions are flattened for the matmul and restored after, so
// the same layer serves [batch, features] and [batch, seq, hidden] inputs.
//
// Example:
//
//	backend := cpu.New()
//	layer := nn.NewLinear(784, 128, backend)
//
//	input := tensor.Randn[float32](tensor.Shape{32, 784}, backend)  // batch_size=32
//	output := layer.Forward(input)  // shape: [32, 128]
type Linear[B tensor.Backend] struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter[B] // [out_features, in_features]
	bias        *Parameter[B] // [out_features]
}

// NewLinear creates a new Linear layer.
//
// Weights are initialized using Xavier/Glorot uniform distribution.
// Biases are initialized to zeros.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, backend B) *Linear[B] {
	if inFeatures <= 0 || outFeatures <= 0 {
		panic(fmt.Sprintf("linear: invalid features in=%d out=%d", inFeatures, outFeatures))
	}

	weightShape := tensor.Shape{outFeatures, inFeatures}
	return &Linear[B]{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewParameter("weight", Xavier(inFeatures, outFeatures, weightShape, backend)),
		bias:        NewParameter("bias", Zeros(tensor.Shape{outFeatures}, backend)),
	}
}

// Forward computes the output of the linear layer.
//
// Input shape: [..., in_features]
// Output shape: [..., out_features]
func (l *Linear[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inputShape := input.Shape()
	if len(inputShape) < 2 {
		panic(fmt.Sprintf("linear: expected at least 2D input [batch, features], got shape %v", inputShape))
	}
	if inputShape[len(inputShape)-1] != l.inFeatures {
		panic(fmt.Sprintf("linear: expected input with %d features, got %d", l.inFeatures, inputShape[len(inputShape)-1]))
	}

	x := input
	if len(inputShape) > 2 {
		x = input.Reshape(-1, l.inFeatures)
	}

	// [N, in] @ [in, out] = [N, out]
	output := x.MatMul(l.weight.Tensor().Transpose())
	output = output.Add(l.bias.Tensor())

	if len(inputShape) > 2 {
		outShape := inputShape.Clone()
		outShape[len(outShape)-1] = l.outFeatures
		output = output.Reshape(outShape...)
	}
	return output
}

// Parameters returns [weight, bias].
func (l *Linear[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{l.weight, l.bias}
}

// Weight returns the weight parameter.
func (l *Linear[B]) Weight() *Parameter[B] {
	return l.weight
}

// Bias returns the bias parameter.
func (l *Linear[B]) Bias() *Parameter[B] {
	return l.bias
}

// InFeatures returns the number of input features.
func (l *Linear[B]) InFeatures() int {
	return l.inFeatures
}

// OutFeatures returns the number of output features.
func (l *Linear[B]) OutFeatures() int {
	return l.outFeatures
}

// StateDict returns weight and bias.
func (l *Linear[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{
		"weight": l.weight.Raw(),
		"bias":   l.bias.Raw(),
	}
}

// LoadStateDict loads weight and bias, validating shape and dtype.
func (l *Linear[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return LoadAll(l.StateDict(), stateDict)
}

// String returns a PyTorch-style description.
func (l *Linear[B]) String() string {
	return fmt.Sprintf("Linear(in_features=%d, out_features=%d)", l.inFeatures, l.outFeatures)
}

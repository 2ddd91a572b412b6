package nn

import (
	"fmt"

	"github.com/born-ml/zoo/internal/tensor"
)

// Conv2D implements a 2D convolutional layer.
//
// Applies 2D convolution over an input signal composed of several input channels.
//
// Input shape:  [batch, in_channels, height, width]
// Output shape: [batch, out_channels, out_height, out_width]
//
// Where:
//
//	out_height = (height + 2*padding - kernel_h) / stride + 1
//	out_width = (width + 2*padding - kernel_w) / stride + 1
//
// Example:
//
//	// LeNet-5 first layer: 3 input channels, 6 output channels, 5x5 kernel
//	conv := nn.NewConv2D(3, 6, 5, 1, 0, true, backend)
//	output := conv.Forward(images) // [N, 3, 32, 32] -> [N, 6, 28, 28]
type Conv2D[B tensor.Backend] struct {
	inChannels  int
	outChannels int
	kernelSize  int
	stride      int
	padding     int

	weight *Parameter[B] // [out_channels, in_channels, kernel, kernel]
	bias   *Parameter[B] // [out_channels], nil when disabled

	backend B
}

// NewConv2D creates a new Conv2D layer with a square kernel.
//
// Weights use Kaiming-uniform initialization over fan_in = in*k*k; the bias,
// when enabled, starts at zero. ResNet and DenseNet convolutions are built
// with useBias=false because a BatchNorm follows them.
func NewConv2D[B tensor.Backend](
	inChannels, outChannels, kernelSize, stride, padding int,
	useBias bool,
	backend B,
) *Conv2D[B] {
	if inChannels <= 0 || outChannels <= 0 {
		panic(fmt.Sprintf("conv2d: invalid channels in=%d out=%d", inChannels, outChannels))
	}
	if kernelSize <= 0 || stride <= 0 || padding < 0 {
		panic(fmt.Sprintf("conv2d: invalid kernel=%d stride=%d padding=%d", kernelSize, stride, padding))
	}

	fanIn := inChannels * kernelSize * kernelSize
	weightShape := tensor.Shape{outChannels, inChannels, kernelSize, kernelSize}

	c := &Conv2D[B]{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  kernelSize,
		stride:      stride,
		padding:     padding,
		weight:      NewParameter("weight", KaimingUniform(fanIn, weightShape, backend)),
		backend:     backend,
	}
	if useBias {
		c.bias = NewParameter("bias", Zeros(tensor.Shape{outChannels}, backend))
	}
	return c
}

// Forward computes the convolution and adds the per-channel bias.
func (c *Conv2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("conv2d: expected 4D input [N,C,H,W], got shape %v", inputShape))
	}
	if inputShape[1] != c.inChannels {
		panic(fmt.Sprintf("conv2d: expected %d input channels, got %d", c.inChannels, inputShape[1]))
	}

	out := tensor.New[float32, B](
		c.backend.Conv2D(input.Raw(), c.weight.Raw(), c.stride, c.padding),
		c.backend,
	)

	if c.bias != nil {
		// [C_out] -> [C_out, 1, 1] broadcasts over [N, C_out, H, W].
		out = out.Add(c.bias.Tensor().Reshape(c.outChannels, 1, 1))
	}
	return out
}

// Parameters returns [weight] or [weight, bias].
func (c *Conv2D[B]) Parameters() []*Parameter[B] {
	if c.bias != nil {
		return []*Parameter[B]{c.weight, c.bias}
	}
	return []*Parameter[B]{c.weight}
}

// StateDict returns weight and, when present, bias.
func (c *Conv2D[B]) StateDict() map[string]*tensor.RawTensor {
	sd := map[string]*tensor.RawTensor{"weight": c.weight.Raw()}
	if c.bias != nil {
		sd["bias"] = c.bias.Raw()
	}
	return sd
}

// LoadStateDict loads weight (and bias), validating shape and dtype.
func (c *Conv2D[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return LoadAll(c.StateDict(), stateDict)
}

// Weight returns the kernel parameter.
func (c *Conv2D[B]) Weight() *Parameter[B] {
	return c.weight
}

// Bias returns the bias parameter, or nil when the layer has none.
func (c *Conv2D[B]) Bias() *Parameter[B] {
	return c.bias
}

// String returns a PyTorch-style description.
func (c *Conv2D[B]) String() string {
	return fmt.Sprintf("Conv2d(%d, %d, kernel_size=%d, stride=%d, padding=%d, bias=%t)",
		c.inChannels, c.outChannels, c.kernelSize, c.stride, c.padding, c.bias != nil)
}

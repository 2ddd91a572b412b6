package nn

import (
	"fmt"

	"github.com/born-ml/zoo/internal/tensor"
)

// poolKind selects the reduction a Pool2D applies.
type poolKind int

const (
	maxPool poolKind = iota
	avgPool
)

// Pool2D implements MaxPool2d and AvgPool2d with a square window.
//
// Input shape:  [batch, channels, height, width]
// Output shape: [batch, channels, out_height, out_width]
//
//	out = (in + 2*padding - kernel) / stride + 1
//
// Average pooling divides by kernel*kernel even where the window overlaps
// padding.
type Pool2D[B tensor.Backend] struct {
	kind       poolKind
	kernelSize int
	stride     int
	padding    int
	backend    B
}

// NewMaxPool2D creates a max pooling layer.
//
// Example:
//
//	pool := nn.NewMaxPool2D(3, 2, 0, backend) // AlexNet's overlapping pool
func NewMaxPool2D[B tensor.Backend](kernelSize, stride, padding int, backend B) *Pool2D[B] {
	return newPool2D(maxPool, kernelSize, stride, padding, backend)
}

// NewAvgPool2D creates an average pooling layer.
func NewAvgPool2D[B tensor.Backend](kernelSize, stride, padding int, backend B) *Pool2D[B] {
	return newPool2D(avgPool, kernelSize, stride, padding, backend)
}

func newPool2D[B tensor.Backend](kind poolKind, kernelSize, stride, padding int, backend B) *Pool2D[B] {
	if kernelSize <= 0 || stride <= 0 || padding < 0 || 2*padding > kernelSize {
		panic(fmt.Sprintf("pool2d: invalid kernel=%d stride=%d padding=%d", kernelSize, stride, padding))
	}
	return &Pool2D[B]{
		kind:       kind,
		kernelSize: kernelSize,
		stride:     stride,
		padding:    padding,
		backend:    backend,
	}
}

// Forward applies the pooling window.
func (p *Pool2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if len(input.Shape()) != 4 {
		panic(fmt.Sprintf("pool2d: expected 4D input [N,C,H,W], got shape %v", input.Shape()))
	}

	var raw *tensor.RawTensor
	if p.kind == maxPool {
		raw = p.backend.MaxPool2D(input.Raw(), p.kernelSize, p.stride, p.padding)
	} else {
		raw = p.backend.AvgPool2D(input.Raw(), p.kernelSize, p.stride, p.padding)
	}
	return tensor.New[float32, B](raw, p.backend)
}

// Parameters returns an empty slice (pooling has no parameters).
func (p *Pool2D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{}
}

// StateDict returns an empty map.
func (p *Pool2D[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{}
}

// LoadStateDict is a no-op.
func (p *Pool2D[B]) LoadStateDict(map[string]*tensor.RawTensor) error {
	return nil
}

// String returns a PyTorch-style description.
func (p *Pool2D[B]) String() string {
	name := "MaxPool2d"
	if p.kind == avgPool {
		name = "AvgPool2d"
	}
	return fmt.Sprintf("%s(kernel_size=%d, stride=%d, padding=%d)", name, p.kernelSize, p.stride, p.padding)
}

// AdaptiveAvgPool2D averages each channel down to a fixed output size,
// whatever the input resolution.
type AdaptiveAvgPool2D[B tensor.Backend] struct {
	outH, outW int
	backend    B
}

// NewAdaptiveAvgPool2D creates an adaptive average pooling layer.
func NewAdaptiveAvgPool2D[B tensor.Backend](outH, outW int, backend B) *AdaptiveAvgPool2D[B] {
	if outH <= 0 || outW <= 0 {
		panic(fmt.Sprintf("adaptive_avgpool2d: invalid output size %dx%d", outH, outW))
	}
	return &AdaptiveAvgPool2D[B]{outH: outH, outW: outW, backend: backend}
}

// Forward pools [N, C, H, W] to [N, C, outH, outW].
func (a *AdaptiveAvgPool2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return tensor.New[float32, B](a.backend.AdaptiveAvgPool2D(input.Raw(), a.outH, a.outW), a.backend)
}

// Parameters returns an empty slice.
func (a *AdaptiveAvgPool2D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{}
}

// StateDict returns an empty map.
func (a *AdaptiveAvgPool2D[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{}
}

// LoadStateDict is a no-op.
func (a *AdaptiveAvgPool2D[B]) LoadStateDict(map[string]*tensor.RawTensor) error {
	return nil
}

// String returns a PyTorch-style description.
func (a *AdaptiveAvgPool2D[B]) String() string {
	return fmt.Sprintf("AdaptiveAvgPool2d(output_size=(%d, %d))", a.outH, a.outW)
}

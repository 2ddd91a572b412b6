// Package arch describes network architectures as immutable values.
//
// A description can infer output shapes and count parameters without
// allocating a single weight, so even ResNet-50 and DenseNet-121 can be
// validated against a dataset shape instantly. Build turns a description
// into a runnable nn.Module on a backend.
package arch

import (
	"errors"
	"fmt"

	"github.com/born-ml/zoo/internal/tensor"
)

// ErrShape is wrapped by every shape-inference failure.
var ErrShape = errors.New("invalid shape")

// Layer is a static layer specification.
type Layer interface {
	// Kind is a short machine-readable layer type, e.g. "conv2d".
	Kind() string

	// OutputShape infers the output shape for an input shape.
	OutputShape(in tensor.Shape) (tensor.Shape, error)

	// NumParameters counts the layer's weights (frozen ones included).
	NumParameters() int

	// String returns a PyTorch-style description.
	String() string
}

func shapeErrorf(kind, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrShape, kind, fmt.Sprintf(format, args...))
}

func requireRank(kind string, in tensor.Shape, rank int) error {
	if len(in) != rank {
		return shapeErrorf(kind, "expected %dD input, got %v", rank, in)
	}
	return nil
}

// Conv2D is a square-kernel 2D convolution.
// A zero Stride means 1.
type Conv2D struct {
	In, Out int
	Kernel  int
	Stride  int
	Padding int
	NoBias  bool
}

// Kind returns "conv2d".
func (c Conv2D) Kind() string { return "conv2d" }

// StrideOrDefault returns the effective stride.
func (c Conv2D) StrideOrDefault() int {
	if c.Stride == 0 {
		return 1
	}
	return c.Stride
}

// OutputShape implements Layer.
func (c Conv2D) OutputShape(in tensor.Shape) (tensor.Shape, error) {
	if err := requireRank(c.Kind(), in, 4); err != nil {
		return nil, err
	}
	if in[1] != c.In {
		return nil, shapeErrorf(c.Kind(), "expected %d input channels, got %d", c.In, in[1])
	}
	stride := c.StrideOrDefault()
	h := tensor.ConvOutputSize(in[2], c.Kernel, stride, c.Padding)
	w := tensor.ConvOutputSize(in[3], c.Kernel, stride, c.Padding)
	if h <= 0 || w <= 0 {
		return nil, shapeErrorf(c.Kind(), "kernel %d does not fit %dx%d input", c.Kernel, in[2], in[3])
	}
	return tensor.Shape{in[0], c.Out, h, w}, nil
}

// NumParameters implements Layer.
func (c Conv2D) NumParameters() int {
	n := c.Out * c.In * c.Kernel * c.Kernel
	if !c.NoBias {
		n += c.Out
	}
	return n
}

func (c Conv2D) String() string {
	s := fmt.Sprintf("Conv2d(%d, %d, kernel_size=%d, stride=%d, padding=%d", c.In, c.Out, c.Kernel, c.StrideOrDefault(), c.Padding)
	if c.NoBias {
		s += ", bias=false"
	}
	return s + ")"
}

// pool holds the fields shared by MaxPool2D and AvgPool2D.
// A zero Stride means Kernel.
type pool struct {
	Kernel  int
	Stride  int
	Padding int
}

func (p pool) stride() int {
	if p.Stride == 0 {
		return p.Kernel
	}
	return p.Stride
}

func (p pool) outputShape(kind string, in tensor.Shape) (tensor.Shape, error) {
	if err := requireRank(kind, in, 4); err != nil {
		return nil, err
	}
	if 2*p.Padding > p.Kernel {
		return nil, shapeErrorf(kind, "padding %d exceeds half of kernel %d", p.Padding, p.Kernel)
	}
	h := tensor.ConvOutputSize(in[2], p.Kernel, p.stride(), p.Padding)
	w := tensor.ConvOutputSize(in[3], p.Kernel, p.stride(), p.Padding)
	if h <= 0 || w <= 0 {
		return nil, shapeErrorf(kind, "window %d does not fit %dx%d input", p.Kernel, in[2], in[3])
	}
	return tensor.Shape{in[0], in[1], h, w}, nil
}

// MaxPool2D is square max pooling.
type MaxPool2D struct {
	Kernel  int
	Stride  int
	Padding int
}

// Kind returns "maxpool2d".
func (m MaxPool2D) Kind() string { return "maxpool2d" }

// StrideOrDefault returns the effective stride.
func (m MaxPool2D) StrideOrDefault() int { return pool(m).stride() }

// OutputShape implements Layer.
func (m MaxPool2D) OutputShape(in tensor.Shape) (tensor.Shape, error) {
	return pool(m).outputShape(m.Kind(), in)
}

// NumParameters returns 0.
func (m MaxPool2D) NumParameters() int { return 0 }

func (m MaxPool2D) String() string {
	return fmt.Sprintf("MaxPool2d(kernel_size=%d, stride=%d, padding=%d)", m.Kernel, m.StrideOrDefault(), m.Padding)
}

// AvgPool2D is square average pooling; padded cells count towards the mean.
type AvgPool2D struct {
	Kernel  int
	Stride  int
	Padding int
}

// Kind returns "avgpool2d".
func (a AvgPool2D) Kind() string { return "avgpool2d" }

// StrideOrDefault returns the effective stride.
func (a AvgPool2D) StrideOrDefault() int { return pool(a).stride() }

// OutputShape implements Layer.
func (a AvgPool2D) OutputShape(in tensor.Shape) (tensor.Shape, error) {
	return pool(a).outputShape(a.Kind(), in)
}

// NumParameters returns 0.
func (a AvgPool2D) NumParameters() int { return 0 }

func (a AvgPool2D) String() string {
	return fmt.Sprintf("AvgPool2d(kernel_size=%d, stride=%d, padding=%d)", a.Kernel, a.StrideOrDefault(), a.Padding)
}

// AdaptiveAvgPool2D pools any spatial size down to H x W.
type AdaptiveAvgPool2D struct {
	H, W int
}

// Kind returns "adaptive_avgpool2d".
func (a AdaptiveAvgPool2D) Kind() string { return "adaptive_avgpool2d" }

// OutputShape implements Layer.
func (a AdaptiveAvgPool2D) OutputShape(in tensor.Shape) (tensor.Shape, error) {
	if err := requireRank(a.Kind(), in, 4); err != nil {
		return nil, err
	}
	if a.H <= 0 || a.W <= 0 {
		return nil, shapeErrorf(a.Kind(), "invalid output size %dx%d", a.H, a.W)
	}
	return tensor.Shape{in[0], in[1], a.H, a.W}, nil
}

// NumParameters returns 0.
func (a AdaptiveAvgPool2D) NumParameters() int { return 0 }

func (a AdaptiveAvgPool2D) String() string {
	return fmt.Sprintf("AdaptiveAvgPool2d(output_size=(%d, %d))", a.H, a.W)
}

// BatchNorm2D normalizes each channel with running statistics.
type BatchNorm2D struct {
	Channels int
}

// Kind returns "batchnorm2d".
func (b BatchNorm2D) Kind() string { return "batchnorm2d" }

// OutputShape implements Layer.
func (b BatchNorm2D) OutputShape(in tensor.Shape) (tensor.Shape, error) {
	if err := requireRank(b.Kind(), in, 4); err != nil {
		return nil, err
	}
	if in[1] != b.Channels {
		return nil, shapeErrorf(b.Kind(), "expected %d channels, got %d", b.Channels, in[1])
	}
	return in.Clone(), nil
}

// NumParameters counts weight and bias; running statistics are buffers.
func (b BatchNorm2D) NumParameters() int { return 2 * b.Channels }

func (b BatchNorm2D) String() string { return fmt.Sprintf("BatchNorm2d(%d)", b.Channels) }

// ReLU is the rectifier.
type ReLU struct{}

// Kind returns "relu".
func (ReLU) Kind() string { return "relu" }

// OutputShape returns the input shape.
func (ReLU) OutputShape(in tensor.Shape) (tensor.Shape, error) { return in.Clone(), nil }

// NumParameters returns 0.
func (ReLU) NumParameters() int { return 0 }

func (ReLU) String() string { return "ReLU()" }

// Flatten collapses every dimension after the batch.
type Flatten struct{}

// Kind returns "flatten".
func (Flatten) Kind() string { return "flatten" }

// OutputShape implements Layer.
func (f Flatten) OutputShape(in tensor.Shape) (tensor.Shape, error) {
	if len(in) < 2 {
		return nil, shapeErrorf(f.Kind(), "expected at least 2D input, got %v", in)
	}
	return tensor.Shape{in[0], in[1:].NumElements()}, nil
}

// NumParameters returns 0.
func (Flatten) NumParameters() int { return 0 }

func (Flatten) String() string { return "Flatten()" }

// Dropout zeroes activations with probability P while training.
type Dropout struct {
	P float32
}

// Kind returns "dropout".
func (Dropout) Kind() string { return "dropout" }

// OutputShape returns the input shape.
func (Dropout) OutputShape(in tensor.Shape) (tensor.Shape, error) { return in.Clone(), nil }

// NumParameters returns 0.
func (Dropout) NumParameters() int { return 0 }

func (d Dropout) String() string { return fmt.Sprintf("Dropout(p=%g)", d.P) }

// Linear is a fully connected layer over the last dimension.
type Linear struct {
	In, Out int
}

// Kind returns "linear".
func (l Linear) Kind() string { return "linear" }

// OutputShape implements Layer.
func (l Linear) OutputShape(in tensor.Shape) (tensor.Shape, error) {
	if len(in) < 2 {
		return nil, shapeErrorf(l.Kind(), "expected at least 2D input, got %v", in)
	}
	if in[len(in)-1] != l.In {
		return nil, shapeErrorf(l.Kind(), "expected %d input features, got %d", l.In, in[len(in)-1])
	}
	out := in.Clone()
	out[len(out)-1] = l.Out
	return out, nil
}

// NumParameters implements Layer.
func (l Linear) NumParameters() int { return l.Out*l.In + l.Out }

func (l Linear) String() string {
	return fmt.Sprintf("Linear(in_features=%d, out_features=%d)", l.In, l.Out)
}

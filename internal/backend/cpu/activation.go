package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/zoo/internal/tensor"
)

// ReLU computes max(0, x) element-wise.
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryOp("relu", x, func(v float32) float32 {
		if v > 0 {
			return v
		}
		return 0
	})
}

// GELU computes the exact (erf) form used by BERT:
//
//	GELU(x) = 0.5 * x * (1 + erf(x / sqrt(2)))
func (cpu *CPUBackend) GELU(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryOp("gelu", x, func(v float32) float32 {
		return float32(0.5 * float64(v) * (1 + math.Erf(float64(v)/math.Sqrt2)))
	})
}

// Tanh computes the hyperbolic tangent element-wise.
func (cpu *CPUBackend) Tanh(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryOp("tanh", x, func(v float32) float32 {
		return float32(math.Tanh(float64(v)))
	})
}

// Sigmoid computes 1 / (1 + exp(-x)) element-wise.
func (cpu *CPUBackend) Sigmoid(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryOp("sigmoid", x, func(v float32) float32 {
		return float32(1 / (1 + math.Exp(-float64(v))))
	})
}

// Exp computes e^x element-wise.
func (cpu *CPUBackend) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryOp("exp", x, func(v float32) float32 {
		return float32(math.Exp(float64(v)))
	})
}

// Sqrt computes the square root element-wise.
func (cpu *CPUBackend) Sqrt(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryOp("sqrt", x, func(v float32) float32 {
		return float32(math.Sqrt(float64(v)))
	})
}

// Rsqrt computes 1/sqrt(x) element-wise.
func (cpu *CPUBackend) Rsqrt(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryOp("rsqrt", x, func(v float32) float32 {
		return float32(1 / math.Sqrt(float64(v)))
	})
}

// Softmax computes softmax along the specified dimension.
// Softmax(x_i) = exp(x_i - max) / sum(exp(x_j - max)) for all j in dimension.
func (cpu *CPUBackend) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	requireFloat32("softmax", x)
	shape := x.Shape()
	dim, err := tensor.NormalizeDim(dim, len(shape))
	if err != nil {
		panic(fmt.Sprintf("softmax: %v", err))
	}

	result := cpu.alloc("softmax", shape, tensor.Float32)
	src := x.AsFloat32()
	dst := result.AsFloat32()

	outer, size, inner := splitAt(shape, dim)
	for o := 0; o < outer; o++ {
		for in := 0; in < inner; in++ {
			base := o*size*inner + in

			maxVal := float32(math.Inf(-1))
			for i := 0; i < size; i++ {
				if v := src[base+i*inner]; v > maxVal {
					maxVal = v
				}
			}

			var sum float64
			for i := 0; i < size; i++ {
				e := math.Exp(float64(src[base+i*inner] - maxVal))
				dst[base+i*inner] = float32(e)
				sum += e
			}

			for i := 0; i < size; i++ {
				dst[base+i*inner] = float32(float64(dst[base+i*inner]) / sum)
			}
		}
	}

	return result
}

// splitAt factors shape around dim into (outer, size, inner) extents.
func splitAt(shape tensor.Shape, dim int) (outer, size, inner int) {
	outer, inner = 1, 1
	for i := 0; i < dim; i++ {
		outer *= shape[i]
	}
	for i := dim + 1; i < len(shape); i++ {
		inner *= shape[i]
	}
	return outer, shape[dim], inner
}

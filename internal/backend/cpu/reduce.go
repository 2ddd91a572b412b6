package cpu

import (
	"fmt"

	"github.com/born-ml/zoo/internal/tensor"
)

// MeanDim averages x along dim. With keepDim the reduced dimension stays
// with size 1; otherwise it is removed.
func (cpu *CPUBackend) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	requireFloat32("meandim", x)
	shape := x.Shape()
	dim, err := tensor.NormalizeDim(dim, len(shape))
	if err != nil {
		panic(fmt.Sprintf("meandim: %v", err))
	}

	outer, size, inner := splitAt(shape, dim)
	result := cpu.alloc("meandim", reducedShape(shape, dim, keepDim), tensor.Float32)
	src := x.AsFloat32()
	dst := result.AsFloat32()

	for o := 0; o < outer; o++ {
		for in := 0; in < inner; in++ {
			base := o*size*inner + in
			var sum float64
			for i := 0; i < size; i++ {
				sum += float64(src[base+i*inner])
			}
			dst[o*inner+in] = float32(sum / float64(size))
		}
	}

	return result
}

// Argmax returns the int32 index of the maximum along dim; dim is removed.
// Ties resolve to the first index.
func (cpu *CPUBackend) Argmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	requireFloat32("argmax", x)
	shape := x.Shape()
	dim, err := tensor.NormalizeDim(dim, len(shape))
	if err != nil {
		panic(fmt.Sprintf("argmax: %v", err))
	}

	outer, size, inner := splitAt(shape, dim)
	result := cpu.alloc("argmax", reducedShape(shape, dim, false), tensor.Int32)
	src := x.AsFloat32()
	dst := result.AsInt32()

	for o := 0; o < outer; o++ {
		for in := 0; in < inner; in++ {
			base := o*size*inner + in
			best := 0
			for i := 1; i < size; i++ {
				if src[base+i*inner] > src[base+best*inner] {
					best = i
				}
			}
			dst[o*inner+in] = int32(best) //nolint:gosec // bounded by dimension size
		}
	}

	return result
}

// reducedShape drops or collapses dim. A fully reduced 1D tensor keeps
// shape [1] so it stays a valid tensor.
func reducedShape(shape tensor.Shape, dim int, keepDim bool) tensor.Shape {
	out := make(tensor.Shape, 0, len(shape))
	for i, d := range shape {
		switch {
		case i != dim:
			out = append(out, d)
		case keepDim:
			out = append(out, 1)
		}
	}
	if len(out) == 0 {
		out = tensor.Shape{1}
	}
	return out
}

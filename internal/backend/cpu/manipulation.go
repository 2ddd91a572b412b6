package cpu

import (
	"fmt"

	"github.com/born-ml/zoo/internal/tensor"
)

// Reshape returns a view of t with a new shape. One dimension may be -1,
// in which case it is inferred from the element count.
//
// The result shares t's buffer; every op writes into fresh tensors, so the
// alias is never observed.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	shape, err := inferShape(newShape, t.NumElements())
	if err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}

	view, err := tensor.NewRawView(t, shape)
	if err != nil {
		panic(fmt.Sprintf("reshape: incompatible shapes: %v -> %v: %v", t.Shape(), newShape, err))
	}
	return view
}

// inferShape resolves a single -1 entry against numElements.
func inferShape(shape tensor.Shape, numElements int) (tensor.Shape, error) {
	out := shape.Clone()
	inferred := -1
	known := 1
	for i, d := range out {
		switch {
		case d == -1 && inferred >= 0:
			return nil, fmt.Errorf("only one dimension can be -1, got %v", shape)
		case d == -1:
			inferred = i
		default:
			known *= d
		}
	}
	if inferred >= 0 {
		if known <= 0 || numElements%known != 0 {
			return nil, fmt.Errorf("cannot infer -1 in %v for %d elements", shape, numElements)
		}
		out[inferred] = numElements / known
	}
	return out, nil
}

// Transpose permutes dimensions. With no axes it reverses them all.
// Works on any dtype by moving raw element bytes.
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := t.Shape()
	ndim := len(shape)

	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}

	if len(axes) != ndim {
		panic(fmt.Sprintf("transpose: axes length %d != ndim %d", len(axes), ndim))
	}

	seen := make([]bool, ndim)
	for _, ax := range axes {
		if ax < 0 || ax >= ndim {
			panic(fmt.Sprintf("transpose: invalid axis %d for %dD tensor", ax, ndim))
		}
		if seen[ax] {
			panic(fmt.Sprintf("transpose: duplicate axis %d", ax))
		}
		seen[ax] = true
	}

	newShape := make(tensor.Shape, ndim)
	for i, ax := range axes {
		newShape[i] = shape[ax]
	}

	result := cpu.alloc("transpose", newShape, t.DType())

	elem := t.DType().Size()
	src := t.Data()
	dst := result.Data()
	srcStrides := t.Strides()
	dstStrides := newShape.ComputeStrides()

	// For every output position, walk back to the source offset through the
	// permuted strides.
	permStrides := make([]int, ndim)
	for i, ax := range axes {
		permStrides[i] = srcStrides[ax]
	}

	n := newShape.NumElements()
	for i := 0; i < n; i++ {
		srcIdx, rem := 0, i
		for d := 0; d < ndim; d++ {
			srcIdx += (rem / dstStrides[d]) * permStrides[d]
			rem %= dstStrides[d]
		}
		copy(dst[i*elem:(i+1)*elem], src[srcIdx*elem:(srcIdx+1)*elem])
	}

	return result
}

// Cat concatenates tensors along dim.
//
// All tensors must share dtype and every dimension except dim.
// Supports negative dim indexing (-1 = last dimension).
func (cpu *CPUBackend) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	if len(tensors) == 0 {
		panic("cat: at least one tensor required")
	}

	shape := tensors[0].Shape()
	ndim := len(shape)
	dtype := tensors[0].DType()

	dim, err := tensor.NormalizeDim(dim, ndim)
	if err != nil {
		panic(fmt.Sprintf("cat: %v", err))
	}

	totalDim := 0
	for i, t := range tensors {
		tShape := t.Shape()
		if len(tShape) != ndim {
			panic(fmt.Sprintf("cat: tensor %d has %d dimensions, expected %d", i, len(tShape), ndim))
		}
		if t.DType() != dtype {
			panic(fmt.Sprintf("cat: tensor %d has dtype %s, expected %s", i, t.DType(), dtype))
		}
		for d := 0; d < ndim; d++ {
			if d == dim {
				totalDim += tShape[d]
			} else if tShape[d] != shape[d] {
				panic(fmt.Sprintf("cat: tensor %d dimension %d is %d, expected %d", i, d, tShape[d], shape[d]))
			}
		}
	}

	outShape := shape.Clone()
	outShape[dim] = totalDim
	result := cpu.alloc("cat", outShape, dtype)

	// View every tensor as [outer, dim*inner] byte blocks and interleave.
	elem := dtype.Size()
	outer, _, inner := splitAt(shape, dim)
	dst := result.Data()
	rowBytes := totalDim * inner * elem

	offset := 0
	for _, t := range tensors {
		block := t.Shape()[dim] * inner * elem
		src := t.Data()
		for o := 0; o < outer; o++ {
			copy(dst[o*rowBytes+offset:o*rowBytes+offset+block], src[o*block:(o+1)*block])
		}
		offset += block
	}

	return result
}

// Unsqueeze inserts a size-1 dimension at dim. dim may equal the rank
// (append) or be negative, counting from rank+1.
func (cpu *CPUBackend) Unsqueeze(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	dim, err := tensor.NormalizeDim(dim, len(shape)+1)
	if err != nil {
		panic(fmt.Sprintf("unsqueeze: %v", err))
	}

	newShape := make(tensor.Shape, 0, len(shape)+1)
	newShape = append(newShape, shape[:dim]...)
	newShape = append(newShape, 1)
	newShape = append(newShape, shape[dim:]...)
	return cpu.Reshape(x, newShape)
}

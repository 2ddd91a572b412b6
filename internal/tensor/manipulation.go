package tensor

// Cat concatenates tensors along the specified dimension.
//
// All tensors must have the same shape except along the concatenation
// dimension. Supports negative dim indexing (-1 = last dimension).
//
// Example:
//
//	a := tensor.Randn[float32](Shape{2, 3}, backend)
//	b := tensor.Randn[float32](Shape{2, 5}, backend)
//	c := tensor.Cat([]*Tensor[float32, B]{a, b}, 1) // Shape: [2, 8]
func Cat[T DType, B Backend](tensors []*Tensor[T, B], dim int) *Tensor[T, B] {
	if len(tensors) == 0 {
		panic("cat: at least one tensor required")
	}
	if len(tensors) == 1 {
		return tensors[0].Clone()
	}

	rawTensors := make([]*RawTensor, len(tensors))
	backend := tensors[0].backend
	for i, t := range tensors {
		rawTensors[i] = t.raw
	}

	return New[T, B](backend.Cat(rawTensors, dim), backend)
}

// Unsqueeze adds a dimension of size 1 at the specified position.
//
//	x := tensor.Randn[float32](Shape{2, 3}, backend)
//	y := x.Unsqueeze(1)  // Shape: [2, 1, 3]
func (t *Tensor[T, B]) Unsqueeze(dim int) *Tensor[T, B] {
	return New[T, B](t.backend.Unsqueeze(t.raw, dim), t.backend)
}

// Flatten collapses every dimension from start onward into one.
//
//	x := tensor.Zeros[float32](Shape{8, 16, 4, 4}, backend)
//	y := x.Flatten(1) // Shape: [8, 256]
func (t *Tensor[T, B]) Flatten(start int) *Tensor[T, B] {
	shape := t.Shape()
	if start < 0 {
		start += len(shape)
	}
	if start < 0 || start >= len(shape) {
		panic("flatten: start dimension out of range")
	}
	newShape := make([]int, 0, start+1)
	newShape = append(newShape, shape[:start]...)
	newShape = append(newShape, shape[start:].NumElements())
	return t.Reshape(newShape...)
}

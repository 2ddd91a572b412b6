// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public tensor API of the model zoo.
//
// Tensor[T, B] is a typed view over a RawTensor whose operations are
// executed by a Backend:
//
//	backend := cpu.New()
//	x := tensor.Randn[float32](tensor.Shape{2, 3, 32, 32}, backend)
//	_, model, _ := zoo.GetModel("cifar10_lenet5", backend)
//	logits := model.Forward(x) // [2, 10]
package tensor

import (
	"github.com/born-ml/zoo/internal/tensor"
)

// DType is a constraint for tensor element types.
type DType = tensor.DType

// DataType identifies the element type of a RawTensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Float64 DataType = tensor.Float64
	Int32   DataType = tensor.Int32
	Int64   DataType = tensor.Int64
)

// Device identifies where tensor data resides.
type Device = tensor.Device

// CPU is the only device the zoo executes on.
const CPU Device = tensor.CPU

// Shape holds tensor dimensions, e.g. Shape{64, 3, 32, 32} for an NCHW batch.
type Shape = tensor.Shape

// Backend is the set of primitives a compute backend implements.
type Backend = tensor.Backend

// RawTensor is the untyped tensor storage.
type RawTensor = tensor.RawTensor

// Tensor is a typed tensor bound to a backend.
type Tensor[T DType, B Backend] = tensor.Tensor[T, B]

// NewRaw allocates a zeroed RawTensor.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype, device)
}

// New wraps raw as a typed tensor.
func New[T DType, B Backend](raw *RawTensor, b B) *Tensor[T, B] {
	return tensor.New[T](raw, b)
}

// FromSlice copies data into a new tensor of the given shape.
func FromSlice[T DType, B Backend](data []T, shape Shape, b B) (*Tensor[T, B], error) {
	return tensor.FromSlice(data, shape, b)
}

// Zeros creates a tensor filled with zeros.
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Zeros[T](shape, b)
}

// Ones creates a tensor filled with ones.
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Ones[T](shape, b)
}

// Full creates a tensor filled with value.
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	return tensor.Full(shape, value, b)
}

// Randn creates a tensor with values drawn from N(0, 1).
func Randn[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Randn[T](shape, b)
}

// Uniform creates a tensor with values drawn from U(low, high).
func Uniform[T DType, B Backend](shape Shape, low, high float64, b B) *Tensor[T, B] {
	return tensor.Uniform[T](shape, low, high, b)
}

// Arange creates the 1D tensor start, start+1, ..., end-1.
func Arange[T DType, B Backend](start, end int, b B) *Tensor[T, B] {
	return tensor.Arange[T](start, end, b)
}

// Cat concatenates tensors along dim.
func Cat[T DType, B Backend](tensors []*Tensor[T, B], dim int) *Tensor[T, B] {
	return tensor.Cat(tensors, dim)
}

package tensor

import (
	"math"
	"math/rand"
)

// Zeros creates a tensor filled with zeros.
//
// Example:
//
//	backend := cpu.New()
//	t := tensor.Zeros[float32](Shape{3, 4}, backend)
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	var dummy T
	raw, err := NewRaw(shape, inferDataType(dummy), b.Device())
	if err != nil {
		panic(err)
	}
	return New[T, B](raw, b)
}

// Ones creates a tensor filled with ones.
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return Full[T, B](shape, T(1), b)
}

// Full creates a tensor filled with a specific value.
//
// Example:
//
//	t := tensor.Full[float32](Shape{3, 3}, 3.14, backend)
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = value
	}
	return t
}

// Randn creates a tensor with values drawn from N(0, 1) using the
// Box-Muller transform. Only float element types are meaningful.
//
// Note: Uses math/rand (not crypto/rand), which is fine for weight init and probes.
func Randn[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()
	for i := range data {
		//nolint:gosec // math/rand is appropriate for ML initialization
		u1, u2 := rand.Float64(), rand.Float64()
		if u1 < 1e-300 {
			u1 = 1e-300
		}
		z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
		data[i] = T(z)
	}
	return t
}

// Uniform creates a tensor with values drawn from U(low, high).
func Uniform[T DType, B Backend](shape Shape, low, high float64, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()
	span := high - low
	for i := range data {
		//nolint:gosec // math/rand is appropriate for ML initialization
		data[i] = T(low + rand.Float64()*span)
	}
	return t
}

// Arange creates a 1D tensor with values start, start+1, ..., end-1.
func Arange[T DType, B Backend](start, end int, b B) *Tensor[T, B] {
	if end <= start {
		panic("arange: end must be greater than start")
	}
	t := Zeros[T, B](Shape{end - start}, b)
	data := t.Data()
	for i := range data {
		data[i] = T(start + i)
	}
	return t
}

package cpu

import (
	"testing"

	"github.com/born-ml/zoo/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaxPool2D_Basic(t *testing.T) {
	backend := New()
	input := rawFrom(t, tensor.Shape{1, 1, 4, 4}, seq(16)...)

	output := backend.MaxPool2D(input, 2, 2, 0)

	require.True(t, output.Shape().Equal(tensor.Shape{1, 1, 2, 2}))
	assert.Equal(t, []float32{6, 8, 14, 16}, output.AsFloat32())
}

// TestMaxPool2D_OverlappingWindows covers AlexNet's 3/2 pooling.
func TestMaxPool2D_OverlappingWindows(t *testing.T) {
	backend := New()
	input := rawFrom(t, tensor.Shape{1, 1, 5, 5}, seq(25)...)

	output := backend.MaxPool2D(input, 3, 2, 0)

	require.True(t, output.Shape().Equal(tensor.Shape{1, 1, 2, 2}))
	assert.Equal(t, []float32{13, 15, 23, 25}, output.AsFloat32())
}

// Padding never wins a max, even when every real value is negative.
func TestMaxPool2D_PaddingIgnored(t *testing.T) {
	backend := New()
	input := rawFrom(t, tensor.Shape{1, 1, 2, 2}, -4, -3, -2, -1)

	output := backend.MaxPool2D(input, 3, 2, 1)

	require.True(t, output.Shape().Equal(tensor.Shape{1, 1, 1, 1}))
	assert.Equal(t, []float32{-1}, output.AsFloat32())
}

func TestMaxPool2D_MultiChannel(t *testing.T) {
	backend := New()
	values := append(seq(4), -1, -2, -3, -4)
	input := rawFrom(t, tensor.Shape{1, 2, 2, 2}, values...)

	output := backend.MaxPool2D(input, 2, 2, 0)
	assert.Equal(t, []float32{4, -1}, output.AsFloat32())
}

func TestAvgPool2D_Basic(t *testing.T) {
	backend := New()
	input := rawFrom(t, tensor.Shape{1, 1, 4, 4}, seq(16)...)

	output := backend.AvgPool2D(input, 2, 2, 0)

	require.True(t, output.Shape().Equal(tensor.Shape{1, 1, 2, 2}))
	assert.Equal(t, []float32{3.5, 5.5, 11.5, 13.5}, output.AsFloat32())
}

// Zero padding counts towards the divisor.
func TestAvgPool2D_CountIncludePad(t *testing.T) {
	backend := New()
	input := rawFrom(t, tensor.Shape{1, 1, 2, 2}, 4, 4, 4, 4)

	output := backend.AvgPool2D(input, 2, 2, 1)

	require.True(t, output.Shape().Equal(tensor.Shape{1, 1, 2, 2}))
	// Each window covers one real cell and three padded ones: 4/4.
	assert.Equal(t, []float32{1, 1, 1, 1}, output.AsFloat32())
}

func TestPool2D_InvalidArgs(t *testing.T) {
	backend := New()
	input := rawFrom(t, tensor.Shape{1, 1, 2, 2}, seq(4)...)

	assert.Panics(t, func() { backend.MaxPool2D(input, 0, 1, 0) })
	assert.Panics(t, func() { backend.MaxPool2D(input, 2, 0, 0) })
	assert.Panics(t, func() { backend.AvgPool2D(input, 2, 1, 2) })
	assert.Panics(t, func() { backend.AvgPool2D(input, 3, 1, 0) })
}

func TestAdaptiveAvgPool2D_Identity(t *testing.T) {
	backend := New()
	input := rawFrom(t, tensor.Shape{1, 1, 2, 3}, seq(6)...)

	output := backend.AdaptiveAvgPool2D(input, 2, 3)
	assert.Equal(t, input.AsFloat32(), output.AsFloat32())
}

func TestAdaptiveAvgPool2D_Global(t *testing.T) {
	backend := New()
	input := rawFrom(t, tensor.Shape{2, 1, 2, 2}, 1, 2, 3, 4, 10, 10, 20, 20)

	output := backend.AdaptiveAvgPool2D(input, 1, 1)

	require.True(t, output.Shape().Equal(tensor.Shape{2, 1, 1, 1}))
	assert.Equal(t, []float32{2.5, 15}, output.AsFloat32())
}

// 5 -> 3 uses overlapping windows [0,2), [1,4), [3,5).
func TestAdaptiveAvgPool2D_Overlapping(t *testing.T) {
	backend := New()
	input := rawFrom(t, tensor.Shape{1, 1, 1, 5}, 1, 2, 3, 4, 5)

	output := backend.AdaptiveAvgPool2D(input, 1, 3)

	require.True(t, output.Shape().Equal(tensor.Shape{1, 1, 1, 3}))
	assert.Equal(t, []float32{1.5, 3, 4.5}, output.AsFloat32())
}

// Upsampling repeats cells, the path AlexNet's 6x6 pool takes on small inputs.
func TestAdaptiveAvgPool2D_Upsample(t *testing.T) {
	backend := New()
	input := rawFrom(t, tensor.Shape{1, 1, 1, 1}, 7)

	output := backend.AdaptiveAvgPool2D(input, 2, 2)
	assert.Equal(t, []float32{7, 7, 7, 7}, output.AsFloat32())
}

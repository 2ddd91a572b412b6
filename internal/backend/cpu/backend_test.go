package cpu

import (
	"testing"

	"github.com/born-ml/zoo/internal/parallel"
	"github.com/born-ml/zoo/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper to check float32 slices are equal within epsilon.
func float32SliceEqual(a, b []float32) bool {
	const epsilon = 1e-5
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		diff := a[i] - b[i]
		if diff < 0 {
			diff = -diff
		}
		if diff > epsilon {
			return false
		}
	}
	return true
}

// rawFrom builds a float32 RawTensor from values.
func rawFrom(t *testing.T, shape tensor.Shape, values ...float32) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	require.Len(t, values, shape.NumElements())
	copy(raw.AsFloat32(), values)
	return raw
}

// seq returns 1, 2, ..., n as float32.
func seq(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i + 1)
	}
	return out
}

func TestCPUBackend_New(t *testing.T) {
	backend := New()
	if backend == nil {
		t.Fatal("New() returned nil")
	}
	if backend.Name() != "CPU" {
		t.Errorf("Expected name 'CPU', got '%s'", backend.Name())
	}
	if backend.Device() != tensor.CPU {
		t.Errorf("Expected device CPU, got %v", backend.Device())
	}
	assert.GreaterOrEqual(t, backend.Workers(), 1)
}

func TestCPUBackend_ImplementsBackend(t *testing.T) {
	var _ tensor.Backend = New()
}

func TestCPUBackend_Workers(t *testing.T) {
	assert.Equal(t, 1, NewWithConfig(parallel.WithWorkers(1)).Workers())
	assert.Equal(t, 3, NewWithConfig(parallel.WithWorkers(3)).Workers())
}

func TestCPUBackend_ElementWise(t *testing.T) {
	backend := New()
	a := rawFrom(t, tensor.Shape{2, 2}, 1, 2, 3, 4)
	b := rawFrom(t, tensor.Shape{2, 2}, 4, 3, 2, 1)

	tests := []struct {
		name string
		op   func(a, b *tensor.RawTensor) *tensor.RawTensor
		want []float32
	}{
		{"add", backend.Add, []float32{5, 5, 5, 5}},
		{"sub", backend.Sub, []float32{-3, -1, 1, 3}},
		{"mul", backend.Mul, []float32{4, 6, 6, 4}},
		{"div", backend.Div, []float32{0.25, 2.0 / 3.0, 1.5, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.op(a, b)
			assert.True(t, got.Shape().Equal(tensor.Shape{2, 2}))
			if !float32SliceEqual(got.AsFloat32(), tt.want) {
				t.Errorf("%s: expected %v, got %v", tt.name, tt.want, got.AsFloat32())
			}
		})
	}
}

func TestCPUBackend_Broadcast(t *testing.T) {
	backend := New()

	// [2, 3] + [3] -> bias add
	x := rawFrom(t, tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6)
	bias := rawFrom(t, tensor.Shape{3}, 10, 20, 30)
	got := backend.Add(x, bias)
	assert.Equal(t, []float32{11, 22, 33, 14, 25, 36}, got.AsFloat32())

	// [2, 1] * [1, 3] -> outer product
	col := rawFrom(t, tensor.Shape{2, 1}, 1, 2)
	row := rawFrom(t, tensor.Shape{1, 3}, 1, 10, 100)
	outer := backend.Mul(col, row)
	assert.True(t, outer.Shape().Equal(tensor.Shape{2, 3}))
	assert.Equal(t, []float32{1, 10, 100, 2, 20, 200}, outer.AsFloat32())

	// Per-channel scale over NCHW: [1, 2, 1, 2] * [2, 1, 1]
	img := rawFrom(t, tensor.Shape{1, 2, 1, 2}, 1, 2, 3, 4)
	scale := rawFrom(t, tensor.Shape{2, 1, 1}, 2, -1)
	scaled := backend.Mul(img, scale)
	assert.Equal(t, []float32{2, 4, -3, -4}, scaled.AsFloat32())
}

func TestCPUBackend_BroadcastIncompatible(t *testing.T) {
	backend := New()
	a := rawFrom(t, tensor.Shape{2, 3}, seq(6)...)
	b := rawFrom(t, tensor.Shape{2, 2}, seq(4)...)
	assert.Panics(t, func() { backend.Add(a, b) })
}

func TestCPUBackend_Scalar(t *testing.T) {
	backend := New()
	x := rawFrom(t, tensor.Shape{3}, 1, 2, 3)
	assert.Equal(t, []float32{1.5, 2.5, 3.5}, backend.AddScalar(x, 0.5).AsFloat32())
	assert.Equal(t, []float32{-2, -4, -6}, backend.MulScalar(x, -2).AsFloat32())
}

func TestCPUBackend_RejectsNonFloat(t *testing.T) {
	backend := New()
	ints, err := tensor.NewRaw(tensor.Shape{2}, tensor.Int32, tensor.CPU)
	require.NoError(t, err)
	assert.PanicsWithValue(t, "relu: unsupported dtype int32 (only float32 supported)", func() {
		backend.ReLU(ints)
	})
}

func TestMatMul(t *testing.T) {
	backend := New()
	a := rawFrom(t, tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6)
	b := rawFrom(t, tensor.Shape{3, 2}, 7, 8, 9, 10, 11, 12)

	got := backend.MatMul(a, b)
	require.True(t, got.Shape().Equal(tensor.Shape{2, 2}))
	assert.Equal(t, []float32{58, 64, 139, 154}, got.AsFloat32())
}

func TestMatMul_ShapeMismatch(t *testing.T) {
	backend := New()
	a := rawFrom(t, tensor.Shape{2, 3}, seq(6)...)
	b := rawFrom(t, tensor.Shape{2, 3}, seq(6)...)
	assert.Panics(t, func() { backend.MatMul(a, b) })
}

func TestMatMul_ParallelMatchesSequential(t *testing.T) {
	const m, k, n = 33, 17, 9
	av := make([]float32, m*k)
	bv := make([]float32, k*n)
	for i := range av {
		av[i] = float32(i%7) - 3
	}
	for i := range bv {
		bv[i] = float32(i%5) * 0.5
	}
	a := rawFrom(t, tensor.Shape{m, k}, av...)
	b := rawFrom(t, tensor.Shape{k, n}, bv...)

	seqOut := NewWithConfig(parallel.WithWorkers(1)).MatMul(a, b)
	parOut := NewWithConfig(parallel.WithWorkers(4)).MatMul(a, b)
	assert.Equal(t, seqOut.AsFloat32(), parOut.AsFloat32())
}

func TestBatchMatMul(t *testing.T) {
	backend := New()
	// Two batches of [2,2] @ [2,1].
	a := rawFrom(t, tensor.Shape{2, 2, 2}, 1, 2, 3, 4, 1, 0, 0, 1)
	b := rawFrom(t, tensor.Shape{2, 2, 1}, 1, 1, 5, 6)

	got := backend.BatchMatMul(a, b)
	require.True(t, got.Shape().Equal(tensor.Shape{2, 2, 1}))
	assert.Equal(t, []float32{3, 7, 5, 6}, got.AsFloat32())
}

func TestBatchMatMul_4D(t *testing.T) {
	backend := New()
	a := rawFrom(t, tensor.Shape{1, 2, 1, 2}, 1, 2, 3, 4)
	b := rawFrom(t, tensor.Shape{1, 2, 2, 1}, 1, 1, 1, -1)

	got := backend.BatchMatMul(a, b)
	require.True(t, got.Shape().Equal(tensor.Shape{1, 2, 1, 1}))
	assert.Equal(t, []float32{3, -1}, got.AsFloat32())
}

func TestBatchMatMul_BatchMismatch(t *testing.T) {
	backend := New()
	a := rawFrom(t, tensor.Shape{2, 1, 1}, 1, 2)
	b := rawFrom(t, tensor.Shape{3, 1, 1}, 1, 2, 3)
	assert.Panics(t, func() { backend.BatchMatMul(a, b) })
}

func TestDetectFeatures(t *testing.T) {
	f := New().Features()
	assert.NotNil(t, f.Flags)
	assert.GreaterOrEqual(t, f.LogicalCores, 0)
	assert.GreaterOrEqual(t, f.PhysicalCores, 0)
}

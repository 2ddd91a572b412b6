package cpu

import (
	"fmt"

	"github.com/born-ml/zoo/internal/parallel"
	"github.com/born-ml/zoo/internal/tensor"
)

// MatMul performs matrix multiplication.
// For 2D tensors: (M, K) @ (K, N) -> (M, N).
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape := a.Shape()
	bShape := b.Shape()

	if len(aShape) != 2 || len(bShape) != 2 {
		panic(fmt.Sprintf("matmul: only 2D tensors supported, got %dD and %dD", len(aShape), len(bShape)))
	}
	requireFloat32("matmul", a)
	requireFloat32("matmul", b)

	m, k := aShape[0], aShape[1]
	kAlt, n := bShape[0], bShape[1]
	if k != kAlt {
		panic(fmt.Sprintf("matmul: shape mismatch [%d,%d] @ [%d,%d]", m, k, kAlt, n))
	}

	result := cpu.alloc("matmul", tensor.Shape{m, n}, tensor.Float32)
	matmulFloat32(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), m, k, n, cpu.cfg)
	return result
}

// BatchMatMul multiplies matching matrices over all leading dimensions.
//
//	3D: [B, M, K] @ [B, K, N] -> [B, M, N]
//	4D: [B, H, M, K] @ [B, H, K, N] -> [B, H, M, N]
func (cpu *CPUBackend) BatchMatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape := a.Shape()
	bShape := b.Shape()

	if len(aShape) < 3 || len(aShape) != len(bShape) {
		panic(fmt.Sprintf("batchmatmul: expected matching 3D/4D tensors, got %v and %v", aShape, bShape))
	}
	requireFloat32("batchmatmul", a)
	requireFloat32("batchmatmul", b)

	rank := len(aShape)
	if !aShape[:rank-2].Equal(bShape[:rank-2]) {
		panic(fmt.Sprintf("batchmatmul: batch dims differ: %v vs %v", aShape, bShape))
	}

	m, k := aShape[rank-2], aShape[rank-1]
	kAlt, n := bShape[rank-2], bShape[rank-1]
	if k != kAlt {
		panic(fmt.Sprintf("batchmatmul: inner dims differ: %d vs %d", k, kAlt))
	}

	outShape := append(aShape[:rank-2].Clone(), m, n)
	result := cpu.alloc("batchmatmul", outShape, tensor.Float32)

	batches := aShape[:rank-2].NumElements()
	av, bv, out := a.AsFloat32(), b.AsFloat32(), result.AsFloat32()

	parallel.For(batches*m, func(row int) {
		bi, i := row/m, row%m
		aRow := av[bi*m*k+i*k : bi*m*k+(i+1)*k]
		bMat := bv[bi*k*n : (bi+1)*k*n]
		outRow := out[bi*m*n+i*n : bi*m*n+(i+1)*n]
		accumulateRow(outRow, aRow, bMat, n)
	}, cpu.cfg)

	return result
}

// matmulFloat32 computes C = A @ B, parallel over rows of A.
// The i-k-j loop order streams rows of B for cache locality.
func matmulFloat32(c, a, b []float32, m, k, n int, cfg parallel.Config) {
	parallel.For(m, func(i int) {
		accumulateRow(c[i*n:(i+1)*n], a[i*k:(i+1)*k], b, n)
	}, cfg)
}

// accumulateRow sets out = aRow @ bMat where bMat is [len(aRow), n].
func accumulateRow(out, aRow, bMat []float32, n int) {
	for j := range out {
		out[j] = 0
	}
	for p, aip := range aRow {
		if aip == 0 {
			continue
		}
		bRow := bMat[p*n : (p+1)*n]
		for j, bv := range bRow {
			out[j] += aip * bv
		}
	}
}

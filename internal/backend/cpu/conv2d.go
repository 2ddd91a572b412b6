package cpu

import (
	"fmt"

	"github.com/born-ml/zoo/internal/parallel"
	"github.com/born-ml/zoo/internal/tensor"
)

// Conv2D performs 2D convolution using the im2col algorithm.
//
// Input shape:  [batch, in_channels, height, width]
// Kernel shape: [out_channels, in_channels, kernel_h, kernel_w]
// Output shape: [batch, out_channels, out_h, out_w]
//
// For every image:
//  1. Unfold input patches into a column matrix [C_in*K_h*K_w, H_out*W_out]
//  2. Multiply the kernel viewed as [C_out, C_in*K_h*K_w] by the columns
//  3. The product is already the [C_out, H_out, W_out] output plane
//
// Output channels are computed in parallel. 1x1 stride-1 unpadded
// convolutions skip the unfold and multiply the input plane directly.
//
// Reference: "High Performance Convolutional Neural Networks for Document Processing"
// (Chellapilla et al., 2006).
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	inputShape := input.Shape()
	kernelShape := kernel.Shape()

	if len(inputShape) != 4 {
		panic(fmt.Sprintf("conv2d: input must be 4D [N,C,H,W], got %dD", len(inputShape)))
	}
	if len(kernelShape) != 4 {
		panic(fmt.Sprintf("conv2d: kernel must be 4D [C_out,C_in,K_h,K_w], got %dD", len(kernelShape)))
	}
	requireFloat32("conv2d", input)
	requireFloat32("conv2d", kernel)

	N, CIn, H, W := inputShape[0], inputShape[1], inputShape[2], inputShape[3]
	COut, CInK, KH, KW := kernelShape[0], kernelShape[1], kernelShape[2], kernelShape[3]

	if CIn != CInK {
		panic(fmt.Sprintf("conv2d: input channels %d != kernel channels %d", CIn, CInK))
	}

	HOut := tensor.ConvOutputSize(H, KH, stride, padding)
	WOut := tensor.ConvOutputSize(W, KW, stride, padding)
	if HOut <= 0 || WOut <= 0 {
		panic(fmt.Sprintf("conv2d: invalid output dimensions: out_h=%d, out_w=%d (check stride/padding)", HOut, WOut))
	}

	output := cpu.alloc("conv2d", tensor.Shape{N, COut, HOut, WOut}, tensor.Float32)

	inputData := input.AsFloat32()
	kernelData := kernel.AsFloat32()
	outputData := output.AsFloat32()

	colRows := CIn * KH * KW
	plane := HOut * WOut
	pointwise := KH == 1 && KW == 1 && stride == 1 && padding == 0

	var colBuf []float32
	if !pointwise {
		colBuf = make([]float32, colRows*plane)
	}

	for n := 0; n < N; n++ {
		image := inputData[n*CIn*H*W : (n+1)*CIn*H*W]
		cols := image
		if !pointwise {
			im2colFloat32(colBuf, image, CIn, H, W, KH, KW, HOut, WOut, stride, padding)
			cols = colBuf
		}

		outImage := outputData[n*COut*plane : (n+1)*COut*plane]
		parallel.For(COut, func(co int) {
			accumulateRow(outImage[co*plane:(co+1)*plane], kernelData[co*colRows:(co+1)*colRows], cols, plane)
		}, cpu.cfg)
	}

	return output
}

// im2colFloat32 unfolds one [C, H, W] image into colBuf [C*K_h*K_w, H_out*W_out].
//
// Row r = (c, kh, kw) holds, for every output position, the input value the
// kernel weight at (c, kh, kw) touches; out-of-bounds reads are zero padding.
func im2colFloat32(colBuf, image []float32, C, H, W, KH, KW, HOut, WOut, stride, padding int) {
	plane := HOut * WOut
	row := 0

	for c := 0; c < C; c++ {
		channel := image[c*H*W : (c+1)*H*W]
		for kh := 0; kh < KH; kh++ {
			for kw := 0; kw < KW; kw++ {
				dst := colBuf[row*plane : (row+1)*plane]
				idx := 0
				for outH := 0; outH < HOut; outH++ {
					h := outH*stride - padding + kh
					if h < 0 || h >= H {
						for outW := 0; outW < WOut; outW++ {
							dst[idx] = 0
							idx++
						}
						continue
					}
					inRow := channel[h*W : (h+1)*W]
					for outW := 0; outW < WOut; outW++ {
						w := outW*stride - padding + kw
						if w >= 0 && w < W {
							dst[idx] = inRow[w]
						} else {
							dst[idx] = 0
						}
						idx++
					}
				}
				row++
			}
		}
	}
}

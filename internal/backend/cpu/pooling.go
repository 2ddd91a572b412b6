package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/zoo/internal/parallel"
	"github.com/born-ml/zoo/internal/tensor"
)

// MaxPool2D performs 2D max pooling.
//
// Input shape:  [batch, channels, height, width]
// Output shape: [batch, channels, out_height, out_width]
//
//	out = (in + 2*padding - kernelSize) / stride + 1
//
// Padded positions never win: they behave as -Inf, as in PyTorch.
//
// Example (2x2 pool, stride=2):
//
//	Input: [[1,2,3,4],    Output: [[6,8],
//	        [5,6,7,8],             [14,16]]
//	        [9,10,11,12],
//	        [13,14,15,16]]
func (cpu *CPUBackend) MaxPool2D(input *tensor.RawTensor, kernelSize, stride, padding int) *tensor.RawTensor {
	return cpu.pool2D("maxpool2d", input, kernelSize, stride, padding, func(window []float32, _ int) float32 {
		maxVal := float32(math.Inf(-1))
		for _, v := range window {
			if v > maxVal {
				maxVal = v
			}
		}
		return maxVal
	})
}

// AvgPool2D performs 2D average pooling.
//
// The divisor is always kernelSize*kernelSize, so zero padding counts towards
// the average (PyTorch's count_include_pad=True default).
func (cpu *CPUBackend) AvgPool2D(input *tensor.RawTensor, kernelSize, stride, padding int) *tensor.RawTensor {
	return cpu.pool2D("avgpool2d", input, kernelSize, stride, padding, func(window []float32, area int) float32 {
		var sum float32
		for _, v := range window {
			sum += v
		}
		return sum / float32(area)
	})
}

// pool2D slides a kernelSize window and reduces the in-bounds values with
// reduce. reduce also receives the full window area (kernelSize^2).
func (cpu *CPUBackend) pool2D(
	op string,
	input *tensor.RawTensor,
	kernelSize, stride, padding int,
	reduce func(window []float32, area int) float32,
) *tensor.RawTensor {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("%s: expected 4D input [N,C,H,W], got %dD", op, len(inputShape)))
	}
	requireFloat32(op, input)

	if kernelSize <= 0 {
		panic(fmt.Sprintf("%s: invalid kernel size %d", op, kernelSize))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("%s: invalid stride %d", op, stride))
	}
	if padding < 0 || 2*padding > kernelSize {
		panic(fmt.Sprintf("%s: padding %d must be in [0, kernel/2]", op, padding))
	}

	N, C, H, W := inputShape[0], inputShape[1], inputShape[2], inputShape[3]
	HOut := tensor.ConvOutputSize(H, kernelSize, stride, padding)
	WOut := tensor.ConvOutputSize(W, kernelSize, stride, padding)
	if HOut <= 0 || WOut <= 0 {
		panic(fmt.Sprintf("%s: invalid output dimensions %dx%d (kernel=%d, stride=%d, input=%dx%d)",
			op, HOut, WOut, kernelSize, stride, H, W))
	}

	output := cpu.alloc(op, tensor.Shape{N, C, HOut, WOut}, tensor.Float32)
	inputData := input.AsFloat32()
	outputData := output.AsFloat32()
	area := kernelSize * kernelSize

	parallel.ForBatch(N, C, func(n, c int) {
		channelOffset := (n*C + c) * H * W
		channelData := inputData[channelOffset : channelOffset+H*W]
		outOffset := (n*C + c) * HOut * WOut
		window := make([]float32, 0, area)

		for outH := 0; outH < HOut; outH++ {
			hStart := outH*stride - padding
			for outW := 0; outW < WOut; outW++ {
				wStart := outW*stride - padding

				window = window[:0]
				for h := max(hStart, 0); h < min(hStart+kernelSize, H); h++ {
					rowData := channelData[h*W : (h+1)*W]
					for w := max(wStart, 0); w < min(wStart+kernelSize, W); w++ {
						window = append(window, rowData[w])
					}
				}

				outputData[outOffset+outH*WOut+outW] = reduce(window, area)
			}
		}
	}, cpu.cfg)

	return output
}

// AdaptiveAvgPool2D averages each input plane down to exactly outH x outW.
//
// Window bounds follow PyTorch: start = floor(i*in/out), end = ceil((i+1)*in/out),
// so windows may overlap when in is not a multiple of out.
func (cpu *CPUBackend) AdaptiveAvgPool2D(input *tensor.RawTensor, outH, outW int) *tensor.RawTensor {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("adaptive_avgpool2d: expected 4D input [N,C,H,W], got %dD", len(inputShape)))
	}
	if outH <= 0 || outW <= 0 {
		panic(fmt.Sprintf("adaptive_avgpool2d: invalid output size %dx%d", outH, outW))
	}
	requireFloat32("adaptive_avgpool2d", input)

	N, C, H, W := inputShape[0], inputShape[1], inputShape[2], inputShape[3]
	output := cpu.alloc("adaptive_avgpool2d", tensor.Shape{N, C, outH, outW}, tensor.Float32)
	inputData := input.AsFloat32()
	outputData := output.AsFloat32()

	parallel.ForBatch(N, C, func(n, c int) {
		channelData := inputData[(n*C+c)*H*W : (n*C+c+1)*H*W]
		outPlane := outputData[(n*C+c)*outH*outW : (n*C+c+1)*outH*outW]

		for i := 0; i < outH; i++ {
			hStart, hEnd := tensor.AdaptiveWindow(i, H, outH)
			for j := 0; j < outW; j++ {
				wStart, wEnd := tensor.AdaptiveWindow(j, W, outW)

				var sum float32
				for h := hStart; h < hEnd; h++ {
					for w := wStart; w < wEnd; w++ {
						sum += channelData[h*W+w]
					}
				}
				outPlane[i*outW+j] = sum / float32((hEnd-hStart)*(wEnd-wStart))
			}
		}
	}, cpu.cfg)

	return output
}

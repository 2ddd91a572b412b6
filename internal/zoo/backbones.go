package zoo

import (
	"fmt"

	"github.com/born-ml/zoo/internal/arch"
)

// alexnetFeatures is the AlexNet convolutional trunk (torchvision layout).
func alexnetFeatures() arch.Sequential {
	return arch.Sequential{Name: "features", Layers: []arch.Layer{
		arch.Conv2D{In: 3, Out: 64, Kernel: 11, Stride: 4, Padding: 2},
		arch.ReLU{},
		arch.MaxPool2D{Kernel: 3, Stride: 2},
		arch.Conv2D{In: 64, Out: 192, Kernel: 5, Padding: 2},
		arch.ReLU{},
		arch.MaxPool2D{Kernel: 3, Stride: 2},
		arch.Conv2D{In: 192, Out: 384, Kernel: 3, Padding: 1},
		arch.ReLU{},
		arch.Conv2D{In: 384, Out: 256, Kernel: 3, Padding: 1},
		arch.ReLU{},
		arch.Conv2D{In: 256, Out: 256, Kernel: 3, Padding: 1},
		arch.ReLU{},
		arch.MaxPool2D{Kernel: 3, Stride: 2},
	}}
}

// AlexNetFE is the AlexNet feature extractor: the trunk followed by a 6x6
// adaptive average pool, producing [N, 256, 6, 6].
func AlexNetFE() arch.Sequential {
	return arch.Sequential{Name: "alexnet-fe", Layers: []arch.Layer{
		alexnetFeatures(),
		arch.AdaptiveAvgPool2D{H: 6, W: 6},
	}}
}

// ResNet50FE is ResNet-50 v1.5 without its fc layer, producing
// [N, 2048, 1, 1]. The stride of a downsampling bottleneck sits on its
// 3x3 convolution.
func ResNet50FE() arch.Sequential {
	layers := []arch.Layer{
		arch.Conv2D{In: 3, Out: 64, Kernel: 7, Stride: 2, Padding: 3, NoBias: true},
		arch.BatchNorm2D{Channels: 64},
		arch.ReLU{},
		arch.MaxPool2D{Kernel: 3, Stride: 2, Padding: 1},
	}

	in := 64
	stages := []struct{ width, blocks, stride int }{
		{64, 3, 1},
		{128, 4, 2},
		{256, 6, 2},
		{512, 3, 2},
	}
	for i, st := range stages {
		blocks := make([]arch.Layer, 0, st.blocks)
		for b := 0; b < st.blocks; b++ {
			stride := 1
			if b == 0 {
				stride = st.stride
			}
			blocks = append(blocks, bottleneck(in, st.width, stride))
			in = st.width * bottleneckExpansion
		}
		layers = append(layers, arch.Sequential{Name: fmt.Sprintf("layer%d", i+1), Layers: blocks})
	}

	layers = append(layers, arch.AdaptiveAvgPool2D{H: 1, W: 1})
	return arch.Sequential{Name: "resnet50-fe", Layers: layers}
}

const bottleneckExpansion = 4

// bottleneck is the 1x1 -> 3x3 -> 1x1 ResNet block. A projection shortcut
// is added whenever the block changes resolution or width.
func bottleneck(in, width, stride int) arch.Residual {
	out := width * bottleneckExpansion
	body := arch.Seq(
		arch.Conv2D{In: in, Out: width, Kernel: 1, NoBias: true},
		arch.BatchNorm2D{Channels: width},
		arch.ReLU{},
		arch.Conv2D{In: width, Out: width, Kernel: 3, Stride: stride, Padding: 1, NoBias: true},
		arch.BatchNorm2D{Channels: width},
		arch.ReLU{},
		arch.Conv2D{In: width, Out: out, Kernel: 1, NoBias: true},
		arch.BatchNorm2D{Channels: out},
	)

	var shortcut arch.Layer
	if stride != 1 || in != out {
		shortcut = arch.Seq(
			arch.Conv2D{In: in, Out: out, Kernel: 1, Stride: stride, NoBias: true},
			arch.BatchNorm2D{Channels: out},
		)
	}
	return arch.Residual{Body: body, Shortcut: shortcut}
}

// DenseNet-121 hyperparameters.
const (
	denseGrowth  = 32
	denseBNSize  = 4
	denseInitial = 64
)

var denseBlocks = []int{6, 12, 24, 16}

// DenseNet121FE is the DenseNet-121 feature trunk followed by ReLU and a
// 2x2 adaptive average pool, producing [N, 1024, 2, 2].
func DenseNet121FE() arch.Sequential {
	layers := []arch.Layer{
		arch.Conv2D{In: 3, Out: denseInitial, Kernel: 7, Stride: 2, Padding: 3, NoBias: true},
		arch.BatchNorm2D{Channels: denseInitial},
		arch.ReLU{},
		arch.MaxPool2D{Kernel: 3, Stride: 2, Padding: 1},
	}

	channels := denseInitial
	for i, n := range denseBlocks {
		block := make([]arch.Layer, 0, n)
		for j := 0; j < n; j++ {
			block = append(block, denseLayer(channels+j*denseGrowth))
		}
		layers = append(layers, arch.Sequential{Name: fmt.Sprintf("denseblock%d", i+1), Layers: block})
		channels += n * denseGrowth

		if i != len(denseBlocks)-1 {
			layers = append(layers, transition(channels, channels/2, i+1))
			channels /= 2
		}
	}

	layers = append(layers,
		arch.BatchNorm2D{Channels: channels},
		arch.ReLU{},
		arch.AdaptiveAvgPool2D{H: 2, W: 2},
	)
	return arch.Sequential{Name: "densenet121-fe", Layers: layers}
}

// denseLayer is BN-ReLU-Conv1x1-BN-ReLU-Conv3x3 whose growth-rate output
// is concatenated onto its input.
func denseLayer(in int) arch.DenseLayer {
	mid := denseBNSize * denseGrowth
	return arch.DenseLayer{Body: arch.Seq(
		arch.BatchNorm2D{Channels: in},
		arch.ReLU{},
		arch.Conv2D{In: in, Out: mid, Kernel: 1, NoBias: true},
		arch.BatchNorm2D{Channels: mid},
		arch.ReLU{},
		arch.Conv2D{In: mid, Out: denseGrowth, Kernel: 3, Padding: 1, NoBias: true},
	)}
}

func transition(in, out, index int) arch.Sequential {
	return arch.Sequential{Name: fmt.Sprintf("transition%d", index), Layers: []arch.Layer{
		arch.BatchNorm2D{Channels: in},
		arch.ReLU{},
		arch.Conv2D{In: in, Out: out, Kernel: 1, NoBias: true},
		arch.AvgPool2D{Kernel: 2, Stride: 2},
	}}
}

package zoo

import "github.com/born-ml/zoo/internal/arch"

// Options tunes a factory. Zero NumClasses and nil Dropout fall back to
// DefaultOptions; use DropoutRate(0) to disable dropout.
type Options struct {
	NumClasses int
	Dropout    *float32
}

// DropoutRate returns p for Options.Dropout.
func DropoutRate(p float32) *float32 { return &p }

// DefaultOptions returns 10 classes and dropout 0.5.
func DefaultOptions() Options {
	return Options{NumClasses: 10, Dropout: DropoutRate(0.5)}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.NumClasses > 0 {
		d.NumClasses = o.NumClasses
	}
	if o.Dropout != nil {
		d.Dropout = DropoutRate(*o.Dropout)
	}
	return d
}

// AlexNet expects [N, 3, 224, 224] input.
func AlexNet(opts Options) arch.Sequential {
	opts = opts.withDefaults()
	return arch.Sequential{Name: "alexnet", Layers: []arch.Layer{
		alexnetFeatures(),
		arch.Flatten{},
		arch.Dropout{P: *opts.Dropout},
		arch.Linear{In: 256 * 6 * 6, Out: 4096},
		arch.ReLU{},
		arch.Dropout{P: *opts.Dropout},
		arch.Linear{In: 4096, Out: 4096},
		arch.ReLU{},
		arch.Linear{In: 4096, Out: opts.NumClasses},
	}}
}

// frozenClassifier puts a trainable three-layer head on a frozen
// feature extractor.
func frozenClassifier(name string, fe arch.Sequential, features, classes int) arch.Sequential {
	return arch.Sequential{Name: name, Layers: []arch.Layer{
		arch.Frozen{Inner: fe},
		arch.Flatten{},
		arch.Linear{In: features, Out: 512},
		arch.ReLU{},
		arch.Linear{In: 512, Out: 256},
		arch.ReLU{},
		arch.Linear{In: 256, Out: classes},
	}}
}

// AlexNetClassifier trains a head on frozen AlexNet features.
func AlexNetClassifier(opts Options) arch.Sequential {
	opts = opts.withDefaults()
	return frozenClassifier("alexnet_classifier", AlexNetFE(), 256*6*6, opts.NumClasses)
}

// ResNet50Classifier trains a head on frozen ResNet-50 features.
func ResNet50Classifier(opts Options) arch.Sequential {
	opts = opts.withDefaults()
	return frozenClassifier("resnet50_classifier", ResNet50FE(), 2048, opts.NumClasses)
}

// DenseNet121Classifier trains a head on frozen DenseNet-121 features.
func DenseNet121Classifier(opts Options) arch.Sequential {
	opts = opts.withDefaults()
	return frozenClassifier("densenet121_classifier", DenseNet121FE(), 1024*2*2, opts.NumClasses)
}

// MNISTAby3 is the two-hidden-layer perceptron from the ABY3 benchmarks.
func MNISTAby3(opts Options) arch.Sequential {
	return mlp("mnist_aby3", opts, 128, 128)
}

// MNISTQuotient2x128 is the same network as MNISTAby3.
func MNISTQuotient2x128(opts Options) arch.Sequential {
	seq := MNISTAby3(opts)
	seq.Name = "mnist_quotient_2x128"
	return seq
}

// MNISTQuotient3x128 has three hidden layers of 128.
func MNISTQuotient3x128(opts Options) arch.Sequential {
	return mlp("mnist_quotient_3x128", opts, 128, 128, 128)
}

// MNISTQuotient2x512 has two hidden layers of 512.
func MNISTQuotient2x512(opts Options) arch.Sequential {
	return mlp("mnist_quotient_2x512", opts, 512, 512)
}

// mlp flattens a 28x28 image and applies ReLU hidden layers.
func mlp(name string, opts Options, hidden ...int) arch.Sequential {
	opts = opts.withDefaults()
	layers := []arch.Layer{arch.Flatten{}}
	in := 28 * 28
	for _, h := range hidden {
		layers = append(layers, arch.Linear{In: in, Out: h}, arch.ReLU{})
		in = h
	}
	layers = append(layers, arch.Linear{In: in, Out: opts.NumClasses})
	return arch.Sequential{Name: name, Layers: layers}
}

// MNISTChameleon is a single strided convolution and two dense layers.
func MNISTChameleon(opts Options) arch.Sequential {
	opts = opts.withDefaults()
	return arch.Sequential{Name: "mnist_chameleon", Layers: []arch.Layer{
		arch.Conv2D{In: 1, Out: 5, Kernel: 5, Stride: 2, Padding: 2}, // (5, 14, 14)
		arch.ReLU{},
		arch.Flatten{},
		arch.Linear{In: 980, Out: 100},
		arch.ReLU{},
		arch.Linear{In: 100, Out: opts.NumClasses},
	}}
}

// MNISTSphinx is the two-convolution MNIST network.
func MNISTSphinx(opts Options) arch.Sequential {
	opts = opts.withDefaults()
	return arch.Sequential{Name: "mnist_sphinx", Layers: []arch.Layer{
		arch.Conv2D{In: 1, Out: 16, Kernel: 5}, // (16, 24, 24)
		arch.ReLU{},
		arch.AvgPool2D{Kernel: 2},
		arch.Conv2D{In: 16, Out: 16, Kernel: 5}, // (16, 8, 8)
		arch.ReLU{},
		arch.AvgPool2D{Kernel: 2},
		arch.Flatten{},
		arch.Linear{In: 256, Out: 100},
		arch.ReLU{},
		arch.Linear{In: 100, Out: opts.NumClasses},
	}}
}

// CIFAR10LeNet5 is LeNet-5 on 32x32 RGB input.
func CIFAR10LeNet5(opts Options) arch.Sequential {
	opts = opts.withDefaults()
	return arch.Sequential{Name: "cifar10_lenet5", Layers: []arch.Layer{
		arch.Conv2D{In: 3, Out: 6, Kernel: 5}, // (6, 28, 28)
		arch.ReLU{},
		arch.AvgPool2D{Kernel: 2, Stride: 2},
		arch.Conv2D{In: 6, Out: 16, Kernel: 5}, // (16, 10, 10)
		arch.ReLU{},
		arch.AvgPool2D{Kernel: 2, Stride: 2},
		arch.Conv2D{In: 16, Out: 120, Kernel: 5}, // (120, 1, 1)
		arch.ReLU{},
		arch.Flatten{},
		arch.Linear{In: 120, Out: 84},
		arch.ReLU{},
		arch.Linear{In: 84, Out: opts.NumClasses},
	}}
}

// CIFAR10Sphinx is the five-convolution CIFAR-10 network.
func CIFAR10Sphinx(opts Options) arch.Sequential {
	opts = opts.withDefaults()
	return arch.Sequential{Name: "cifar10_sphinx", Layers: []arch.Layer{
		arch.Conv2D{In: 3, Out: 64, Kernel: 5, Padding: 2},
		arch.ReLU{},
		arch.AvgPool2D{Kernel: 2, Stride: 2},
		arch.Conv2D{In: 64, Out: 64, Kernel: 5, Padding: 2},
		arch.ReLU{},
		arch.AvgPool2D{Kernel: 2, Stride: 2},
		arch.Conv2D{In: 64, Out: 64, Kernel: 3, Padding: 1}, // (64, 8, 8)
		arch.ReLU{},
		arch.Conv2D{In: 64, Out: 64, Kernel: 1},
		arch.ReLU{},
		arch.Conv2D{In: 64, Out: 16, Kernel: 1},
		arch.ReLU{},
		arch.Flatten{},
		arch.Linear{In: 1024, Out: opts.NumClasses},
	}}
}

package zoo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/zoo/internal/arch"
	"github.com/born-ml/zoo/internal/backend/cpu"
	"github.com/born-ml/zoo/internal/nn"
	"github.com/born-ml/zoo/internal/tensor"
)

func TestNames(t *testing.T) {
	names := Names()
	assert.Equal(t, []string{
		"alexnet",
		"alexnet_classifier",
		"cifar10_lenet5",
		"cifar10_sphinx",
		"densenet121_classifier",
		"mnist_aby3",
		"mnist_chameleon",
		"mnist_quotient_2x512",
		"mnist_quotient_3x128",
		"mnist_sphinx",
		"resnet50_classifier",
	}, names)
	assert.False(t, Has("mnist_quotient_2x128"))
}

// Every catalog model must map its dataset batch to [batch, 10] logits.
func TestCatalog_OutputsTenClasses(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			_, shape := GetDataset(name)
			e, err := Describe(name)
			require.NoError(t, err)

			out, err := e.Arch.OutputShape(shape)
			require.NoError(t, err)
			assert.Equal(t, tensor.Shape{shape[0], 10}, out)
		})
	}
}

func TestCatalog_ParameterCounts(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		trainable int
	}{
		{"mnist_aby3", 118282, 118282},
		{"mnist_chameleon", 99240, 99240},
		{"mnist_sphinx", 33542, 33542},
		{"mnist_quotient_3x128", 134794, 134794},
		{"mnist_quotient_2x512", 669706, 669706},
		{"cifar10_lenet5", 62006, 62006},
		{"cifar10_sphinx", 159706, 159706},
		{"alexnet", 57044810, 57044810},
		{"alexnet_classifier", 2469696 + 4853002, 4853002},
		{"resnet50_classifier", 23508032 + 1182986, 1182986},
		{"densenet121_classifier", 6953856 + 2231562, 2231562},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := Describe(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.total, e.NumParameters())
			assert.Equal(t, tt.trainable, e.TrainableParameters())
		})
	}
}

func TestFeatureExtractors(t *testing.T) {
	tests := []struct {
		name   string
		fe     arch.Sequential
		params int
		out    tensor.Shape
	}{
		{"alexnet-fe", AlexNetFE(), 2469696, tensor.Shape{1, 256, 6, 6}},
		{"resnet50-fe", ResNet50FE(), 23508032, tensor.Shape{1, 2048, 1, 1}},
		{"densenet121-fe", DenseNet121FE(), 6953856, tensor.Shape{1, 1024, 2, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.fe.Name)
			assert.Equal(t, tt.params, tt.fe.NumParameters())

			out, err := tt.fe.OutputShape(tensor.Shape{1, 3, 224, 224})
			require.NoError(t, err)
			assert.Equal(t, tt.out, out)
		})
	}
}

func TestGetDataset(t *testing.T) {
	name, shape := GetDataset("resnet50_classifier")
	assert.Equal(t, "cifar10-224", name)
	assert.Equal(t, tensor.Shape{64, 3, 224, 224}, shape)

	name, shape = GetDataset("cifar10_lenet5")
	assert.Equal(t, "cifar10-32", name)
	assert.Equal(t, tensor.Shape{64, 3, 32, 32}, shape)

	name, shape = GetDataset("mnist_sphinx")
	assert.Equal(t, "mnist", name)
	assert.Equal(t, tensor.Shape{32, 1, 28, 28}, shape)

	// AlexNet takes 224x224 RGB input, so its entry overrides the
	// name-based fallback.
	name, shape = GetDataset("alexnet")
	assert.Equal(t, "cifar10-224", name)
	assert.Equal(t, tensor.Shape{64, 3, 224, 224}, shape)

	name, _ = GetDataset("not_a_model")
	assert.Equal(t, "mnist", name)
}

func TestGetModel_Unknown(t *testing.T) {
	for _, name := range []string{"", "vgg16", "MNIST_ABY3", "mnist_quotient_2x128", "alexnet "} {
		_, m, err := GetModel(name, cpu.New())
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, ErrUnknownModel), name)
		assert.Contains(t, err.Error(), name)
		assert.Nil(t, m)
	}

	_, err := Describe("bert_tiny")
	assert.ErrorIs(t, err, ErrUnknownModel)
}

func TestGetModel_DefaultName(t *testing.T) {
	_, m, err := GetModel("", cpu.New())
	assert.ErrorIs(t, err, ErrUnknownModel)
	assert.Nil(t, m)

	name, m, err := GetModel(DefaultModel, cpu.New())
	require.NoError(t, err)
	assert.Equal(t, "cifar10_lenet5", name)
	assert.Equal(t, 62006, nn.NumParameters(m.Parameters()))
}

func TestGetModel_Forward(t *testing.T) {
	backend := cpu.New()
	for _, name := range []string{
		"mnist_aby3",
		"mnist_chameleon",
		"mnist_sphinx",
		"mnist_quotient_3x128",
		"mnist_quotient_2x512",
		"cifar10_lenet5",
		"cifar10_sphinx",
	} {
		t.Run(name, func(t *testing.T) {
			got, m, err := GetModel(name, backend)
			require.NoError(t, err)
			assert.Equal(t, name, got)

			_, shape := GetDataset(name)
			shape[0] = 2
			logits := m.Forward(tensor.Randn[float32](shape, backend))
			assert.Equal(t, tensor.Shape{2, 10}, logits.Shape())

			e, err := Describe(name)
			require.NoError(t, err)
			assert.Equal(t, e.NumParameters(), nn.NumParameters(m.Parameters()))
		})
	}
}

func TestGetModel_FrozenClassifier(t *testing.T) {
	_, m, err := GetModel("alexnet_classifier", cpu.New())
	require.NoError(t, err)

	// Only the head is trainable; the state dict still carries the frozen
	// feature extractor.
	assert.Equal(t, 4853002, nn.NumParameters(m.Parameters()))
	assert.Equal(t, 2469696+4853002, nn.CountStateDict(m))
}

func TestGetModel_ResidualAndDenseClassifiers(t *testing.T) {
	backend := cpu.New()
	for _, name := range []string{"resnet50_classifier", "densenet121_classifier"} {
		t.Run(name, func(t *testing.T) {
			e, err := Describe(name)
			require.NoError(t, err)

			got, m, err := GetModel(name, backend)
			require.NoError(t, err)
			assert.Equal(t, name, got)
			assert.Equal(t, e.NumParameters(), nn.CountStateDict(m))
			assert.Equal(t, e.TrainableParameters(), nn.NumParameters(m.Parameters()))
		})
	}
}

func TestGetModelWithOptions(t *testing.T) {
	backend := cpu.New()
	_, m, err := GetModelWithOptions("mnist_aby3", Options{NumClasses: 3}, backend)
	require.NoError(t, err)

	logits := m.Forward(tensor.Randn[float32](tensor.Shape{4, 1, 28, 28}, backend))
	assert.Equal(t, tensor.Shape{4, 3}, logits.Shape())

	e, err := DescribeWithOptions("alexnet", Options{NumClasses: 100, Dropout: DropoutRate(0.2)})
	require.NoError(t, err)
	out, err := e.Arch.OutputShape(tensor.Shape{1, 3, 224, 224})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 100}, out)
	assert.Equal(t, arch.Dropout{P: 0.2}, e.Arch.Layers[2])
}

func TestOptions_Dropout(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want float32
	}{
		{"unset", Options{NumClasses: 3}, 0.5},
		{"zero", Options{Dropout: DropoutRate(0)}, 0},
		{"custom", Options{Dropout: DropoutRate(0.3)}, 0.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := DescribeWithOptions("alexnet", tt.opts)
			require.NoError(t, err)
			assert.Equal(t, arch.Dropout{P: tt.want}, e.Arch.Layers[2])
			assert.Equal(t, arch.Dropout{P: tt.want}, e.Arch.Layers[5])
		})
	}

	m, err := arch.Build(arch.Dropout{P: 0}, cpu.New())
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestQuotient2x128IsAby3(t *testing.T) {
	a := MNISTAby3(DefaultOptions())
	q := MNISTQuotient2x128(DefaultOptions())
	assert.Equal(t, a.Layers, q.Layers)
	assert.Equal(t, "mnist_quotient_2x128", q.Name)
}

func TestEntry_Summarize(t *testing.T) {
	e, err := Describe("alexnet")
	require.NoError(t, err)

	s, err := e.Summarize()
	require.NoError(t, err)
	assert.Equal(t, "features", s.Rows[0].Name)
	assert.Equal(t, tensor.Shape{64, 256, 6, 6}, s.Rows[0].OutputShape)
	assert.Equal(t, tensor.Shape{64, 10}, s.Output)
	assert.Equal(t, 57044810, s.TotalParameters)
}

func TestShapeErrorNamesLayer(t *testing.T) {
	e, err := Describe("alexnet")
	require.NoError(t, err)

	_, err = e.Arch.OutputShape(tensor.Shape{1, 1, 28, 28})
	require.Error(t, err)
	assert.ErrorIs(t, err, arch.ErrShape)
	assert.Contains(t, err.Error(), "features.0: ")
}

package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/born-ml/zoo/internal/tensor"
)

func TestFor(t *testing.T) {
	tests := []struct {
		name  string
		want  string
		shape tensor.Shape
	}{
		{"alexnet_classifier", CIFAR10224, tensor.Shape{64, 3, 224, 224}},
		{"resnet50_classifier", CIFAR10224, tensor.Shape{64, 3, 224, 224}},
		{"cifar10_classifier", CIFAR10224, tensor.Shape{64, 3, 224, 224}},
		{"cifar10_lenet5", CIFAR10, tensor.Shape{64, 3, 32, 32}},
		{"cifar10_sphinx", CIFAR10, tensor.Shape{64, 3, 32, 32}},
		{"mnist_aby3", MNIST, tensor.Shape{32, 1, 28, 28}},
		{"mnist_quotient_2x512", MNIST, tensor.Shape{32, 1, 28, 28}},
		{"alexnet", MNIST, tensor.Shape{32, 1, 28, 28}},
		{"", MNIST, tensor.Shape{32, 1, 28, 28}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := For(tt.name)
			assert.Equal(t, tt.want, ds.Name)
			assert.Equal(t, tt.shape, ds.Shape)
			assert.Equal(t, 10, ds.Classes())
		})
	}
}

func TestFor_ReturnsCopy(t *testing.T) {
	ds := For("mnist")
	ds.Shape[0] = 1

	assert.Equal(t, 32, For("mnist").Batch())
}

func TestByName(t *testing.T) {
	for _, id := range Names() {
		ds, ok := ByName(id)
		assert.True(t, ok, id)
		assert.Equal(t, id, ds.Name)
	}

	_, ok := ByName("imagenet")
	assert.False(t, ok)
}

func TestWithBatch(t *testing.T) {
	ds := For("cifar10_lenet5")
	assert.Equal(t, tensor.Shape{1, 3, 32, 32}, ds.WithBatch(1))
	assert.Equal(t, 64, ds.Batch())
}

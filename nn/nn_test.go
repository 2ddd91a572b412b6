// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/born-ml/zoo/backend/cpu"
	"github.com/born-ml/zoo/nn"
	"github.com/born-ml/zoo/tensor"
)

type Backend = *cpu.Backend

func TestSequential_Public(t *testing.T) {
	backend := cpu.New()
	model := nn.NewSequential[Backend](
		nn.NewFlatten[Backend](),
		nn.NewLinear(12, 8, backend),
		nn.NewReLU[Backend](),
		nn.NewLinear(8, 10, backend),
	)

	out := model.Forward(tensor.Randn[float32](tensor.Shape{2, 3, 2, 2}, backend))
	assert.Equal(t, tensor.Shape{2, 10}, out.Shape())
	assert.Equal(t, 12*8+8+8*10+10, nn.NumParameters(model.Parameters()))

	keys := make([]string, 0)
	for k := range model.StateDict() {
		keys = append(keys, k)
	}
	assert.ElementsMatch(t, []string{"1.weight", "1.bias", "3.weight", "3.bias"}, keys)
}

func TestFrozen_Public(t *testing.T) {
	backend := cpu.New()
	conv := nn.NewConv2D(3, 4, 3, 1, 1, true, backend)
	frozen := nn.NewFrozen[Backend](conv)

	assert.Empty(t, frozen.Parameters())
	assert.Equal(t, 3*4*9+4, nn.CountStateDict(frozen))

	out := frozen.Forward(tensor.Randn[float32](tensor.Shape{1, 3, 5, 5}, backend))
	assert.Equal(t, tensor.Shape{1, 4, 5, 5}, out.Shape())
}

// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package zoo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/zoo/backend/cpu"
	"github.com/born-ml/zoo/nn"
	"github.com/born-ml/zoo/tensor"
	"github.com/born-ml/zoo/zoo"
)

func TestGetModel_Public(t *testing.T) {
	backend := cpu.NewWithWorkers(1)
	name, model, err := zoo.GetModel("mnist_sphinx", backend)
	require.NoError(t, err)
	assert.Equal(t, "mnist_sphinx", name)

	id, shape := zoo.GetDataset(name)
	assert.Equal(t, "mnist", id)
	shape[0] = 2

	nn.SetTraining(model, false)
	logits := model.Forward(tensor.Randn[float32](shape, backend))
	assert.Equal(t, tensor.Shape{2, 10}, logits.Shape())
}

func TestGetModel_Default(t *testing.T) {
	name, _, err := zoo.GetModel(zoo.DefaultModel, cpu.New())
	require.NoError(t, err)
	assert.Equal(t, "cifar10_lenet5", name)

	_, _, err = zoo.GetModel("", cpu.New())
	assert.ErrorIs(t, err, zoo.ErrUnknownModel)
}

func TestGetModel_Unknown(t *testing.T) {
	_, _, err := zoo.GetModel("lenet", cpu.New())
	assert.ErrorIs(t, err, zoo.ErrUnknownModel)
}

func TestDescribe_Public(t *testing.T) {
	e, err := zoo.Describe("resnet50_classifier")
	require.NoError(t, err)
	s, err := e.Summarize()
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{64, 10}, s.Output)
	assert.Equal(t, 23508032+1182986, s.TotalParameters)
	assert.Equal(t, 1182986, s.TrainableParameters)
	assert.Len(t, zoo.Names(), 11)
}

func TestNewTinySeqClassification_Public(t *testing.T) {
	backend := cpu.NewWithWorkers(1)
	cfg := zoo.TinyBertConfig()
	emb, clf, err := zoo.NewTinySeqClassification(cfg, backend)
	require.NoError(t, err)
	clf.Train(false)
	emb.Train(false)

	ids, err := tensor.FromSlice([]int32{101, 7592, 2088, 102}, tensor.Shape{1, 4}, backend)
	require.NoError(t, err)
	logits := clf.Forward(emb.Forward(ids, nil))
	assert.Equal(t, tensor.Shape{1, 2}, logits.Shape())
}

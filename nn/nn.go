// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the layers the zoo architectures are built from.
//
// Every module implements Module[B]: Forward, Parameters and a
// PyTorch-style state dict:
//
//	backend := cpu.New()
//	model := nn.NewSequential[*cpu.Backend](
//	    nn.NewFlatten[*cpu.Backend](),
//	    nn.NewLinear(784, 128, backend),
//	    nn.NewReLU[*cpu.Backend](),
//	    nn.NewLinear(128, 10, backend),
//	)
//	keys := model.StateDict() // "1.weight", "1.bias", "3.weight", "3.bias"
package nn

import (
	"github.com/born-ml/zoo/internal/nn"
	"github.com/born-ml/zoo/tensor"
)

// Module is the interface implemented by every layer and container.
type Module[B tensor.Backend] = nn.Module[B]

// Stateful is implemented by anything with a state dict.
type Stateful = nn.Stateful

// Parameter is a named trainable tensor.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// Layer types.
type (
	Linear[B tensor.Backend]             = nn.Linear[B]
	Conv2D[B tensor.Backend]             = nn.Conv2D[B]
	Pool2D[B tensor.Backend]             = nn.Pool2D[B]
	AdaptiveAvgPool2D[B tensor.Backend]  = nn.AdaptiveAvgPool2D[B]
	BatchNorm2D[B tensor.Backend]        = nn.BatchNorm2D[B]
	LayerNorm[B tensor.Backend]          = nn.LayerNorm[B]
	Embedding[B tensor.Backend]          = nn.Embedding[B]
	ReLU[B tensor.Backend]               = nn.ReLU[B]
	GELU[B tensor.Backend]               = nn.GELU[B]
	Tanh[B tensor.Backend]               = nn.Tanh[B]
	Sigmoid[B tensor.Backend]            = nn.Sigmoid[B]
	Flatten[B tensor.Backend]            = nn.Flatten[B]
	Dropout[B tensor.Backend]            = nn.Dropout[B]
	MultiHeadAttention[B tensor.Backend] = nn.MultiHeadAttention[B]
)

// Container types.
type (
	Sequential[B tensor.Backend] = nn.Sequential[B]
	Residual[B tensor.Backend]   = nn.Residual[B]
	Concat[B tensor.Backend]     = nn.Concat[B]
	Frozen[B tensor.Backend]     = nn.Frozen[B]
)

// NewLinear creates a fully connected layer (y = xW^T + b).
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, backend B) *Linear[B] {
	return nn.NewLinear(inFeatures, outFeatures, backend)
}

// NewConv2D creates a square-kernel 2D convolution over NCHW input.
func NewConv2D[B tensor.Backend](inChannels, outChannels, kernelSize, stride, padding int, useBias bool, backend B) *Conv2D[B] {
	return nn.NewConv2D(inChannels, outChannels, kernelSize, stride, padding, useBias, backend)
}

// NewMaxPool2D creates a max pooling layer.
func NewMaxPool2D[B tensor.Backend](kernelSize, stride, padding int, backend B) *Pool2D[B] {
	return nn.NewMaxPool2D(kernelSize, stride, padding, backend)
}

// NewAvgPool2D creates an average pooling layer; padding counts toward the divisor.
func NewAvgPool2D[B tensor.Backend](kernelSize, stride, padding int, backend B) *Pool2D[B] {
	return nn.NewAvgPool2D(kernelSize, stride, padding, backend)
}

// NewAdaptiveAvgPool2D pools any spatial size down to outH x outW.
func NewAdaptiveAvgPool2D[B tensor.Backend](outH, outW int, backend B) *AdaptiveAvgPool2D[B] {
	return nn.NewAdaptiveAvgPool2D(outH, outW, backend)
}

// NewBatchNorm2D creates batch normalization over channels.
func NewBatchNorm2D[B tensor.Backend](numFeatures int, backend B) *BatchNorm2D[B] {
	return nn.NewBatchNorm2D(numFeatures, backend)
}

// NewLayerNorm creates layer normalization over the last dimension.
func NewLayerNorm[B tensor.Backend](normalizedShape int, epsilon float32, backend B) *LayerNorm[B] {
	return nn.NewLayerNorm(normalizedShape, epsilon, backend)
}

// NewEmbedding creates a lookup table of numEmbeddings vectors.
func NewEmbedding[B tensor.Backend](numEmbeddings, embeddingDim int, backend B) *Embedding[B] {
	return nn.NewEmbedding(numEmbeddings, embeddingDim, backend)
}

// NewMultiHeadAttention creates self-attention with embedDim/numHeads per head.
func NewMultiHeadAttention[B tensor.Backend](embedDim, numHeads int, backend B) *MultiHeadAttention[B] {
	return nn.NewMultiHeadAttention(embedDim, numHeads, backend)
}

// NewReLU creates a ReLU activation.
func NewReLU[B tensor.Backend]() *ReLU[B] { return nn.NewReLU[B]() }

// NewGELU creates a GELU activation.
func NewGELU[B tensor.Backend]() *GELU[B] { return nn.NewGELU[B]() }

// NewTanh creates a Tanh activation.
func NewTanh[B tensor.Backend]() *Tanh[B] { return nn.NewTanh[B]() }

// NewSigmoid creates a Sigmoid activation.
func NewSigmoid[B tensor.Backend]() *Sigmoid[B] { return nn.NewSigmoid[B]() }

// NewFlatten flattens every dimension after the batch.
func NewFlatten[B tensor.Backend]() *Flatten[B] { return nn.NewFlatten[B]() }

// NewDropout creates dropout with drop probability p. It is the identity
// outside training mode.
func NewDropout[B tensor.Backend](p float32) *Dropout[B] { return nn.NewDropout[B](p) }

// NewSequential chains modules; state-dict keys are prefixed by index.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return nn.NewSequential[B](modules...)
}

// NewResidual computes relu(body(x) + shortcut(x)); a nil shortcut is the identity.
func NewResidual[B tensor.Backend](body, shortcut Module[B]) *Residual[B] {
	return nn.NewResidual[B](body, shortcut)
}

// NewConcat concatenates x with body(x) along channels.
func NewConcat[B tensor.Backend](body Module[B]) *Concat[B] {
	return nn.NewConcat[B](body)
}

// NewFrozen hides m's parameters from Parameters while keeping its state dict.
func NewFrozen[B tensor.Backend](m Module[B]) *Frozen[B] {
	return nn.NewFrozen[B](m)
}

// SetTraining switches m and its children between training and inference.
func SetTraining(m any, training bool) { nn.SetTraining(m, training) }

// NumParameters counts the scalar elements of params.
func NumParameters[B tensor.Backend](params []*Parameter[B]) int {
	return nn.NumParameters(params)
}

// CountStateDict counts the scalar elements of s's state dict, including
// frozen weights and buffers.
func CountStateDict(s Stateful) int { return nn.CountStateDict(s) }

// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the pure Go CPU backend.
//
// Kernels are parallelized over output rows and channels. The worker count
// defaults to the number of physical cores reported by cpuid.
package cpu

import (
	internalcpu "github.com/born-ml/zoo/internal/backend/cpu"
	"github.com/born-ml/zoo/internal/parallel"
	"github.com/born-ml/zoo/tensor"
)

// Backend is the CPU backend implementation.
type Backend = internalcpu.CPUBackend

// Features describes the host CPU.
type Features = internalcpu.Features

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a CPU backend using every physical core.
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
func New() *Backend {
	return internalcpu.New()
}

// NewWithWorkers creates a CPU backend with n kernel workers.
// n <= 0 selects the physical core count; n == 1 runs kernels serially.
func NewWithWorkers(n int) *Backend {
	return internalcpu.NewWithConfig(parallel.WithWorkers(n))
}

// DetectFeatures reads the host CPU description.
func DetectFeatures() Features {
	return internalcpu.DetectFeatures()
}

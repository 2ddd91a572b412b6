// Package cpu implements the pure Go CPU backend.
package cpu

import (
	"fmt"

	"github.com/born-ml/zoo/internal/parallel"
	"github.com/born-ml/zoo/internal/tensor"
)

// CPUBackend implements tensor operations on CPU.
//
// Kernels operate on float32 data; integer tensors are accepted where the
// op only moves bytes (reshape, transpose, cat) or indexes (embedding).
type CPUBackend struct {
	device tensor.Device
	cfg    parallel.Config
}

// New creates a new CPU backend using the default parallel configuration.
func New() *CPUBackend {
	return NewWithConfig(parallel.DefaultConfig())
}

// NewWithConfig creates a CPU backend with an explicit parallel configuration.
func NewWithConfig(cfg parallel.Config) *CPUBackend {
	return &CPUBackend{
		device: tensor.CPU,
		cfg:    cfg,
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Workers returns the number of worker goroutines kernels may use.
func (cpu *CPUBackend) Workers() int {
	if !cpu.cfg.Enabled {
		return 1
	}
	return cpu.cfg.NumWorkers
}

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("add", a, b, func(x, y float32) float32 { return x + y })
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("sub", a, b, func(x, y float32) float32 { return x - y })
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("mul", a, b, func(x, y float32) float32 { return x * y })
}

// Div performs element-wise division with broadcasting.
func (cpu *CPUBackend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("div", a, b, func(x, y float32) float32 { return x / y })
}

// AddScalar adds s to every element.
func (cpu *CPUBackend) AddScalar(x *tensor.RawTensor, s float32) *tensor.RawTensor {
	return cpu.unaryOp("add_scalar", x, func(v float32) float32 { return v + s })
}

// MulScalar multiplies every element by s.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, s float32) *tensor.RawTensor {
	return cpu.unaryOp("mul_scalar", x, func(v float32) float32 { return v * s })
}

// binaryOp applies f element-wise over the broadcast of a and b.
func (cpu *CPUBackend) binaryOp(op string, a, b *tensor.RawTensor, f func(x, y float32) float32) *tensor.RawTensor {
	requireFloat32(op, a)
	requireFloat32(op, b)

	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}

	result := cpu.alloc(op, outShape, tensor.Float32)
	out := result.AsFloat32()
	av := a.AsFloat32()
	bv := b.AsFloat32()

	if !needsBroadcast {
		for i := range out {
			out[i] = f(av[i], bv[i])
		}
		return result
	}

	aStrides := broadcastStrides(a.Shape(), outShape)
	bStrides := broadcastStrides(b.Shape(), outShape)
	outStrides := outShape.ComputeStrides()

	for i := range out {
		ai, bi, rem := 0, 0, i
		for d := range outShape {
			idx := rem / outStrides[d]
			rem %= outStrides[d]
			ai += idx * aStrides[d]
			bi += idx * bStrides[d]
		}
		out[i] = f(av[ai], bv[bi])
	}

	return result
}

// unaryOp applies f element-wise.
func (cpu *CPUBackend) unaryOp(op string, x *tensor.RawTensor, f func(v float32) float32) *tensor.RawTensor {
	requireFloat32(op, x)

	result := cpu.alloc(op, x.Shape(), tensor.Float32)
	out := result.AsFloat32()
	for i, v := range x.AsFloat32() {
		out[i] = f(v)
	}
	return result
}

// broadcastStrides returns strides of in aligned to the rank of out, with 0
// for every broadcast (size 1 or missing) dimension.
func broadcastStrides(in, out tensor.Shape) []int {
	strides := make([]int, len(out))
	inStrides := in.ComputeStrides()
	offset := len(out) - len(in)
	for d := range out {
		src := d - offset
		if src < 0 || in[src] == 1 {
			continue
		}
		strides[d] = inStrides[src]
	}
	return strides
}

func (cpu *CPUBackend) alloc(op string, shape tensor.Shape, dtype tensor.DataType) *tensor.RawTensor {
	raw, err := tensor.NewRaw(shape, dtype, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", op, err))
	}
	return raw
}

func requireFloat32(op string, x *tensor.RawTensor) {
	if x.DType() != tensor.Float32 {
		panic(fmt.Sprintf("%s: unsupported dtype %s (only float32 supported)", op, x.DType()))
	}
}

package tensor

// Backend defines the primitives a compute backend provides to the models.
// Backends own the actual computation; Tensor methods only dispatch.
//
// Implementations:
//   - CPU: pure Go, parallel over output rows/channels (internal/backend/cpu)
//
// Kernels panic on shape misuse with an "op: detail" message. Shapes are
// validated statically by the arch package before a model ever runs, so a
// panic here means a programming error, not bad user input.
type Backend interface {
	// Element-wise binary operations with NumPy broadcasting.
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// Matrix operations.
	// MatMul: [M, K] @ [K, N] -> [M, N]
	// BatchMatMul: [B, M, K] @ [B, K, N] -> [B, M, N] (and 4D [B, H, M, K]).
	MatMul(a, b *RawTensor) *RawTensor
	BatchMatMul(a, b *RawTensor) *RawTensor

	// Convolution and pooling over [N, C, H, W] inputs.
	Conv2D(input, kernel *RawTensor, stride, padding int) *RawTensor
	MaxPool2D(input *RawTensor, kernelSize, stride, padding int) *RawTensor
	AvgPool2D(input *RawTensor, kernelSize, stride, padding int) *RawTensor
	AdaptiveAvgPool2D(input *RawTensor, outH, outW int) *RawTensor

	// Shape operations.
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Transpose(t *RawTensor, axes ...int) *RawTensor
	Cat(tensors []*RawTensor, dim int) *RawTensor
	Unsqueeze(x *RawTensor, dim int) *RawTensor

	// Scalar operations.
	AddScalar(x *RawTensor, scalar float32) *RawTensor
	MulScalar(x *RawTensor, scalar float32) *RawTensor

	// Element-wise math and activations.
	Exp(x *RawTensor) *RawTensor
	Sqrt(x *RawTensor) *RawTensor
	Rsqrt(x *RawTensor) *RawTensor
	ReLU(x *RawTensor) *RawTensor
	GELU(x *RawTensor) *RawTensor
	Tanh(x *RawTensor) *RawTensor
	Sigmoid(x *RawTensor) *RawTensor
	Softmax(x *RawTensor, dim int) *RawTensor

	// Reductions.
	MeanDim(x *RawTensor, dim int, keepDim bool) *RawTensor
	Argmax(x *RawTensor, dim int) *RawTensor

	// Embedding looks up rows of weight [V, D] for int32 indices [...] -> [..., D].
	Embedding(weight, indices *RawTensor) *RawTensor

	// Metadata.
	Name() string
	Device() Device
}

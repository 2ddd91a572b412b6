package nn

import (
	"fmt"
	"strings"

	"github.com/born-ml/zoo/internal/tensor"
)

// Sequential is a container module that chains multiple modules together.
//
// Each module's output becomes the next module's input.
//
// Example:
//
//	model := nn.NewSequential(
//	    nn.NewLinear(784, 128, backend),
//	    nn.NewReLU[Backend](),
//	    nn.NewLinear(128, 10, backend),
//	)
//
//	output := model.Forward(input)
type Sequential[B tensor.Backend] struct {
	modules []Module[B]
}

// NewSequential creates a new Sequential container.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return &Sequential[B]{
		modules: modules,
	}
}

// Forward applies all modules in sequence.
func (s *Sequential[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	output := input
	for _, module := range s.modules {
		output = module.Forward(output)
	}
	return output
}

// Parameters returns all trainable parameters from all modules.
func (s *Sequential[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	for _, module := range s.modules {
		params = append(params, module.Parameters()...)
	}
	return params
}

// Add appends a module to the sequence.
func (s *Sequential[B]) Add(module Module[B]) {
	s.modules = append(s.modules, module)
}

// Len returns the number of modules in the sequence.
func (s *Sequential[B]) Len() int {
	return len(s.modules)
}

// Module returns the module at the given index.
//
// Panics if index is out of bounds.
func (s *Sequential[B]) Module(index int) Module[B] {
	if index < 0 || index >= len(s.modules) {
		panic(fmt.Sprintf("sequential: index %d out of bounds [0, %d)", index, len(s.modules)))
	}
	return s.modules[index]
}

// Train forwards the mode to every child.
func (s *Sequential[B]) Train(training bool) {
	for _, m := range s.modules {
		SetTraining(m, training)
	}
}

// StateDict returns child tensors prefixed with their module index
// ("0.weight", "3.running_mean", ...).
func (s *Sequential[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	for i, module := range s.modules {
		PrefixInto(stateDict, module.StateDict(), fmt.Sprintf("%d.", i))
	}
	return stateDict
}

// LoadStateDict loads every child from its index-prefixed entries.
func (s *Sequential[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for i, module := range s.modules {
		if err := module.LoadStateDict(SubDict(stateDict, fmt.Sprintf("%d.", i))); err != nil {
			return fmt.Errorf("failed to load module %d: %w", i, err)
		}
	}
	return nil
}

// String lists the children one per line, PyTorch style.
func (s *Sequential[B]) String() string {
	var sb strings.Builder
	sb.WriteString("Sequential(\n")
	for i, m := range s.modules {
		desc := strings.ReplaceAll(fmt.Sprint(m), "\n", "\n  ")
		fmt.Fprintf(&sb, "  (%d): %s\n", i, desc)
	}
	sb.WriteString(")")
	return sb.String()
}

// Residual computes relu(body(x) + shortcut(x)), the ResNet block join.
// A nil shortcut is the identity.
//
// State dict keys are "body.*" and, with a projection shortcut, "downsample.*".
type Residual[B tensor.Backend] struct {
	body     Module[B]
	shortcut Module[B]
}

// NewResidual creates a residual block. shortcut may be nil.
func NewResidual[B tensor.Backend](body, shortcut Module[B]) *Residual[B] {
	if body == nil {
		panic("residual: body is required")
	}
	return &Residual[B]{body: body, shortcut: shortcut}
}

// Forward adds the shortcut to the body output and applies ReLU.
func (r *Residual[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	out := r.body.Forward(input)
	identity := input
	if r.shortcut != nil {
		identity = r.shortcut.Forward(input)
	}
	if !out.Shape().Equal(identity.Shape()) {
		panic(fmt.Sprintf("residual: body output %v does not match shortcut %v", out.Shape(), identity.Shape()))
	}

	sum := out.Add(identity)
	b := sum.Backend()
	return tensor.New[float32, B](b.ReLU(sum.Raw()), b)
}

// Parameters returns body then shortcut parameters.
func (r *Residual[B]) Parameters() []*Parameter[B] {
	params := r.body.Parameters()
	if r.shortcut != nil {
		params = append(params, r.shortcut.Parameters()...)
	}
	return params
}

// Train forwards the mode to both branches.
func (r *Residual[B]) Train(training bool) {
	SetTraining(r.body, training)
	if r.shortcut != nil {
		SetTraining(r.shortcut, training)
	}
}

// StateDict returns "body.*" and "downsample.*" entries.
func (r *Residual[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	PrefixInto(stateDict, r.body.StateDict(), "body.")
	if r.shortcut != nil {
		PrefixInto(stateDict, r.shortcut.StateDict(), "downsample.")
	}
	return stateDict
}

// LoadStateDict loads both branches.
func (r *Residual[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := r.body.LoadStateDict(SubDict(stateDict, "body.")); err != nil {
		return fmt.Errorf("body: %w", err)
	}
	if r.shortcut != nil {
		if err := r.shortcut.LoadStateDict(SubDict(stateDict, "downsample.")); err != nil {
			return fmt.Errorf("downsample: %w", err)
		}
	}
	return nil
}

// Concat computes cat([x, body(x)], dim=1): DenseNet's dense connectivity,
// where each layer's new feature maps are appended to its input channels.
//
// The body's state dict is exposed unprefixed.
type Concat[B tensor.Backend] struct {
	body Module[B]
}

// NewConcat creates a dense-connectivity wrapper around body.
func NewConcat[B tensor.Backend](body Module[B]) *Concat[B] {
	if body == nil {
		panic("concat: body is required")
	}
	return &Concat[B]{body: body}
}

// Forward appends body(x) to x along the channel dimension.
func (c *Concat[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return tensor.Cat([]*tensor.Tensor[float32, B]{input, c.body.Forward(input)}, 1)
}

// Parameters returns the body's parameters.
func (c *Concat[B]) Parameters() []*Parameter[B] {
	return c.body.Parameters()
}

// Train forwards the mode to the body.
func (c *Concat[B]) Train(training bool) {
	SetTraining(c.body, training)
}

// StateDict returns the body's state dict.
func (c *Concat[B]) StateDict() map[string]*tensor.RawTensor {
	return c.body.StateDict()
}

// LoadStateDict loads the body.
func (c *Concat[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return c.body.LoadStateDict(stateDict)
}

// Frozen wraps a module whose weights are excluded from training, the
// equivalent of requires_grad_(False) on a pretrained feature extractor.
//
// Forward and state dict pass through; Parameters is empty so an optimizer
// never sees the inner weights. The wrapped module always runs in
// inference mode.
type Frozen[B tensor.Backend] struct {
	inner Module[B]
}

// NewFrozen freezes m.
func NewFrozen[B tensor.Backend](m Module[B]) *Frozen[B] {
	if m == nil {
		panic("frozen: module is required")
	}
	SetTraining(m, false)
	return &Frozen[B]{inner: m}
}

// Forward runs the wrapped module.
func (f *Frozen[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return f.inner.Forward(input)
}

// Parameters returns an empty slice.
func (f *Frozen[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{}
}

// Train is a no-op: frozen modules stay in inference mode.
func (f *Frozen[B]) Train(bool) {}

// Unwrap returns the wrapped module.
func (f *Frozen[B]) Unwrap() Module[B] {
	return f.inner
}

// NumParameters counts the frozen weights.
func (f *Frozen[B]) NumParameters() int {
	return NumParameters(f.inner.Parameters())
}

// StateDict returns the wrapped module's state dict.
func (f *Frozen[B]) StateDict() map[string]*tensor.RawTensor {
	return f.inner.StateDict()
}

// LoadStateDict loads the wrapped module.
func (f *Frozen[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return f.inner.LoadStateDict(stateDict)
}

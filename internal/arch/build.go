package arch

import (
	"fmt"

	"github.com/born-ml/zoo/internal/nn"
	"github.com/born-ml/zoo/internal/tensor"
)

// Build allocates the module described by l on backend.
//
// Build does not check shapes; call OutputShape with the intended input
// first. The returned module is in inference mode.
func Build[B tensor.Backend](l Layer, backend B) (nn.Module[B], error) {
	switch v := l.(type) {
	case Conv2D:
		if v.In <= 0 || v.Out <= 0 || v.Kernel <= 0 || v.Padding < 0 {
			return nil, fmt.Errorf("build: invalid %s", v)
		}
		return nn.NewConv2D(v.In, v.Out, v.Kernel, v.StrideOrDefault(), v.Padding, !v.NoBias, backend), nil
	case MaxPool2D:
		if v.Kernel <= 0 {
			return nil, fmt.Errorf("build: invalid %s", v)
		}
		return nn.NewMaxPool2D(v.Kernel, v.StrideOrDefault(), v.Padding, backend), nil
	case AvgPool2D:
		if v.Kernel <= 0 {
			return nil, fmt.Errorf("build: invalid %s", v)
		}
		return nn.NewAvgPool2D(v.Kernel, v.StrideOrDefault(), v.Padding, backend), nil
	case AdaptiveAvgPool2D:
		return nn.NewAdaptiveAvgPool2D(v.H, v.W, backend), nil
	case BatchNorm2D:
		return nn.NewBatchNorm2D(v.Channels, backend), nil
	case ReLU:
		return nn.NewReLU[B](), nil
	case Flatten:
		return nn.NewFlatten[B](), nil
	case Dropout:
		if v.P < 0 || v.P >= 1 {
			return nil, fmt.Errorf("build: invalid %s", v)
		}
		return nn.NewDropout[B](v.P), nil
	case Linear:
		return nn.NewLinear(v.In, v.Out, backend), nil
	case Sequential:
		seq := nn.NewSequential[B]()
		for i, child := range v.Layers {
			m, err := Build(child, backend)
			if err != nil {
				return nil, within(childLabel(i, child), err)
			}
			seq.Add(m)
		}
		return seq, nil
	case Residual:
		body, err := Build(v.Body, backend)
		if err != nil {
			return nil, within("body", err)
		}
		var shortcut nn.Module[B]
		if v.Shortcut != nil {
			if shortcut, err = Build(v.Shortcut, backend); err != nil {
				return nil, within("downsample", err)
			}
		}
		return nn.NewResidual(body, shortcut), nil
	case DenseLayer:
		body, err := Build(v.Body, backend)
		if err != nil {
			return nil, within("body", err)
		}
		return nn.NewConcat(body), nil
	case Frozen:
		inner, err := Build(v.Inner, backend)
		if err != nil {
			return nil, within("frozen", err)
		}
		return nn.NewFrozen(inner), nil
	case nil:
		return nil, fmt.Errorf("build: nil layer")
	default:
		return nil, fmt.Errorf("build: unsupported layer %T", l)
	}
}

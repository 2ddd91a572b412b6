package arch

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/born-ml/zoo/internal/tensor"
)

// LayerError locates a shape failure inside a nested architecture.
// Path joins child labels with dots, e.g. "features.3".
type LayerError struct {
	Path string
	Err  error
}

func (e *LayerError) Error() string { return e.Path + ": " + e.Err.Error() }

// Unwrap returns the underlying error.
func (e *LayerError) Unwrap() error { return e.Err }

// within prefixes err's path with label.
func within(label string, err error) error {
	var le *LayerError
	if errors.As(err, &le) {
		return &LayerError{Path: label + "." + le.Path, Err: le.Err}
	}
	return &LayerError{Path: label, Err: err}
}

// Sequential chains layers. Name labels the block in error paths and
// summaries; it does not affect state-dict keys, which use indices.
type Sequential struct {
	Name   string
	Layers []Layer
}

// Seq is shorthand for an unnamed Sequential.
func Seq(layers ...Layer) Sequential {
	return Sequential{Layers: layers}
}

// Kind returns "sequential".
func (s Sequential) Kind() string { return "sequential" }

// OutputShape threads the shape through every child.
func (s Sequential) OutputShape(in tensor.Shape) (tensor.Shape, error) {
	shape := in
	for i, l := range s.Layers {
		out, err := l.OutputShape(shape)
		if err != nil {
			return nil, within(childLabel(i, l), err)
		}
		shape = out
	}
	return shape.Clone(), nil
}

// NumParameters sums the children.
func (s Sequential) NumParameters() int {
	n := 0
	for _, l := range s.Layers {
		n += l.NumParameters()
	}
	return n
}

func (s Sequential) String() string {
	if s.Name != "" {
		return fmt.Sprintf("Sequential(%s, %d layers)", s.Name, len(s.Layers))
	}
	return fmt.Sprintf("Sequential(%d layers)", len(s.Layers))
}

// childLabel names child i for error paths: its Name when it is a named
// Sequential, its index otherwise.
func childLabel(i int, l Layer) string {
	if s, ok := l.(Sequential); ok && s.Name != "" {
		return s.Name
	}
	return strconv.Itoa(i)
}

// Residual is relu(Body(x) + Shortcut(x)). A nil Shortcut is the identity.
type Residual struct {
	Body     Layer
	Shortcut Layer
}

// Kind returns "residual".
func (r Residual) Kind() string { return "residual" }

// OutputShape requires both branches to agree.
func (r Residual) OutputShape(in tensor.Shape) (tensor.Shape, error) {
	out, err := r.Body.OutputShape(in)
	if err != nil {
		return nil, within("body", err)
	}
	identity := in
	if r.Shortcut != nil {
		identity, err = r.Shortcut.OutputShape(in)
		if err != nil {
			return nil, within("downsample", err)
		}
	}
	if !out.Equal(identity) {
		return nil, shapeErrorf(r.Kind(), "body output %v does not match shortcut %v", out, identity)
	}
	return out, nil
}

// NumParameters sums both branches.
func (r Residual) NumParameters() int {
	n := r.Body.NumParameters()
	if r.Shortcut != nil {
		n += r.Shortcut.NumParameters()
	}
	return n
}

func (r Residual) String() string {
	if r.Shortcut != nil {
		return "Residual(" + r.Body.String() + ", downsample)"
	}
	return "Residual(" + r.Body.String() + ")"
}

// DenseLayer appends Body's feature maps to its input channels:
// cat([x, Body(x)], 1).
type DenseLayer struct {
	Body Layer
}

// Kind returns "dense_layer".
func (d DenseLayer) Kind() string { return "dense_layer" }

// OutputShape requires Body to keep batch and spatial size.
func (d DenseLayer) OutputShape(in tensor.Shape) (tensor.Shape, error) {
	if err := requireRank(d.Kind(), in, 4); err != nil {
		return nil, err
	}
	out, err := d.Body.OutputShape(in)
	if err != nil {
		return nil, within("body", err)
	}
	if len(out) != 4 || out[0] != in[0] || out[2] != in[2] || out[3] != in[3] {
		return nil, shapeErrorf(d.Kind(), "body output %v cannot be concatenated with %v", out, in)
	}
	return tensor.Shape{in[0], in[1] + out[1], in[2], in[3]}, nil
}

// NumParameters returns the body's count.
func (d DenseLayer) NumParameters() int { return d.Body.NumParameters() }

func (d DenseLayer) String() string { return "DenseLayer(" + d.Body.String() + ")" }

// Frozen marks Inner's weights as excluded from training.
type Frozen struct {
	Inner Layer
}

// Kind returns "frozen".
func (f Frozen) Kind() string { return "frozen" }

// OutputShape is Inner's.
func (f Frozen) OutputShape(in tensor.Shape) (tensor.Shape, error) { return f.Inner.OutputShape(in) }

// NumParameters counts the frozen weights.
func (f Frozen) NumParameters() int { return f.Inner.NumParameters() }

func (f Frozen) String() string { return "Frozen(" + f.Inner.String() + ")" }

// TrainableParameters counts the weights outside any Frozen block.
func TrainableParameters(l Layer) int {
	switch v := l.(type) {
	case Frozen:
		return 0
	case Sequential:
		n := 0
		for _, c := range v.Layers {
			n += TrainableParameters(c)
		}
		return n
	case Residual:
		n := TrainableParameters(v.Body)
		if v.Shortcut != nil {
			n += TrainableParameters(v.Shortcut)
		}
		return n
	case DenseLayer:
		return TrainableParameters(v.Body)
	default:
		return l.NumParameters()
	}
}

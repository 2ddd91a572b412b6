package arch

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/born-ml/zoo/internal/tensor"
)

// Row is one top-level block of a Summary.
type Row struct {
	Name        string       `json:"name"`
	Kind        string       `json:"kind"`
	Description string       `json:"description"`
	OutputShape tensor.Shape `json:"output_shape"`
	Parameters  int          `json:"parameters"`
	Trainable   int          `json:"trainable"`
}

// Summary is a Keras-style model overview computed by shape inference.
type Summary struct {
	Input               tensor.Shape `json:"input_shape"`
	Output              tensor.Shape `json:"output_shape"`
	Rows                []Row        `json:"layers"`
	TotalParameters     int          `json:"total_parameters"`
	TrainableParameters int          `json:"trainable_parameters"`
}

// Summarize infers every top-level block's output for input.
// A Sequential is expanded one level; any other layer yields one row.
func Summarize(l Layer, input tensor.Shape) (*Summary, error) {
	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShape, err)
	}

	children := []Layer{l}
	if seq, ok := l.(Sequential); ok {
		children = seq.Layers
	}

	s := &Summary{Input: input.Clone()}
	shape := input
	for i, child := range children {
		out, err := child.OutputShape(shape)
		if err != nil {
			return nil, within(childLabel(i, child), err)
		}
		s.Rows = append(s.Rows, Row{
			Name:        childLabel(i, child),
			Kind:        child.Kind(),
			Description: child.String(),
			OutputShape: out,
			Parameters:  child.NumParameters(),
			Trainable:   TrainableParameters(child),
		})
		s.TotalParameters += child.NumParameters()
		s.TrainableParameters += TrainableParameters(child)
		shape = out
	}
	s.Output = shape.Clone()
	return s, nil
}

func (s *Summary) String() string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tLayer\tOutput Shape\tParams")
	for _, r := range s.Rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", r.Name, r.Description, r.OutputShape, r.Parameters)
	}
	_ = w.Flush()

	fmt.Fprintf(&sb, "Input: %s  Output: %s\n", s.Input, s.Output)
	fmt.Fprintf(&sb, "Total params: %d\n", s.TotalParameters)
	fmt.Fprintf(&sb, "Trainable params: %d\n", s.TrainableParameters)
	fmt.Fprintf(&sb, "Non-trainable params: %d\n", s.TotalParameters-s.TrainableParameters)
	return sb.String()
}

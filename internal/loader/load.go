package loader

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/born-ml/zoo/internal/nn"
	"github.com/born-ml/zoo/internal/tensor"
)

// ErrMissingTensor is returned when a file lacks a tensor the model needs.
var ErrMissingTensor = errors.New("missing tensor")

// Report summarizes a LoadInto call.
type Report struct {
	Path         string         `json:"path"`
	Architecture string         `json:"architecture"`
	Loaded       int            `json:"loaded"`
	Converted    map[string]int `json:"converted,omitempty"` // stored dtype -> tensors widened to float32
	Unused       []string       `json:"unused,omitempty"`    // file tensors the model has no slot for
}

func (r Report) String() string {
	s := fmt.Sprintf("%s: loaded %d tensors (%s)", r.Path, r.Loaded, r.Architecture)
	if len(r.Converted) > 0 {
		dtypes := make([]string, 0, len(r.Converted))
		for dt, n := range r.Converted {
			dtypes = append(dtypes, fmt.Sprintf("%d from %s", n, dt))
		}
		sort.Strings(dtypes)
		s += ", converted " + strings.Join(dtypes, ", ")
	}
	if len(r.Unused) > 0 {
		s += fmt.Sprintf(", %d unused", len(r.Unused))
	}
	return s
}

// LoadInto fills every state-dict entry of target from the SafeTensors
// file at path. Names are translated with mapper; nil detects the mapper
// from the file's tensor names.
//
// Every key of target must be present in the file; file tensors without a
// matching key are listed in Report.Unused.
func LoadInto(path string, target nn.Stateful, mapper WeightMapper) (Report, error) {
	r, err := NewSafeTensorsReader(path)
	if err != nil {
		return Report{}, err
	}
	defer func() { _ = r.Close() }()

	names := r.TensorNames()
	if mapper == nil {
		mapper = GetMapper(DetectArchitecture(names))
	}
	report := Report{Path: path, Architecture: mapper.Architecture()}

	want := target.StateDict()
	sources := make(map[string]string, len(names)) // state-dict key -> file name
	for _, name := range names {
		key, ok := mapper.MapName(name)
		if _, used := want[key]; !ok || !used {
			report.Unused = append(report.Unused, name)
			continue
		}
		sources[key] = name
	}

	var missing []string
	for _, key := range nn.SortedKeys(want) {
		if _, ok := sources[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return report, fmt.Errorf("%s: %w: %s", path, ErrMissingTensor, summarizeNames(missing))
	}

	loaded := make(map[string]*tensor.RawTensor, len(sources))
	for key, name := range sources {
		raw, err := r.LoadTensor(name)
		if err != nil {
			return report, fmt.Errorf("%s: %w", path, err)
		}
		info, _ := r.TensorInfo(name)
		if info.DType == SafeTensorsF16 || info.DType == SafeTensorsBF16 {
			if report.Converted == nil {
				report.Converted = make(map[string]int)
			}
			report.Converted[string(info.DType)]++
		}
		loaded[key] = raw
	}

	if err := target.LoadStateDict(loaded); err != nil {
		return report, fmt.Errorf("%s: %w", path, err)
	}
	report.Loaded = len(loaded)
	return report, nil
}

// summarizeNames lists up to three names and counts the rest.
func summarizeNames(names []string) string {
	const shown = 3
	if len(names) <= shown {
		return strings.Join(names, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(names[:shown], ", "), len(names)-shown)
}

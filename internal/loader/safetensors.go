package loader

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/x448/float16"

	"github.com/born-ml/zoo/internal/tensor"
)

// maxHeaderSize bounds the JSON header read from disk.
const maxHeaderSize = 100 * 1024 * 1024

// SafeTensorsDType represents supported SafeTensors data types.
type SafeTensorsDType string

// Supported SafeTensors dtypes.
const (
	SafeTensorsF16  SafeTensorsDType = "F16"
	SafeTensorsBF16 SafeTensorsDType = "BF16"
	SafeTensorsF32  SafeTensorsDType = "F32"
	SafeTensorsF64  SafeTensorsDType = "F64"
	SafeTensorsI32  SafeTensorsDType = "I32"
	SafeTensorsI64  SafeTensorsDType = "I64"
)

// SafeTensorInfo describes a tensor in SafeTensors format.
type SafeTensorInfo struct {
	DType       SafeTensorsDType `json:"dtype"`
	Shape       []int            `json:"shape"`
	DataOffsets [2]int64         `json:"data_offsets"` // [start, end)
}

// ByteSize is the stored size implied by dtype and shape, or -1 for an
// unknown dtype. It is -2 for a negative dimension or a size that
// overflows int64.
func (i SafeTensorInfo) ByteSize() int64 {
	var elem int64
	switch i.DType {
	case SafeTensorsF16, SafeTensorsBF16:
		elem = 2
	case SafeTensorsF32, SafeTensorsI32:
		elem = 4
	case SafeTensorsF64, SafeTensorsI64:
		elem = 8
	default:
		return -1
	}
	n := elem
	for _, d := range i.Shape {
		if d < 0 || (d > 0 && n > math.MaxInt64/int64(d)) {
			return -2
		}
		n *= int64(d)
	}
	return n
}

// SafeTensorsHeader is the JSON header in SafeTensors format.
type SafeTensorsHeader struct {
	Metadata map[string]string
	Tensors  map[string]SafeTensorInfo
}

// UnmarshalJSON splits "__metadata__" from the tensor entries.
func (h *SafeTensorsHeader) UnmarshalJSON(data []byte) error {
	var rawMap map[string]json.RawMessage
	if err := json.Unmarshal(data, &rawMap); err != nil {
		return err
	}

	if metadataRaw, ok := rawMap["__metadata__"]; ok {
		if err := json.Unmarshal(metadataRaw, &h.Metadata); err != nil {
			return fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	h.Tensors = make(map[string]SafeTensorInfo, len(rawMap))
	for key, value := range rawMap {
		if key == "__metadata__" {
			continue
		}
		var info SafeTensorInfo
		if err := json.Unmarshal(value, &info); err != nil {
			return fmt.Errorf("failed to unmarshal tensor %s: %w", key, err)
		}
		h.Tensors[key] = info
	}
	return nil
}

// SafeTensorsReader reads SafeTensors format files.
type SafeTensorsReader struct {
	file       *os.File
	header     SafeTensorsHeader
	dataOffset int64 // where tensor data starts
	dataSize   int64
}

// NewSafeTensorsReader opens path and parses its header. Every tensor's
// offsets are validated against the file size up front.
func NewSafeTensorsReader(path string) (*SafeTensorsReader, error) {
	//nolint:gosec // G304: weight paths come from the user.
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	r, err := newReader(file)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

func newReader(file *os.File) (*SafeTensorsReader, error) {
	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	var headerSize uint64
	if err := binary.Read(file, binary.LittleEndian, &headerSize); err != nil {
		return nil, fmt.Errorf("failed to read header size: %w", err)
	}
	if headerSize > maxHeaderSize || int64(headerSize)+8 > stat.Size() { //nolint:gosec // bounded above
		return nil, fmt.Errorf("invalid header size: %d", headerSize)
	}

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(file, headerBytes); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	var header SafeTensorsHeader
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, fmt.Errorf("failed to parse header JSON: %w", err)
	}

	r := &SafeTensorsReader{
		file:       file,
		header:     header,
		dataOffset: int64(8 + headerSize), //nolint:gosec // bounded above
	}
	r.dataSize = stat.Size() - r.dataOffset

	for name, info := range header.Tensors {
		if err := r.checkOffsets(name, info); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *SafeTensorsReader) checkOffsets(name string, info SafeTensorInfo) error {
	start, end := info.DataOffsets[0], info.DataOffsets[1]
	if start < 0 || end < start || end > r.dataSize {
		return fmt.Errorf("invalid data offsets for tensor %s: [%d, %d]", name, start, end)
	}
	want := info.ByteSize()
	if want == -2 {
		return fmt.Errorf("tensor %s: invalid shape %v", name, info.Shape)
	}
	if want >= 0 && end-start != want {
		return fmt.Errorf("tensor %s: %d bytes stored, %s%v needs %d", name, end-start, info.DType, info.Shape, want)
	}
	return nil
}

// Close closes the SafeTensors file.
func (r *SafeTensorsReader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// Metadata returns the metadata map from the header.
func (r *SafeTensorsReader) Metadata() map[string]string {
	return r.header.Metadata
}

// TensorNames returns all tensor names in sorted order.
func (r *SafeTensorsReader) TensorNames() []string {
	names := make([]string, 0, len(r.header.Tensors))
	for name := range r.header.Tensors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TensorInfo returns information about a specific tensor.
func (r *SafeTensorsReader) TensorInfo(name string) (*SafeTensorInfo, error) {
	info, ok := r.header.Tensors[name]
	if !ok {
		return nil, fmt.Errorf("tensor %s: %w", name, ErrMissingTensor)
	}
	return &info, nil
}

// ReadTensorData reads the raw stored bytes of a tensor.
func (r *SafeTensorsReader) ReadTensorData(name string) ([]byte, error) {
	info, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}

	data := make([]byte, info.DataOffsets[1]-info.DataOffsets[0])
	if _, err := r.file.ReadAt(data, r.dataOffset+info.DataOffsets[0]); err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}
	return data, nil
}

// LoadTensor reads a tensor into a CPU RawTensor. F16 and BF16 are widened
// to Float32; other dtypes are copied as stored.
func (r *SafeTensorsReader) LoadTensor(name string) (*tensor.RawTensor, error) {
	info, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}

	dtype, err := safeTensorsDTypeToDataType(info.DType)
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w", name, err)
	}

	shape := tensor.Shape(info.Shape)
	if len(shape) == 0 {
		shape = tensor.Shape{1}
	}
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape for tensor %s: %w", name, err)
	}

	data, err := r.ReadTensorData(name)
	if err != nil {
		return nil, err
	}

	raw, err := tensor.NewRaw(shape, dtype, tensor.CPU)
	if err != nil {
		return nil, fmt.Errorf("failed to create tensor: %w", err)
	}

	switch info.DType {
	case SafeTensorsF16:
		widenF16(raw.AsFloat32(), data)
	case SafeTensorsBF16:
		widenBF16(raw.AsFloat32(), data)
	default:
		copy(raw.Data(), data)
	}
	return raw, nil
}

// safeTensorsDTypeToDataType returns the in-memory dtype a stored dtype
// loads as.
func safeTensorsDTypeToDataType(dtype SafeTensorsDType) (tensor.DataType, error) {
	switch dtype {
	case SafeTensorsF16, SafeTensorsBF16, SafeTensorsF32:
		return tensor.Float32, nil
	case SafeTensorsF64:
		return tensor.Float64, nil
	case SafeTensorsI32:
		return tensor.Int32, nil
	case SafeTensorsI64:
		return tensor.Int64, nil
	default:
		return 0, fmt.Errorf("unsupported dtype: %s", dtype)
	}
}

func widenF16(dst []float32, src []byte) {
	for i := range dst {
		dst[i] = float16.Frombits(binary.LittleEndian.Uint16(src[2*i:])).Float32()
	}
}

// widenBF16 places the stored bits in the high half of a float32.
func widenBF16(dst []float32, src []byte) {
	for i := range dst {
		dst[i] = math.Float32frombits(uint32(binary.LittleEndian.Uint16(src[2*i:])) << 16)
	}
}

package loader

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"

	"github.com/born-ml/zoo/internal/backend/cpu"
	"github.com/born-ml/zoo/internal/bert"
	"github.com/born-ml/zoo/internal/nn"
	"github.com/born-ml/zoo/internal/tensor"
)

type stored struct {
	name  string
	dtype SafeTensorsDType
	shape []int
	data  []byte
}

// writeSafeTensors lays tensors out back to back after the header.
func writeSafeTensors(t *testing.T, path string, tensors []stored) {
	t.Helper()

	header := map[string]any{"__metadata__": map[string]string{"format": "pt"}}
	var body []byte
	for _, st := range tensors {
		start := int64(len(body))
		body = append(body, st.data...)
		header[st.name] = SafeTensorInfo{
			DType:       st.dtype,
			Shape:       st.shape,
			DataOffsets: [2]int64{start, int64(len(body))},
		}
	}

	headerJSON, err := json.Marshal(header)
	require.NoError(t, err)

	buf := binary.LittleEndian.AppendUint64(nil, uint64(len(headerJSON)))
	buf = append(buf, headerJSON...)
	buf = append(buf, body...)
	require.NoError(t, os.WriteFile(path, buf, 0o600))
}

func f32Bytes(values ...float32) []byte {
	out := make([]byte, 0, 4*len(values))
	for _, v := range values {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
	}
	return out
}

func f16Bytes(values ...float32) []byte {
	out := make([]byte, 0, 2*len(values))
	for _, v := range values {
		out = binary.LittleEndian.AppendUint16(out, float16.Fromfloat32(v).Bits())
	}
	return out
}

func bf16Bytes(values ...float32) []byte {
	out := make([]byte, 0, 2*len(values))
	for _, v := range values {
		out = binary.LittleEndian.AppendUint16(out, uint16(math.Float32bits(v)>>16))
	}
	return out
}

func linearFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "linear.safetensors")
	writeSafeTensors(t, path, []stored{
		{"weight", SafeTensorsF32, []int{2, 3}, f32Bytes(1, 2, 3, 4, 5, 6)},
		{"bias", SafeTensorsF32, []int{2}, f32Bytes(0.5, -0.5)},
		{"step", SafeTensorsI64, []int{1}, binary.LittleEndian.AppendUint64(nil, 7)},
	})
	return path
}

func TestSafeTensorsReader(t *testing.T) {
	reader, err := NewSafeTensorsReader(linearFile(t))
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, "pt", reader.Metadata()["format"])
	assert.Equal(t, []string{"bias", "step", "weight"}, reader.TensorNames())

	info, err := reader.TensorInfo("weight")
	require.NoError(t, err)
	assert.Equal(t, SafeTensorsF32, info.DType)
	assert.Equal(t, []int{2, 3}, info.Shape)
	assert.Equal(t, int64(24), info.ByteSize())

	data, err := reader.ReadTensorData("bias")
	require.NoError(t, err)
	assert.Equal(t, f32Bytes(0.5, -0.5), data)

	_, err = reader.TensorInfo("nonexistent")
	assert.True(t, errors.Is(err, ErrMissingTensor))
}

func TestSafeTensorsReader_LoadTensor(t *testing.T) {
	reader, err := NewSafeTensorsReader(linearFile(t))
	require.NoError(t, err)
	defer reader.Close()

	w, err := reader.LoadTensor("weight")
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 3}, w.Shape())
	assert.Equal(t, tensor.Float32, w.DType())
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, w.AsFloat32())

	step, err := reader.LoadTensor("step")
	require.NoError(t, err)
	assert.Equal(t, tensor.Int64, step.DType())
	assert.Equal(t, []int64{7}, step.AsInt64())
}

func TestSafeTensorsReader_HalfPrecision(t *testing.T) {
	path := filepath.Join(t.TempDir(), "half.safetensors")
	writeSafeTensors(t, path, []stored{
		{"f16", SafeTensorsF16, []int{4}, f16Bytes(1.5, -2, 0.25, 1024)},
		{"bf16", SafeTensorsBF16, []int{2, 2}, bf16Bytes(1, -0.5, 3, 256)},
	})

	reader, err := NewSafeTensorsReader(path)
	require.NoError(t, err)
	defer reader.Close()

	f16, err := reader.LoadTensor("f16")
	require.NoError(t, err)
	assert.Equal(t, tensor.Float32, f16.DType())
	assert.Equal(t, []float32{1.5, -2, 0.25, 1024}, f16.AsFloat32())

	bf16, err := reader.LoadTensor("bf16")
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 2}, bf16.Shape())
	assert.Equal(t, []float32{1, -0.5, 3, 256}, bf16.AsFloat32())
}

func TestNewSafeTensorsReader_Invalid(t *testing.T) {
	dir := t.TempDir()

	_, err := NewSafeTensorsReader(filepath.Join(dir, "missing.safetensors"))
	assert.Error(t, err)

	short := filepath.Join(dir, "short.safetensors")
	require.NoError(t, os.WriteFile(short, []byte{1, 2, 3}, 0o600))
	_, err = NewSafeTensorsReader(short)
	assert.Error(t, err)

	huge := filepath.Join(dir, "huge.safetensors")
	require.NoError(t, os.WriteFile(huge, binary.LittleEndian.AppendUint64(nil, 1<<40), 0o600))
	_, err = NewSafeTensorsReader(huge)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid header size")

	// Declared shape needs 24 bytes but only 8 are stored.
	mismatch := filepath.Join(dir, "mismatch.safetensors")
	writeSafeTensors(t, mismatch, []stored{{"w", SafeTensorsF32, []int{2, 3}, f32Bytes(1, 2)}})
	_, err = NewSafeTensorsReader(mismatch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tensor w")

	// Offsets pointing past the end of the file.
	truncated := filepath.Join(dir, "truncated.safetensors")
	writeSafeTensors(t, truncated, []stored{{"w", SafeTensorsF32, []int{2}, f32Bytes(1, 2)}})
	data, err := os.ReadFile(truncated)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(truncated, data[:len(data)-4], 0o600))
	_, err = NewSafeTensorsReader(truncated)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid data offsets")
}

func TestNewSafeTensorsReader_BadShape(t *testing.T) {
	tests := []struct {
		name  string
		shape []int
	}{
		{"overflow", []int{1 << 40, 1 << 40}},
		{"wraps to stored size", []int{1 << 62, 2}},
		{"negative", []int{-2, -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.safetensors")
			writeSafeTensors(t, path, []stored{{"w", SafeTensorsF32, tt.shape, f32Bytes(1, 2)}})
			_, err := NewSafeTensorsReader(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "tensor w: invalid shape")
		})
	}
}

func TestSafeTensorInfo_ByteSize(t *testing.T) {
	assert.Equal(t, int64(24), SafeTensorInfo{DType: SafeTensorsF32, Shape: []int{2, 3}}.ByteSize())
	assert.Equal(t, int64(2), SafeTensorInfo{DType: SafeTensorsBF16}.ByteSize())
	assert.Equal(t, int64(0), SafeTensorInfo{DType: SafeTensorsI64, Shape: []int{0, 1 << 62}}.ByteSize())
	assert.Equal(t, int64(-1), SafeTensorInfo{DType: "U8", Shape: []int{2}}.ByteSize())
	assert.Equal(t, int64(-2), SafeTensorInfo{DType: SafeTensorsF16, Shape: []int{1 << 62, 2}}.ByteSize())
}

func TestLoadTensor_UnsupportedDType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "u8.safetensors")
	writeSafeTensors(t, path, []stored{{"mask", "U8", []int{4}, []byte{1, 0, 1, 1}}})

	reader, err := NewSafeTensorsReader(path)
	require.NoError(t, err)
	defer reader.Close()

	_, err = reader.LoadTensor("mask")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported dtype")
}

func TestBertMapper(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"bert.encoder.layer.0.attention.self.query.weight", "bert.encoder.layer.0.attention.self.query.weight", true},
		{"encoder.layer.1.output.dense.bias", "bert.encoder.layer.1.output.dense.bias", true},
		{"embeddings.LayerNorm.gamma", "bert.embeddings.LayerNorm.weight", true},
		{"bert.encoder.layer.0.output.LayerNorm.beta", "bert.encoder.layer.0.output.LayerNorm.bias", true},
		{"pooler.dense.weight", "bert.pooler.dense.weight", true},
		{"classifier.weight", "classifier.weight", true},
		{"bert.embeddings.position_ids", "", false},
		{"cls.predictions.bias", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := BertMapper{}.MapName(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectArchitecture(t *testing.T) {
	assert.Equal(t, ArchitectureBERT, DetectArchitecture([]string{"bert.embeddings.word_embeddings.weight"}))
	assert.Equal(t, ArchitectureIdentity, DetectArchitecture([]string{"0.weight", "0.bias"}))
	assert.IsType(t, BertMapper{}, GetMapper(ArchitectureBERT))
	assert.IsType(t, IdentityMapper{}, GetMapper("unknown"))
}

func TestLoadInto_Linear(t *testing.T) {
	backend := cpu.New()
	layer := nn.NewLinear(3, 2, backend)

	report, err := LoadInto(linearFile(t), layer, IdentityMapper{})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Loaded)
	assert.Equal(t, []string{"step"}, report.Unused)
	assert.Contains(t, report.String(), "loaded 2 tensors")

	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, layer.Weight().Tensor().Data())
	assert.Equal(t, []float32{0.5, -0.5}, layer.Bias().Tensor().Data())
}

func TestLoadInto_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.safetensors")
	writeSafeTensors(t, path, []stored{{"weight", SafeTensorsF32, []int{2, 3}, f32Bytes(1, 2, 3, 4, 5, 6)}})

	_, err := LoadInto(path, nn.NewLinear(3, 2, cpu.New()), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingTensor)
	assert.Contains(t, err.Error(), "bias")
}

func TestLoadInto_ShapeMismatch(t *testing.T) {
	_, err := LoadInto(linearFile(t), nn.NewLinear(2, 3, cpu.New()), IdentityMapper{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shape mismatch")
}

func TestLoadInto_HalfPrecision(t *testing.T) {
	path := filepath.Join(t.TempDir(), "half.safetensors")
	writeSafeTensors(t, path, []stored{
		{"weight", SafeTensorsF16, []int{1, 2}, f16Bytes(0.5, 2)},
		{"bias", SafeTensorsBF16, []int{1}, bf16Bytes(-1)},
	})

	layer := nn.NewLinear(2, 1, cpu.New())
	report, err := LoadInto(path, layer, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"F16": 1, "BF16": 1}, report.Converted)
	assert.Equal(t, []float32{0.5, 2}, layer.Weight().Tensor().Data())
	assert.Equal(t, []float32{-1}, layer.Bias().Tensor().Data())
}

// A bare BertModel checkpoint with TensorFlow-style LayerNorm names loads
// into the classifier once mapped.
func TestLoadInto_Bert(t *testing.T) {
	backend := cpu.New()
	cfg := bert.TinyConfig()
	cfg.VocabSize = 40
	cfg.HiddenSize = 8
	cfg.IntermediateSize = 16
	cfg.MaxPositionEmbeddings = 8

	src, err := bert.NewModel(cfg, backend)
	require.NoError(t, err)
	dst, err := bert.NewModel(cfg, backend)
	require.NoError(t, err)

	var tensors []stored
	for _, key := range nn.SortedKeys(src.StateDict()) {
		raw := src.StateDict()[key]
		name := strings.TrimPrefix(key, "bert.")
		name = strings.Replace(name, "LayerNorm.weight", "LayerNorm.gamma", 1)
		name = strings.Replace(name, "LayerNorm.bias", "LayerNorm.beta", 1)
		tensors = append(tensors, stored{name, SafeTensorsF32, raw.Shape(), raw.Data()})
	}
	tensors = append(tensors, stored{"embeddings.position_ids", SafeTensorsI64, []int{1, 8}, make([]byte, 64)})

	path := filepath.Join(t.TempDir(), "model.safetensors")
	writeSafeTensors(t, path, tensors)

	report, err := LoadInto(path, dst, nil)
	require.NoError(t, err)
	assert.Equal(t, ArchitectureBERT, report.Architecture)
	assert.Equal(t, len(src.StateDict()), report.Loaded)
	assert.Equal(t, []string{"embeddings.position_ids"}, report.Unused)

	ids, err := tensor.FromSlice([]int32{1, 2, 3}, tensor.Shape{1, 3}, backend)
	require.NoError(t, err)
	assert.InDeltaSlice(t, src.Forward(ids, nil, nil).Data(), dst.Forward(ids, nil, nil).Data(), 1e-6)
}

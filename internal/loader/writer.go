package loader

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/x448/float16"

	"github.com/born-ml/zoo/internal/nn"
	"github.com/born-ml/zoo/internal/tensor"
)

// WriteOptions controls how a state dict is stored.
type WriteOptions struct {
	// Metadata is stored under "__metadata__".
	Metadata map[string]string
	// Float is the stored dtype of float32 tensors: F32 (default), F16 or BF16.
	Float SafeTensorsDType
}

// Save writes the state dict of s to path in SafeTensors format.
func Save(path string, s nn.Stateful, opts WriteOptions) error {
	return WriteSafeTensors(path, s.StateDict(), opts)
}

// WriteSafeTensors writes tensors to path:
//
//	[8 bytes: header size, uint64 LE][JSON header][tensor data]
//
// Tensors are stored in sorted name order.
func WriteSafeTensors(path string, tensors map[string]*tensor.RawTensor, opts WriteOptions) error {
	floatDType := opts.Float
	if floatDType == "" {
		floatDType = SafeTensorsF32
	}
	switch floatDType {
	case SafeTensorsF32, SafeTensorsF16, SafeTensorsBF16:
	default:
		return fmt.Errorf("unsupported float dtype: %s", floatDType)
	}

	names := nn.SortedKeys(tensors)
	header := make(map[string]any, len(names)+1)
	if len(opts.Metadata) > 0 {
		header["__metadata__"] = opts.Metadata
	}

	var offset int64
	for _, name := range names {
		raw := tensors[name]
		dtype, err := storedDType(raw.DType(), floatDType)
		if err != nil {
			return fmt.Errorf("tensor %s: %w", name, err)
		}
		info := SafeTensorInfo{DType: dtype, Shape: raw.Shape().Clone()}
		size := info.ByteSize()
		info.DataOffsets = [2]int64{offset, offset + size}
		header[name] = info
		offset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	//nolint:gosec // G304: the output path is chosen by the caller
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	w := bufio.NewWriter(f)

	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write header size: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, name := range names {
		if err := writeTensor(w, tensors[name], floatDType); err != nil {
			_ = f.Close()
			return fmt.Errorf("failed to write tensor %s: %w", name, err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func storedDType(dt tensor.DataType, floatDType SafeTensorsDType) (SafeTensorsDType, error) {
	switch dt {
	case tensor.Float32:
		return floatDType, nil
	case tensor.Float64:
		return SafeTensorsF64, nil
	case tensor.Int32:
		return SafeTensorsI32, nil
	case tensor.Int64:
		return SafeTensorsI64, nil
	default:
		return "", fmt.Errorf("unsupported dtype %v", dt)
	}
}

func writeTensor(w *bufio.Writer, raw *tensor.RawTensor, floatDType SafeTensorsDType) error {
	if raw.DType() != tensor.Float32 || floatDType == SafeTensorsF32 {
		_, err := w.Write(raw.Data())
		return err
	}

	var buf [2]byte
	for _, v := range raw.AsFloat32() {
		if floatDType == SafeTensorsF16 {
			binary.LittleEndian.PutUint16(buf[:], float16.Fromfloat32(v).Bits())
		} else {
			binary.LittleEndian.PutUint16(buf[:], narrowBF16(v))
		}
		if _, err := w.Write(buf[:]); err != nil {
			return err
		}
	}
	return nil
}

// narrowBF16 rounds to nearest even on the dropped low half.
func narrowBF16(v float32) uint16 {
	bits := math.Float32bits(v)
	if v != v { // NaN
		return uint16(bits>>16) | 0x40
	}
	bits += 0x7FFF + (bits>>16)&1
	return uint16(bits >> 16)
}

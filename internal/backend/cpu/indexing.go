package cpu

import (
	"fmt"

	"github.com/born-ml/zoo/internal/tensor"
)

// Embedding performs embedding lookup: output[..., :] = weight[indices[...], :].
//
// Parameters:
//   - weight: Embedding matrix [num_embeddings, embedding_dim], float32
//   - indices: Indices tensor [...], int32 or int64
//
// Returns: [...indices.shape, embedding_dim]
//
// Panics if any index is outside [0, num_embeddings).
func (cpu *CPUBackend) Embedding(weight, indices *tensor.RawTensor) *tensor.RawTensor {
	requireFloat32("embedding", weight)

	weightShape := weight.Shape()
	if len(weightShape) != 2 {
		panic(fmt.Sprintf("embedding: weight must be 2D, got shape %v", weightShape))
	}
	numEmbeddings, embeddingDim := weightShape[0], weightShape[1]

	var ids []int
	switch indices.DType() {
	case tensor.Int32:
		for _, v := range indices.AsInt32() {
			ids = append(ids, int(v))
		}
	case tensor.Int64:
		for _, v := range indices.AsInt64() {
			ids = append(ids, int(v))
		}
	default:
		panic(fmt.Sprintf("embedding: indices must be int32 or int64, got %s", indices.DType()))
	}

	indicesShape := indices.Shape()
	outputShape := make(tensor.Shape, len(indicesShape)+1)
	copy(outputShape, indicesShape)
	outputShape[len(outputShape)-1] = embeddingDim

	result := cpu.alloc("embedding", outputShape, tensor.Float32)
	out := result.AsFloat32()
	w := weight.AsFloat32()

	for i, idx := range ids {
		if idx < 0 || idx >= numEmbeddings {
			panic(fmt.Sprintf("embedding: index %d out of range [0, %d)", idx, numEmbeddings))
		}
		copy(out[i*embeddingDim:(i+1)*embeddingDim], w[idx*embeddingDim:(idx+1)*embeddingDim])
	}

	return result
}

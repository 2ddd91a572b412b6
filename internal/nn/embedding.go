package nn

import (
	"fmt"

	"github.com/born-ml/zoo/internal/tensor"
)

// Embedding is a lookup table mapping token indices to dense vectors.
//
// Embedding is Stateful but not a Module: its input is an int32 index
// tensor, not float32 activations.
//
// Example:
//
//	embed := nn.NewEmbedding(30522, 128, backend) // BERT-tiny word embeddings
//	vectors := embed.Forward(ids)                  // [batch, seq] -> [batch, seq, 128]
type Embedding[B tensor.Backend] struct {
	NumEmbeddings int
	EmbeddingDim  int
	weight        *Parameter[B] // [num_embeddings, embedding_dim]
	backend       B
}

// NewEmbedding creates an embedding table initialized from N(0, 1),
// PyTorch's default.
func NewEmbedding[B tensor.Backend](numEmbeddings, embeddingDim int, backend B) *Embedding[B] {
	if numEmbeddings <= 0 || embeddingDim <= 0 {
		panic(fmt.Sprintf("embedding: invalid size %dx%d", numEmbeddings, embeddingDim))
	}
	return &Embedding[B]{
		NumEmbeddings: numEmbeddings,
		EmbeddingDim:  embeddingDim,
		weight:        NewParameter("weight", Randn(tensor.Shape{numEmbeddings, embeddingDim}, backend)),
		backend:       backend,
	}
}

// Forward looks up every index: [...] -> [..., embedding_dim].
// Panics on an out-of-range index.
func (e *Embedding[B]) Forward(indices *tensor.Tensor[int32, B]) *tensor.Tensor[float32, B] {
	return tensor.New[float32, B](e.backend.Embedding(e.weight.Raw(), indices.Raw()), e.backend)
}

// Parameters returns [weight].
func (e *Embedding[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{e.weight}
}

// Weight returns the embedding table.
func (e *Embedding[B]) Weight() *Parameter[B] {
	return e.weight
}

// StateDict returns the table under "weight".
func (e *Embedding[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{"weight": e.weight.Raw()}
}

// LoadStateDict loads the table.
func (e *Embedding[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return LoadAll(e.StateDict(), stateDict)
}

package nn

import (
	"fmt"
	"math"

	"github.com/born-ml/zoo/internal/tensor"
)

// MultiHeadAttention implements multi-head self-attention.
//
// Architecture:
//
//	Q = X @ W_Q + b_Q, K = X @ W_K + b_K, V = X @ W_V + b_V
//	head_i = softmax(Q_i @ K_i^T / sqrt(head_dim) + mask) @ V_i
//	output = concat(head_1, ..., head_h) @ W_O + b_O
//
// Input and output shape: [batch, seq_len, embed_dim].
//
// Example:
//
//	mha := nn.NewMultiHeadAttention(128, 2, backend) // BERT-tiny
//	output := mha.ForwardMasked(hidden, mask)
type MultiHeadAttention[B tensor.Backend] struct {
	Query *Linear[B]
	Key   *Linear[B]
	Value *Linear[B]
	Out   *Linear[B]

	NumHeads int
	HeadDim  int
	EmbedDim int
}

// NewMultiHeadAttention creates a multi-head attention module.
//
// Panics if embedDim is not divisible by numHeads.
func NewMultiHeadAttention[B tensor.Backend](embedDim, numHeads int, backend B) *MultiHeadAttention[B] {
	if numHeads <= 0 || embedDim%numHeads != 0 {
		panic(fmt.Sprintf("attention: embed_dim (%d) must be divisible by num_heads (%d)", embedDim, numHeads))
	}

	return &MultiHeadAttention[B]{
		Query:    NewLinear(embedDim, embedDim, backend),
		Key:      NewLinear(embedDim, embedDim, backend),
		Value:    NewLinear(embedDim, embedDim, backend),
		Out:      NewLinear(embedDim, embedDim, backend),
		NumHeads: numHeads,
		HeadDim:  embedDim / numHeads,
		EmbedDim: embedDim,
	}
}

// Forward computes unmasked self-attention.
func (m *MultiHeadAttention[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return m.ForwardMasked(x, nil)
}

// ForwardMasked computes self-attention with an additive mask.
//
// mask, when non-nil, must broadcast against the scores [batch, heads,
// seq, seq]; BERT passes [batch, 1, 1, seq] with 0 for visible tokens and a
// large negative value for padding.
func (m *MultiHeadAttention[B]) ForwardMasked(x, mask *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	if len(shape) != 3 || shape[2] != m.EmbedDim {
		panic(fmt.Sprintf("attention: expected [batch, seq, %d] input, got shape %v", m.EmbedDim, shape))
	}
	batch, seq := shape[0], shape[1]

	q := m.splitHeads(m.Query.Forward(x), batch, seq)
	k := m.splitHeads(m.Key.Forward(x), batch, seq)
	v := m.splitHeads(m.Value.Forward(x), batch, seq)

	// [B, H, S, D] @ [B, H, D, S] -> [B, H, S, S]
	scores := q.BatchMatMul(k.Transpose(0, 1, 3, 2)).MulScalar(float32(1 / math.Sqrt(float64(m.HeadDim))))
	if mask != nil {
		scores = scores.Add(mask)
	}
	weights := scores.Softmax(-1)

	// [B, H, S, S] @ [B, H, S, D] -> [B, H, S, D] -> [B, S, E]
	context := weights.BatchMatMul(v).Transpose(0, 2, 1, 3).Reshape(batch, seq, m.EmbedDim)
	return m.Out.Forward(context)
}

// splitHeads reshapes [B, S, E] to [B, H, S, D].
func (m *MultiHeadAttention[B]) splitHeads(x *tensor.Tensor[float32, B], batch, seq int) *tensor.Tensor[float32, B] {
	return x.Reshape(batch, seq, m.NumHeads, m.HeadDim).Transpose(0, 2, 1, 3)
}

// Parameters returns the Q, K, V and output projection parameters.
func (m *MultiHeadAttention[B]) Parameters() []*Parameter[B] {
	params := make([]*Parameter[B], 0, 8)
	params = append(params, m.Query.Parameters()...)
	params = append(params, m.Key.Parameters()...)
	params = append(params, m.Value.Parameters()...)
	params = append(params, m.Out.Parameters()...)
	return params
}

// StateDict returns the projections under "query.", "key.", "value." and "out.".
func (m *MultiHeadAttention[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	for prefix, l := range m.projections() {
		PrefixInto(stateDict, l.StateDict(), prefix)
	}
	return stateDict
}

// LoadStateDict loads all four projections.
func (m *MultiHeadAttention[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for prefix, l := range m.projections() {
		if err := l.LoadStateDict(SubDict(stateDict, prefix)); err != nil {
			return fmt.Errorf("%s: %w", prefix[:len(prefix)-1], err)
		}
	}
	return nil
}

func (m *MultiHeadAttention[B]) projections() map[string]*Linear[B] {
	return map[string]*Linear[B]{
		"query.": m.Query,
		"key.":   m.Key,
		"value.": m.Value,
		"out.":   m.Out,
	}
}

package bert

import (
	"fmt"

	"github.com/born-ml/zoo/internal/nn"
	"github.com/born-ml/zoo/internal/tensor"
)

// Embeddings sums word, position and token-type embeddings and normalizes
// the result.
//
// State dict keys are "bert.embeddings.*".
type Embeddings[B tensor.Backend] struct {
	Word      *nn.Embedding[B]
	Position  *nn.Embedding[B]
	TokenType *nn.Embedding[B]
	Norm      *nn.LayerNorm[B]
	Dropout   *nn.Dropout[B]

	backend B
}

// NewEmbeddings creates the embedding block for cfg.
func NewEmbeddings[B tensor.Backend](cfg Config, backend B) *Embeddings[B] {
	return &Embeddings[B]{
		Word:      nn.NewEmbedding(cfg.VocabSize, cfg.HiddenSize, backend),
		Position:  nn.NewEmbedding(cfg.MaxPositionEmbeddings, cfg.HiddenSize, backend),
		TokenType: nn.NewEmbedding(cfg.TypeVocabSize, cfg.HiddenSize, backend),
		Norm:      nn.NewLayerNorm(cfg.HiddenSize, cfg.LayerNormEps, backend),
		Dropout:   nn.NewDropout[B](cfg.HiddenDropoutProb),
		backend:   backend,
	}
}

// Forward maps [batch, seq] token ids to [batch, seq, hidden].
// typeIDs may be nil, meaning every token belongs to segment 0.
func (e *Embeddings[B]) Forward(ids, typeIDs *tensor.Tensor[int32, B]) *tensor.Tensor[float32, B] {
	shape := ids.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("bert embeddings: expected [batch, seq] ids, got shape %v", shape))
	}
	seq := shape[1]
	if seq > e.Position.NumEmbeddings {
		panic(fmt.Sprintf("bert embeddings: sequence length %d exceeds %d positions", seq, e.Position.NumEmbeddings))
	}
	if typeIDs == nil {
		typeIDs = tensor.Zeros[int32](shape, e.backend)
	} else if !typeIDs.Shape().Equal(shape) {
		panic(fmt.Sprintf("bert embeddings: token type ids %v do not match ids %v", typeIDs.Shape(), shape))
	}

	positions := tensor.Arange[int32](0, seq, e.backend)

	// [B, S, H] + [S, H] + [B, S, H]
	x := e.Word.Forward(ids).
		Add(e.Position.Forward(positions)).
		Add(e.TokenType.Forward(typeIDs))
	return e.Dropout.Forward(e.Norm.Forward(x))
}

// Parameters returns the three tables and the LayerNorm parameters.
func (e *Embeddings[B]) Parameters() []*nn.Parameter[B] {
	params := []*nn.Parameter[B]{e.Word.Weight(), e.Position.Weight(), e.TokenType.Weight()}
	return append(params, e.Norm.Parameters()...)
}

// Train toggles dropout.
func (e *Embeddings[B]) Train(training bool) {
	e.Dropout.Train(training)
}

// StateDict returns the Hugging Face named tensors.
func (e *Embeddings[B]) StateDict() map[string]*tensor.RawTensor {
	sd := make(map[string]*tensor.RawTensor)
	for prefix, s := range e.children() {
		nn.PrefixInto(sd, s.StateDict(), prefix)
	}
	return sd
}

// LoadStateDict loads every table and the LayerNorm.
func (e *Embeddings[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return nn.LoadAll(e.StateDict(), stateDict)
}

func (e *Embeddings[B]) children() map[string]nn.Stateful {
	const p = "bert.embeddings."
	return map[string]nn.Stateful{
		p + "word_embeddings.":       e.Word,
		p + "position_embeddings.":   e.Position,
		p + "token_type_embeddings.": e.TokenType,
		p + "LayerNorm.":             e.Norm,
	}
}

package bert

import (
	"fmt"

	"github.com/born-ml/zoo/internal/nn"
	"github.com/born-ml/zoo/internal/tensor"
)

// NewTinySeqClassification builds BERT for sequence classification and
// returns it split into the embedding block and the model over hidden
// states. The configuration is validated first.
func NewTinySeqClassification[B tensor.Backend](cfg Config, backend B) (*Embeddings[B], *SequenceClassifier[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("bert: %w", err)
	}
	return NewEmbeddings(cfg, backend), NewSequenceClassifier(cfg, backend), nil
}

// Model joins the two halves for end-to-end use and weight loading.
type Model[B tensor.Backend] struct {
	Embeddings *Embeddings[B]
	Classifier *SequenceClassifier[B]
}

// NewModel builds the joined model for cfg.
func NewModel[B tensor.Backend](cfg Config, backend B) (*Model[B], error) {
	emb, clf, err := NewTinySeqClassification(cfg, backend)
	if err != nil {
		return nil, err
	}
	return &Model[B]{Embeddings: emb, Classifier: clf}, nil
}

// Forward maps token ids to [batch, labels] logits. typeIDs and mask may be nil.
func (m *Model[B]) Forward(ids, typeIDs *tensor.Tensor[int32, B], mask *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return m.Classifier.ForwardMasked(m.Embeddings.Forward(ids, typeIDs), mask)
}

// Parameters returns embedding then classifier parameters.
func (m *Model[B]) Parameters() []*nn.Parameter[B] {
	return append(m.Embeddings.Parameters(), m.Classifier.Parameters()...)
}

// NumParameters counts every weight (4,386,178 for TinyConfig).
func (m *Model[B]) NumParameters() int {
	return nn.NumParameters(m.Parameters())
}

// Train toggles dropout in both halves.
func (m *Model[B]) Train(training bool) {
	m.Embeddings.Train(training)
	m.Classifier.Train(training)
}

// StateDict merges both halves; their key spaces are disjoint.
func (m *Model[B]) StateDict() map[string]*tensor.RawTensor {
	sd := m.Embeddings.StateDict()
	for k, v := range m.Classifier.StateDict() {
		sd[k] = v
	}
	return sd
}

// LoadStateDict loads both halves.
func (m *Model[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := m.Embeddings.LoadStateDict(stateDict); err != nil {
		return fmt.Errorf("embeddings: %w", err)
	}
	if err := m.Classifier.LoadStateDict(stateDict); err != nil {
		return fmt.Errorf("classifier: %w", err)
	}
	return nil
}

package bert

import (
	"fmt"

	"github.com/born-ml/zoo/internal/nn"
	"github.com/born-ml/zoo/internal/tensor"
)

// maskedLogit is added to attention scores of padding tokens.
const maskedLogit = -10000

// encoderLayer is one post-LN transformer block:
//
//	x = LN(x + Attention(x))
//	x = LN(x + Output(GELU(Intermediate(x))))
type encoderLayer[B tensor.Backend] struct {
	attention    *nn.MultiHeadAttention[B]
	attnNorm     *nn.LayerNorm[B]
	intermediate *nn.Linear[B]
	act          *nn.GELU[B]
	output       *nn.Linear[B]
	outNorm      *nn.LayerNorm[B]
	dropout      *nn.Dropout[B]
}

func newEncoderLayer[B tensor.Backend](cfg Config, backend B) *encoderLayer[B] {
	return &encoderLayer[B]{
		attention:    nn.NewMultiHeadAttention(cfg.HiddenSize, cfg.NumAttentionHeads, backend),
		attnNorm:     nn.NewLayerNorm(cfg.HiddenSize, cfg.LayerNormEps, backend),
		intermediate: nn.NewLinear(cfg.HiddenSize, cfg.IntermediateSize, backend),
		act:          nn.NewGELU[B](),
		output:       nn.NewLinear(cfg.IntermediateSize, cfg.HiddenSize, backend),
		outNorm:      nn.NewLayerNorm(cfg.HiddenSize, cfg.LayerNormEps, backend),
		dropout:      nn.NewDropout[B](cfg.HiddenDropoutProb),
	}
}

func (l *encoderLayer[B]) forward(x, mask *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	attn := l.dropout.Forward(l.attention.ForwardMasked(x, mask))
	x = l.attnNorm.Forward(x.Add(attn))

	ff := l.dropout.Forward(l.output.Forward(l.act.Forward(l.intermediate.Forward(x))))
	return l.outNorm.Forward(x.Add(ff))
}

func (l *encoderLayer[B]) parameters() []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	params = append(params, l.attention.Parameters()...)
	params = append(params, l.attnNorm.Parameters()...)
	params = append(params, l.intermediate.Parameters()...)
	params = append(params, l.output.Parameters()...)
	params = append(params, l.outNorm.Parameters()...)
	return params
}

// children maps Hugging Face key prefixes to submodules.
func (l *encoderLayer[B]) children() map[string]nn.Stateful {
	return map[string]nn.Stateful{
		"attention.self.query.":       l.attention.Query,
		"attention.self.key.":         l.attention.Key,
		"attention.self.value.":       l.attention.Value,
		"attention.output.dense.":     l.attention.Out,
		"attention.output.LayerNorm.": l.attnNorm,
		"intermediate.dense.":         l.intermediate,
		"output.dense.":               l.output,
		"output.LayerNorm.":           l.outNorm,
	}
}

// SequenceClassifier is the BERT encoder, pooler and classification head.
// It consumes hidden states produced by Embeddings:
// [batch, seq, hidden] -> [batch, labels].
type SequenceClassifier[B tensor.Backend] struct {
	cfg        Config
	layers     []*encoderLayer[B]
	pooler     *nn.Linear[B]
	poolAct    *nn.Tanh[B]
	dropout    *nn.Dropout[B]
	classifier *nn.Linear[B]
	backend    B
}

// NewSequenceClassifier creates the encoder and head for cfg.
func NewSequenceClassifier[B tensor.Backend](cfg Config, backend B) *SequenceClassifier[B] {
	layers := make([]*encoderLayer[B], cfg.NumHiddenLayers)
	for i := range layers {
		layers[i] = newEncoderLayer(cfg, backend)
	}
	return &SequenceClassifier[B]{
		cfg:        cfg,
		layers:     layers,
		pooler:     nn.NewLinear(cfg.HiddenSize, cfg.HiddenSize, backend),
		poolAct:    nn.NewTanh[B](),
		dropout:    nn.NewDropout[B](cfg.HiddenDropoutProb),
		classifier: nn.NewLinear(cfg.HiddenSize, cfg.NumLabels, backend),
		backend:    backend,
	}
}

// Config returns the model configuration.
func (m *SequenceClassifier[B]) Config() Config { return m.cfg }

// Forward classifies hidden states with every token visible.
func (m *SequenceClassifier[B]) Forward(hidden *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return m.ForwardMasked(hidden, nil)
}

// ForwardMasked classifies hidden states. mask, when non-nil, is a
// [batch, seq] tensor with 1 for real tokens and 0 for padding.
func (m *SequenceClassifier[B]) ForwardMasked(hidden, mask *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := hidden.Shape()
	if len(shape) != 3 || shape[2] != m.cfg.HiddenSize {
		panic(fmt.Sprintf("bert: expected [batch, seq, %d] hidden states, got shape %v", m.cfg.HiddenSize, shape))
	}
	batch, seq := shape[0], shape[1]

	var additive *tensor.Tensor[float32, B]
	if mask != nil {
		if !mask.Shape().Equal(tensor.Shape{batch, seq}) {
			panic(fmt.Sprintf("bert: attention mask %v does not match [%d, %d]", mask.Shape(), batch, seq))
		}
		// 1 -> 0, 0 -> maskedLogit; [B, S] -> [B, 1, 1, S] broadcasts over heads and queries.
		additive = mask.MulScalar(-maskedLogit).AddScalar(maskedLogit).Reshape(batch, 1, 1, seq)
	}

	x := hidden
	for _, l := range m.layers {
		x = l.forward(x, additive)
	}

	pooled := m.poolAct.Forward(m.pooler.Forward(m.firstToken(x)))
	return m.classifier.Forward(m.dropout.Forward(pooled))
}

// firstToken extracts the [CLS] hidden state: [B, S, H] -> [B, H].
func (m *SequenceClassifier[B]) firstToken(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	batch, seq, h := shape[0], shape[1], shape[2]

	out := tensor.Zeros[float32](tensor.Shape{batch, h}, m.backend)
	src, dst := x.Data(), out.Data()
	for b := 0; b < batch; b++ {
		copy(dst[b*h:(b+1)*h], src[b*seq*h:b*seq*h+h])
	}
	return out
}

// Parameters returns encoder, pooler and classifier parameters.
func (m *SequenceClassifier[B]) Parameters() []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	for _, l := range m.layers {
		params = append(params, l.parameters()...)
	}
	params = append(params, m.pooler.Parameters()...)
	return append(params, m.classifier.Parameters()...)
}

// Train toggles dropout in every layer and the head.
func (m *SequenceClassifier[B]) Train(training bool) {
	for _, l := range m.layers {
		l.dropout.Train(training)
	}
	m.dropout.Train(training)
}

// StateDict returns "bert.encoder.layer.N.*", "bert.pooler.dense.*" and
// "classifier.*" tensors.
func (m *SequenceClassifier[B]) StateDict() map[string]*tensor.RawTensor {
	sd := make(map[string]*tensor.RawTensor)
	for i, l := range m.layers {
		for prefix, s := range l.children() {
			nn.PrefixInto(sd, s.StateDict(), fmt.Sprintf("bert.encoder.layer.%d.%s", i, prefix))
		}
	}
	nn.PrefixInto(sd, m.pooler.StateDict(), "bert.pooler.dense.")
	nn.PrefixInto(sd, m.classifier.StateDict(), "classifier.")
	return sd
}

// LoadStateDict loads every encoder layer, the pooler and the classifier.
func (m *SequenceClassifier[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return nn.LoadAll(m.StateDict(), stateDict)
}

package bert

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/zoo/internal/backend/cpu"
	"github.com/born-ml/zoo/internal/nn"
	"github.com/born-ml/zoo/internal/tensor"
)

type Backend = *cpu.CPUBackend

func smallConfig() Config {
	return Config{
		VocabSize:             50,
		HiddenSize:            8,
		NumHiddenLayers:       2,
		NumAttentionHeads:     2,
		IntermediateSize:      16,
		HiddenAct:             "gelu",
		HiddenDropoutProb:     0.1,
		MaxPositionEmbeddings: 16,
		TypeVocabSize:         2,
		LayerNormEps:          1e-12,
		NumLabels:             3,
	}
}

func ids(t *testing.T, backend Backend, shape tensor.Shape, values ...int32) *tensor.Tensor[int32, Backend] {
	t.Helper()
	x, err := tensor.FromSlice(values, shape, backend)
	require.NoError(t, err)
	return x
}

func TestTinyConfig(t *testing.T) {
	cfg := TinyConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 64, cfg.HeadDim())
}

func TestConfig_Validate(t *testing.T) {
	cfg := TinyConfig()
	cfg.NumAttentionHeads = 3
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not divisible")

	cfg = TinyConfig()
	cfg.HiddenAct = "relu"
	cfg.NumLabels = 0
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported hidden_act")
	assert.Contains(t, err.Error(), "num_labels must be positive")
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	data := `{
		"hidden_size": 128,
		"hidden_act": "gelu",
		"initializer_range": 0.02,
		"vocab_size": 30522,
		"hidden_dropout_prob": 0.1,
		"num_attention_heads": 2,
		"type_vocab_size": 2,
		"max_position_embeddings": 512,
		"num_hidden_layers": 2,
		"intermediate_size": 512,
		"id2label": {"0": "NEGATIVE", "1": "NEUTRAL", "2": "POSITIVE"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.NumLabels)
	assert.Equal(t, float32(1e-12), cfg.LayerNormEps)
	assert.Equal(t, 128, cfg.HiddenSize)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"hidden_size": 100, "num_attention_heads": 3}`), 0o600))
	_, err = LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not divisible")

	require.NoError(t, os.WriteFile(path, []byte(`{"hidden_size": `), 0o600))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestTinyParameterCount(t *testing.T) {
	emb, clf, err := NewTinySeqClassification(TinyConfig(), cpu.New())
	require.NoError(t, err)

	assert.Equal(t, 3972864, nn.NumParameters(emb.Parameters()))
	assert.Equal(t, 413314, nn.NumParameters(clf.Parameters()))
	assert.Equal(t, 4386178, nn.CountStateDict(emb)+nn.CountStateDict(clf))
}

func TestNewTinySeqClassification_InvalidConfig(t *testing.T) {
	cfg := smallConfig()
	cfg.HiddenSize = 9
	_, _, err := NewTinySeqClassification(cfg, cpu.New())
	assert.Error(t, err)
}

func TestEmbeddings_Forward(t *testing.T) {
	backend := cpu.New()
	emb := NewEmbeddings(smallConfig(), backend)

	x := emb.Forward(ids(t, backend, tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6), nil)
	assert.Equal(t, tensor.Shape{2, 3, 8}, x.Shape())

	// LayerNorm with unit weight and zero bias leaves every row with zero mean.
	data := x.Data()
	for row := 0; row < 6; row++ {
		var sum float32
		for _, v := range data[row*8 : (row+1)*8] {
			sum += v
		}
		assert.InDelta(t, 0, sum, 1e-4)
	}
}

func TestEmbeddings_TokenTypes(t *testing.T) {
	backend := cpu.New()
	emb := NewEmbeddings(smallConfig(), backend)
	tokens := ids(t, backend, tensor.Shape{1, 2}, 7, 7)

	a := emb.Forward(tokens, nil)
	b := emb.Forward(tokens, ids(t, backend, tensor.Shape{1, 2}, 0, 0))
	c := emb.Forward(tokens, ids(t, backend, tensor.Shape{1, 2}, 1, 1))

	assert.InDeltaSlice(t, a.Data(), b.Data(), 1e-6)
	assert.NotEqual(t, a.Data(), c.Data())
}

func TestEmbeddings_Panics(t *testing.T) {
	backend := cpu.New()
	emb := NewEmbeddings(smallConfig(), backend)

	assert.Panics(t, func() { emb.Forward(ids(t, backend, tensor.Shape{3}, 1, 2, 3), nil) })

	long := make([]int32, 17)
	assert.Panics(t, func() { emb.Forward(ids(t, backend, tensor.Shape{1, 17}, long...), nil) })

	assert.Panics(t, func() {
		emb.Forward(ids(t, backend, tensor.Shape{1, 2}, 1, 2), ids(t, backend, tensor.Shape{2, 1}, 0, 0))
	})
}

func TestSequenceClassifier_Forward(t *testing.T) {
	backend := cpu.New()
	model, err := NewModel(smallConfig(), backend)
	require.NoError(t, err)

	logits := model.Forward(ids(t, backend, tensor.Shape{2, 4}, 1, 5, 9, 2, 1, 6, 0, 0), nil, nil)
	assert.Equal(t, tensor.Shape{2, 3}, logits.Shape())

	hidden := tensor.Randn[float32](tensor.Shape{1, 5, 8}, backend)
	assert.Equal(t, tensor.Shape{1, 3}, model.Classifier.Forward(hidden).Shape())

	assert.Panics(t, func() {
		model.Classifier.Forward(tensor.Randn[float32](tensor.Shape{1, 5, 7}, backend))
	})
}

// Padding tokens hidden by the mask must not influence the logits.
func TestSequenceClassifier_MaskIgnoresPadding(t *testing.T) {
	backend := cpu.New()
	model, err := NewModel(smallConfig(), backend)
	require.NoError(t, err)

	mask, err := tensor.FromSlice([]float32{1, 1, 1, 0, 0}, tensor.Shape{1, 5}, backend)
	require.NoError(t, err)

	a := model.Forward(ids(t, backend, tensor.Shape{1, 5}, 1, 8, 9, 0, 0), nil, mask)
	b := model.Forward(ids(t, backend, tensor.Shape{1, 5}, 1, 8, 9, 42, 17), nil, mask)
	assert.InDeltaSlice(t, a.Data(), b.Data(), 1e-5)

	unmasked := model.Forward(ids(t, backend, tensor.Shape{1, 5}, 1, 8, 9, 42, 17), nil, nil)
	assert.NotEqual(t, a.Data(), unmasked.Data())

	bad, err := tensor.FromSlice([]float32{1, 1}, tensor.Shape{1, 2}, backend)
	require.NoError(t, err)
	assert.Panics(t, func() {
		model.Classifier.ForwardMasked(tensor.Randn[float32](tensor.Shape{1, 5, 8}, backend), bad)
	})
}

func TestStateDict_HuggingFaceNames(t *testing.T) {
	model, err := NewModel(smallConfig(), cpu.New())
	require.NoError(t, err)

	sd := model.StateDict()
	assert.Len(t, sd, 5+2*16+2+2)

	for _, key := range []string{
		"bert.embeddings.word_embeddings.weight",
		"bert.embeddings.position_embeddings.weight",
		"bert.embeddings.token_type_embeddings.weight",
		"bert.embeddings.LayerNorm.weight",
		"bert.embeddings.LayerNorm.bias",
		"bert.encoder.layer.0.attention.self.query.weight",
		"bert.encoder.layer.0.attention.self.key.bias",
		"bert.encoder.layer.1.attention.self.value.weight",
		"bert.encoder.layer.1.attention.output.dense.weight",
		"bert.encoder.layer.1.attention.output.LayerNorm.bias",
		"bert.encoder.layer.0.intermediate.dense.weight",
		"bert.encoder.layer.0.output.dense.bias",
		"bert.encoder.layer.0.output.LayerNorm.weight",
		"bert.pooler.dense.weight",
		"classifier.weight",
		"classifier.bias",
	} {
		assert.Contains(t, sd, key)
	}

	assert.Equal(t, tensor.Shape{16, 8}, sd["bert.encoder.layer.0.intermediate.dense.weight"].Shape())
	assert.Equal(t, tensor.Shape{3, 8}, sd["classifier.weight"].Shape())
}

func TestStateDict_RoundTrip(t *testing.T) {
	backend := cpu.New()
	src, err := NewModel(smallConfig(), backend)
	require.NoError(t, err)
	dst, err := NewModel(smallConfig(), backend)
	require.NoError(t, err)

	require.NoError(t, dst.LoadStateDict(src.StateDict()))

	tokens := ids(t, backend, tensor.Shape{1, 3}, 3, 1, 4)
	assert.InDeltaSlice(t, src.Forward(tokens, nil, nil).Data(), dst.Forward(tokens, nil, nil).Data(), 1e-6)

	partial := src.StateDict()
	delete(partial, "bert.pooler.dense.bias")
	err = dst.LoadStateDict(partial)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "classifier: "), err.Error())
	assert.Contains(t, err.Error(), "missing bert.pooler.dense.bias")
}

func TestTrainTogglesDropout(t *testing.T) {
	backend := cpu.New()
	model, err := NewModel(smallConfig(), backend)
	require.NoError(t, err)

	nn.SetTraining(model, true)
	assert.True(t, model.Embeddings.Dropout.Training())
	assert.True(t, model.Classifier.dropout.Training())

	nn.SetTraining(model, false)
	assert.False(t, model.Embeddings.Dropout.Training())
	for _, l := range model.Classifier.layers {
		assert.False(t, l.dropout.Training())
	}
}

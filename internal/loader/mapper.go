package loader

import (
	"strings"
)

// Architecture names.
const (
	ArchitectureIdentity = "identity"
	ArchitectureBERT     = "bert"
)

// WeightMapper maps file tensor names to model state-dict keys.
type WeightMapper interface {
	// MapName converts a file tensor name to a state-dict key.
	// ok is false for tensors the model has no slot for.
	MapName(name string) (key string, ok bool)

	// Architecture returns the architecture name (e.g., "bert").
	Architecture() string
}

// IdentityMapper keeps every name unchanged. Use it for files written from
// a zoo model's own state dict.
type IdentityMapper struct{}

// MapName returns name.
func (IdentityMapper) MapName(name string) (string, bool) { return name, true }

// Architecture returns "identity".
func (IdentityMapper) Architecture() string { return ArchitectureIdentity }

// BertMapper maps Hugging Face BERT checkpoints to bert package keys.
//
// It accepts:
//   - BertForSequenceClassification names, unchanged (bert.*, classifier.*)
//   - bare BertModel names (embeddings.*, encoder.*, pooler.*), prefixed with "bert."
//   - TensorFlow-era LayerNorm.gamma / LayerNorm.beta, renamed to weight / bias
//
// Buffers such as embeddings.position_ids and pretraining heads (cls.*) are
// skipped.
type BertMapper struct{}

// MapName converts a Hugging Face BERT tensor name.
func (BertMapper) MapName(name string) (string, bool) {
	if strings.HasSuffix(name, "position_ids") || strings.HasPrefix(name, "cls.") {
		return "", false
	}

	switch {
	case strings.HasSuffix(name, "LayerNorm.gamma"):
		name = strings.TrimSuffix(name, "gamma") + "weight"
	case strings.HasSuffix(name, "LayerNorm.beta"):
		name = strings.TrimSuffix(name, "beta") + "bias"
	}

	for _, bare := range []string{"embeddings.", "encoder.", "pooler."} {
		if strings.HasPrefix(name, bare) {
			return "bert." + name, true
		}
	}
	return name, true
}

// Architecture returns "bert".
func (BertMapper) Architecture() string { return ArchitectureBERT }

// DetectArchitecture guesses the checkpoint family from tensor names.
func DetectArchitecture(names []string) string {
	for _, name := range names {
		if strings.Contains(name, "encoder.layer.") || strings.Contains(name, "word_embeddings") {
			return ArchitectureBERT
		}
	}
	return ArchitectureIdentity
}

// GetMapper returns the mapper for an architecture name, defaulting to
// IdentityMapper.
func GetMapper(architecture string) WeightMapper {
	switch architecture {
	case ArchitectureBERT:
		return BertMapper{}
	default:
		return IdentityMapper{}
	}
}

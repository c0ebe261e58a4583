// Package registry maps model-family identifiers to pretrained checkpoint
// bindings. Resolution is a pure lookup with a permissive default: unknown
// families bind to gpt2 rather than failing, so a misspelled family still
// yields a working encoder.
package registry

// TokenizerKind selects the tokenization scheme a checkpoint ships with.
type TokenizerKind string

const (
	// WordPiece tokenizers split words against a vocab.txt file (BERT lineage).
	WordPiece TokenizerKind = "wordpiece"
	// BytePair tokenizers use a vocab.json plus merge ranks (GPT-2 lineage).
	BytePair TokenizerKind = "bpe"
)

// Binding ties a model family to the concrete artifacts loaded for it. Exactly
// one binding is active per encoder instance, resolved at construction time.
type Binding struct {
	Family     string
	Checkpoint string

	// Artifact file names under the checkpoint directory.
	ModelFile      string // embedding-only model body
	ClassifierFile string // sequence-classification head, used by the fine-tuning path
	VocabFile      string
	MergesFile     string // empty for WordPiece checkpoints

	Tokenizer  TokenizerKind
	HiddenSize int
}

// DefaultFamily is the fallback family for unrecognized identifiers.
const DefaultFamily = "gpt2"

var bindings = map[string]Binding{
	"distilbert": {
		Family:         "distilbert",
		Checkpoint:     "distilbert-base-uncased",
		ModelFile:      "model.onnx",
		ClassifierFile: "classifier.onnx",
		VocabFile:      "vocab.txt",
		Tokenizer:      WordPiece,
		HiddenSize:     768,
	},
	"albert": {
		Family:         "albert",
		Checkpoint:     "albert-base-v2",
		ModelFile:      "model.onnx",
		ClassifierFile: "classifier.onnx",
		VocabFile:      "vocab.txt",
		Tokenizer:      WordPiece,
		HiddenSize:     768,
	},
	"bart": {
		Family:         "bart",
		Checkpoint:     "facebook/bart-large",
		ModelFile:      "model.onnx",
		ClassifierFile: "classifier.onnx",
		VocabFile:      "vocab.json",
		MergesFile:     "merges.txt",
		Tokenizer:      BytePair,
		HiddenSize:     1024,
	},
	"gpt2": {
		Family:         "gpt2",
		Checkpoint:     "gpt2",
		ModelFile:      "model.onnx",
		ClassifierFile: "classifier.onnx",
		VocabFile:      "vocab.json",
		MergesFile:     "merges.txt",
		Tokenizer:      BytePair,
		HiddenSize:     768,
	},
}

// Resolve returns the binding for a model family. Unrecognized families
// resolve to the gpt2 binding.
func Resolve(family string) Binding {
	if b, ok := bindings[family]; ok {
		return b
	}
	return bindings[DefaultFamily]
}

// Families returns the supported family identifiers.
func Families() []string {
	return []string{"distilbert", "albert", "bart", "gpt2"}
}

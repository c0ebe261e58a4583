// Package tokenizer converts raw text into token-id sequences for the
// embedding backbone. Tokenizers are loaded from the vocab artifacts shipped
// with a pretrained checkpoint, or supplied ready-made by the caller.
package tokenizer

import (
	"context"
	"fmt"

	"github.com/lumenml/textvec/internal/hub"
	"github.com/lumenml/textvec/internal/registry"
)

// Tokenizer converts text into a sequence of token ids. Every input yields a
// valid, possibly degenerate, sequence; implementations never return nil for
// empty text.
type Tokenizer interface {
	Encode(text string) []int64
}

// Resolve returns the tokenizer an encoder should use. A custom tokenizer
// supplied at construction is used as-is, enabling caller-side preprocessing
// ahead of language-specific tokenization.
// TODO: compose a custom tokenizer with the checkpoint tokenizer instead of
// replacing it, so custom preprocessing still ends in checkpoint token ids.
func Resolve(ctx context.Context, custom Tokenizer, binding registry.Binding, fetcher *hub.Fetcher, maxLength int) (Tokenizer, error) {
	if custom != nil {
		return custom, nil
	}
	return Load(ctx, binding, fetcher, maxLength)
}

// Load builds the tokenizer for a checkpoint from its vocab artifacts.
// Artifact resolution may fail with hub.ErrFetchFailed; that error is
// surfaced unchanged.
func Load(ctx context.Context, binding registry.Binding, fetcher *hub.Fetcher, maxLength int) (Tokenizer, error) {
	vocabPath, err := fetcher.Resolve(ctx, binding.Checkpoint, binding.VocabFile)
	if err != nil {
		return nil, err
	}

	switch binding.Tokenizer {
	case registry.WordPiece:
		return loadWordPiece(vocabPath, maxLength)
	case registry.BytePair:
		mergesPath, err := fetcher.Resolve(ctx, binding.Checkpoint, binding.MergesFile)
		if err != nil {
			return nil, err
		}
		return loadBytePair(vocabPath, mergesPath, maxLength)
	default:
		return nil, fmt.Errorf("unsupported tokenizer kind: %s", binding.Tokenizer)
	}
}

package tokenizer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/lumenml/textvec/internal/hub"
	"github.com/lumenml/textvec/internal/registry"
)

// writeArtifact places a fake checkpoint artifact into a hub cache layout.
func writeArtifact(t *testing.T, cacheDir, checkpoint, name, content string) {
	t.Helper()
	path := filepath.Join(cacheDir, filepath.FromSlash(checkpoint), name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

const testVocabTxt = `[PAD]
[UNK]
[CLS]
[SEP]
[MASK]
hello
world
long
##er
sentence
a
with
several
tokens
.
`

const testVocabJSON = `{
	"<|endoftext|>": 0,
	"h": 1, "e": 2, "l": 3, "o": 4, "w": 5, "r": 6, "d": 7,
	"he": 8, "hel": 9, "hell": 10, "hello": 11,
	"Ġ": 12, "Ġw": 13, "Ġwo": 14, "Ġwor": 15, "Ġworl": 16, "Ġworld": 17
}`

const testMerges = `#version: 0.2
h e
he l
hel l
hell o
Ġ w
Ġw o
Ġwo r
Ġwor l
Ġworl d
`

func wordPieceBinding() registry.Binding {
	return registry.Binding{
		Family:     "distilbert",
		Checkpoint: "distilbert-base-uncased",
		VocabFile:  "vocab.txt",
		Tokenizer:  registry.WordPiece,
		HiddenSize: 768,
	}
}

func bytePairBinding() registry.Binding {
	return registry.Binding{
		Family:     "gpt2",
		Checkpoint: "gpt2",
		VocabFile:  "vocab.json",
		MergesFile: "merges.txt",
		Tokenizer:  registry.BytePair,
		HiddenSize: 768,
	}
}

func TestWordPiece(t *testing.T) {
	cacheDir := t.TempDir()
	binding := wordPieceBinding()
	writeArtifact(t, cacheDir, binding.Checkpoint, binding.VocabFile, testVocabTxt)
	fetcher := hub.NewFetcher(hub.Config{CacheDir: cacheDir}, zap.NewNop())

	tok, err := Load(context.Background(), binding, fetcher, 512)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	t.Run("GreedySubwords", func(t *testing.T) {
		// "longer" = "long" + "##er"
		ids := tok.Encode("longer")
		want := []int64{2, 7, 8, 3} // [CLS] long ##er [SEP]
		assertIDs(t, ids, want)
	})

	t.Run("UnknownWordMapsToUnk", func(t *testing.T) {
		ids := tok.Encode("zzzzz")
		want := []int64{2, 1, 3} // [CLS] [UNK] [SEP]
		assertIDs(t, ids, want)
	})

	t.Run("PunctuationSplit", func(t *testing.T) {
		ids := tok.Encode("hello world.")
		want := []int64{2, 5, 6, 14, 3} // [CLS] hello world . [SEP]
		assertIDs(t, ids, want)
	})

	t.Run("EmptyTextYieldsSpecialsOnly", func(t *testing.T) {
		ids := tok.Encode("")
		want := []int64{2, 3} // [CLS] [SEP]
		assertIDs(t, ids, want)
	})

	t.Run("CaseFolded", func(t *testing.T) {
		assertIDs(t, tok.Encode("HELLO"), tok.Encode("hello"))
	})
}

func TestBytePair(t *testing.T) {
	cacheDir := t.TempDir()
	binding := bytePairBinding()
	writeArtifact(t, cacheDir, binding.Checkpoint, binding.VocabFile, testVocabJSON)
	writeArtifact(t, cacheDir, binding.Checkpoint, binding.MergesFile, testMerges)
	fetcher := hub.NewFetcher(hub.Config{CacheDir: cacheDir}, zap.NewNop())

	tok, err := Load(context.Background(), binding, fetcher, 512)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	t.Run("MergesApplied", func(t *testing.T) {
		ids := tok.Encode("hello")
		assertIDs(t, ids, []int64{11})
	})

	t.Run("SpaceFoldedIntoNextWord", func(t *testing.T) {
		ids := tok.Encode("hello world")
		assertIDs(t, ids, []int64{11, 17}) // "hello", "Ġworld"
	})

	t.Run("EmptyTextYieldsEndOfText", func(t *testing.T) {
		ids := tok.Encode("")
		assertIDs(t, ids, []int64{0})
	})
}

func TestResolve(t *testing.T) {
	t.Run("CustomTokenizerUsedAsIs", func(t *testing.T) {
		custom := fakeTokenizer{}
		got, err := Resolve(context.Background(), custom, wordPieceBinding(), nil, 512)
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if _, ok := got.(fakeTokenizer); !ok {
			t.Errorf("Resolve did not return the custom tokenizer: %T", got)
		}
	})

	t.Run("MissingArtifactSurfacesFetchError", func(t *testing.T) {
		fetcher := hub.NewFetcher(hub.Config{CacheDir: t.TempDir()}, zap.NewNop())
		_, err := Resolve(context.Background(), nil, wordPieceBinding(), fetcher, 512)
		if err == nil {
			t.Fatal("expected fetch error for missing vocab artifact")
		}
	})
}

type fakeTokenizer struct{}

func (fakeTokenizer) Encode(text string) []int64 { return []int64{1} }

func assertIDs(t *testing.T, got, want []int64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("ids = %v, want %v", got, want)
		}
	}
}

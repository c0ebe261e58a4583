package registry

import "testing"

func TestResolve(t *testing.T) {
	t.Run("KnownFamilies", func(t *testing.T) {
		cases := map[string]struct {
			checkpoint string
			hidden     int
			tokenizer  TokenizerKind
		}{
			"distilbert": {"distilbert-base-uncased", 768, WordPiece},
			"albert":     {"albert-base-v2", 768, WordPiece},
			"bart":       {"facebook/bart-large", 1024, BytePair},
			"gpt2":       {"gpt2", 768, BytePair},
		}

		for family, want := range cases {
			b := Resolve(family)
			if b.Family != family {
				t.Errorf("Resolve(%q).Family = %q", family, b.Family)
			}
			if b.Checkpoint != want.checkpoint {
				t.Errorf("Resolve(%q).Checkpoint = %q, want %q", family, b.Checkpoint, want.checkpoint)
			}
			if b.HiddenSize != want.hidden {
				t.Errorf("Resolve(%q).HiddenSize = %d, want %d", family, b.HiddenSize, want.hidden)
			}
			if b.Tokenizer != want.tokenizer {
				t.Errorf("Resolve(%q).Tokenizer = %q, want %q", family, b.Tokenizer, want.tokenizer)
			}
		}
	})

	t.Run("UnknownFallsBackToDefault", func(t *testing.T) {
		for _, name := range []string{"", "t5", "roberta", "no-such-model"} {
			b := Resolve(name)
			if b.Family != DefaultFamily {
				t.Errorf("Resolve(%q).Family = %q, want %q", name, b.Family, DefaultFamily)
			}
		}
	})

	t.Run("ArtifactsComplete", func(t *testing.T) {
		for _, family := range Families() {
			b := Resolve(family)
			if b.ModelFile == "" || b.ClassifierFile == "" || b.VocabFile == "" {
				t.Errorf("binding %q has missing artifact names: %+v", family, b)
			}
			if b.Tokenizer == BytePair && b.MergesFile == "" {
				t.Errorf("byte-pair binding %q has no merges file", family)
			}
		}
	})
}

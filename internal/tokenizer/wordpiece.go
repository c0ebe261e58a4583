package tokenizer

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"
)

// BERT-style special tokens.
const (
	tokenPad  = "[PAD]"
	tokenUnk  = "[UNK]"
	tokenCls  = "[CLS]"
	tokenSep  = "[SEP]"
	tokenMask = "[MASK]"
)

// wordPiece is a greedy longest-match-first subword tokenizer over a vocab.txt
// file, as shipped by the distilbert and albert checkpoints.
type wordPiece struct {
	vocab     map[string]int64
	unkID     int64
	clsID     int64
	sepID     int64
	maxLength int
}

// loadWordPiece reads a vocab.txt file (one token per line, id = line number).
func loadWordPiece(vocabPath string, maxLength int) (*wordPiece, error) {
	file, err := os.Open(vocabPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open vocab file: %w", err)
	}
	defer file.Close()

	vocab := make(map[string]int64)
	scanner := bufio.NewScanner(file)
	var id int64
	for scanner.Scan() {
		token := strings.TrimRight(scanner.Text(), "\r\n")
		if token == "" {
			continue
		}
		vocab[token] = id
		id++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read vocab file: %w", err)
	}

	for _, required := range []string{tokenUnk, tokenCls, tokenSep} {
		if _, ok := vocab[required]; !ok {
			return nil, fmt.Errorf("vocab file %s is missing %s", vocabPath, required)
		}
	}

	return &wordPiece{
		vocab:     vocab,
		unkID:     vocab[tokenUnk],
		clsID:     vocab[tokenCls],
		sepID:     vocab[tokenSep],
		maxLength: maxLength,
	}, nil
}

// Encode tokenizes text into [CLS] subwords... [SEP]. Empty text yields the
// two special tokens only.
func (t *wordPiece) Encode(text string) []int64 {
	ids := []int64{t.clsID}

	for _, word := range splitWords(strings.ToLower(text)) {
		ids = append(ids, t.encodeWord(word)...)
		if t.maxLength > 0 && len(ids) >= t.maxLength-1 {
			ids = ids[:t.maxLength-1]
			break
		}
	}

	return append(ids, t.sepID)
}

// encodeWord applies greedy longest-match-first subword splitting. A word
// with any unmatchable remainder maps to a single [UNK].
func (t *wordPiece) encodeWord(word string) []int64 {
	var pieces []int64
	runes := []rune(word)
	start := 0

	for start < len(runes) {
		end := len(runes)
		var match string
		found := false
		for end > start {
			piece := string(runes[start:end])
			if start > 0 {
				piece = "##" + piece
			}
			if _, ok := t.vocab[piece]; ok {
				match = piece
				found = true
				break
			}
			end--
		}
		if !found {
			return []int64{t.unkID}
		}
		pieces = append(pieces, t.vocab[match])
		start = end
	}

	if len(pieces) == 0 {
		return []int64{t.unkID}
	}
	return pieces
}

// splitWords splits text on whitespace and isolates punctuation runes as
// standalone words, matching BERT basic tokenization.
func splitWords(text string) []string {
	var words []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			words = append(words, current.String())
			current.Reset()
		}
	}

	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			flush()
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			flush()
			words = append(words, string(r))
		default:
			current.WriteRune(r)
		}
	}
	flush()

	return words
}

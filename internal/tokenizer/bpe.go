package tokenizer

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

const endOfText = "<|endoftext|>"

// bytePair is a merge-rank BPE tokenizer over vocab.json + merges.txt, as
// shipped by the gpt2 and bart checkpoints. Spaces are folded into the
// following word as the Ġ marker, GPT-2 style.
type bytePair struct {
	vocab     map[string]int64
	ranks     map[[2]string]int
	eotID     int64
	hasEOT    bool
	maxLength int
}

func loadBytePair(vocabPath, mergesPath string, maxLength int) (*bytePair, error) {
	vocabData, err := os.ReadFile(vocabPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read vocab file: %w", err)
	}
	var vocab map[string]int64
	if err := json.Unmarshal(vocabData, &vocab); err != nil {
		return nil, fmt.Errorf("failed to parse vocab file %s: %w", vocabPath, err)
	}

	ranks, err := loadMerges(mergesPath)
	if err != nil {
		return nil, err
	}

	t := &bytePair{
		vocab:     vocab,
		ranks:     ranks,
		maxLength: maxLength,
	}
	if id, ok := vocab[endOfText]; ok {
		t.eotID = id
		t.hasEOT = true
	}
	return t, nil
}

// loadMerges reads merge pairs in priority order; line number is the rank.
func loadMerges(path string) (map[[2]string]int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open merges file: %w", err)
	}
	defer file.Close()

	ranks := make(map[[2]string]int)
	scanner := bufio.NewScanner(file)
	rank := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, " ", 2)
		if len(parts) != 2 {
			continue
		}
		ranks[[2]string{parts[0], parts[1]}] = rank
		rank++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read merges file: %w", err)
	}
	return ranks, nil
}

// Encode tokenizes text into BPE token ids. Empty or fully unmatchable text
// yields the end-of-text token so downstream pooling always has at least one
// hidden state to reduce.
func (t *bytePair) Encode(text string) []int64 {
	var ids []int64

	for i, word := range strings.Fields(text) {
		if i > 0 {
			word = "Ġ" + word // Ġ marks a preceding space
		}
		for _, token := range t.mergeWord(word) {
			if id, ok := t.vocab[token]; ok {
				ids = append(ids, id)
			}
			if t.maxLength > 0 && len(ids) >= t.maxLength {
				return ids
			}
		}
	}

	if len(ids) == 0 {
		if t.hasEOT {
			return []int64{t.eotID}
		}
		return []int64{0}
	}
	return ids
}

// mergeWord applies merges lowest-rank-first until no adjacent pair has a
// recorded rank.
func (t *bytePair) mergeWord(word string) []string {
	symbols := make([]string, 0, len(word))
	for _, r := range word {
		symbols = append(symbols, string(r))
	}

	for len(symbols) > 1 {
		bestRank := -1
		bestIdx := -1
		for i := 0; i < len(symbols)-1; i++ {
			if rank, ok := t.ranks[[2]string{symbols[i], symbols[i+1]}]; ok {
				if bestRank == -1 || rank < bestRank {
					bestRank = rank
					bestIdx = i
				}
			}
		}
		if bestIdx == -1 {
			break
		}
		merged := symbols[bestIdx] + symbols[bestIdx+1]
		symbols = append(symbols[:bestIdx], append([]string{merged}, symbols[bestIdx+2:]...)...)
	}

	return symbols
}

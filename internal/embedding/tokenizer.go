package embedding

import "strings"

// Tokenizer produces token IDs for BERT-style models (input_ids, attention_mask, token_type_ids).
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

const (
	tokenCLS   = 101
	tokenSEP   = 102
	vocabSize  = 30000
	vocabFloor = 1000
)

// SimpleTokenizer is a word-split tokenizer with hash-based token IDs. It keeps the ONNX
// input shape valid without shipping a vocabulary file.
type SimpleTokenizer struct{}

// Tokenize lower-cases text, splits it into words and produces [CLS] ids... [SEP]
// padded to maxTokens.
func (t *SimpleTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens <= 0 {
		maxTokens = 256
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)

	inputIDs[0] = tokenCLS
	attentionMask[0] = 1

	pos := 1
	for _, word := range strings.Fields(strings.ToLower(text)) {
		if pos >= maxTokens-1 {
			break
		}
		inputIDs[pos] = int64(vocabFloor + HashString(word)%(vocabSize-vocabFloor))
		attentionMask[pos] = 1
		pos++
	}
	if pos < maxTokens {
		inputIDs[pos] = tokenSEP
		attentionMask[pos] = 1
	}
	return inputIDs, attentionMask, tokenTypeIDs
}

// HashString returns a deterministic non-negative hash of s.
func HashString(s string) int {
	h := uint32(2166136261)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return int(h & 0x7fffffff)
}

//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"fmt"
	"sync"

	"github.com/hyperjump/finsum/internal/vector"
	ort "github.com/yalue/onnxruntime_go"
)

// ONNXEmbedder runs a local sentence-embedding model (e.g. bge-small-en) with ONNX Runtime.
// It requires CGO and the onnxruntime shared library. Inference is serialized because the
// session reuses one set of input and output tensors.
type ONNXEmbedder struct {
	session    *ort.AdvancedSession
	dimensions int
	maxTokens  int
	tokenizer  Tokenizer

	inputIDsTensor      *ort.Tensor[int64]
	attentionMaskTensor *ort.Tensor[int64]
	tokenTypeIDsTensor  *ort.Tensor[int64]
	outputTensor        *ort.Tensor[float32]
	mu                  sync.Mutex
}

// NewONNXEmbedder loads modelPath and prepares tensors for sequences of maxTokens tokens.
func NewONNXEmbedder(modelPath string, dimensions, maxTokens int) (*ONNXEmbedder, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("model_path is required for the onnx embedder")
	}
	if maxTokens <= 0 {
		maxTokens = 256
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}

	tokenizer := &SimpleTokenizer{}
	inputIDs, attentionMask, tokenTypeIDs := tokenizer.Tokenize("", maxTokens)
	shape := ort.NewShape(1, int64(maxTokens))

	var tensors []interface{ Destroy() error }
	cleanup := func() {
		for _, t := range tensors {
			_ = t.Destroy()
		}
	}

	inputIDsTensor, err := ort.NewTensor(shape, inputIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	tensors = append(tensors, inputIDsTensor)
	attentionMaskTensor, err := ort.NewTensor(shape, attentionMask)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	tensors = append(tensors, attentionMaskTensor)
	tokenTypeIDsTensor, err := ort.NewTensor(shape, tokenTypeIDs)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to create token_type_ids tensor: %w", err)
	}
	tensors = append(tensors, tokenTypeIDsTensor)
	outputTensor, err := ort.NewTensor(ort.NewShape(1, int64(dimensions)), make([]float32, dimensions))
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	tensors = append(tensors, outputTensor)

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"output"},
		[]ort.ArbitraryTensor{inputIDsTensor, attentionMaskTensor, tokenTypeIDsTensor},
		[]ort.ArbitraryTensor{outputTensor},
		nil,
	)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXEmbedder{
		session:             session,
		dimensions:          dimensions,
		maxTokens:           maxTokens,
		tokenizer:           tokenizer,
		inputIDsTensor:      inputIDsTensor,
		attentionMaskTensor: attentionMaskTensor,
		tokenTypeIDsTensor:  tokenTypeIDsTensor,
		outputTensor:        outputTensor,
	}, nil
}

// Embed runs the model on text and returns the normalized pooled output.
func (e *ONNXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	inputIDs, attentionMask, tokenTypeIDs := e.tokenizer.Tokenize(text, e.maxTokens)
	copy(e.inputIDsTensor.GetData(), inputIDs)
	copy(e.attentionMaskTensor.GetData(), attentionMask)
	copy(e.tokenTypeIDsTensor.GetData(), tokenTypeIDs)

	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	embedding := make([]float32, e.dimensions)
	copy(embedding, e.outputTensor.GetData())
	vector.Normalize(embedding)
	return embedding, nil
}

// EmbedBatch calls Embed for each text, stopping at the first error or cancellation.
func (e *ONNXEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *ONNXEmbedder) Dimensions() int {
	return e.dimensions
}

// Close destroys the session and tensors.
func (e *ONNXEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil
	}
	err := e.session.Destroy()
	e.session = nil
	for _, t := range []interface{ Destroy() error }{e.inputIDsTensor, e.attentionMaskTensor, e.tokenTypeIDsTensor, e.outputTensor} {
		_ = t.Destroy()
	}
	e.inputIDsTensor, e.attentionMaskTensor, e.tokenTypeIDsTensor, e.outputTensor = nil, nil, nil, nil
	return err
}

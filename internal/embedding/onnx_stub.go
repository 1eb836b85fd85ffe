//go:build !cgo
// +build !cgo

package embedding

import (
	"context"
	"errors"
)

var errNoCGO = errors.New("ONNX embedder requires CGO; build with CGO_ENABLED=1 and onnxruntime")

// ONNXEmbedder is unavailable without CGO; see onnx.go for the real implementation.
type ONNXEmbedder struct{}

// NewONNXEmbedder always fails when built without CGO.
func NewONNXEmbedder(_ string, _, _ int) (*ONNXEmbedder, error) {
	return nil, errNoCGO
}

func (e *ONNXEmbedder) Embed(context.Context, string) ([]float32, error)          { return nil, errNoCGO }
func (e *ONNXEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) { return nil, errNoCGO }
func (e *ONNXEmbedder) Dimensions() int                                           { return 0 }
func (e *ONNXEmbedder) Close() error                                              { return nil }

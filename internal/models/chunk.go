// Package models defines core data structures for filings, chunks, queries, and search results.
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Content types carried in ChunkMetadata.
const (
	ContentTypeText    = "text"
	ContentTypeTable   = "table"
	ContentTypeHeading = "heading"
)

// ChunkMetadata is the per-chunk context used at retrieval time.
type ChunkMetadata struct {
	Source      string `json:"source"`
	SectionPath string `json:"section_path"`
	ContentType string `json:"content_type"`
	Company     string `json:"company"`
}

// Chunk is a retrieval-unit passage ready for embedding and search.
// Chunks are values; nothing mutates them after NewChunk.
type Chunk struct {
	ChunkID   string        `json:"chunk_id"`
	Content   string        `json:"content"`
	Metadata  ChunkMetadata `json:"metadata"`
	Embedding []float32     `json:"-"`
}

// NewChunk builds a chunk whose ID is derived from company, section path and content,
// so identical content in the same company/section always gets the same ID.
func NewChunk(content string, meta ChunkMetadata) Chunk {
	return Chunk{
		ChunkID:  ChunkID(meta.Company, meta.SectionPath, content),
		Content:  content,
		Metadata: meta,
	}
}

// ChunkID returns "{company}_{sectionPath}_{hash}" where hash is ContentHash(content).
func ChunkID(company, sectionPath, content string) string {
	return fmt.Sprintf("%s_%s_%s", company, sectionPath, ContentHash(content))
}

// ContentHash returns the first 16 hex characters of the SHA-256 of text.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:16]
}

// Package storage caches acquired filing sections so they can be summarized without
// fetching them again.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/hyperjump/finsum/internal/models"
)

// ErrNotFound is returned when a filing or section is not stored.
var ErrNotFound = errors.New("not found")

// SectionInfo describes a stored section without its content.
type SectionInfo struct {
	Ticker    string    `json:"ticker"`
	Item      string    `json:"item"`
	Title     string    `json:"title"`
	CharCount int       `json:"char_count"`
	WordCount int       `json:"word_count"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SectionStore persists filings and their item sections.
type SectionStore interface {
	// Filing operations
	SaveFiling(ctx context.Context, filing *models.Filing) error
	GetFiling(ctx context.Context, ticker string) (*models.Filing, error)
	DeleteFiling(ctx context.Context, ticker string) error
	ListTickers(ctx context.Context) ([]string, error)

	// Section operations
	SaveSection(ctx context.Context, ticker string, section *models.Section) error
	GetSection(ctx context.Context, ticker, item string) (*models.Section, error)
	ListSections(ctx context.Context, ticker string) ([]SectionInfo, error)

	// Stats
	CountSections(ctx context.Context) (int64, error)

	Close() error
}

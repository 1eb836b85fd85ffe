package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyperjump/finsum/internal/models"
)

func newMemoryStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(MemoryPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStorage_FilingRoundTrip(t *testing.T) {
	store := newMemoryStorage(t)
	ctx := context.Background()

	f := models.NewFiling("aapl")
	f.Accession = "0000320193-24-000123"
	f.FilingDate = "2024-11-01"
	f.AddSection(models.NewSection("item1a", "Risk Factors", "Supply chain risk."))
	f.AddSection(models.NewSection("item7", "MD&A", "Revenue grew."))
	if err := store.SaveFiling(ctx, f); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetFiling(ctx, "AAPL")
	if err != nil {
		t.Fatal(err)
	}
	if got.Accession != f.Accession || got.FilingDate != f.FilingDate {
		t.Errorf("filing fields = %+v", got)
	}
	if items := got.AvailableItems(); len(items) != 2 || items[0] != "item1a" || items[1] != "item7" {
		t.Errorf("items = %v", items)
	}
	sec := got.Sections["item1a"]
	if sec.Content != "Supply chain risk." || sec.WordCount != 3 || sec.CharCount != 18 {
		t.Errorf("section = %+v", sec)
	}
}

func TestSQLiteStorage_SaveSectionUpserts(t *testing.T) {
	store := newMemoryStorage(t)
	ctx := context.Background()

	if err := store.SaveSection(ctx, "msft", models.NewSection("item7", "MD&A", "first")); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveSection(ctx, "MSFT", models.NewSection("item7", "MD&A", "second version")); err != nil {
		t.Fatal(err)
	}
	sec, err := store.GetSection(ctx, "MSFT", "7")
	if err != nil {
		t.Fatal(err)
	}
	if sec.Content != "second version" {
		t.Errorf("expected replaced content, got %q", sec.Content)
	}
	n, err := store.CountSections(ctx)
	if err != nil || n != 1 {
		t.Errorf("CountSections = %d, %v", n, err)
	}
	tickers, err := store.ListTickers(ctx)
	if err != nil || len(tickers) != 1 || tickers[0] != "MSFT" {
		t.Errorf("ListTickers = %v, %v", tickers, err)
	}
}

func TestSQLiteStorage_NotFound(t *testing.T) {
	store := newMemoryStorage(t)
	ctx := context.Background()

	if _, err := store.GetSection(ctx, "AAPL", "item1a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSection: expected ErrNotFound, got %v", err)
	}
	if _, err := store.GetFiling(ctx, "AAPL"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetFiling: expected ErrNotFound, got %v", err)
	}
	if err := store.DeleteFiling(ctx, "AAPL"); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteFiling: expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStorage_ListAndDelete(t *testing.T) {
	store := newMemoryStorage(t)
	ctx := context.Background()

	for _, in := range []struct{ ticker, item string }{{"AAPL", "item1a"}, {"AAPL", "item7"}, {"MSFT", "item1"}} {
		if err := store.SaveSection(ctx, in.ticker, models.NewSection(in.item, models.ItemTitle(in.item), "text for "+in.item)); err != nil {
			t.Fatal(err)
		}
	}
	all, err := store.ListSections(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].Ticker != "AAPL" || all[2].Ticker != "MSFT" {
		t.Errorf("ListSections(all) = %+v", all)
	}
	if all[0].Title != "Risk Factors" || all[0].UpdatedAt.IsZero() {
		t.Errorf("unexpected info %+v", all[0])
	}
	aapl, err := store.ListSections(ctx, "aapl")
	if err != nil || len(aapl) != 2 {
		t.Errorf("ListSections(aapl) = %+v, %v", aapl, err)
	}

	if err := store.DeleteFiling(ctx, "AAPL"); err != nil {
		t.Fatal(err)
	}
	n, _ := store.CountSections(ctx)
	if n != 1 {
		t.Errorf("expected 1 section left, got %d", n)
	}
}

func TestNewSQLiteStorage_createsDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "filings.db")
	store, err := NewSQLiteStorage(path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if err := store.SaveSection(context.Background(), "AAPL", models.NewSection("item1", "Business", "We make phones.")); err != nil {
		t.Fatal(err)
	}
}

package fileid

import (
	"path/filepath"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		path   string
		ticker string
		item   string
	}{
		{"/data/AAPL/item1a.htm", "AAPL", "item1a"},
		{"/data/aapl/Item7.txt", "AAPL", "item7"},
		{"/data/MSFT/1A.pdf", "MSFT", "item1a"},
		{"/data/MSFT/item_7a.docx", "MSFT", "item7a"},
		{"AAPL_item7.txt", "AAPL", "item7"},
		{"/x/msft-10k-1a.html", "MSFT", "item1a"},
		{"/x/BRK.B_10-K_item8.xlsx", "BRK.B", "item8"},
		{"/x/goog_1.md", "GOOG", "item1"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := Parse(tt.path)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if got.Ticker != tt.ticker || got.Item != tt.item {
				t.Errorf("got (%s, %s), want (%s, %s)", got.Ticker, got.Item, tt.ticker, tt.item)
			}
			if got.Path != filepath.Clean(tt.path) {
				t.Errorf("Path = %q", got.Path)
			}
		})
	}
}

func TestParse_rejects(t *testing.T) {
	for _, path := range []string{
		"/data/notes.txt",
		"/data/AAPL/item99.htm",
		"/data/2024/item7.txt",
		"/data/AAPL/summary.htm",
		"AAPL_item15.txt",
		"/data/2024/item_7a.txt",
	} {
		if got, err := Parse(path); err == nil {
			t.Errorf("Parse(%q) = %+v, want error", path, got)
		}
	}
}

func TestSectionFile_Source(t *testing.T) {
	f, err := Parse("/data/AAPL/item1a.htm")
	if err != nil {
		t.Fatal(err)
	}
	if f.Source() != "AAPL_10K_item1a" {
		t.Errorf("Source = %q", f.Source())
	}
}

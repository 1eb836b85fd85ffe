package models

import (
	"strings"
	"testing"
)

func TestNormalizeItem(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"1a", "item1a"},
		{"1A", "item1a"},
		{"item7", "item7"},
		{"Item 7A", "item7a"},
		{"  7 ", "item7"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeItem(tt.in); got != tt.want {
			t.Errorf("NormalizeItem(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewSection_Counts(t *testing.T) {
	s := NewSection("item1a", "Risk Factors", "We face risks — many.")
	if s.WordCount != 5 {
		t.Errorf("WordCount = %d, want 5", s.WordCount)
	}
	if s.CharCount != 21 {
		t.Errorf("CharCount = %d, want 21", s.CharCount)
	}
}

func TestFiling_Sections(t *testing.T) {
	f := NewFiling("aapl")
	if f.Ticker != "AAPL" {
		t.Errorf("ticker = %s", f.Ticker)
	}
	f.AddSection(NewSection("item7", ItemTitle("item7"), "Revenue grew."))
	f.AddSection(NewSection("item1a", ItemTitle("item1a"), "We face risks."))

	items := f.AvailableItems()
	if len(items) != 2 || items[0] != "item1a" || items[1] != "item7" {
		t.Errorf("AvailableItems = %v", items)
	}
	text, ok := f.SectionText("1A")
	if !ok || text != "We face risks." {
		t.Errorf("SectionText(1A) = %q, %v", text, ok)
	}
	if _, ok := f.SectionText("9"); ok {
		t.Error("missing item should not be found")
	}
	all := f.AllText("1a")
	if !strings.HasPrefix(all, "## ITEM1A: Risk Factors\n\n") {
		t.Errorf("AllText header: %q", all)
	}
	if f.TotalWords() != 5 {
		t.Errorf("TotalWords = %d", f.TotalWords())
	}
	if f.TotalChars() != len("Revenue grew.")+len("We face risks.") {
		t.Errorf("TotalChars = %d", f.TotalChars())
	}
}

func TestSourceID(t *testing.T) {
	if got := SourceID("msft", "item7"); got != "MSFT_10K_item7" {
		t.Errorf("SourceID = %s", got)
	}
}

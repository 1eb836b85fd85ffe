package models

import (
	"fmt"
	"sort"
	"strings"
)

// TenKItems maps normalized 10-K item keys to their standard titles.
var TenKItems = map[string]string{
	"item1":  "Business",
	"item1a": "Risk Factors",
	"item1b": "Unresolved Staff Comments",
	"item1c": "Cybersecurity",
	"item2":  "Properties",
	"item3":  "Legal Proceedings",
	"item4":  "Mine Safety Disclosures",
	"item5":  "Market for Registrant's Common Equity",
	"item6":  "Reserved",
	"item7":  "Management's Discussion and Analysis",
	"item7a": "Quantitative and Qualitative Disclosures About Market Risk",
	"item8":  "Financial Statements and Supplementary Data",
	"item9":  "Changes in and Disagreements with Accountants",
	"item9a": "Controls and Procedures",
	"item9b": "Other Information",
	"item9c": "Disclosure Regarding Foreign Jurisdictions that Prevent Inspections",
	"item10": "Directors, Executive Officers and Corporate Governance",
	"item11": "Executive Compensation",
	"item12": "Security Ownership of Certain Beneficial Owners",
	"item13": "Certain Relationships and Related Transactions",
	"item14": "Principal Accountant Fees and Services",
}

// NormalizeItem turns user input like "1A", "item7" or "Item 7" into the item key form "item1a".
func NormalizeItem(item string) string {
	key := strings.ToLower(strings.TrimSpace(item))
	key = strings.ReplaceAll(key, " ", "")
	if key == "" {
		return ""
	}
	if !strings.HasPrefix(key, "item") {
		key = "item" + key
	}
	return key
}

// ItemTitle returns the standard title for an item key, or the upper-cased key when unknown.
func ItemTitle(item string) string {
	if title, ok := TenKItems[item]; ok {
		return title
	}
	return strings.ToUpper(item)
}

// Section is the text of a single filing item. Counts are computed once by NewSection.
type Section struct {
	Item      string `json:"item"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	CharCount int    `json:"char_count"`
	WordCount int    `json:"word_count"`
}

// NewSection builds a Section and derives its character and word counts.
func NewSection(item, title, content string) *Section {
	return &Section{
		Item:      item,
		Title:     title,
		Content:   content,
		CharCount: len([]rune(content)),
		WordCount: len(strings.Fields(content)),
	}
}

// Filing is a single annual report with its extracted item sections.
type Filing struct {
	Ticker     string              `json:"ticker"`
	Accession  string              `json:"accession,omitempty"`
	FilingDate string              `json:"filing_date,omitempty"`
	SECURL     string              `json:"sec_url,omitempty"`
	Sections   map[string]*Section `json:"sections"`
}

// NewFiling returns an empty filing for ticker (upper-cased).
func NewFiling(ticker string) *Filing {
	return &Filing{
		Ticker:   strings.ToUpper(ticker),
		Sections: make(map[string]*Section),
	}
}

// AddSection stores s under its item key, replacing any previous content.
func (f *Filing) AddSection(s *Section) {
	f.Sections[s.Item] = s
}

// AvailableItems returns the item keys with content, sorted.
func (f *Filing) AvailableItems() []string {
	items := make([]string, 0, len(f.Sections))
	for k := range f.Sections {
		items = append(items, k)
	}
	sort.Strings(items)
	return items
}

// SectionText returns the content for item, accepting any form NormalizeItem understands.
func (f *Filing) SectionText(item string) (string, bool) {
	s, ok := f.Sections[NormalizeItem(item)]
	if !ok {
		return "", false
	}
	return s.Content, true
}

// AllText joins the given items (all available items when empty), each under a
// "## ITEM1A: Risk Factors" style header.
func (f *Filing) AllText(items ...string) string {
	if len(items) == 0 {
		items = f.AvailableItems()
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := f.Sections[NormalizeItem(item)]
		if !ok {
			continue
		}
		parts = append(parts, fmt.Sprintf("## %s: %s\n\n%s", strings.ToUpper(s.Item), s.Title, s.Content))
	}
	return strings.Join(parts, "\n\n")
}

// TotalChars returns the sum of section character counts.
func (f *Filing) TotalChars() int {
	n := 0
	for _, s := range f.Sections {
		n += s.CharCount
	}
	return n
}

// TotalWords returns the sum of section word counts.
func (f *Filing) TotalWords() int {
	n := 0
	for _, s := range f.Sections {
		n += s.WordCount
	}
	return n
}

// SourceID is the chunk source label for a filing section, e.g. "AAPL_10K_item1a".
func SourceID(ticker, item string) string {
	return fmt.Sprintf("%s_10K_%s", strings.ToUpper(ticker), item)
}

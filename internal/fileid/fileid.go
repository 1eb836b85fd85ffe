// Package fileid maps filing section files to the (ticker, item) they hold. Two layouts are
// recognized: a ticker directory holding item files ("AAPL/item1a.htm") and a flat file name
// joining both ("AAPL_item7.txt", "MSFT-10K-1A.pdf").
package fileid

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/hyperjump/finsum/internal/models"
)

// SectionFile identifies the filing section stored in a file.
type SectionFile struct {
	Path   string `json:"path"`
	Ticker string `json:"ticker"`
	Item   string `json:"item"`
}

// Source returns the chunk source label of the section, e.g. "AAPL_10K_item1a".
func (f SectionFile) Source() string {
	return models.SourceID(f.Ticker, f.Item)
}

var (
	tickerRe   = regexp.MustCompile(`^[A-Za-z][A-Za-z.]{0,9}$`)
	itemOnlyRe = regexp.MustCompile(`(?i)^(?:item[ _-]?)?(\d{1,2}[a-c]?)$`)
	flatRe     = regexp.MustCompile(`(?i)^([a-z][a-z.]{0,9})[ _-](?:10-?k[ _-])?(?:item[ _-]?)?(\d{1,2}[a-c]?)$`)
)

// Parse extracts ticker and item from path. Items must be known 10-K items.
func Parse(path string) (SectionFile, error) {
	clean := filepath.Clean(path)
	base := strings.TrimSuffix(filepath.Base(clean), filepath.Ext(clean))

	if m := itemOnlyRe.FindStringSubmatch(base); m != nil {
		dir := filepath.Base(filepath.Dir(clean))
		if tickerRe.MatchString(dir) {
			return newSectionFile(clean, dir, m[1])
		}
	}
	if m := flatRe.FindStringSubmatch(base); m != nil && !strings.EqualFold(m[1], "item") {
		return newSectionFile(clean, m[1], m[2])
	}
	return SectionFile{}, fmt.Errorf("%s: file name does not identify a ticker and 10-K item", path)
}

func newSectionFile(path, ticker, item string) (SectionFile, error) {
	key := models.NormalizeItem(item)
	if _, ok := models.TenKItems[key]; !ok {
		return SectionFile{}, fmt.Errorf("%s: unknown 10-K item %q", path, item)
	}
	return SectionFile{Path: path, Ticker: strings.ToUpper(ticker), Item: key}, nil
}

package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// extractExcel renders every sheet as its name followed by a pipe table of its non-empty rows.
func extractExcel(content []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	var blocks []string
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("get rows for sheet %q: %w", sheet, err)
		}
		var lines []string
		for _, row := range rows {
			cells := make([]string, 0, len(row))
			empty := true
			for _, c := range row {
				c = strings.ReplaceAll(strings.TrimSpace(c), "|", "/")
				if c != "" {
					empty = false
				}
				cells = append(cells, c)
			}
			if empty {
				continue
			}
			lines = append(lines, pipeRow(cells))
		}
		if len(lines) == 0 {
			continue
		}
		blocks = append(blocks, sheet, strings.Join(lines, "\n"))
	}
	return strings.Join(blocks, "\n\n"), nil
}

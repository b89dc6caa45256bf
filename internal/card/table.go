package card

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// Columns aligns rows into space-separated columns by display width, so
// wide runes in names keep the table straight. The last column is not padded.
func Columns(rows [][]string) []string {
	var widths []int

	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				widths = append(widths, 0)
			}

			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	out := make([]string, 0, len(rows))

	for _, row := range rows {
		cells := make([]string, len(row))

		for i, cell := range row {
			if i == len(row)-1 {
				cells[i] = cell
				continue
			}

			cells[i] = runewidth.FillRight(cell, widths[i])
		}

		out = append(out, strings.TrimRight(strings.Join(cells, "  "), " "))
	}

	return out
}

package inspector

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dshills/auxlab/internal/engine"
)

const (
	// BytesPerRow is the width of a hex dump row.
	BytesPerRow = 16
	// MaxTableRows caps the rows a signal table renders.
	MaxTableRows = 5000
)

// HexDump renders data as rows of 16 bytes: an upper-case offset, the hex
// bytes and a printable ASCII gutter.
//
//	00000000: 41 42 43                                        | ABC
func HexDump(data []byte) string {
	rows := make([]string, 0, (len(data)+BytesPerRow-1)/BytesPerRow)
	for off := 0; off < len(data); off += BytesPerRow {
		end := min(off+BytesPerRow, len(data))
		chunk := data[off:end]

		var b strings.Builder
		fmt.Fprintf(&b, "%08X: ", off)
		for i := 0; i < BytesPerRow; i++ {
			if i < len(chunk) {
				fmt.Fprintf(&b, "%02X ", chunk[i])
			} else {
				b.WriteString("   ")
			}
		}
		b.WriteString(" | ")
		for _, c := range chunk {
			if c >= 32 && c <= 126 {
				b.WriteByte(c)
			} else {
				b.WriteByte('.')
			}
		}
		rows = append(rows, b.String())
	}
	return strings.Join(rows, "\n")
}

// TableCells lays a signal out as rows: an index column followed by one
// column per channel. Shorter channels leave their cells empty. At most
// MaxTableRows rows are produced.
func TableCells(sig engine.Signal) (header []string, rows [][]string) {
	if len(sig.Channels) == 0 {
		return nil, nil
	}

	header = make([]string, 0, len(sig.Channels)+1)
	header = append(header, "Index")
	longest := 0
	for i, ch := range sig.Channels {
		header = append(header, "Ch"+strconv.Itoa(i+1))
		longest = max(longest, len(ch.Samples))
	}

	n := min(longest, MaxTableRows)
	rows = make([][]string, n)
	for r := 0; r < n; r++ {
		row := make([]string, 0, len(header))
		row = append(row, strconv.Itoa(r))
		for _, ch := range sig.Channels {
			if r < len(ch.Samples) {
				row = append(row, strconv.FormatFloat(ch.Samples[r], 'g', 8, 64))
			} else {
				row = append(row, "")
			}
		}
		rows[r] = row
	}
	return header, rows
}

// Table renders the signal table as aligned text columns.
func Table(sig engine.Signal) string {
	header, rows := TableCells(sig)
	if header == nil {
		return ""
	}

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], Width(cell))
		}
	}

	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, joinRow(header, widths))
	for _, row := range rows {
		lines = append(lines, joinRow(row, widths))
	}
	return strings.Join(lines, "\n")
}

func joinRow(cells []string, widths []int) string {
	var b strings.Builder
	for i, cell := range cells {
		if i > 0 {
			b.WriteString("  ")
		}
		b.WriteString(Pad(cell, widths[i]))
	}
	return strings.TrimRight(b.String(), " ")
}

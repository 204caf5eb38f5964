package report

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/dustin/go-humanize"
)

// Printer renders Arrow records as ASCII tables.
type Printer struct {
	maxRows int
	writer  io.Writer
}

// NewPrinter creates a printer. maxRows <= 0 prints every row.
func NewPrinter(w io.Writer, maxRows int) *Printer {
	return &Printer{maxRows: maxRows, writer: w}
}

// Print writes a titled table for rec.
func (p *Printer) Print(title string, rec arrow.Record) {
	schema := rec.Schema()
	numCols := schema.NumFields()
	numRows := int(rec.NumRows())
	if p.maxRows > 0 && numRows > p.maxRows {
		numRows = p.maxRows
	}

	widths := make([]int, numCols)
	for i := 0; i < numCols; i++ {
		widths[i] = utf8.RuneCountInString(schema.Field(i).Name)
	}
	for row := 0; row < numRows; row++ {
		for col := 0; col < numCols; col++ {
			if n := utf8.RuneCountInString(formatValue(rec.Column(col), row)); n > widths[col] {
				widths[col] = n
			}
		}
	}

	if title != "" {
		fmt.Fprintln(p.writer, title)
	}
	header := make([]string, numCols)
	for i := range header {
		header[i] = schema.Field(i).Name
	}
	p.printCells(header, widths)
	p.printSeparator(widths)

	cells := make([]string, numCols)
	for row := 0; row < numRows; row++ {
		for col := 0; col < numCols; col++ {
			cells[col] = formatValue(rec.Column(col), row)
		}
		p.printCells(cells, widths)
	}

	if int(rec.NumRows()) > numRows {
		fmt.Fprintf(p.writer, "... (%d more rows)\n", int(rec.NumRows())-numRows)
	}
	fmt.Fprintln(p.writer)
}

func (p *Printer) printCells(cells []string, widths []int) {
	var sb strings.Builder
	sb.WriteString("| ")
	for i, c := range cells {
		if i > 0 {
			sb.WriteString(" | ")
		}
		sb.WriteString(padRight(c, widths[i]))
	}
	sb.WriteString(" |")
	fmt.Fprintln(p.writer, sb.String())
}

func (p *Printer) printSeparator(widths []int) {
	var sb strings.Builder
	sb.WriteString("|-")
	for i, w := range widths {
		if i > 0 {
			sb.WriteString("-|-")
		}
		sb.WriteString(strings.Repeat("-", w))
	}
	sb.WriteString("-|")
	fmt.Fprintln(p.writer, sb.String())
}

func formatValue(arr arrow.Array, row int) string {
	if arr.IsNull(row) {
		return ""
	}
	switch a := arr.(type) {
	case *array.Int64:
		return humanize.Comma(a.Value(row))
	case *array.Float64:
		return fmt.Sprintf("%.3f", a.Value(row))
	case *array.String:
		return a.Value(row)
	case *array.Boolean:
		if a.Value(row) {
			return "yes"
		}
		return "no"
	default:
		return "?"
	}
}

func padRight(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}

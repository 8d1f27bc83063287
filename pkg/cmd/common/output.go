// Package common holds small helpers shared across auditorctl's
// subcommands, grounded on the teacher's pkg/cmd/common package. Its
// Kubernetes table-printer plumbing (genericclioptions, k8s.io/cli-runtime's
// printers.ResourcePrinter against a metav1.Table) has no analogue here —
// AUDITOR has no typed Kubernetes resource to print — so PrintTable is
// rebuilt directly on text/tabwriter against plain column/row data instead.
package common

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"golang.org/x/term"
)

// Table is a plain column/row result set ready for printing.
type Table struct {
	Columns []string
	Rows    [][]string
}

// TablePrinter writes Tables to an output stream.
type TablePrinter struct {
	Out       io.Writer
	NoHeaders bool
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(out io.Writer, noHeaders bool) *TablePrinter {
	return &TablePrinter{Out: out, NoHeaders: noHeaders}
}

// PrintTable renders t as whitespace-aligned columns.
func (p *TablePrinter) PrintTable(t Table) error {
	w := tabwriter.NewWriter(p.Out, 0, 4, 2, ' ', 0)

	if !p.NoHeaders {
		fmt.Fprintln(w, strings.Join(t.Columns, "\t"))
	}
	for _, row := range t.Rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	return w.Flush()
}

// PrintPaginationInfo prints a hint to errOut when the result count reached
// the requested limit, suggesting the store may hold more rows.
func (p *TablePrinter) PrintPaginationInfo(errOut io.Writer, resultCount, limit int) {
	if limit > 0 && resultCount >= limit {
		fmt.Fprintf(errOut, "\n%d results shown; the store may hold more. Raise --limit to see additional rows.\n", resultCount)
	}
}

// SupportsColor reports whether out is an interactive terminal that should
// receive ANSI color codes.
func SupportsColor(out *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return term.IsTerminal(int(out.Fd()))
}

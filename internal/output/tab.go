// Package output writes per-sample matrices as gzip-compressed TSV files.
package output

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// IndexLabel is the header of the row-name column.
const IndexLabel = "GENE"

// TabWriter writes a labelled matrix in tab-delimited format.
type TabWriter struct {
	w       *bufio.Writer
	columns []string
}

// NewTabWriter creates a new tab-delimited writer for the given value columns.
func NewTabWriter(w io.Writer, columns []string) *TabWriter {
	return &TabWriter{
		w:       bufio.NewWriter(w),
		columns: append([]string{IndexLabel}, columns...),
	}
}

// WriteHeader writes the header line.
func (tw *TabWriter) WriteHeader() error {
	_, err := tw.w.WriteString(strings.Join(tw.columns, "\t") + "\n")
	return err
}

// Write writes a single row.
func (tw *TabWriter) Write(name string, values []float64) error {
	if len(values) != len(tw.columns)-1 {
		return fmt.Errorf("row %s has %d values, header has %d", name, len(values), len(tw.columns)-1)
	}

	fields := make([]string, 0, len(tw.columns))
	fields = append(fields, name)
	for _, v := range values {
		fields = append(fields, strconv.FormatFloat(v, 'g', -1, 64))
	}

	_, err := tw.w.WriteString(strings.Join(fields, "\t") + "\n")
	return err
}

// WriteMatrix writes the header followed by one row per name.
func (tw *TabWriter) WriteMatrix(rows []string, m mat.Matrix) error {
	r, _ := m.Dims()
	if r != len(rows) {
		return fmt.Errorf("matrix has %d rows, %d names given", r, len(rows))
	}
	if err := tw.WriteHeader(); err != nil {
		return err
	}
	for i, name := range rows {
		if err := tw.Write(name, mat.Row(nil, i, m)); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes any buffered data to the underlying writer.
func (tw *TabWriter) Flush() error {
	return tw.w.Flush()
}

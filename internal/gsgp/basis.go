// Package gsgp turns per-sample annotated SNVs into gene-by-class matrices
// and projects them onto a fixed mutational-signature basis.
package gsgp

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/pgzip"
	"gonum.org/v1/gonum/mat"

	"github.com/inodb/vibe-gsgp/internal/mutation"
)

// Basis is a fixed signature basis. H has one row per signature and one
// column per mutation class, in Classes order.
type Basis struct {
	Signatures []string
	Classes    []string
	H          *mat.Dense
}

// BasisFile returns the file name of the COSMIC basis for a genome build.
func BasisFile(genome string) string {
	return "COSMIC_v3.2_SBS_" + genome + ".txt"
}

// LoadBasis reads a tab-delimited basis file. Either axis may carry the
// mutation classes; the other carries the signature names.
func LoadBasis(path string) (*Basis, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open basis: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip basis: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	b, err := ReadBasis(r)
	if err != nil {
		return nil, fmt.Errorf("read basis %s: %w", path, err)
	}
	return b, nil
}

// ReadBasis parses a basis table from r.
func ReadBasis(r io.Reader) (*Basis, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 16*1024*1024)

	var header []string
	var rowNames []string
	var values [][]float64
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if header == nil {
			header = fields
			continue
		}
		if len(fields) != len(header) {
			return nil, fmt.Errorf("line %d: expected %d fields, got %d", lineNum, len(header), len(fields))
		}
		row := make([]float64, len(fields)-1)
		for i, s := range fields[1:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid value %q", lineNum, s)
			}
			if v < 0 {
				return nil, fmt.Errorf("line %d: negative value %q", lineNum, s)
			}
			row[i] = v
		}
		rowNames = append(rowNames, fields[0])
		values = append(values, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(header) < 2 || len(values) == 0 {
		return nil, fmt.Errorf("basis table is empty")
	}

	colNames := header[1:]
	switch {
	case allClasses(rowNames):
		// rows are classes: H is the transpose of the table
		h := mat.NewDense(len(colNames), len(rowNames), nil)
		for i, row := range values {
			for j, v := range row {
				h.Set(j, i, v)
			}
		}
		return newBasis(colNames, rowNames, h)
	case allClasses(colNames):
		h := mat.NewDense(len(rowNames), len(colNames), nil)
		for i, row := range values {
			h.SetRow(i, row)
		}
		return newBasis(rowNames, colNames, h)
	default:
		return nil, fmt.Errorf("neither rows nor columns are mutation classes")
	}
}

func newBasis(signatures, classes []string, h *mat.Dense) (*Basis, error) {
	seen := make(map[string]bool, len(classes))
	for _, c := range classes {
		if seen[c] {
			return nil, fmt.Errorf("duplicate mutation class %s", c)
		}
		seen[c] = true
	}
	return &Basis{
		Signatures: append([]string(nil), signatures...),
		Classes:    append([]string(nil), classes...),
		H:          h,
	}, nil
}

func allClasses(labels []string) bool {
	if len(labels) == 0 {
		return false
	}
	for _, l := range labels {
		if !mutation.IsClass(l) {
			return false
		}
	}
	return true
}

// NumSignatures returns the number of components of the basis.
func (b *Basis) NumSignatures() int {
	return len(b.Signatures)
}

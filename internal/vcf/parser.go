// Package vcf provides VCF file parsing functionality.
package vcf

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/pgzip"
)

// Required columns of the #CHROM header line.
const (
	ColChrom  = "#CHROM"
	ColPos    = "POS"
	ColID     = "ID"
	ColRef    = "REF"
	ColAlt    = "ALT"
	ColFormat = "FORMAT"
)

// Parser reads variants from a VCF file.
type Parser struct {
	reader      *bufio.Reader
	file        *os.File
	gzipReader  *pgzip.Reader
	lineNumber  int
	header      []string
	columns     map[string]int // column name -> index from the #CHROM line
	sampleNames []string       // sample names after the FORMAT column
}

// NewParser creates a new VCF parser for the given file.
// Supports both plain VCF and gzipped VCF (.vcf.gz) files.
func NewParser(path string) (*Parser, error) {
	if path == "-" {
		return NewParserFromReader(os.Stdin)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vcf file: %w", err)
	}

	p := &Parser{file: file}

	// Check for gzip magic bytes
	buf := make([]byte, 2)
	n, err := io.ReadFull(file, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		file.Close()
		return nil, fmt.Errorf("read vcf header: %w", err)
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		file.Close()
		return nil, fmt.Errorf("seek vcf file: %w", err)
	}

	// Check for gzip magic number (0x1f, 0x8b)
	if n == 2 && buf[0] == 0x1f && buf[1] == 0x8b {
		p.gzipReader, err = pgzip.NewReader(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		p.reader = bufio.NewReaderSize(p.gzipReader, 1<<20)
	} else {
		p.reader = bufio.NewReaderSize(file, 1<<20)
	}

	if err := p.parseHeader(); err != nil {
		p.Close()
		return nil, err
	}

	return p, nil
}

// NewParserFromReader creates a parser from an io.Reader (e.g., stdin).
func NewParserFromReader(r io.Reader) (*Parser, error) {
	p := &Parser{
		reader: bufio.NewReader(r),
	}

	if err := p.parseHeader(); err != nil {
		return nil, err
	}

	return p, nil
}

// parseHeader reads meta lines up to and including the #CHROM line.
func (p *Parser) parseHeader() error {
	for {
		line, err := p.reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("read header: %w", err)
		}
		p.lineNumber++

		line = strings.TrimRight(line, "\r\n")

		if strings.HasPrefix(line, "##") {
			p.header = append(p.header, line)
			continue
		}

		if strings.HasPrefix(line, ColChrom) {
			p.header = append(p.header, line)
			return p.parseColumns(line)
		}

		// Non-header line encountered without #CHROM
		return &ParseError{
			Line:    p.lineNumber,
			Message: "expected #CHROM header line",
		}
	}

	return &ParseError{
		Line:    p.lineNumber,
		Message: "no #CHROM header line found",
	}
}

// parseColumns builds the column-name mapping from the #CHROM line.
func (p *Parser) parseColumns(line string) error {
	fields := strings.Split(line, "\t")
	p.columns = make(map[string]int, len(fields))
	for i, name := range fields {
		if _, dup := p.columns[name]; !dup {
			p.columns[name] = i
		}
	}

	for _, required := range []string{ColChrom, ColPos, ColRef, ColAlt, ColFormat} {
		if _, ok := p.columns[required]; !ok {
			return &ParseError{
				Line:    p.lineNumber,
				Message: fmt.Sprintf("missing required column %s", required),
			}
		}
	}

	p.sampleNames = fields[p.columns[ColFormat]+1:]
	return nil
}

// Next reads the next variant from the VCF file.
// Returns nil, nil when there are no more variants. A *ParseError means
// the current record was malformed; the parser can continue with the next one.
func (p *Parser) Next() (*Variant, error) {
	for {
		line, err := p.reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			if err == io.EOF {
				return nil, nil
			}
			return nil, fmt.Errorf("read variant line: %w", err)
		}
		p.lineNumber++

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}

		return p.parseLine(line)
	}
}

// parseLine parses a single VCF data line into a Variant.
func (p *Parser) parseLine(line string) (*Variant, error) {
	fields := strings.Split(line, "\t")
	if len(fields) != p.columnCount() {
		return nil, &ParseError{
			Line:    p.lineNumber,
			Message: fmt.Sprintf("expected %d columns, found %d", p.columnCount(), len(fields)),
		}
	}

	posField := fields[p.columns[ColPos]]
	pos, err := strconv.ParseInt(posField, 10, 64)
	if err != nil {
		return nil, &ParseError{
			Line:    p.lineNumber,
			Message: fmt.Sprintf("invalid position: %s", posField),
		}
	}

	formatIdx := p.columns[ColFormat]
	v := &Variant{
		Chrom:   fields[p.columns[ColChrom]],
		Pos:     pos,
		Ref:     fields[p.columns[ColRef]],
		Alt:     fields[p.columns[ColAlt]],
		Format:  strings.Split(fields[formatIdx], ":"),
		Samples: fields[formatIdx+1:],
	}
	if i, ok := p.columns[ColID]; ok {
		v.ID = fields[i]
	}

	return v, nil
}

// columnCount returns the number of columns on the #CHROM line.
func (p *Parser) columnCount() int {
	return p.columns[ColFormat] + 1 + len(p.sampleNames)
}

// SampleNames returns sample names from the #CHROM header line.
// Returns nil if no sample columns are present.
func (p *Parser) SampleNames() []string {
	return p.sampleNames
}

// LineNumber returns the current line number being processed.
func (p *Parser) LineNumber() int {
	return p.lineNumber
}

// Close closes the parser and underlying file.
func (p *Parser) Close() error {
	if p.gzipReader != nil {
		p.gzipReader.Close()
	}
	if p.file != nil {
		return p.file.Close()
	}
	return nil
}

// ParseError represents an error during VCF parsing with line context.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("vcf parse error at line %d: %s", e.Line, e.Message)
}

package genome

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/biogo/hts/fai"
)

// Reference gives random access to an uncompressed FASTA file through its
// samtools-style .fai index.
type Reference struct {
	path string
	f    *os.File
	idx  fai.Index
	file *fai.File
}

// OpenReference opens a FASTA file. If <path>.fai is missing the index is
// built from the sequence and, when the directory is writable, saved.
func OpenReference(path string) (*Reference, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open reference: %w", err)
	}

	idx, err := loadIndex(path, f)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &Reference{
		path: path,
		f:    f,
		idx:  idx,
		file: fai.NewFile(f, idx),
	}, nil
}

func loadIndex(path string, f *os.File) (fai.Index, error) {
	idxPath := path + ".fai"
	if r, err := os.Open(idxPath); err == nil {
		defer r.Close()
		idx, err := fai.ReadFrom(r)
		if err != nil {
			return nil, fmt.Errorf("read reference index %s: %w", idxPath, err)
		}
		return idx, nil
	}

	idx, err := fai.NewIndex(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("index reference: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek reference: %w", err)
	}

	// Best effort: a read-only reference directory keeps the in-memory index.
	if w, err := os.Create(idxPath); err == nil {
		werr := fai.WriteTo(w, idx)
		cerr := w.Close()
		if werr != nil || cerr != nil {
			os.Remove(idxPath)
		}
	}
	return idx, nil
}

// Fetch returns the bases in the 0-based half-open range [start, end).
func (r *Reference) Fetch(chrom string, start, end int) (string, error) {
	rec, ok := r.idx[chrom]
	if !ok {
		return "", fmt.Errorf("sequence not found: %s", chrom)
	}
	if start < 0 || end <= start || end > rec.Length {
		return "", fmt.Errorf("invalid query range %d - %d for sequence %s with length %d",
			start, end, chrom, rec.Length)
	}

	seq, err := r.file.SeqRange(chrom, start, end)
	if err != nil {
		return "", fmt.Errorf("fetch %s:%d-%d: %w", chrom, start, end, err)
	}
	b, err := io.ReadAll(seq)
	if err != nil {
		return "", fmt.Errorf("read %s:%d-%d: %w", chrom, start, end, err)
	}
	return string(b), nil
}

// SeqNames returns the sequence names in the index.
func (r *Reference) SeqNames() []string {
	names := make([]string, 0, len(r.idx))
	for name := range r.idx {
		names = append(names, name)
	}
	return names
}

// Close closes the underlying FASTA file.
func (r *Reference) Close() error {
	return r.f.Close()
}

package mutation

import (
	"fmt"
	"strings"

	"github.com/inodb/vibe-gsgp/internal/vcf"
)

// SequenceFetcher provides random access to reference bases.
// Coordinates are 0-based half-open.
type SequenceFetcher interface {
	Fetch(chrom string, start, end int) (string, error)
}

// LookupError reports a reference window that could not be read under
// either chromosome naming convention.
type LookupError struct {
	Chrom string
	Pos   int64
	Err   error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("reference lookup %s:%d: %v", e.Chrom, e.Pos, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// Window returns the three reference bases centred on the 1-based position,
// retrying with the "chr" prefix toggled if the exact name fails.
func Window(ref SequenceFetcher, chrom string, pos int64) (string, error) {
	if pos < 2 {
		return "", &LookupError{Chrom: chrom, Pos: pos, Err: fmt.Errorf("window starts before sequence")}
	}
	start, end := int(pos-2), int(pos+1)

	seq, err := ref.Fetch(chrom, start, end)
	if err != nil {
		seq, err = ref.Fetch(vcf.ToggleChrPrefix(chrom), start, end)
		if err != nil {
			return "", &LookupError{Chrom: chrom, Pos: pos, Err: err}
		}
	}
	if len(seq) != 3 {
		return "", &LookupError{Chrom: chrom, Pos: pos, Err: fmt.Errorf("short window %q", seq)}
	}
	return strings.ToUpper(seq), nil
}

// Context derives the pyrimidine-normalized class label of an SNV.
// Purine reference alleles are complemented and the flanks swapped so the
// label always reads 5' to 3' on the strand carrying C or T.
func Context(ref SequenceFetcher, chrom string, pos int64, refBase, altBase string) (string, error) {
	if len(refBase) != 1 || len(altBase) != 1 {
		return "", fmt.Errorf("not a single nucleotide variant: %s>%s", refBase, altBase)
	}

	win, err := Window(ref, chrom, pos)
	if err != nil {
		return "", err
	}

	return FromWindow(win, refBase[0], altBase[0])
}

// FromWindow builds the class label from a 3-base reference window.
func FromWindow(win string, r, a byte) (string, error) {
	if len(win) != 3 {
		return "", fmt.Errorf("window must have 3 bases, got %q", win)
	}
	five, three := win[0], win[2]

	if IsPurine(r) {
		cf, ok1 := Complement(three)
		cr, ok2 := Complement(r)
		ca, ok3 := Complement(a)
		ct, ok4 := Complement(five)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			return "", fmt.Errorf("non-ACGT base in %q (%c>%c)", win, r, a)
		}
		five, r, a, three = cf, cr, ca, ct
	}

	label := Label(five, r, a, three)
	if !IsClass(label) {
		return "", fmt.Errorf("%s is not a trinucleotide substitution class", label)
	}
	return label, nil
}

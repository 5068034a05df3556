// Package vcf provides VCF file parsing functionality.
package vcf

import "strings"

// Variant represents a single record from a multi-sample VCF file.
// It is never modified after the parser returns it.
type Variant struct {
	Chrom   string   // Chromosome name (e.g., "12", "chr12")
	Pos     int64    // 1-based genomic position
	ID      string   // Variant identifier (e.g., rs ID)
	Ref     string   // Reference allele
	Alt     string   // Alternate allele
	Format  []string // FORMAT keys, e.g. GT, DP, AD
	Samples []string // raw colon-delimited sample columns, in header order
}

// IsSNV returns true if the variant is a single nucleotide variant
// between two of the unambiguous bases A, C, G, T.
func (v *Variant) IsSNV() bool {
	return isBase(v.Ref) && isBase(v.Alt)
}

func isBase(s string) bool {
	if len(s) != 1 {
		return false
	}
	switch s[0] {
	case 'A', 'C', 'G', 'T':
		return true
	}
	return false
}

// StripChrPrefix removes a leading "chr" from a chromosome name.
func StripChrPrefix(chrom string) string {
	if len(chrom) > 3 && chrom[:3] == "chr" {
		return chrom[3:]
	}
	return chrom
}

// AddChrPrefix prepends "chr" unless the name already carries it.
func AddChrPrefix(chrom string) string {
	if strings.HasPrefix(chrom, "chr") {
		return chrom
	}
	return "chr" + chrom
}

// ToggleChrPrefix switches between the "chr1" and "1" naming conventions.
func ToggleChrPrefix(chrom string) string {
	if strings.HasPrefix(chrom, "chr") {
		return chrom[3:]
	}
	return "chr" + chrom
}

// FormatIndex returns a map from FORMAT key to its position in each sample column.
func (v *Variant) FormatIndex() map[string]int {
	idx := make(map[string]int, len(v.Format))
	for i, key := range v.Format {
		idx[key] = i
	}
	return idx
}

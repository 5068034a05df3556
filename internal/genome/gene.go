// Package genome loads the reference sequence and the gene/exon interval sets
// used to place variants relative to genes.
package genome

// GeneWindow is a gene body read from the prepared gene interval file.
type GeneWindow struct {
	ID     string // Gene identifier (e.g., ENSG00000133703)
	Chrom  string // Chromosome, exactly as written in the interval file
	Start  int64  // Gene start position (1-based)
	End    int64  // Gene end position (1-based, inclusive)
	Strand int8   // +1 (forward) or -1 (reverse)
	Order  int    // line order in the interval file
}

// IsReverseStrand returns true if the gene is on the reverse strand.
func (g *GeneWindow) IsReverseStrand() bool {
	return g.Strand == -1
}

// Contains returns true if the given position is within the gene boundaries.
func (g *GeneWindow) Contains(pos int64) bool {
	return pos >= g.Start && pos <= g.End
}

// Exon is an exon interval tagged with its gene.
type Exon struct {
	GeneID string
	Chrom  string
	Start  int64 // 1-based
	End    int64 // 1-based, inclusive
}

// WindowOptions controls how far past a gene body a variant may fall.
type WindowOptions struct {
	Upstream   int64
	Downstream int64
	// StrandAware swaps the two distances for reverse-strand genes so that
	// Upstream always extends the 5' end. Off by default: both strands use
	// [Start-Upstream, End+Downstream].
	StrandAware bool
}

// Extend returns the searchable range of a gene under the options.
func (o WindowOptions) Extend(g *GeneWindow) (start, end int64) {
	left, right := o.Upstream, o.Downstream
	if o.StrandAware && g.IsReverseStrand() {
		left, right = right, left
	}
	return g.Start - left, g.End + right
}

package genome

import (
	"fmt"

	"github.com/biogo/store/interval"
)

// exonInterval adapts an Exon to the biogo integer interval tree.
// Ranges are 0-based half-open: [Start-1, End).
type exonInterval struct {
	start, end int
	uid        uintptr
	exon       *Exon
}

func (e exonInterval) Overlap(b interval.IntRange) bool {
	return e.end > b.Start && e.start < b.End
}

func (e exonInterval) ID() uintptr { return e.uid }

func (e exonInterval) Range() interval.IntRange {
	return interval.IntRange{Start: e.start, End: e.end}
}

// pointQuery is a single-base query at a 1-based position.
type pointQuery struct {
	start, end int
}

func (q pointQuery) Overlap(b interval.IntRange) bool {
	return b.End > q.start && b.Start < q.end
}

// ExonIndex answers "which genes have an exon covering this base".
type ExonIndex struct {
	tree  interval.IntTree
	count int
}

// BuildExonIndex inserts every exon into a fresh tree.
func BuildExonIndex(exons []*Exon) (*ExonIndex, error) {
	idx := &ExonIndex{}
	for i, e := range exons {
		iv := exonInterval{
			start: int(e.Start - 1),
			end:   int(e.End),
			uid:   uintptr(i + 1),
			exon:  e,
		}
		if err := idx.tree.Insert(iv, true); err != nil {
			return nil, fmt.Errorf("insert exon %s:%d-%d (%s): %w", e.Chrom, e.Start, e.End, e.GeneID, err)
		}
		idx.count++
	}
	idx.tree.AdjustRanges()
	return idx, nil
}

// GenesAt returns the set of gene ids with an exon covering the 1-based pos.
func (x *ExonIndex) GenesAt(pos int64) map[string]bool {
	if x == nil || x.count == 0 {
		return nil
	}
	hits := x.tree.Get(pointQuery{start: int(pos - 1), end: int(pos)})
	if len(hits) == 0 {
		return nil
	}
	genes := make(map[string]bool, len(hits))
	for _, h := range hits {
		genes[h.(exonInterval).exon.GeneID] = true
	}
	return genes
}

// Len returns the number of exons indexed.
func (x *ExonIndex) Len() int {
	return x.count
}

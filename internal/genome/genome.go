package genome

import (
	"sort"
)

// Genome holds the read-only gene window and exon indexes, keyed by chromosome.
// It is safe for concurrent queries once built.
type Genome struct {
	genes map[string]*WindowTree
	exons map[string]*ExonIndex

	geneCount int
	exonCount int
}

// Build groups genes and exons by chromosome and indexes them.
func Build(genes []*GeneWindow, exons []*Exon, opts WindowOptions) (*Genome, error) {
	g := &Genome{
		genes: make(map[string]*WindowTree),
		exons: make(map[string]*ExonIndex),
	}

	genesByChrom := make(map[string][]*GeneWindow)
	for _, gw := range genes {
		genesByChrom[gw.Chrom] = append(genesByChrom[gw.Chrom], gw)
	}
	for chrom, list := range genesByChrom {
		g.genes[chrom] = BuildWindowTree(list, opts)
		g.geneCount += len(list)
	}

	exonsByChrom := make(map[string][]*Exon)
	for _, e := range exons {
		exonsByChrom[e.Chrom] = append(exonsByChrom[e.Chrom], e)
	}
	for chrom, list := range exonsByChrom {
		idx, err := BuildExonIndex(list)
		if err != nil {
			return nil, err
		}
		g.exons[chrom] = idx
		g.exonCount += idx.Len()
	}

	return g, nil
}

// WindowGenes returns the genes whose extended window contains pos, in
// interval-file order, keeping only the first occurrence of each gene id.
func (g *Genome) WindowGenes(chrom string, pos int64) []*GeneWindow {
	tree, ok := g.genes[chrom]
	if !ok {
		return nil
	}
	hits := tree.FindOverlaps(pos)
	if len(hits) == 0 {
		return nil
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Order < hits[j].Order })

	seen := make(map[string]bool, len(hits))
	out := hits[:0]
	for _, h := range hits {
		if seen[h.ID] {
			continue
		}
		seen[h.ID] = true
		out = append(out, h)
	}
	return out
}

// ExonGenes returns the ids of genes with an exon covering pos.
func (g *Genome) ExonGenes(chrom string, pos int64) map[string]bool {
	return g.exons[chrom].GenesAt(pos)
}

// GeneCount returns the number of gene windows loaded.
func (g *Genome) GeneCount() int {
	return g.geneCount
}

// ExonCount returns the number of exons loaded.
func (g *Genome) ExonCount() int {
	return g.exonCount
}

// Chromosomes returns a sorted list of chromosomes with gene windows.
func (g *Genome) Chromosomes() []string {
	chroms := make([]string, 0, len(g.genes))
	for chrom := range g.genes {
		chroms = append(chroms, chrom)
	}
	sort.Strings(chroms)
	return chroms
}

package annotate

import (
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/inodb/vibe-gsgp/internal/genome"
	"github.com/inodb/vibe-gsgp/internal/vcf"
)

// GeneLookup defines the interval queries the annotator needs.
type GeneLookup interface {
	WindowGenes(chrom string, pos int64) []*genome.GeneWindow
	ExonGenes(chrom string, pos int64) map[string]bool
}

// Annotator classifies variants against gene windows and exons.
type Annotator struct {
	genes  GeneLookup
	filter Filter
	addChr bool
	logger *zap.Logger
}

// NewAnnotator creates a new annotator over the given interval sets.
func NewAnnotator(g GeneLookup) *Annotator {
	return &Annotator{
		genes:  g,
		logger: zap.NewNop(),
	}
}

// SetFilter configures the per-sample gate applied before annotation.
func (a *Annotator) SetFilter(f Filter) {
	a.filter = f
}

// SetAddChr makes interval lookups use "chr"-prefixed chromosome names.
func (a *Annotator) SetAddChr(add bool) {
	a.addChr = add
}

// SetLogger sets the logger for warning and info messages.
func (a *Annotator) SetLogger(l *zap.Logger) {
	a.logger = l
}

// Annotate returns the gene assignments of a position. A gene with an exon
// covering the position is always an exon hit; otherwise the side of the gene
// body decides between upstream and downstream, mirrored on the reverse strand.
func (a *Annotator) Annotate(chrom string, pos int64) []Assignment {
	if a.addChr {
		chrom = vcf.AddChrPrefix(chrom)
	}

	windows := a.genes.WindowGenes(chrom, pos)
	if len(windows) == 0 {
		return noneAssignment()
	}
	exonHits := a.genes.ExonGenes(chrom, pos)

	out := make([]Assignment, 0, len(windows))
	for _, g := range windows {
		out = append(out, Assignment{GeneID: g.ID, Class: classify(g, pos, exonHits)})
	}
	return out
}

func classify(g *genome.GeneWindow, pos int64, exonHits map[string]bool) ContextClass {
	switch {
	case exonHits[g.ID]:
		return ClassExon
	case pos < g.Start:
		if g.IsReverseStrand() {
			return ClassDownstream
		}
		return ClassUpstream
	case pos > g.End:
		if g.IsReverseStrand() {
			return ClassUpstream
		}
		return ClassDownstream
	default:
		return ClassIntron
	}
}

// Process runs the filter and, if any sample passes, the annotation for one
// variant. A panic is converted to an error carrying the stack trace.
func (a *Annotator) Process(v *vcf.Variant) (assignments []Assignment, pass []bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			assignments, pass = nil, nil
			err = fmt.Errorf("annotate %s:%d: panic: %v\n%s", v.Chrom, v.Pos, r, debug.Stack())
			a.logger.Debug("recovered annotation panic",
				zap.String("chrom", v.Chrom),
				zap.Int64("pos", v.Pos))
		}
	}()

	pass = a.filter.Evaluate(v)
	if !AnyPass(pass) {
		return nil, pass, nil
	}
	return a.Annotate(v.Chrom, v.Pos), pass, nil
}

// Package annotate places variants relative to nearby genes and gates them
// per sample on genotype, depth and allele fraction.
package annotate

// ContextClass is the relationship of a variant to one gene.
type ContextClass string

// Context classes, in the order weights are given on the command line.
const (
	ClassExon       ContextClass = "exon"
	ClassIntron     ContextClass = "intron"
	ClassUpstream   ContextClass = "upstream"
	ClassDownstream ContextClass = "downstream"
)

// AllClasses lists every context class.
var AllClasses = []ContextClass{ClassExon, ClassIntron, ClassUpstream, ClassDownstream}

// NoneGene is reported when no gene window reaches the variant.
const NoneGene = "none_gene"

// Assignment links a variant to one gene.
type Assignment struct {
	GeneID string
	Class  ContextClass
}

// noneAssignment is the sentinel for intergenic variants.
func noneAssignment() []Assignment {
	return []Assignment{{GeneID: NoneGene, Class: ClassExon}}
}

// WeightTable maps each context class to a non-negative weight.
type WeightTable map[ContextClass]float64

// DefaultWeights gives every class the same weight.
func DefaultWeights() WeightTable {
	return WeightTable{ClassExon: 1, ClassIntron: 1, ClassUpstream: 1, ClassDownstream: 1}
}

// ExpandWeights turns 0-4 command-line values into a table:
// 0 or 1 value: equal weights; 2: exon/intron, upstream/downstream;
// 3: exon, intron, upstream/downstream; 4 or more: one per class, extras ignored.
func ExpandWeights(values []float64) WeightTable {
	switch {
	case len(values) <= 1:
		return DefaultWeights()
	case len(values) == 2:
		return WeightTable{
			ClassExon: values[0], ClassIntron: values[0],
			ClassUpstream: values[1], ClassDownstream: values[1],
		}
	case len(values) == 3:
		return WeightTable{
			ClassExon: values[0], ClassIntron: values[1],
			ClassUpstream: values[2], ClassDownstream: values[2],
		}
	default:
		return WeightTable{
			ClassExon: values[0], ClassIntron: values[1],
			ClassUpstream: values[2], ClassDownstream: values[3],
		}
	}
}

package genome

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ids(genes []*GeneWindow) map[string]bool {
	out := map[string]bool{}
	for _, g := range genes {
		out[g.ID] = true
	}
	return out
}

func TestBuildWindowTree_Empty(t *testing.T) {
	tree := BuildWindowTree(nil, WindowOptions{})
	assert.Empty(t, tree.FindOverlaps(100))
	assert.Equal(t, 0, tree.Len())
}

func TestWindowTree_SingleGene(t *testing.T) {
	g := &GeneWindow{ID: "G1", Start: 100, End: 200, Strand: 1}
	tree := BuildWindowTree([]*GeneWindow{g}, WindowOptions{})

	assert.Len(t, tree.FindOverlaps(150), 1)
	assert.Len(t, tree.FindOverlaps(100), 1, "start boundary inclusive")
	assert.Len(t, tree.FindOverlaps(200), 1, "end boundary inclusive")
	assert.Empty(t, tree.FindOverlaps(99), "before start")
	assert.Empty(t, tree.FindOverlaps(201), "after end")
}

func TestWindowTree_Extension(t *testing.T) {
	plus := &GeneWindow{ID: "P", Start: 1000, End: 2000, Strand: 1}
	minus := &GeneWindow{ID: "M", Start: 1000, End: 2000, Strand: -1}
	opts := WindowOptions{Upstream: 100, Downstream: 10}
	tree := BuildWindowTree([]*GeneWindow{plus, minus}, opts)

	// Absolute extension: both strands reach 900..2010.
	assert.Equal(t, map[string]bool{"P": true, "M": true}, ids(tree.FindOverlaps(900)))
	assert.Equal(t, map[string]bool{"P": true, "M": true}, ids(tree.FindOverlaps(2010)))
	assert.Empty(t, tree.FindOverlaps(899))
	assert.Empty(t, tree.FindOverlaps(2011))

	opts.StrandAware = true
	tree = BuildWindowTree([]*GeneWindow{plus, minus}, opts)
	assert.Equal(t, map[string]bool{"P": true}, ids(tree.FindOverlaps(900)))
	assert.Equal(t, map[string]bool{"M": true}, ids(tree.FindOverlaps(2100)))
	assert.Equal(t, map[string]bool{"P": true, "M": true}, ids(tree.FindOverlaps(990)))
}

func TestWindowTree_Overlapping(t *testing.T) {
	genes := []*GeneWindow{
		{ID: "A", Start: 100, End: 300},
		{ID: "B", Start: 150, End: 250},
		{ID: "C", Start: 200, End: 400},
	}
	tree := BuildWindowTree(genes, WindowOptions{})

	assert.Equal(t, map[string]bool{"A": true, "B": true}, ids(tree.FindOverlaps(175)))
	assert.Len(t, tree.FindOverlaps(250), 3, "pos 250 overlaps A, B, C")
	assert.Equal(t, map[string]bool{"C": true}, ids(tree.FindOverlaps(350)))
}

func TestWindowTree_LongIntervalBeforeShortOne(t *testing.T) {
	genes := []*GeneWindow{
		{ID: "LONG", Start: 100, End: 1000},
		{ID: "SHORT", Start: 200, End: 300},
	}
	tree := BuildWindowTree(genes, WindowOptions{})

	assert.Equal(t, map[string]bool{"LONG": true}, ids(tree.FindOverlaps(500)))
}

func TestWindowTree_NonOverlapping(t *testing.T) {
	genes := []*GeneWindow{
		{ID: "A", Start: 100, End: 200},
		{ID: "B", Start: 300, End: 400},
		{ID: "C", Start: 500, End: 600},
	}
	tree := BuildWindowTree(genes, WindowOptions{})

	assert.Len(t, tree.FindOverlaps(150), 1)
	assert.Empty(t, tree.FindOverlaps(250))
	assert.Len(t, tree.FindOverlaps(550), 1)
	assert.Empty(t, tree.FindOverlaps(700))
}

package gsgp

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/inodb/vibe-gsgp/internal/annotate"
	"github.com/inodb/vibe-gsgp/internal/mutation"
)

// SampleLevel is the synthetic row holding the sum over all genes.
const SampleLevel = "sample_level"

// matrixTotal is the sum of a normalized matrix, sample-level row included.
const matrixTotal = 2.0

// ErrEmptySample is returned when a sample has no weighted counts.
var ErrEmptySample = errors.New("no passing SNVs")

// Call is one SNV that passed the filter for a sample.
type Call struct {
	Class       string
	Assignments []annotate.Assignment
}

// SampleMatrix is a normalized genes × classes count matrix. Rows are
// gene ids in lexicographic order followed by SampleLevel; columns follow
// the basis class order. Rows summing to zero are not present.
type SampleMatrix struct {
	Genes   []string
	Classes []string
	X       *mat.Dense
}

// BuildSampleMatrix aggregates calls into a normalized matrix whose columns
// are the given classes. The weights of each call's gene assignments are
// scaled to sum to one; calls whose assignments all weigh zero are ignored.
func BuildSampleMatrix(calls []Call, weights annotate.WeightTable, classes []string) (*SampleMatrix, error) {
	counts := make(map[string]*[mutation.NumClasses]float64)
	for _, c := range calls {
		idx, ok := mutation.Index(c.Class)
		if !ok {
			return nil, fmt.Errorf("unknown mutation class %q", c.Class)
		}
		var total float64
		for _, a := range c.Assignments {
			total += weights[a.Class]
		}
		if total <= 0 {
			continue
		}
		for _, a := range c.Assignments {
			row, ok := counts[a.GeneID]
			if !ok {
				row = new([mutation.NumClasses]float64)
				counts[a.GeneID] = row
			}
			row[idx] += weights[a.Class] / total
		}
	}

	genes := make([]string, 0, len(counts)+1)
	for g := range counts {
		genes = append(genes, g)
	}
	sort.Strings(genes)

	var sampleLevel [mutation.NumClasses]float64
	var sum float64
	for _, g := range genes {
		for i, v := range counts[g] {
			sampleLevel[i] += v
			sum += v
		}
	}
	sum *= 2 // sample-level row doubles the total
	if sum == 0 {
		return nil, ErrEmptySample
	}
	counts[SampleLevel] = &sampleLevel
	genes = append(genes, SampleLevel)

	cols := make([]int, len(classes))
	for j, c := range classes {
		idx, ok := mutation.Index(c)
		if !ok {
			return nil, fmt.Errorf("unknown basis class %q", c)
		}
		cols[j] = idx
	}

	scale := matrixTotal / sum
	var kept []string
	var data []float64
	for _, g := range genes {
		row := counts[g]
		out := make([]float64, len(cols))
		var rowSum float64
		for j, idx := range cols {
			out[j] = row[idx] * scale
			rowSum += out[j]
		}
		if rowSum == 0 {
			continue
		}
		kept = append(kept, g)
		data = append(data, out...)
	}
	if len(kept) == 0 {
		return nil, ErrEmptySample
	}

	return &SampleMatrix{
		Genes:   kept,
		Classes: append([]string(nil), classes...),
		X:       mat.NewDense(len(kept), len(cols), data),
	}, nil
}

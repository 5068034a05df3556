package annotate

import (
	"strconv"
	"strings"

	"github.com/inodb/vibe-gsgp/internal/vcf"
)

// VAFRange is an inclusive allele-fraction interval.
type VAFRange struct {
	Min float64
	Max float64
}

// Contains reports whether f lies in [Min, Max].
func (r VAFRange) Contains(f float64) bool {
	return r.Min <= f && f <= r.Max
}

// Filter is the per-sample genotype, depth and allele-fraction gate.
// A zero MinDepth disables the depth check; an empty VAF list disables
// the allele-fraction check.
type Filter struct {
	MinDepth int
	VAF      []VAFRange
}

// Enabled reports whether any depth or allele-fraction threshold is set.
func (f Filter) Enabled() bool {
	return f.MinDepth > 0 || len(f.VAF) > 0
}

// Evaluate returns one pass flag per sample column of v.
func (f Filter) Evaluate(v *vcf.Variant) []bool {
	idx := v.FormatIndex()
	out := make([]bool, len(v.Samples))
	for i, sample := range v.Samples {
		out[i] = f.passSample(sample, idx, len(v.Format))
	}
	return out
}

func (f Filter) passSample(sample string, idx map[string]int, nfmt int) bool {
	fields := strings.Split(sample, ":")
	if len(fields) != nfmt {
		return false
	}

	gt, ok := idx["GT"]
	if !ok || !strings.Contains(fields[gt], "1") {
		return false
	}

	if !f.Enabled() {
		return true
	}

	dpIdx, ok := idx["DP"]
	if !ok {
		return false
	}
	depth, err := strconv.Atoi(fields[dpIdx])
	if err != nil {
		return false
	}
	if f.MinDepth > 0 && depth < f.MinDepth {
		return false
	}

	if len(f.VAF) == 0 {
		return true
	}

	adIdx, ok := idx["AD"]
	if !ok || depth == 0 {
		return false
	}
	ad := strings.Split(fields[adIdx], ",")
	var altField string
	switch len(ad) {
	case 1:
		altField = ad[0]
	case 2:
		altField = ad[1]
	default:
		return false
	}
	alt, err := strconv.Atoi(altField)
	if err != nil {
		return false
	}

	vaf := float64(alt) / float64(depth)
	for _, r := range f.VAF {
		if r.Contains(vaf) {
			return true
		}
	}
	return false
}

// AnyPass reports whether at least one sample passed.
func AnyPass(pass []bool) bool {
	for _, p := range pass {
		if p {
			return true
		}
	}
	return false
}

package genome

import "sort"

// WindowTree provides O(log n + k) stabbing queries over extended gene windows
// using a sorted-slice approach. Genes are loaded once and never modified after build.
type WindowTree struct {
	intervals []window
	maxEnd    []int64 // maxEnd[i] = max(end) for intervals[:i+1]
}

type window struct {
	start int64
	end   int64
	gene  *GeneWindow
}

// BuildWindowTree creates a tree over each gene's extended window.
func BuildWindowTree(genes []*GeneWindow, opts WindowOptions) *WindowTree {
	if len(genes) == 0 {
		return &WindowTree{}
	}

	intervals := make([]window, len(genes))
	for i, g := range genes {
		start, end := opts.Extend(g)
		intervals[i] = window{start: start, end: end, gene: g}
	}

	sort.Slice(intervals, func(i, j int) bool {
		return intervals[i].start < intervals[j].start
	})

	// Prefix-max array: scanning left from the last candidate can stop as
	// soon as no earlier window reaches pos.
	maxEnd := make([]int64, len(intervals))
	maxEnd[0] = intervals[0].end
	for i := 1; i < len(intervals); i++ {
		maxEnd[i] = intervals[i].end
		if maxEnd[i-1] > maxEnd[i] {
			maxEnd[i] = maxEnd[i-1]
		}
	}

	return &WindowTree{intervals: intervals, maxEnd: maxEnd}
}

// FindOverlaps returns all genes whose extended window contains pos,
// in no particular order.
func (t *WindowTree) FindOverlaps(pos int64) []*GeneWindow {
	if len(t.intervals) == 0 {
		return nil
	}

	var result []*GeneWindow

	// hi is the first index with start > pos; candidates are [0, hi).
	hi := sort.Search(len(t.intervals), func(i int) bool {
		return t.intervals[i].start > pos
	})

	for i := hi - 1; i >= 0; i-- {
		// maxEnd[i] < pos means nothing in 0..i reaches pos.
		if t.maxEnd[i] < pos {
			break
		}
		if t.intervals[i].end >= pos {
			result = append(result, t.intervals[i].gene)
		}
	}

	return result
}

// Len returns the number of windows in the tree.
func (t *WindowTree) Len() int {
	return len(t.intervals)
}

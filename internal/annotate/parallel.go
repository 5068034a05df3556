package annotate

import (
	"runtime"
	"sync"

	"github.com/inodb/vibe-gsgp/internal/progress"
	"github.com/inodb/vibe-gsgp/internal/vcf"
)

// WorkItem holds a variant whose mutation class is already known.
type WorkItem struct {
	Seq     int
	Variant *vcf.Variant
	Class   string // 96-class label
}

// WorkResult holds the filter flags and gene assignments of one variant.
// Assignments is nil when no sample passed or when Err is set.
type WorkResult struct {
	Seq         int
	Variant     *vcf.Variant
	Class       string
	Pass        []bool
	Assignments []Assignment
	Err         error
}

// ParallelAnnotate filters and annotates work items using a pool of workers.
// Results are sent to the returned channel in arrival order (not sequence order).
// Use OrderedCollect to consume results in sequence-number order.
// Each finished item is reported to prog, which may be nil.
// If workers is 0, runtime.NumCPU() is used.
func (a *Annotator) ParallelAnnotate(items <-chan WorkItem, workers int, prog *progress.Reporter) <-chan WorkResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make(chan WorkResult, 2*workers)

	var wg sync.WaitGroup
	wg.Add(workers)

	for range workers {
		go func() {
			defer wg.Done()
			for item := range items {
				assignments, pass, err := a.Process(item.Variant)
				results <- WorkResult{
					Seq:         item.Seq,
					Variant:     item.Variant,
					Class:       item.Class,
					Pass:        pass,
					Assignments: assignments,
					Err:         err,
				}
				prog.Add(1)
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// OrderedCollect calls fn for each result in sequence-number order.
// It buffers out-of-order results in a pending map and emits them
// as soon as the next expected sequence number is available.
// Blocks until the results channel is closed.
func OrderedCollect(results <-chan WorkResult, fn func(WorkResult) error) error {
	pending := make(map[int]WorkResult)
	nextSeq := 0

	for r := range results {
		pending[r.Seq] = r

		for {
			rr, ok := pending[nextSeq]
			if !ok {
				break
			}
			delete(pending, nextSeq)
			nextSeq++
			if err := fn(rr); err != nil {
				// Drain remaining results to unblock workers.
				for range results {
				}
				return err
			}
		}
	}

	return nil
}

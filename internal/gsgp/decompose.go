package gsgp

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/inodb/vibe-gsgp/internal/annotate"
	"github.com/inodb/vibe-gsgp/internal/progress"
)

// SampleJob is the set of passing calls of one sample.
type SampleJob struct {
	Seq    int
	Sample string
	Calls  []Call
}

// SampleResult is the outcome of decomposing one sample. On failure Err is
// set and the matrices are nil.
type SampleResult struct {
	Seq        int
	Sample     string
	Matrix     *SampleMatrix
	Exposures  *mat.Dense // genes × signatures, rows follow Matrix.Genes
	Iterations int
	Err        error
}

// Decomposer projects sample matrices onto a fixed basis.
type Decomposer struct {
	basis   *Basis
	weights annotate.WeightTable
	opts    NMFOptions
	logger  *zap.Logger
}

// NewDecomposer creates a decomposer for the given basis and weights.
func NewDecomposer(basis *Basis, weights annotate.WeightTable, opts NMFOptions) *Decomposer {
	return &Decomposer{
		basis:   basis,
		weights: weights,
		opts:    opts,
		logger:  zap.NewNop(),
	}
}

// SetLogger sets the logger for debug messages.
func (d *Decomposer) SetLogger(l *zap.Logger) {
	d.logger = l
}

// Decompose builds the matrix of one sample and factors it. A panic is
// converted to an error carrying the stack trace.
func (d *Decomposer) Decompose(job SampleJob) (res SampleResult) {
	res = SampleResult{Seq: job.Seq, Sample: job.Sample}
	defer func() {
		if r := recover(); r != nil {
			res.Matrix, res.Exposures = nil, nil
			res.Err = fmt.Errorf("decompose %s: panic: %v\n%s", job.Sample, r, debug.Stack())
		}
	}()

	sm, err := BuildSampleMatrix(job.Calls, d.weights, d.basis.Classes)
	if err != nil {
		res.Err = fmt.Errorf("build matrix for %s: %w", job.Sample, err)
		return res
	}

	nmf, err := FactorFixed(sm.X, d.basis.H, d.opts)
	if err != nil {
		res.Err = fmt.Errorf("factor %s: %w", job.Sample, err)
		return res
	}
	d.logger.Debug("sample decomposed",
		zap.String("sample", job.Sample),
		zap.Int("genes", len(sm.Genes)),
		zap.Int("iterations", nmf.Iterations),
		zap.Float64("residual", nmf.Residual))

	res.Matrix = sm
	res.Exposures = nmf.W
	res.Iterations = nmf.Iterations
	return res
}

// ParallelDecompose decomposes jobs using a pool of workers.
// Results are sent to the returned channel in arrival order.
// Each finished job is reported to prog, which may be nil.
// If workers is 0, runtime.NumCPU() is used.
func (d *Decomposer) ParallelDecompose(jobs <-chan SampleJob, workers int, prog *progress.Reporter) <-chan SampleResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make(chan SampleResult, 2*workers)

	var wg sync.WaitGroup
	wg.Add(workers)

	for range workers {
		go func() {
			defer wg.Done()
			for job := range jobs {
				results <- d.Decompose(job)
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

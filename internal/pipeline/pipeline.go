package pipeline

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/inodb/vibe-gsgp/internal/annotate"
	"github.com/inodb/vibe-gsgp/internal/duckdb"
	"github.com/inodb/vibe-gsgp/internal/genome"
	"github.com/inodb/vibe-gsgp/internal/gsgp"
	"github.com/inodb/vibe-gsgp/internal/mutation"
	"github.com/inodb/vibe-gsgp/internal/output"
	"github.com/inodb/vibe-gsgp/internal/progress"
	"github.com/inodb/vibe-gsgp/internal/vcf"
)

// Summary counts what a run did.
type Summary struct {
	Records     int // data lines read
	Malformed   int // lines skipped by the parser
	SNVs        int // single-base substitutions
	Candidates  int // SNVs with a mutation class
	Annotated   int // candidates passing in at least one sample
	Failed      int // units that failed in either pool
	Samples     int
	Decomposed  int
	Skipped     []string // samples without passing SNVs
	OutputFiles []string
}

// Pipeline runs one configuration.
type Pipeline struct {
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// New creates a pipeline. The configuration is copied.
func New(cfg Config, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{cfg: cfg, logger: logger, now: time.Now}
}

// Run executes the pipeline: classify SNVs, filter and annotate them in a
// worker pool, then decompose every sample in a second pool. Per-variant
// and per-sample failures are logged and counted; only setup failures
// are returned as errors.
func (p *Pipeline) Run() (*Summary, error) {
	cfg := &p.cfg
	started := p.now()

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	tmp, cleanup, err := tempDir(cfg.TmpDir)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	basis, err := gsgp.LoadBasis(cfg.BasisPath())
	if err != nil {
		return nil, err
	}
	p.logger.Info("loaded signature basis",
		zap.String("path", cfg.BasisPath()),
		zap.Int("signatures", basis.NumSignatures()),
		zap.Int("classes", len(basis.Classes)))

	ref, err := genome.OpenReference(cfg.Reference)
	if err != nil {
		return nil, err
	}
	defer ref.Close()

	g, err := genome.NewGTFLoader(cfg.GTFPrefix).Load(cfg.WindowOptions())
	if err != nil {
		return nil, err
	}
	p.logger.Info("loaded gene intervals",
		zap.Int("genes", g.GeneCount()),
		zap.Int("exons", g.ExonCount()))
	if missing := missingChromosomes(ref.SeqNames(), g.Chromosomes()); len(missing) > 0 {
		p.logger.Warn("gene interval chromosomes not found in the reference",
			zap.Strings("chromosomes", missing))
	}

	var store *duckdb.Store
	if cfg.DuckDB != "" {
		store, err = duckdb.Open(cfg.DuckDB)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		if err := p.recordRun(store, started); err != nil {
			return nil, err
		}
	}

	parser, err := vcf.NewParser(cfg.Input)
	if err != nil {
		return nil, err
	}
	defer parser.Close()

	sum := &Summary{}
	samples := parser.SampleNames()
	sum.Samples = len(samples)

	items, err := p.classify(parser, ref, sum)
	if err != nil {
		return nil, err
	}
	p.logger.Info(fmt.Sprintf("%d SNVs selected for filtering and annotation", len(items)))

	calls, err := p.annotate(g, items, len(samples), sum)
	if err != nil {
		return nil, err
	}

	jobs := make([]gsgp.SampleJob, 0, len(samples))
	for i, name := range samples {
		n := len(calls[i])
		p.logger.Info(fmt.Sprintf("sample %s: %d SNVs passed", name, n))
		if n == 0 {
			p.logger.Warn("no SNVs passed the filters, sample skipped", zap.String("sample", name))
			sum.Skipped = append(sum.Skipped, name)
			continue
		}
		jobs = append(jobs, gsgp.SampleJob{Seq: len(jobs), Sample: name, Calls: calls[i]})
	}

	p.decompose(basis, jobs, tmp, store, sum)

	p.logger.Info("run finished",
		zap.Int("records", sum.Records),
		zap.Int("snvs", sum.SNVs),
		zap.Int("annotated", sum.Annotated),
		zap.Int("samples", sum.Samples),
		zap.Int("decomposed", sum.Decomposed),
		zap.Int("skipped", len(sum.Skipped)),
		zap.Int("failed", sum.Failed),
		zap.String("output_dir", cfg.OutputDir),
		zap.Duration("elapsed", p.now().Sub(started)))
	return sum, nil
}

// missingChromosomes returns the interval chromosomes that have no
// reference sequence under either naming convention.
func missingChromosomes(refNames, intervalChroms []string) []string {
	have := make(map[string]bool, len(refNames))
	for _, name := range refNames {
		have[vcf.StripChrPrefix(name)] = true
	}
	var missing []string
	for _, chrom := range intervalChroms {
		if !have[vcf.StripChrPrefix(chrom)] {
			missing = append(missing, chrom)
		}
	}
	return missing
}

func (p *Pipeline) recordRun(store *duckdb.Store, started time.Time) error {
	run := duckdb.Run{Input: duckdb.FileFingerprint{Path: p.cfg.Input}, Basis: p.cfg.BasisPath(), StartedAt: started}
	if fp, err := duckdb.StatFile(p.cfg.Input); err == nil {
		run.Input = fp
	}
	return store.RecordRun(run)
}

// classify reads every record and keeps the SNVs whose mutation class can
// be derived from the reference.
func (p *Pipeline) classify(parser vcf.VariantParser, ref mutation.SequenceFetcher, sum *Summary) ([]annotate.WorkItem, error) {
	var items []annotate.WorkItem
	for {
		v, err := parser.Next()
		if err != nil {
			var perr *vcf.ParseError
			if errors.As(err, &perr) {
				sum.Records++
				sum.Malformed++
				p.logger.Debug("skipping malformed record", zap.Int("line", parser.LineNumber()), zap.Error(err))
				continue
			}
			return nil, fmt.Errorf("read variants: %w", err)
		}
		if v == nil {
			break
		}
		sum.Records++

		if !v.IsSNV() {
			continue
		}
		sum.SNVs++

		class, err := mutation.Context(ref, v.Chrom, v.Pos, v.Ref, v.Alt)
		if err != nil {
			p.logger.Debug("no mutation context",
				zap.String("chrom", v.Chrom),
				zap.Int64("pos", v.Pos),
				zap.Error(err))
			continue
		}
		items = append(items, annotate.WorkItem{Seq: len(items), Variant: v, Class: class})
	}
	sum.Candidates = len(items)
	return items, nil
}

// annotate runs the filter and annotation pool and returns, per sample
// column, the calls that passed. Results are consumed in input order so
// the per-sample call lists do not depend on scheduling.
func (p *Pipeline) annotate(g annotate.GeneLookup, items []annotate.WorkItem, nsamples int, sum *Summary) ([][]gsgp.Call, error) {
	ann := annotate.NewAnnotator(g)
	ann.SetFilter(p.cfg.Filter())
	ann.SetAddChr(p.cfg.AddChr)
	ann.SetLogger(p.logger)

	prog := progress.Start(len(items), p.logger)
	in := make(chan annotate.WorkItem, 2*p.cfg.Threads)
	go func() {
		defer close(in)
		for _, item := range items {
			in <- item
		}
	}()

	calls := make([][]gsgp.Call, nsamples)
	err := annotate.OrderedCollect(ann.ParallelAnnotate(in, p.cfg.Threads, prog), func(r annotate.WorkResult) error {
		if r.Err != nil {
			sum.Failed++
			p.logger.Error("annotation failed",
				zap.String("chrom", r.Variant.Chrom),
				zap.Int64("pos", r.Variant.Pos),
				zap.Error(r.Err))
			return nil
		}
		if r.Assignments == nil {
			return nil
		}
		if len(r.Pass) != nsamples {
			return fmt.Errorf("%s:%d: %d sample results for %d samples",
				r.Variant.Chrom, r.Variant.Pos, len(r.Pass), nsamples)
		}
		sum.Annotated++
		for i, pass := range r.Pass {
			if pass {
				calls[i] = append(calls[i], gsgp.Call{Class: r.Class, Assignments: r.Assignments})
			}
		}
		return nil
	})
	prog.Stop()
	if err != nil {
		return nil, err
	}
	return calls, nil
}

// decompose runs the decomposition pool and writes each finished sample.
func (p *Pipeline) decompose(basis *gsgp.Basis, jobs []gsgp.SampleJob, tmp string, store *duckdb.Store, sum *Summary) {
	d := gsgp.NewDecomposer(basis, p.cfg.Weights, p.cfg.NMFOptions())
	d.SetLogger(p.logger)

	prog := progress.Start(len(jobs), p.logger)
	in := make(chan gsgp.SampleJob, len(jobs))
	for _, job := range jobs {
		in <- job
	}
	close(in)

	for res := range d.ParallelDecompose(in, p.cfg.Threads, prog) {
		if errors.Is(res.Err, gsgp.ErrEmptySample) {
			p.logger.Warn("no weighted counts, sample skipped", zap.String("sample", res.Sample))
			sum.Skipped = append(sum.Skipped, res.Sample)
			continue
		}
		if res.Err != nil {
			sum.Failed++
			p.logger.Error("decomposition failed", zap.String("sample", res.Sample), zap.Error(res.Err))
			continue
		}
		if err := p.write(basis, res, tmp, store, sum); err != nil {
			sum.Failed++
			p.logger.Error("writing results failed", zap.String("sample", res.Sample), zap.Error(err))
			continue
		}
		sum.Decomposed++
	}
	prog.Stop()
}

func (p *Pipeline) write(basis *gsgp.Basis, res gsgp.SampleResult, tmp string, store *duckdb.Store, sum *Summary) error {
	genes := res.Matrix.Genes

	path := output.SignaturesFile(p.cfg.OutputDir, res.Sample)
	if err := output.WriteMatrixFile(path, tmp, genes, basis.Signatures, res.Exposures); err != nil {
		return err
	}
	sum.OutputFiles = append(sum.OutputFiles, path)

	if p.cfg.SaveX {
		xpath := output.MatrixFile(p.cfg.OutputDir, res.Sample)
		if err := output.WriteMatrixFile(xpath, tmp, genes, res.Matrix.Classes, res.Matrix.X); err != nil {
			return err
		}
		sum.OutputFiles = append(sum.OutputFiles, xpath)
	}

	if store != nil {
		if err := store.WriteSampleExposures(res.Sample, genes, basis.Signatures, res.Exposures); err != nil {
			return err
		}
	}

	p.logger.Debug("sample written",
		zap.String("sample", res.Sample),
		zap.Int("genes", len(genes)),
		zap.Int("iterations", res.Iterations))
	return nil
}

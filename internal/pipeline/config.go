// Package pipeline wires the reader, annotation pool and decomposition pool
// into a single run over one VCF file.
package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/inodb/vibe-gsgp/internal/annotate"
	"github.com/inodb/vibe-gsgp/internal/genome"
	"github.com/inodb/vibe-gsgp/internal/gsgp"
)

// Genomes lists the builds with a bundled signature basis.
var Genomes = []string{"GRCh37", "GRCh38", "mm9", "mm10", "rn6"}

// Defaults for the run command.
const (
	DefaultGenome     = "GRCh38"
	DefaultModelDir   = "model"
	DefaultThreads    = 4
	DefaultUpstream   = 121925
	DefaultDownstream = 121388
)

// Config is the resolved configuration of one run. It is built once at
// start-up and not modified afterwards.
type Config struct {
	Input     string
	Reference string
	GTFPrefix string
	OutputDir string

	Genome   string
	ModelDir string
	Basis    string // explicit basis file, overrides Genome/ModelDir

	Threads int

	MinDepth int
	VAF      []annotate.VAFRange

	Upstream          int64
	Downstream        int64
	StrandAwareWindow bool
	AddChr            bool

	Weights annotate.WeightTable

	MaxIter int
	Tol     float64
	Seed    *uint64

	SaveX  bool
	DuckDB string
	TmpDir string
}

// DefaultConfig returns a Config with every optional field at its default.
func DefaultConfig() Config {
	nmf := gsgp.DefaultNMFOptions()
	return Config{
		Genome:     DefaultGenome,
		ModelDir:   DefaultModelDir,
		Threads:    DefaultThreads,
		Upstream:   DefaultUpstream,
		Downstream: DefaultDownstream,
		Weights:    annotate.DefaultWeights(),
		MaxIter:    nmf.MaxIter,
		Tol:        nmf.Tol,
	}
}

// ConfigError reports an invalid configuration value.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func configErr(field, format string, args ...any) error {
	return &ConfigError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ParseVAF turns the command-line allele-fraction list into intervals.
// A single value v means [v, 1]; otherwise values are consecutive pairs.
func ParseVAF(values []float64) ([]annotate.VAFRange, error) {
	switch {
	case len(values) == 0:
		return nil, nil
	case len(values) == 1:
		return []annotate.VAFRange{{Min: values[0], Max: 1}}, nil
	case len(values)%2 != 0:
		return nil, configErr("vaf", "expected one value or min/max pairs, got %d values", len(values))
	}

	out := make([]annotate.VAFRange, 0, len(values)/2)
	for i := 0; i < len(values); i += 2 {
		out = append(out, annotate.VAFRange{Min: values[i], Max: values[i+1]})
	}
	return out, nil
}

// ParseWeights expands the command-line weight list into a table.
func ParseWeights(values []float64) (annotate.WeightTable, error) {
	for _, v := range values {
		if v < 0 {
			return nil, configErr("weight", "weights must be non-negative, got %g", v)
		}
	}
	return annotate.ExpandWeights(values), nil
}

// BasisPath returns the signature basis file used by the run.
func (c *Config) BasisPath() string {
	if c.Basis != "" {
		return c.Basis
	}
	return filepath.Join(c.ModelDir, gsgp.BasisFile(c.Genome))
}

// WindowOptions returns the gene window settings.
func (c *Config) WindowOptions() genome.WindowOptions {
	return genome.WindowOptions{
		Upstream:    c.Upstream,
		Downstream:  c.Downstream,
		StrandAware: c.StrandAwareWindow,
	}
}

// Filter returns the per-sample gate.
func (c *Config) Filter() annotate.Filter {
	return annotate.Filter{MinDepth: c.MinDepth, VAF: c.VAF}
}

// NMFOptions returns the solver settings.
func (c *Config) NMFOptions() gsgp.NMFOptions {
	return gsgp.NMFOptions{MaxIter: c.MaxIter, Tol: c.Tol, Seed: c.Seed}
}

// Validate checks every value before any input is read.
func (c *Config) Validate() error {
	required := []struct{ field, path string }{
		{"input", c.Input},
		{"reference", c.Reference},
	}
	for _, r := range required {
		if r.path == "" {
			return configErr(r.field, "path is required")
		}
		if r.path == "-" && r.field == "input" {
			continue
		}
		if err := checkFile(r.path); err != nil {
			return configErr(r.field, "%v", err)
		}
	}

	if c.GTFPrefix == "" {
		return configErr("gtf-prefix", "prefix is required")
	}
	for _, path := range []string{genome.GeneFile(c.GTFPrefix), genome.ExonFile(c.GTFPrefix)} {
		if err := checkFile(path); err != nil {
			return configErr("gtf-prefix", "%v", err)
		}
	}

	if c.OutputDir == "" {
		return configErr("output-dir", "directory is required")
	}

	if c.Basis == "" && !slices.Contains(Genomes, c.Genome) {
		return configErr("genome", "%q is not one of %v", c.Genome, Genomes)
	}
	if err := checkFile(c.BasisPath()); err != nil {
		return configErr("basis", "%v", err)
	}

	if c.Threads <= 0 {
		return configErr("threads", "must be positive, got %d", c.Threads)
	}
	if c.MinDepth < 0 {
		return configErr("depth", "must not be negative, got %d", c.MinDepth)
	}
	for _, r := range c.VAF {
		if r.Min < 0 || r.Max > 1 || r.Min > r.Max {
			return configErr("vaf", "interval [%g, %g] is not within [0, 1]", r.Min, r.Max)
		}
	}
	if c.Upstream < 0 || c.Downstream < 0 {
		return configErr("window", "upstream and downstream must not be negative")
	}

	var total float64
	for _, class := range annotate.AllClasses {
		w := c.Weights[class]
		if w < 0 {
			return configErr("weight", "%s weight is negative", class)
		}
		total += w
	}
	if total == 0 {
		return configErr("weight", "at least one context weight must be positive")
	}

	if c.MaxIter <= 0 {
		return configErr("max-iter", "must be positive, got %d", c.MaxIter)
	}
	if c.Tol < 0 {
		return configErr("tol", "must not be negative, got %g", c.Tol)
	}
	return nil
}

func checkFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}

// tempDir resolves the scratch directory. A directory created here is
// removed by the returned cleanup; an existing one is left in place.
func tempDir(dir string) (string, func(), error) {
	if dir == "" {
		d, err := os.MkdirTemp("", "vibe-gsgp-")
		if err != nil {
			return "", nil, fmt.Errorf("create temp dir: %w", err)
		}
		return d, func() { os.RemoveAll(d) }, nil
	}

	if _, err := os.Stat(dir); err == nil {
		return dir, func() {}, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", nil, fmt.Errorf("create temp dir: %w", err)
	}
	return dir, func() { os.RemoveAll(dir) }, nil
}

package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-gsgp/internal/pipeline"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compute per-gene signature exposures for every sample of a VCF",
		Example: `  vibe-gsgp run -I calls.vcf.gz -R GRCh38.fa -G gencode.v38 -O out
  vibe-gsgp run -I calls.vcf -R hg19.fa -G gencode.v19 -O out -g GRCh37 -d 10 -f 0.1,0.9
  vibe-gsgp run -I calls.vcf -R ref.fa -G genes -O out -w 2,1 --save-x --duckdb gsgp.duckdb`,
		Args: usageArgs(cobra.NoArgs),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline()
		},
	}

	f := cmd.Flags()
	f.StringP("input", "I", "", "Input VCF file, plain or gzipped ('-' for stdin)")
	f.StringP("reference", "R", "", "Reference FASTA (an .fai index is created if missing)")
	f.StringP("gtf-prefix", "G", "", "Prefix of the prepared <prefix>.gene.gtf and <prefix>.exon.gtf files")
	f.StringP("output-dir", "O", "", "Output directory")
	f.StringP("genome", "g", pipeline.DefaultGenome, "Genome build selecting the signature basis: "+strings.Join(pipeline.Genomes, ", "))
	f.String("model-dir", pipeline.DefaultModelDir, "Directory holding COSMIC_v3.2_SBS_<genome>.txt")
	f.String("basis", "", "Signature basis file (overrides --genome and --model-dir)")
	f.IntP("threads", "t", pipeline.DefaultThreads, "Number of workers")
	f.IntP("depth", "d", 0, "Minimum read depth (0 disables)")
	f.Float64SliceP("vaf", "f", nil, "VAF range(s): one minimum, or min,max pairs (repeat -f for more)")
	f.Int64("upstream", pipeline.DefaultUpstream, "Window upstream of each gene (bp)")
	f.Int64("downstream", pipeline.DefaultDownstream, "Window downstream of each gene (bp)")
	f.Bool("strand-aware-window", false, "Swap the window distances for minus-strand genes")
	f.Float64SliceP("weight", "w", nil, "Context weights, comma-separated: exon[/intron],intron,up[/down],down")
	f.Int("max-iter", 1000, "Maximum solver iterations")
	f.Float64("tol", 1e-16, "Solver convergence tolerance")
	f.Int64("random-seed", -1, "Seed for the initial exposures (negative for a constant start)")
	f.Bool("add-chr", false, "Prefix chromosome names with chr before gene lookup")
	f.Bool("save-x", false, "Also write the normalized matrix of each sample")
	f.String("duckdb", "", "Append exposures to this DuckDB database")
	f.String("log", "", "Log file (default vibe-gsgp_<timestamp>.log)")
	f.String("log-level", "info", "Log level: debug, info, warn, error")
	f.Bool("silent", false, "Do not log to the console")
	f.String("tmp-dir", "", "Scratch directory (created and removed if absent)")

	return cmd
}

func runPipeline() error {
	start := time.Now()

	logPath := viper.GetString("log")
	if logPath == "" {
		logPath = defaultLogFile(start)
	}
	logger, closeLog, err := newLogger(logPath, viper.GetString("log-level"), viper.GetBool("silent"))
	if err != nil {
		return err
	}
	defer closeLog()

	cfg, err := buildConfig()
	if err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		return err
	}
	logParameters(logger)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		return err
	}

	sum, err := pipeline.New(cfg, logger).Run()
	if err != nil {
		logger.Error("run failed", zap.Error(err))
		return err
	}
	logger.Info(fmt.Sprintf("%d of %d samples written to %s", sum.Decomposed, sum.Samples, cfg.OutputDir))
	return nil
}

// buildConfig resolves flags, environment and config file into one value.
func buildConfig() (pipeline.Config, error) {
	cfg := pipeline.DefaultConfig()
	cfg.Input = viper.GetString("input")
	cfg.Reference = viper.GetString("reference")
	cfg.GTFPrefix = viper.GetString("gtf-prefix")
	cfg.OutputDir = viper.GetString("output-dir")
	cfg.Genome = viper.GetString("genome")
	cfg.ModelDir = viper.GetString("model-dir")
	cfg.Basis = viper.GetString("basis")
	cfg.Threads = viper.GetInt("threads")
	cfg.MinDepth = viper.GetInt("depth")
	cfg.Upstream = viper.GetInt64("upstream")
	cfg.Downstream = viper.GetInt64("downstream")
	cfg.StrandAwareWindow = viper.GetBool("strand-aware-window")
	cfg.AddChr = viper.GetBool("add-chr")
	cfg.MaxIter = viper.GetInt("max-iter")
	cfg.Tol = viper.GetFloat64("tol")
	cfg.SaveX = viper.GetBool("save-x")
	cfg.DuckDB = viper.GetString("duckdb")
	cfg.TmpDir = viper.GetString("tmp-dir")

	if seed := viper.GetInt64("random-seed"); seed >= 0 {
		s := uint64(seed)
		cfg.Seed = &s
	}

	vaf, err := floatList("vaf")
	if err != nil {
		return cfg, err
	}
	if cfg.VAF, err = pipeline.ParseVAF(vaf); err != nil {
		return cfg, err
	}

	weights, err := floatList("weight")
	if err != nil {
		return cfg, err
	}
	if cfg.Weights, err = pipeline.ParseWeights(weights); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// floatList reads a list of numbers that may come from a flag ("[0.1,0.2]"),
// an environment variable ("0.1 0.2") or a YAML sequence.
func floatList(key string) ([]float64, error) {
	switch v := viper.Get(key).(type) {
	case nil:
		return nil, nil
	case []float64:
		return v, nil
	case []any:
		out := make([]float64, 0, len(v))
		for _, item := range v {
			f, err := strconv.ParseFloat(fmt.Sprint(item), 64)
			if err != nil {
				return nil, &pipeline.ConfigError{Field: key, Message: fmt.Sprintf("%v is not a number", item)}
			}
			out = append(out, f)
		}
		return out, nil
	default:
		s := strings.Trim(fmt.Sprint(v), "[]")
		fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
		out := make([]float64, 0, len(fields))
		for _, field := range fields {
			f, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, &pipeline.ConfigError{Field: key, Message: fmt.Sprintf("%q is not a number", field)}
			}
			out = append(out, f)
		}
		return out, nil
	}
}

// logParameters records every resolved setting once at start-up.
func logParameters(logger *zap.Logger) {
	settings := viper.AllSettings()
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	logger.Info("vibe-gsgp " + version)
	for _, k := range keys {
		logger.Info(fmt.Sprintf("%s: %v", k, viper.Get(k)))
	}
}

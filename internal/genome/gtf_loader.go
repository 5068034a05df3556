package genome

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/pgzip"
)

// Feature types written by the interval preparation step.
const (
	FeatureGene = "gene"
	FeatureExon = "exon"
)

// GeneFile and ExonFile return the interval file paths for a prefix.
func GeneFile(prefix string) string { return prefix + ".gene.gtf" }
func ExonFile(prefix string) string { return prefix + ".exon.gtf" }

// GTFLoader loads the pre-sorted gene and exon interval files.
// Lines are tab-delimited: chrom, gene id, feature type, start, end, score, strand, ...
type GTFLoader struct {
	prefix string
}

// NewGTFLoader creates a loader for <prefix>.gene.gtf and <prefix>.exon.gtf.
func NewGTFLoader(prefix string) *GTFLoader {
	return &GTFLoader{prefix: prefix}
}

// Load reads both interval files and builds the per-chromosome indexes.
func (l *GTFLoader) Load(opts WindowOptions) (*Genome, error) {
	genes, err := l.loadGenes(GeneFile(l.prefix))
	if err != nil {
		return nil, err
	}
	exons, err := l.loadExons(ExonFile(l.prefix))
	if err != nil {
		return nil, err
	}
	return Build(genes, exons, opts)
}

// gtfFeature represents a parsed interval line.
type gtfFeature struct {
	chrom       string
	geneID      string
	featureType string
	start       int64
	end         int64
	strand      string
}

func (l *GTFLoader) loadGenes(path string) ([]*GeneWindow, error) {
	var genes []*GeneWindow
	err := scanFile(path, func(feat *gtfFeature) {
		if feat.featureType != FeatureGene {
			return
		}
		genes = append(genes, &GeneWindow{
			ID:     feat.geneID,
			Chrom:  feat.chrom,
			Start:  feat.start,
			End:    feat.end,
			Strand: parseStrand(feat.strand),
			Order:  len(genes),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("load gene intervals: %w", err)
	}
	return genes, nil
}

func (l *GTFLoader) loadExons(path string) ([]*Exon, error) {
	var exons []*Exon
	err := scanFile(path, func(feat *gtfFeature) {
		if feat.featureType != FeatureExon {
			return
		}
		exons = append(exons, &Exon{
			GeneID: feat.geneID,
			Chrom:  feat.chrom,
			Start:  feat.start,
			End:    feat.end,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("load exon intervals: %w", err)
	}
	return exons, nil
}

// scanFile opens path (gzip by suffix) and calls fn for every well-formed line.
func scanFile(path string, fn func(*gtfFeature)) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open GTF file: %w", err)
	}
	defer f.Close()

	var reader io.Reader = f

	// Handle gzipped files
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("open gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	return parseGTF(reader, fn)
}

func parseGTF(reader io.Reader, fn func(*gtfFeature)) error {
	scanner := bufio.NewScanner(reader)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()

		// Skip comments and empty lines
		if strings.HasPrefix(line, "#") || line == "" {
			continue
		}

		feat, err := parseLine(line)
		if err != nil {
			continue // Skip malformed lines
		}
		fn(feat)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan GTF: %w", err)
	}
	return nil
}

// parseLine parses a single interval line.
func parseLine(line string) (*gtfFeature, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 7 {
		return nil, fmt.Errorf("invalid GTF line: expected at least 7 fields, got %d", len(fields))
	}

	start, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse start: %w", err)
	}

	end, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse end: %w", err)
	}
	if end < start {
		return nil, fmt.Errorf("end %d before start %d", end, start)
	}

	if fields[1] == "" {
		return nil, fmt.Errorf("empty gene id")
	}

	return &gtfFeature{
		chrom:       fields[0],
		geneID:      fields[1],
		featureType: fields[2],
		start:       start,
		end:         end,
		strand:      fields[6],
	}, nil
}

// parseStrand converts strand string to int8.
func parseStrand(s string) int8 {
	if s == "-" {
		return -1
	}
	return 1
}

package pipeline

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/inodb/vibe-gsgp/internal/annotate"
	"github.com/inodb/vibe-gsgp/internal/duckdb"
	"github.com/inodb/vibe-gsgp/internal/genome"
	"github.com/inodb/vibe-gsgp/internal/mutation"
	"github.com/inodb/vibe-gsgp/internal/output"
	"github.com/inodb/vibe-gsgp/internal/vcf"
)

const geneGTF = `chr1	GENE_A	gene	900	1100	.	+	.	.
chr1	GENE_B	gene	1400	1600	.	+	.	.
chr1	GENE_C	gene	1450	1700	.	-	.	.
`

const exonGTF = `chr1	GENE_A	exon	950	1050	.	+	.	.
chr1	GENE_B	exon	1580	1600	.	+	.	.
`

const vcfHeader = "##fileformat=VCFv4.2\n#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT"

// fixture writes a reference, gene intervals and a basis, and returns a
// config pointing at them. The reference has A at 1000 and T at 1500.
func fixture(t *testing.T, vcfBody string, samples ...string) Config {
	t.Helper()
	dir := t.TempDir()

	seq := []byte(strings.Repeat("ACGT", 500))
	seq[999] = 'A'
	var fa bytes.Buffer
	fa.WriteString(">chr1\n")
	for i := 0; i < len(seq); i += 60 {
		end := min(i+60, len(seq))
		fa.Write(seq[i:end])
		fa.WriteByte('\n')
	}
	refPath := filepath.Join(dir, "ref.fa")
	require.NoError(t, os.WriteFile(refPath, fa.Bytes(), 0o644))

	prefix := filepath.Join(dir, "genes")
	require.NoError(t, os.WriteFile(genome.GeneFile(prefix), []byte(geneGTF), 0o644))
	require.NoError(t, os.WriteFile(genome.ExonFile(prefix), []byte(exonGTF), 0o644))

	var basis strings.Builder
	basis.WriteString("Type\tSBS1\tSBS2\n")
	for i, c := range mutation.Classes() {
		basis.WriteString(c + "\t" + strconv.FormatFloat(float64(i%5+1)/300, 'g', -1, 64) +
			"\t" + strconv.FormatFloat(float64(i%3+1)/200, 'g', -1, 64) + "\n")
	}
	basisPath := filepath.Join(dir, "basis.txt")
	require.NoError(t, os.WriteFile(basisPath, []byte(basis.String()), 0o644))

	header := vcfHeader + "\t" + strings.Join(samples, "\t") + "\n"
	vcfPath := filepath.Join(dir, "in.vcf")
	require.NoError(t, os.WriteFile(vcfPath, []byte(header+vcfBody), 0o644))

	cfg := DefaultConfig()
	cfg.Input = vcfPath
	cfg.Reference = refPath
	cfg.GTFPrefix = prefix
	cfg.OutputDir = filepath.Join(dir, "out")
	cfg.Basis = basisPath
	cfg.Upstream = 10
	cfg.Downstream = 10
	cfg.Threads = 2
	cfg.SaveX = true
	return cfg
}

// readMatrix loads a gzip TSV output into row name -> column -> value.
func readMatrix(t *testing.T, path string) (map[string]map[string]float64, []string) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := pgzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	header := strings.Split(lines[0], "\t")
	require.Equal(t, output.IndexLabel, header[0])

	out := map[string]map[string]float64{}
	var order []string
	for _, line := range lines[1:] {
		fields := strings.Split(line, "\t")
		row := map[string]float64{}
		for j, s := range fields[1:] {
			v, err := strconv.ParseFloat(s, 64)
			require.NoError(t, err)
			row[header[j+1]] = v
		}
		out[fields[0]] = row
		order = append(order, fields[0])
	}
	return out, order
}

func TestRun_SingleExonVariant(t *testing.T) {
	cfg := fixture(t, "chr1\t1000\t.\tA\tG\t.\tPASS\t.\tGT:AD:DP\t0/1:15,15:30\n", "S1")

	sum, err := New(cfg, zap.NewNop()).Run()
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Decomposed)

	x, order := readMatrix(t, output.MatrixFile(cfg.OutputDir, "S1"))
	assert.Equal(t, []string{"GENE_A", "sample_level"}, order)
	assert.InDelta(t, 1.0, x["GENE_A"]["T[T>C]C"], 1e-12)
	assert.Equal(t, x["GENE_A"]["T[T>C]C"], x["sample_level"]["T[T>C]C"])

	w, order := readMatrix(t, output.SignaturesFile(cfg.OutputDir, "S1"))
	assert.Equal(t, []string{"GENE_A", "sample_level"}, order)
	assert.Positive(t, w["GENE_A"]["SBS1"]+w["GENE_A"]["SBS2"])
}

func TestRun_OverlappingGenesShareCredit(t *testing.T) {
	cfg := fixture(t, "chr1\t1500\t.\tT\tC\t.\tPASS\t.\tGT\t0/1\n", "S1")

	_, err := New(cfg, zap.NewNop()).Run()
	require.NoError(t, err)

	x, order := readMatrix(t, output.MatrixFile(cfg.OutputDir, "S1"))
	assert.Equal(t, []string{"GENE_B", "GENE_C", "sample_level"}, order)
	assert.InDelta(t, 0.5, x["GENE_B"]["G[T>C]A"], 1e-12)
	assert.InDelta(t, 0.5, x["GENE_C"]["G[T>C]A"], 1e-12)
	assert.InDelta(t, 1.0, x["sample_level"]["G[T>C]A"], 1e-12)
}

func TestRun_SampleFailingDepthIsSkipped(t *testing.T) {
	body := "chr1\t1000\t.\tA\tG\t.\tPASS\t.\tGT:AD:DP\t0/1:10,10:20\t0/1:2,2:4\n" +
		"chr1\t1500\t.\tT\tC\t.\tPASS\t.\tGT:AD:DP\t0/1:10,10:20\t0/1:3,3:6\n"
	cfg := fixture(t, body, "S1", "S2")
	cfg.MinDepth = 10

	core, logs := observer.New(zap.WarnLevel)
	sum, err := New(cfg, zap.New(core)).Run()
	require.NoError(t, err)

	assert.Equal(t, []string{"S2"}, sum.Skipped)
	assert.Equal(t, 1, sum.Decomposed)
	assert.FileExists(t, output.SignaturesFile(cfg.OutputDir, "S1"))
	assert.NoFileExists(t, output.SignaturesFile(cfg.OutputDir, "S2"))
	assert.NoFileExists(t, output.MatrixFile(cfg.OutputDir, "S2"))

	warned := logs.FilterField(zap.String("sample", "S2")).Len()
	assert.Equal(t, 1, warned)
}

func TestRun_SkipsUnusableRecords(t *testing.T) {
	body := "chr1\t1000\t.\tA\tG\t.\tPASS\t.\tGT\t0/1\n" +
		"chr1\t1000\t.\tAC\tA\t.\tPASS\t.\tGT\t0/1\n" + // deletion
		"chr1\tabc\t.\tA\tG\t.\tPASS\t.\tGT\t0/1\n" + // bad position
		"chr1\t1500\t.\tT\n" + // truncated
		"chrUn\t1500\t.\tT\tC\t.\tPASS\t.\tGT\t0/1\n" + // not in reference
		"1\t1500\t.\tT\tC\t.\tPASS\t.\tGT\t0/0\n" // prefix fallback, no called allele
	cfg := fixture(t, body, "S1")

	sum, err := New(cfg, zap.NewNop()).Run()
	require.NoError(t, err)

	assert.Equal(t, 6, sum.Records)
	assert.Equal(t, 2, sum.Malformed)
	assert.Equal(t, 3, sum.SNVs)
	assert.Equal(t, 2, sum.Candidates)
	assert.Equal(t, 1, sum.Annotated)
	assert.Equal(t, 1, sum.Decomposed)
}

func TestRun_AddChr(t *testing.T) {
	cfg := fixture(t, "1\t1000\t.\tA\tG\t.\tPASS\t.\tGT\t0/1\n", "S1")

	_, err := New(cfg, zap.NewNop()).Run()
	require.NoError(t, err)
	_, order := readMatrix(t, output.MatrixFile(cfg.OutputDir, "S1"))
	assert.Equal(t, []string{"none_gene", "sample_level"}, order)

	cfg.AddChr = true
	_, err = New(cfg, zap.NewNop()).Run()
	require.NoError(t, err)
	_, order = readMatrix(t, output.MatrixFile(cfg.OutputDir, "S1"))
	assert.Equal(t, []string{"GENE_A", "sample_level"}, order)
}

func TestRun_Idempotent(t *testing.T) {
	body := "chr1\t1000\t.\tA\tG\t.\tPASS\t.\tGT\t0/1\t1/1\n" +
		"chr1\t1500\t.\tT\tC\t.\tPASS\t.\tGT\t0/1\t0/0\n" +
		"chr1\t1501\t.\tA\tT\t.\tPASS\t.\tGT\t0/1\t0/1\n"
	cfg := fixture(t, body, "S1", "S2")
	seed := uint64(7)
	cfg.Seed = &seed

	run := func(outDir string) (map[string]map[string]float64, map[string]map[string]float64) {
		c := cfg
		c.OutputDir = outDir
		_, err := New(c, zap.NewNop()).Run()
		require.NoError(t, err)
		s1, _ := readMatrix(t, output.SignaturesFile(outDir, "S1"))
		s2, _ := readMatrix(t, output.SignaturesFile(outDir, "S2"))
		return s1, s2
	}

	a1, b1 := run(filepath.Join(t.TempDir(), "first"))
	a2, b2 := run(filepath.Join(t.TempDir(), "second"))

	assert.NotEmpty(t, a1)
	assert.Equal(t, a1, a2)
	assert.Equal(t, b1, b2)
}

func TestRun_DuckDBStore(t *testing.T) {
	cfg := fixture(t, "chr1\t1000\t.\tA\tG\t.\tPASS\t.\tGT\t0/1\n", "S1")
	cfg.DuckDB = filepath.Join(t.TempDir(), "results.duckdb")

	_, err := New(cfg, zap.NewNop()).Run()
	require.NoError(t, err)

	store, err := duckdb.Open(cfg.DuckDB)
	require.NoError(t, err)
	defer store.Close()

	exp, err := store.SampleExposures("S1")
	require.NoError(t, err)
	assert.Len(t, exp, 4, "two genes by two signatures")

	runs, err := store.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, cfg.Input, runs[0].Input.Path)
}

func TestRun_TempDirIsCleanedUp(t *testing.T) {
	cfg := fixture(t, "chr1\t1000\t.\tA\tG\t.\tPASS\t.\tGT\t0/1\n", "S1")
	cfg.TmpDir = filepath.Join(t.TempDir(), "scratch")

	_, err := New(cfg, zap.NewNop()).Run()
	require.NoError(t, err)
	assert.NoDirExists(t, cfg.TmpDir)
}

func TestRun_MissingBasis(t *testing.T) {
	cfg := fixture(t, "", "S1")
	cfg.Basis = filepath.Join(t.TempDir(), "missing.txt")

	_, err := New(cfg, zap.NewNop()).Run()
	require.Error(t, err)
}

func TestAnnotate_SampleCountMismatchIsAnError(t *testing.T) {
	g, err := genome.Build(
		[]*genome.GeneWindow{{ID: "GENE_A", Chrom: "chr1", Start: 900, End: 1100, Strand: 1}},
		nil, genome.WindowOptions{})
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Threads = 1
	p := New(cfg, zap.NewNop())
	items := []annotate.WorkItem{{
		Seq:     0,
		Variant: &vcf.Variant{Chrom: "chr1", Pos: 1000, Format: []string{"GT"}, Samples: []string{"0/1"}},
		Class:   "T[T>C]C",
	}}

	calls, err := p.annotate(g, items, 1, &Summary{})
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Len(t, calls[0], 1)

	_, err = p.annotate(g, items, 2, &Summary{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 sample results for 2 samples")
}

func TestMissingChromosomes(t *testing.T) {
	ref := []string{"chr1", "2", "chrX"}

	assert.Empty(t, missingChromosomes(ref, []string{"chr1", "chr2", "X"}))
	assert.Equal(t, []string{"chr3", "MT"}, missingChromosomes(ref, []string{"chr1", "chr3", "MT"}))
	assert.Equal(t, []string{"chr1"}, missingChromosomes(nil, []string{"chr1"}))
}

func TestRun_WarnsOnChromosomeMismatch(t *testing.T) {
	cfg := fixture(t, "chr1\t1000\t.\tA\tG\t.\tPASS\t.\tGT\t0/1\n", "S1")
	prefix := cfg.GTFPrefix
	require.NoError(t, os.WriteFile(genome.GeneFile(prefix),
		[]byte(geneGTF+"chr7\tGENE_Z\tgene\t100\t200\t.\t+\t.\t.\n"), 0o644))

	core, logs := observer.New(zap.WarnLevel)
	_, err := New(cfg, zap.New(core)).Run()
	require.NoError(t, err)

	warned := logs.FilterMessage("gene interval chromosomes not found in the reference").All()
	require.Len(t, warned, 1)
	assert.Equal(t, []any{"chr7"}, warned[0].ContextMap()["chromosomes"])
}

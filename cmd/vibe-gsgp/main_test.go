package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/inodb/vibe-gsgp/internal/annotate"
	"github.com/inodb/vibe-gsgp/internal/pipeline"
)

// isolate gives each test a fresh viper and an empty home directory.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	viper.Reset()
	t.Cleanup(viper.Reset)
	return home
}

func TestRun_Version(t *testing.T) {
	isolate(t)
	assert.Equal(t, ExitSuccess, run([]string{"--version"}))
}

func TestRun_UnknownFlag(t *testing.T) {
	isolate(t)
	assert.Equal(t, ExitUsage, run([]string{"run", "--no-such-flag"}))
}

func TestRun_StrayArgumentIsUsageError(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"space separated vaf", []string{"run", "-I", "in.vcf", "-f", "0.1", "0.9"}},
		{"space separated weights", []string{"run", "-I", "in.vcf", "-w", "2", "1"}},
		{"config get without key", []string{"config", "get"}},
		{"config set with extra value", []string{"config", "set", "threads", "4", "8"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			assert.Equal(t, ExitUsage, run(tt.args))
		})
	}
}

func TestRunCmd_ExamplesParse(t *testing.T) {
	isolate(t)
	examples := strings.Split(newRunCmd().Example, "\n")
	require.NotEmpty(t, examples)

	for _, line := range examples {
		fields := strings.Fields(line)
		require.Greater(t, len(fields), 2)
		require.Equal(t, []string{"vibe-gsgp", "run"}, fields[:2])

		cmd := newRunCmd()
		require.NoError(t, cmd.ParseFlags(fields[2:]), line)
		require.NoError(t, cmd.ValidateArgs(cmd.Flags().Args()), line)
		require.NoError(t, viper.BindPFlags(cmd.Flags()))

		_, err := buildConfig()
		require.NoError(t, err, line)
		viper.Reset()
	}
}

func TestRun_MissingInputIsUsageError(t *testing.T) {
	isolate(t)
	logPath := filepath.Join(t.TempDir(), "run.log")

	code := run([]string{"run", "--silent", "--log", logPath})
	assert.Equal(t, ExitUsage, code)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "invalid configuration")
}

func TestRun_InvalidLogLevel(t *testing.T) {
	isolate(t)
	code := run([]string{"run", "--silent", "--log", filepath.Join(t.TempDir(), "x.log"), "--log-level", "loud"})
	assert.Equal(t, ExitUsage, code)
}

func TestBuildConfig_Defaults(t *testing.T) {
	isolate(t)
	cmd := newRunCmd()
	require.NoError(t, viper.BindPFlags(cmd.Flags()))

	cfg, err := buildConfig()
	require.NoError(t, err)
	assert.Equal(t, pipeline.DefaultGenome, cfg.Genome)
	assert.Equal(t, pipeline.DefaultThreads, cfg.Threads)
	assert.Equal(t, int64(pipeline.DefaultUpstream), cfg.Upstream)
	assert.Equal(t, int64(pipeline.DefaultDownstream), cfg.Downstream)
	assert.Equal(t, 1000, cfg.MaxIter)
	assert.Nil(t, cfg.Seed)
	assert.Nil(t, cfg.VAF)
	assert.Equal(t, annotate.DefaultWeights(), cfg.Weights)
}

func TestBuildConfig_Flags(t *testing.T) {
	isolate(t)
	cmd := newRunCmd()
	require.NoError(t, cmd.Flags().Parse([]string{
		"-I", "in.vcf", "-g", "mm10", "-t", "8", "-d", "12",
		"-f", "0.1,0.4", "-f", "0.6,0.9", "-w", "2,1",
		"--random-seed", "5", "--add-chr", "--strand-aware-window",
	}))
	require.NoError(t, viper.BindPFlags(cmd.Flags()))

	cfg, err := buildConfig()
	require.NoError(t, err)
	assert.Equal(t, "in.vcf", cfg.Input)
	assert.Equal(t, "mm10", cfg.Genome)
	assert.Equal(t, 8, cfg.Threads)
	assert.Equal(t, 12, cfg.MinDepth)
	assert.Equal(t, []annotate.VAFRange{{Min: 0.1, Max: 0.4}, {Min: 0.6, Max: 0.9}}, cfg.VAF)
	assert.Equal(t, 2.0, cfg.Weights[annotate.ClassIntron])
	assert.Equal(t, 1.0, cfg.Weights[annotate.ClassUpstream])
	require.NotNil(t, cfg.Seed)
	assert.Equal(t, uint64(5), *cfg.Seed)
	assert.True(t, cfg.AddChr)
	assert.True(t, cfg.StrandAwareWindow)
}

func TestBuildConfig_OddVAFList(t *testing.T) {
	isolate(t)
	viper.Set("vaf", []float64{0.1, 0.2, 0.3})
	_, err := buildConfig()
	var cerr *pipeline.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "vaf", cerr.Field)
}

func TestFloatList(t *testing.T) {
	isolate(t)

	viper.Set("a", "[0.1,0.2]")
	got, err := floatList("a")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2}, got)

	viper.Set("b", "0.5 1")
	got, err = floatList("b")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 1}, got)

	viper.Set("c", []any{1, "2.5"})
	got, err = floatList("c")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2.5}, got)

	viper.Set("d", "[]")
	got, err = floatList("d")
	require.NoError(t, err)
	assert.Empty(t, got)

	viper.Set("e", "x")
	_, err = floatList("e")
	assert.Error(t, err)

	got, err = floatList("unset")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestNewLogger_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "run.log")
	logger, closeLog, err := newLogger(path, "info", true)
	require.NoError(t, err)

	logger.Info("hello", zap.Int("n", 1))
	logger.Debug("hidden")
	closeLog()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[INFO] hello")
	assert.NotContains(t, string(data), "hidden")
}

func TestDefaultLogFile(t *testing.T) {
	ts := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	assert.Equal(t, "vibe-gsgp_20240309140507.log", defaultLogFile(ts))
}

func TestConfigSetAndGet(t *testing.T) {
	home := isolate(t)
	assert.Equal(t, ExitSuccess, run([]string{"config", "set", "threads", "16"}))

	data, err := os.ReadFile(filepath.Join(home, configName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "threads: 16")

	viper.Reset()
	assert.Equal(t, ExitSuccess, run([]string{"config", "get", "threads"}))
	assert.Equal(t, ExitError, run([]string{"config", "get", "missing"}))
}

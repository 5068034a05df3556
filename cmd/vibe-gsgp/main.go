// Package main provides the vibe-gsgp command-line tool.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inodb/vibe-gsgp/internal/pipeline"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitUsage   = 2
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// usageError marks errors caused by how the command was invoked.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// usageArgs reports positional argument mistakes as usage errors.
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return &usageError{err: err}
		}
		return nil
	}
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	root := newRootCmd()
	root.SetArgs(args)

	err := root.Execute()
	if err == nil {
		return ExitSuccess
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	var uerr *usageError
	var cerr *pipeline.ConfigError
	if errors.As(err, &uerr) || errors.As(err, &cerr) {
		return ExitUsage
	}
	return ExitError
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vibe-gsgp",
		Short: "Gene somatic genome patterns from SNV calls",
		Long: `vibe-gsgp assigns every SNV of a multi-sample VCF to nearby genes,
builds a gene by trinucleotide-class matrix per sample and projects it onto
a fixed COSMIC SBS signature basis, writing per-gene exposures per sample.`,
		Version:       fmt.Sprintf("%s (%s) built %s", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	root.AddCommand(newRunCmd())
	root.AddCommand(newConfigCmd())
	return root
}

// initConfig reads ~/.vibe-gsgp.yaml and VIBE_GSGP_* environment variables.
func initConfig() error {
	viper.SetEnvPrefix("VIBE_GSGP")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	viper.SetConfigFile(filepath.Join(home, configName))
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(filepath.Join(home, configName)); statErr == nil {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	return nil
}

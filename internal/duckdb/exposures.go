package duckdb

import (
	"context"
	"database/sql/driver"
	"fmt"

	goduckdb "github.com/marcboeker/go-duckdb"
	"gonum.org/v1/gonum/mat"
)

// Exposure is one (sample, gene, signature) score.
type Exposure struct {
	Sample    string
	Gene      string
	Signature string
	Value     float64
}

// WriteSampleExposures replaces the stored exposures of a sample with the
// rows of w (genes × signatures) using the Appender API.
func (s *Store) WriteSampleExposures(sample string, genes, signatures []string, w mat.Matrix) error {
	r, c := w.Dims()
	if r != len(genes) || c != len(signatures) {
		return fmt.Errorf("exposure matrix is %d×%d, labels are %d×%d", r, c, len(genes), len(signatures))
	}
	if err := s.ClearSample(sample); err != nil {
		return err
	}

	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "exposures")
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	for i, gene := range genes {
		for j, sig := range signatures {
			if err := appender.AppendRow(sample, gene, sig, w.At(i, j)); err != nil {
				return fmt.Errorf("append exposure: %w", err)
			}
		}
	}

	return appender.Flush()
}

// ClearSample removes all exposures of a sample.
func (s *Store) ClearSample(sample string) error {
	if _, err := s.db.Exec("DELETE FROM exposures WHERE sample=?", sample); err != nil {
		return fmt.Errorf("clear sample %s: %w", sample, err)
	}
	return nil
}

// SampleExposures returns the stored exposures of one sample.
func (s *Store) SampleExposures(sample string) ([]Exposure, error) {
	rows, err := s.db.Query(`SELECT sample, gene, signature, exposure
		FROM exposures
		WHERE sample=?
		ORDER BY gene, signature`, sample)
	if err != nil {
		return nil, fmt.Errorf("query sample: %w", err)
	}
	defer rows.Close()

	return scanExposures(rows)
}

// GeneExposures returns the stored exposures of one gene across samples.
func (s *Store) GeneExposures(gene string) ([]Exposure, error) {
	rows, err := s.db.Query(`SELECT sample, gene, signature, exposure
		FROM exposures
		WHERE gene=?
		ORDER BY sample, signature`, gene)
	if err != nil {
		return nil, fmt.Errorf("query gene: %w", err)
	}
	defer rows.Close()

	return scanExposures(rows)
}

// scanExposures scans rows into Exposure slices.
func scanExposures(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]Exposure, error) {
	var out []Exposure
	for rows.Next() {
		var e Exposure
		if err := rows.Scan(&e.Sample, &e.Gene, &e.Signature, &e.Value); err != nil {
			return nil, fmt.Errorf("scan exposure: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exposures: %w", err)
	}
	return out, nil
}

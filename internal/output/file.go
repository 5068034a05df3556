package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/pgzip"
	"gonum.org/v1/gonum/mat"
)

// SignaturesFile returns the exposure output path of a sample.
func SignaturesFile(dir, sample string) string {
	return filepath.Join(dir, sample+".signatures.txt.gz")
}

// MatrixFile returns the pre-decomposition matrix path of a sample.
func MatrixFile(dir, sample string) string {
	return filepath.Join(dir, sample+".X.txt.gz")
}

// WriteMatrixFile writes a gzip TSV matrix to path. The data goes to a
// scratch file in tmpDir first and is moved into place only when complete.
func WriteMatrixFile(path, tmpDir string, rows, columns []string, m mat.Matrix) error {
	tmp, err := os.CreateTemp(tmpDir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create scratch file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	gz := pgzip.NewWriter(tmp)
	tw := NewTabWriter(gz, columns)
	if err := tw.WriteMatrix(rows, m); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tw.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush %s: %w", path, err)
	}
	if err := gz.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("compress %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close scratch file: %w", err)
	}

	return move(tmpPath, path)
}

// move renames src to dst, copying when they are on different file systems.
func move(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open scratch file: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("copy to %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("close %s: %w", dst, err)
	}
	return nil
}

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const logTimeLayout = "2006-01-02 15:04:05"

// defaultLogFile names the log after the start time of the run.
func defaultLogFile(now time.Time) string {
	return fmt.Sprintf("vibe-gsgp_%s.log", now.Format("20060102150405"))
}

func bracketLevelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString("[" + l.CapitalString() + "]")
}

func encoderConfig(color bool) zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "time"
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout(logTimeLayout)
	cfg.EncodeLevel = bracketLevelEncoder
	if color {
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.CallerKey = zapcore.OmitKey
	cfg.ConsoleSeparator = " "
	return cfg
}

// newLogger writes to the log file and, unless silent, to stderr.
// The returned function flushes and closes the file.
func newLogger(path, level string, silent bool) (*zap.Logger, func(), error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, nil, &usageError{err: fmt.Errorf("invalid log level %q", level)}
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig(false)), zapcore.AddSync(f), lvl),
	}
	if !silent {
		color := isatty.IsTerminal(os.Stderr.Fd())
		cores = append(cores,
			zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig(color)), zapcore.Lock(os.Stderr), lvl))
	}

	logger := zap.New(zapcore.NewTee(cores...))
	closeFn := func() {
		_ = logger.Sync()
		f.Close()
	}
	return logger, closeFn, nil
}

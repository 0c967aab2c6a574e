package obslog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/park285/cheese-chess-server/internal/config"
)

// Process-wide logger, a no-op until Init runs.
var globalLogger = zap.NewNop()

// L returns the global logger.
func L() *zap.Logger { return globalLogger }

// Init builds the global logger from cfg. Console and file sinks may be combined.
func Init(cfg config.LogConfig) error {
	logger, err := New(cfg)
	if err != nil {
		return err
	}
	globalLogger = logger
	return nil
}

const defaultLogFile = "logs/chess-server.log"

// encoders maps LOG_FORMAT to its encoder; "legacy" writes pipe-separated lines.
var encoders = map[string]func() zapcore.Encoder{
	"legacy": func() zapcore.Encoder {
		ec := zap.NewProductionEncoderConfig()
		ec.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
		ec.EncodeLevel = zapcore.CapitalLevelEncoder
		ec.ConsoleSeparator = " | "
		return zapcore.NewConsoleEncoder(ec)
	},
	"console": func() zapcore.Encoder {
		ec := zap.NewProductionEncoderConfig()
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		ec.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewConsoleEncoder(ec)
	},
	"json": func() zapcore.Encoder {
		ec := zap.NewProductionEncoderConfig()
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		ec.EncodeLevel = zapcore.LowercaseLevelEncoder
		return zapcore.NewJSONEncoder(ec)
	},
}

// New builds a logger without installing it.
func New(cfg config.LogConfig) (*zap.Logger, error) {
	format := strings.ToLower(strings.TrimSpace(cfg.Format))
	newEncoder, ok := encoders[format]
	if !ok {
		format, newEncoder = "legacy", encoders["legacy"]
	}
	level := parseLevel(cfg.Level)

	var sinks []zapcore.WriteSyncer
	if cfg.Console {
		sinks = append(sinks, zapcore.Lock(os.Stdout))
	}
	if cfg.ToFile {
		f, err := openLogFile(cfg.File)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, f)
	}
	if len(sinks) == 0 {
		// nothing configured: still say something on stdout
		sinks = append(sinks, zapcore.Lock(os.Stdout))
	}

	core := zapcore.NewCore(newEncoder(), zapcore.NewMultiWriteSyncer(sinks...), level)
	opts := []zap.Option{zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.Caller || format == "legacy" {
		opts = append(opts, zap.AddCaller())
	}
	return zap.New(core, opts...), nil
}

func openLogFile(path string) (zapcore.WriteSyncer, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = defaultLogFile
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return zapcore.AddSync(f), nil
}

func parseLevel(s string) zapcore.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	level, err := zapcore.ParseLevel(s)
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}

package logging

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls where and how log entries are written.
type Config struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level" json:"level"`

	// Format selects the console encoding: "console" (default) or "json"
	Format string `yaml:"format" json:"format"`

	// File enables an additional rotated JSON log file when non-empty
	File       string `yaml:"file" json:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" json:"max_age_days"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// Logger provides leveled logging for one component of the worker.
// All loggers created after Initialize share the same zap cores and carry
// the process-wide run ID so entries from one worker run can be correlated.
type Logger struct {
	component string
	zl        *zap.Logger
	sugar     *zap.SugaredLogger
}

var (
	// base is the root zap logger all component loggers derive from
	base atomic.Pointer[zap.Logger]

	// Global run ID for the current execution
	runID     string
	runIDOnce sync.Once
)

// getRunID returns or creates the run ID for this execution
func getRunID() string {
	runIDOnce.Do(func() {
		runID = uuid.New().String()
	})
	return runID
}

// Initialize builds the root logger from cfg. Console output goes to
// console (stderr when nil); when cfg.File is set a JSON core backed by
// lumberjack is added so long-running workers rotate their own files.
func Initialize(cfg Config, console zapcore.WriteSyncer) error {
	level := zap.NewAtomicLevel()
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil {
			return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}

	if console == nil {
		console = zapcore.Lock(os.Stderr)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(newEncoder(cfg.Format), console, level),
	}

	if cfg.File != "" {
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSizeMB, 50),
			MaxBackups: orDefault(cfg.MaxBackups, 5),
			MaxAge:     orDefault(cfg.MaxAgeDays, 14),
			Compress:   cfg.Compress,
		})
		cores = append(cores, zapcore.NewCore(newEncoder("json"), fileWriter, level))
	}

	zl := zap.New(zapcore.NewTee(cores...), zap.AddStacktrace(zap.ErrorLevel)).
		With(zap.String("run_id", getRunID()))
	base.Store(zl)
	return nil
}

func newEncoder(format string) zapcore.Encoder {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	if format == "json" {
		return zapcore.NewJSONEncoder(encCfg)
	}
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewConsoleEncoder(encCfg)
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// root returns the initialized root logger, falling back to a stderr
// logger at info level when Initialize was never called.
func root() *zap.Logger {
	if zl := base.Load(); zl != nil {
		return zl
	}
	if err := Initialize(Config{}, nil); err != nil {
		return zap.NewNop()
	}
	return base.Load()
}

// NewLogger creates a logger for a specific component.
func NewLogger(component string) *Logger {
	return FromZap(root(), component)
}

// FromZap wraps an existing zap logger, mainly so tests can inject an
// observer core.
func FromZap(zl *zap.Logger, component string) *Logger {
	named := zl.Named(component).With(zap.String("component", component))
	return &Logger{
		component: component,
		zl:        named,
		sugar:     named.Sugar(),
	}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return FromZap(zap.NewNop(), "nop")
}

// Printf logs a formatted message at info level
func (l *Logger) Printf(format string, v ...interface{}) {
	l.sugar.Infof(format, v...)
}

// Debugf logs a debug-level message
func (l *Logger) Debugf(format string, v ...interface{}) {
	l.sugar.Debugf(format, v...)
}

// Infof logs an info-level message
func (l *Logger) Infof(format string, v ...interface{}) {
	l.sugar.Infof(format, v...)
}

// Warnf logs a warning-level message
func (l *Logger) Warnf(format string, v ...interface{}) {
	l.sugar.Warnf(format, v...)
}

// Errorf logs an error-level message
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.sugar.Errorf(format, v...)
}

// With returns a child logger that adds the given zap fields to every entry.
func (l *Logger) With(fields ...zap.Field) *Logger {
	child := l.zl.With(fields...)
	return &Logger{component: l.component, zl: child, sugar: child.Sugar()}
}

// Zap exposes the underlying zap logger.
func (l *Logger) Zap() *zap.Logger {
	return l.zl
}

// Component returns the component name this logger was created with.
func (l *Logger) Component() string {
	return l.component
}

// Sync flushes buffered entries. Errors from syncing stderr on some
// platforms are expected and ignored by callers.
func (l *Logger) Sync() error {
	return l.zl.Sync()
}

// GetRunID returns the current global run ID
func GetRunID() string {
	return getRunID()
}

// ResetForTest clears the root logger and run ID.
// It must only be used from tests.
func ResetForTest() {
	base.Store(nil)
	runID = ""
	runIDOnce = sync.Once{}
}

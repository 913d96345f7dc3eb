// Package observability owns the process-wide zap logger. It is initialized
// once from configuration at startup; components take child loggers via
// GetLogger().Named("component").
package observability

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/ujjawalkaushik1110/comet-agentic-browser/internal/config"
)

var (
	globalLogger atomic.Pointer[zap.Logger]
	fallbackOnce sync.Once
)

// ANSI escape sequences for the colorized console level encoder.
const (
	colorReset   = "\x1b[0m"
	colorRed     = "\x1b[31m"
	colorYellow  = "\x1b[33m"
	colorBlue    = "\x1b[34m"
	colorMagenta = "\x1b[35m"
)

var levelColors = map[zapcore.Level]string{
	zapcore.DebugLevel:  colorMagenta,
	zapcore.InfoLevel:   colorBlue,
	zapcore.WarnLevel:   colorYellow,
	zapcore.ErrorLevel:  colorRed,
	zapcore.DPanicLevel: colorRed,
	zapcore.PanicLevel:  colorRed,
	zapcore.FatalLevel:  colorRed,
}

// Initialize builds the global logger from cfg, writing console output to
// consoleWriter and, when a log file is configured, teeing a rotated file
// core alongside it. It replaces zap's globals and redirects the standard
// library logger.
func Initialize(cfg config.LoggerConfig, consoleWriter zapcore.WriteSyncer) error {
	var level zapcore.Level
	if err := level.Set(strings.ToLower(cfg.Level)); err != nil {
		return fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(newEncoder(cfg, cfg.Colors), consoleWriter, level),
	}
	if cfg.LogFile != "" {
		fileSink := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		})
		// File output is always plain: no ANSI codes in rotated logs.
		cores = append(cores, zapcore.NewCore(newEncoder(cfg, false), fileSink, level))
	}

	opts := []zap.Option{zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.AddSource {
		opts = append(opts, zap.AddCaller())
	}

	logger := zap.New(zapcore.NewTee(cores...), opts...)
	if cfg.ServiceName != "" {
		logger = logger.Named(cfg.ServiceName)
	}

	globalLogger.Store(logger)
	zap.ReplaceGlobals(logger)
	zap.RedirectStdLog(logger)
	return nil
}

// InitializeLogger initializes the global logger writing to stdout.
func InitializeLogger(cfg config.LoggerConfig) error {
	return Initialize(cfg, zapcore.Lock(os.Stdout))
}

func newEncoder(cfg config.LoggerConfig, colorize bool) zapcore.Encoder {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000Z07:00")
	encCfg.EncodeDuration = zapcore.StringDurationEncoder

	if strings.EqualFold(cfg.Format, "console") {
		encCfg.ConsoleSeparator = "  "
		if colorize {
			encCfg.EncodeLevel = colorizedLevelEncoder
		} else {
			encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		}
		return zapcore.NewConsoleEncoder(encCfg)
	}

	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewJSONEncoder(encCfg)
}

func colorizedLevelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	color, ok := levelColors[l]
	if !ok {
		color = colorReset
	}
	enc.AppendString(color + l.CapitalString() + colorReset)
}

// GetLogger returns the global logger. Before Initialize has run it installs
// a development fallback so early code paths and tests still get output.
func GetLogger() *zap.Logger {
	if l := globalLogger.Load(); l != nil {
		return l
	}
	fallbackOnce.Do(func() {
		if globalLogger.Load() != nil {
			return
		}
		fallback, err := zap.NewDevelopment()
		if err != nil {
			fallback = zap.NewNop()
		}
		fallback.Warn("Logger accessed before initialization; using development fallback.")
		globalLogger.Store(fallback)
	})
	return globalLogger.Load()
}

// Sync flushes buffered log entries. Errors from syncing character devices
// such as stdout are expected on some platforms and ignored.
func Sync() {
	l := globalLogger.Load()
	if l == nil {
		return
	}
	if err := l.Sync(); err != nil {
		msg := err.Error()
		if strings.Contains(msg, "sync /dev/stdout") ||
			strings.Contains(msg, "invalid argument") ||
			strings.Contains(msg, "inappropriate ioctl") ||
			strings.Contains(msg, "operation not supported") {
			return
		}
		fmt.Fprintf(os.Stderr, "failed to sync logger: %v\n", err)
	}
}

// ResetForTest clears the global logger so tests can exercise
// initialization paths in isolation.
func ResetForTest() {
	globalLogger.Store(nil)
	fallbackOnce = sync.Once{}
}

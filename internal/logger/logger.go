package logger

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps a logrus entry so call sites can chain structured fields
// without touching logrus directly.
type Logger struct {
	*logrus.Entry
}

// Config controls log level, format and optional file rotation.
type Config struct {
	Level       string // debug, info, warn, error
	Format      string // json or text
	Output      io.Writer
	ServiceName string
	File        string // when set, logs also rotate into this file
	MaxSizeMB   int
	MaxBackups  int
	MaxAgeDays  int
}

// DefaultConfig returns the config used when none is supplied.
func DefaultConfig() *Config {
	return &Config{
		Level:       "info",
		Format:      "json",
		Output:      os.Stdout,
		ServiceName: "newsletters",
	}
}

var (
	defaultLogger *Logger
	defaultMu     sync.RWMutex
)

// New builds a Logger from cfg. A nil cfg falls back to DefaultConfig.
func New(cfg *Config) *Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	base := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	base.SetLevel(level)
	base.SetReportCaller(true)

	if strings.EqualFold(cfg.Format, "text") {
		base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:    true,
			TimestampFormat:  "2006-01-02T15:04:05.000Z07:00",
			CallerPrettyfier: callerPrettyfier,
		})
	} else {
		base.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
			CallerPrettyfier: callerPrettyfier,
		})
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if cfg.File != "" {
		rotated := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		out = io.MultiWriter(out, rotated)
	}
	base.SetOutput(out)

	return &Logger{Entry: base.WithField("service", cfg.ServiceName)}
}

// SetDefault replaces the process-wide logger used by Default and the
// Ctx helpers when no logger travels in the context.
func SetDefault(l *Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}

// Default returns the process-wide logger, creating one lazily.
func Default() *Logger {
	defaultMu.RLock()
	l := defaultLogger
	defaultMu.RUnlock()
	if l != nil {
		return l
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = New(nil)
	}
	return defaultLogger
}

// WithFields returns a child logger carrying the extra fields.
func (l *Logger) WithFields(fields Fields) *Logger {
	return &Logger{Entry: l.Entry.WithFields(logrus.Fields(fields))}
}

// WithField returns a child logger carrying one extra field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{Entry: l.Entry.WithField(key, value)}
}

// WithError returns a child logger carrying err under the "error" key.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{Entry: l.Entry.WithError(err)}
}

func callerPrettyfier(frame *runtime.Frame) (string, string) {
	fn := frame.Function
	if idx := strings.LastIndex(fn, "/"); idx != -1 {
		fn = fn[idx+1:]
	}
	return fn, filepath.Base(frame.File) + ":" + strconv.Itoa(frame.Line)
}

// Package logging provides structured logging for triage.
// Logs go to daily files (triage-YYYY-MM-DD.log) in JSON or text form.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	filePrefix = "triage-"
	fileSuffix = ".log"
	dateLayout = "2006-01-02"
)

// Logger wraps zerolog with component tagging and file management.
type Logger struct {
	zl        zerolog.Logger
	component string
	logDir    string
	file      *os.File
	mu        sync.Mutex
}

// Config holds logging configuration.
type Config struct {
	Level         string    // debug, info, warn, error
	Path          string    // Log directory; empty logs to Output or stderr
	Format        string    // json, text
	RetentionDays int       // Days to keep logs (default 7)
	Output        io.Writer // Extra writer, mainly for tests
}

// DefaultConfig returns default logging configuration.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		Level:         "info",
		Path:          filepath.Join(home, ".local", "share", "triage", "logs"),
		Format:        "json",
		RetentionDays: 7,
	}
}

var (
	globalLogger *Logger
	globalMu     sync.RWMutex
)

// Init initializes the global logger.
func Init(cfg Config) error {
	logger, err := New(cfg)
	if err != nil {
		return err
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger != nil {
		_ = globalLogger.Close()
	}
	globalLogger = logger
	return nil
}

// New creates a Logger.
func New(cfg Config) (*Logger, error) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "json"
	}
	if cfg.RetentionDays == 0 {
		cfg.RetentionDays = 7
	}

	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	logger := &Logger{logDir: expandPath(cfg.Path)}

	var writers []io.Writer
	if logger.logDir != "" {
		if err := os.MkdirAll(logger.logDir, 0755); err != nil {
			return nil, fmt.Errorf("creating log dir: %w", err)
		}
		f, err := os.OpenFile(logger.currentLogPath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		logger.file = f
		writers = append(writers, f)

		go logger.cleanOldLogs(cfg.RetentionDays)
	}
	if cfg.Output != nil {
		writers = append(writers, cfg.Output)
	}

	var output io.Writer
	switch len(writers) {
	case 0:
		output = os.Stderr
	case 1:
		output = writers[0]
	default:
		output = io.MultiWriter(writers...)
	}

	if cfg.Format == "text" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		}
	}

	logger.zl = zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()

	return logger, nil
}

func (l *Logger) currentLogPath() string {
	return filepath.Join(l.logDir, FileName(time.Now()))
}

// FileName returns the log file name for the given day.
func FileName(day time.Time) string {
	return filePrefix + day.Format(dateLayout) + fileSuffix
}

// cleanOldLogs removes log files older than retentionDays.
func (l *Logger) cleanOldLogs(retentionDays int) {
	entries, err := os.ReadDir(l.logDir)
	if err != nil {
		return
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	for _, entry := range entries {
		day, ok := parseFileDate(entry.Name())
		if entry.IsDir() || !ok {
			continue
		}
		if day.Before(cutoff) {
			_ = os.Remove(filepath.Join(l.logDir, entry.Name()))
		}
	}
}

func parseFileDate(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
		return time.Time{}, false
	}
	day, err := time.Parse(dateLayout, strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix))
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}

// WithComponent returns a Logger tagged with a component field.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		zl:        l.zl.With().Str("component", component).Logger(),
		component: component,
		logDir:    l.logDir,
		file:      l.file,
	}
}

// With returns a zerolog context for adding fields.
func (l *Logger) With() zerolog.Context {
	return l.zl.With()
}

// Zerolog exposes the underlying logger.
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zl
}

func (l *Logger) Debug(msg string) { l.zl.Debug().Msg(msg) }
func (l *Logger) Info(msg string)  { l.zl.Info().Msg(msg) }
func (l *Logger) Warn(msg string)  { l.zl.Warn().Msg(msg) }
func (l *Logger) Error(msg string) { l.zl.Error().Msg(msg) }

func (l *Logger) Debugf(format string, args ...any) { l.zl.Debug().Msgf(format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.zl.Info().Msgf(format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.zl.Warn().Msgf(format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.zl.Error().Msgf(format, args...) }

// DebugCtx logs a debug message with structured fields.
func (l *Logger) DebugCtx(msg string, fields map[string]any) {
	withFields(l.zl.Debug(), fields).Msg(msg)
}

// InfoCtx logs an info message with structured fields.
func (l *Logger) InfoCtx(msg string, fields map[string]any) {
	withFields(l.zl.Info(), fields).Msg(msg)
}

// WarnCtx logs a warning with structured fields.
func (l *Logger) WarnCtx(msg string, fields map[string]any) {
	withFields(l.zl.Warn(), fields).Msg(msg)
}

// ErrorCtx logs an error message with structured fields.
func (l *Logger) ErrorCtx(msg string, fields map[string]any) {
	withFields(l.zl.Error(), fields).Msg(msg)
}

// Err starts an error event carrying err.
func (l *Logger) Err(err error) *zerolog.Event {
	return l.zl.Error().Err(err)
}

// withFields adds fields in key order so output is stable.
func withFields(event *zerolog.Event, fields map[string]any) *zerolog.Event {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		event = event.Interface(k, fields[k])
	}
	return event
}

// Close closes the log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Dir returns the log directory, or "" when logging to a stream.
func (l *Logger) Dir() string {
	return l.logDir
}

// LogFiles returns log file paths, newest first.
func LogFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if _, ok := parseFileDate(entry.Name()); ok && !entry.IsDir() {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(files)))
	return files, nil
}

// Get returns the global logger, or a stderr logger before Init.
func Get() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalLogger == nil {
		return &Logger{
			zl: zerolog.New(os.Stderr).With().Timestamp().Logger(),
		}
	}
	return globalLogger
}

// Component returns the global logger tagged with a component.
func Component(name string) *Logger {
	return Get().WithComponent(name)
}

func parseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "info":
		return zerolog.InfoLevel, nil
	case "warn":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("invalid log level: %s", level)
	}
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	charm "github.com/charmbracelet/log"
)

// Level represents log severity levels
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) charm() charm.Level {
	switch l {
	case DebugLevel:
		return charm.DebugLevel
	case WarnLevel:
		return charm.WarnLevel
	case ErrorLevel:
		return charm.ErrorLevel
	default:
		return charm.InfoLevel
	}
}

// Logger interface defines structured logging methods
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	SetLevel(level Level)
	SetJSONOutput(enabled bool)
}

// LoggerConfig holds configuration for the logger
type LoggerConfig struct {
	Level      Level
	JSONOutput bool
	Prefix     string
	Stderr     io.Writer
}

// DefaultLogger is the default implementation of Logger
type DefaultLogger struct {
	mu    sync.Mutex
	level Level
	inner *charm.Logger
}

// New creates a new logger with the given configuration
func New(cfg LoggerConfig) *DefaultLogger {
	w := cfg.Stderr
	if w == nil {
		w = os.Stderr
	}
	inner := charm.NewWithOptions(w, charm.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           cfg.Level.charm(),
		Prefix:          cfg.Prefix,
	})
	l := &DefaultLogger{level: cfg.Level, inner: inner}
	l.SetJSONOutput(cfg.JSONOutput)
	return l
}

// Nop returns a logger that discards everything.
func Nop() *DefaultLogger {
	return New(LoggerConfig{Level: ErrorLevel, Stderr: io.Discard})
}

// OrNop returns l, or a discarding logger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop()
	}
	return l
}

// Debug logs a debug message
func (l *DefaultLogger) Debug(msg string, args ...interface{}) {
	l.inner.Debug(msg, args...)
}

// Info logs an info message
func (l *DefaultLogger) Info(msg string, args ...interface{}) {
	l.inner.Info(msg, args...)
}

// Warn logs a warning message
func (l *DefaultLogger) Warn(msg string, args ...interface{}) {
	l.inner.Warn(msg, args...)
}

// Error logs an error message
func (l *DefaultLogger) Error(msg string, args ...interface{}) {
	l.inner.Error(msg, args...)
}

// SetLevel sets the minimum log level
func (l *DefaultLogger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
	l.inner.SetLevel(level.charm())
}

// Level returns the minimum log level.
func (l *DefaultLogger) Level() Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// SetJSONOutput enables or disables JSON output
func (l *DefaultLogger) SetJSONOutput(enabled bool) {
	if enabled {
		l.inner.SetFormatter(charm.JSONFormatter)
	} else {
		l.inner.SetFormatter(charm.TextFormatter)
	}
}

// Verbosity is how much the parallelization techniques report.
type Verbosity int

const (
	VerbosityDisabled Verbosity = iota // Errors only
	VerbosityMinimal                   // One line per decision
	VerbosityPipeline                  // Plus stage and segment summaries
	VerbosityMaximal                   // Plus stage, queue and environment dumps
)

var verbosityNames = []string{"disabled", "minimal", "pipeline", "maximal"}

func (v Verbosity) String() string {
	if v < 0 || int(v) >= len(verbosityNames) {
		return fmt.Sprintf("verbosity(%d)", int(v))
	}
	return verbosityNames[v]
}

// ParseVerbosity parses a verbosity name or its number.
func ParseVerbosity(s string) (Verbosity, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range verbosityNames {
		if s == name || s == fmt.Sprint(i) {
			return Verbosity(i), nil
		}
	}
	return VerbosityDisabled, fmt.Errorf("unknown verbosity %q (want one of %s)", s, strings.Join(verbosityNames, ", "))
}

// FromVerbosity returns the log level that shows the messages of v.
func FromVerbosity(v Verbosity) Level {
	switch {
	case v <= VerbosityDisabled:
		return WarnLevel
	case v == VerbosityMinimal:
		return InfoLevel
	default:
		return DebugLevel
	}
}

// Progress tracks the start of an operation and logs its completion with
// the elapsed time.
type Progress struct {
	logger Logger
	start  time.Time
}

// NewProgress starts tracking an operation.
func NewProgress(l Logger) *Progress {
	return &Progress{logger: OrNop(l), start: time.Now()}
}

// Done logs msg along with the elapsed time, e.g. "Planned 3 loops (12ms)".
func (p *Progress) Done(msg string, args ...interface{}) {
	p.logger.Info(fmt.Sprintf("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond)), args...)
}

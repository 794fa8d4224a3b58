package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger represents a simple logger interface
type Logger interface {
	Debug(msg string, keyvals ...interface{})
	Info(msg string, keyvals ...interface{})
	Warn(msg string, keyvals ...interface{})
	Error(msg string, keyvals ...interface{})
	With(keyvals ...interface{}) Logger
}

// Options configures a logrus-backed Logger
type Options struct {
	Level  string
	Format string // "json" or "text"
	Output io.Writer
}

type logrusLogger struct {
	entry *logrus.Entry
}

// NewLogger creates a text logger writing to stdout at the specified level
func NewLogger(level string) Logger {
	return New(Options{Level: level})
}

// New creates a logger from options
func New(opts Options) Logger {
	l := logrus.New()
	l.SetLevel(parseLevel(opts.Level))

	if opts.Output != nil {
		l.SetOutput(opts.Output)
	} else {
		l.SetOutput(os.Stdout)
	}

	if strings.EqualFold(opts.Format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return &logrusLogger{entry: logrus.NewEntry(l)}
}

// NewNop returns a logger that discards everything
func NewNop() Logger {
	return New(Options{Level: "error", Output: io.Discard})
}

func parseLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

func (l *logrusLogger) Debug(msg string, keyvals ...interface{}) {
	l.entry.WithFields(fields(keyvals)).Debug(msg)
}

func (l *logrusLogger) Info(msg string, keyvals ...interface{}) {
	l.entry.WithFields(fields(keyvals)).Info(msg)
}

func (l *logrusLogger) Warn(msg string, keyvals ...interface{}) {
	l.entry.WithFields(fields(keyvals)).Warn(msg)
}

func (l *logrusLogger) Error(msg string, keyvals ...interface{}) {
	l.entry.WithFields(fields(keyvals)).Error(msg)
}

// With returns a child logger that always carries keyvals
func (l *logrusLogger) With(keyvals ...interface{}) Logger {
	return &logrusLogger{entry: l.entry.WithFields(fields(keyvals))}
}

func fields(keyvals []interface{}) logrus.Fields {
	f := make(logrus.Fields, (len(keyvals)+1)/2)

	for i := 0; i < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", keyvals[i])
		}

		if i+1 < len(keyvals) {
			f[key] = keyvals[i+1]
		} else {
			f[key] = "missing"
		}
	}

	return f
}

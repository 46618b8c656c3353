package logger

import (
	"io"

	"github.com/ideamans/go-l10n"
	"github.com/sirupsen/logrus"
	"github.com/user/framepace/pkg/ports"
)

// Format selects the line format of a StructuredLogger.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// StructuredLogger emits leveled key/value records through logrus.
// Messages are translated the same way as ConsoleLogger.
type StructuredLogger struct {
	entry *logrus.Entry
}

// NewStructured creates a structured logger writing to w.
func NewStructured(level ports.LogLevel, format Format, w io.Writer) *StructuredLogger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(toLogrusLevel(level))
	switch format {
	case FormatJSON:
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	}
	if level == ports.LevelQuiet {
		l.SetOutput(io.Discard)
	}
	return &StructuredLogger{entry: logrus.NewEntry(l)}
}

func toLogrusLevel(level ports.LogLevel) logrus.Level {
	switch level {
	case ports.LevelDebug:
		return logrus.DebugLevel
	case ports.LevelWarn:
		return logrus.WarnLevel
	case ports.LevelError, ports.LevelQuiet:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Debug logs a debug record. The message is only formatted when debug is enabled.
func (l *StructuredLogger) Debug(msg string, args ...interface{}) {
	if l.entry.Logger.IsLevelEnabled(logrus.DebugLevel) {
		l.entry.Debug(l10n.F(msg, args...))
	}
}

// Info logs an informational record.
func (l *StructuredLogger) Info(msg string, args ...interface{}) {
	l.entry.Info(l10n.F(msg, args...))
}

// Warn logs a warning record.
func (l *StructuredLogger) Warn(msg string, args ...interface{}) {
	l.entry.Warn(l10n.F(msg, args...))
}

// Error logs an error record.
func (l *StructuredLogger) Error(msg string, args ...interface{}) {
	l.entry.Error(l10n.F(msg, args...))
}

// WithComponent tags records with a "component" field.
func (l *StructuredLogger) WithComponent(component string) ports.Logger {
	return &StructuredLogger{entry: l.entry.WithField("component", component)}
}

// WithField returns a logger that adds key=value to every record.
func (l *StructuredLogger) WithField(key string, value interface{}) ports.Logger {
	return &StructuredLogger{entry: l.entry.WithField(key, value)}
}

var _ ports.Logger = (*StructuredLogger)(nil)

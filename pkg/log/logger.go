package log

import (
	"strings"

	"github.com/tacusci/logging/v2"
)

// Logger is the logging capability handed to pipeline components
// at construction time.
type Logger interface {
	Debug(format string, a ...interface{})
	Info(format string, a ...interface{})
	Warn(format string, a ...interface{})
	Error(format string, a ...interface{})
}

// Default returns a Logger which writes through tacusci/logging.
func Default() Logger {
	return tacusciLogger{}
}

// Nop returns a Logger which discards everything.
func Nop() Logger {
	return nopLogger{}
}

// WithPrefix returns a Logger which prefixes every line with the
// given label, e.g. "[camera]".
func WithPrefix(l Logger, prefix string) Logger {
	if l == nil {
		l = Nop()
	}
	return prefixLogger{l: l, prefix: "[" + prefix + "] "}
}

// SetLevel configures the level of the process wide tacusci logger.
// Unknown names fall back to warn.
func SetLevel(name string) {
	logging.CallbackLabelLevel = 5
	logging.ColorLogLevelLabelOnly = true
	switch strings.ToLower(name) {
	case "debug":
		logging.CurrentLoggingLevel = logging.DebugLevel
		logging.CallbackLabel = true
	case "info":
		logging.CurrentLoggingLevel = logging.InfoLevel
	case "silent":
		logging.CurrentLoggingLevel = logging.SilentLevel
	default:
		logging.CurrentLoggingLevel = logging.WarnLevel
	}
}

type tacusciLogger struct{}

func (tacusciLogger) Debug(format string, a ...interface{}) {
	logging.Debug(format, a...) //nolint
}

func (tacusciLogger) Info(format string, a ...interface{}) {
	logging.Info(format, a...) //nolint
}

func (tacusciLogger) Warn(format string, a ...interface{}) {
	logging.Warn(format, a...) //nolint
}

func (tacusciLogger) Error(format string, a ...interface{}) {
	logging.Error(format, a...) //nolint
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

type prefixLogger struct {
	l      Logger
	prefix string
}

func (p prefixLogger) Debug(format string, a ...interface{}) { p.l.Debug(p.prefix+format, a...) }
func (p prefixLogger) Info(format string, a ...interface{})  { p.l.Info(p.prefix+format, a...) }
func (p prefixLogger) Warn(format string, a ...interface{})  { p.l.Warn(p.prefix+format, a...) }
func (p prefixLogger) Error(format string, a ...interface{}) { p.l.Error(p.prefix+format, a...) }

package log

import (
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

type Fields = logrus.Fields

var logger = logrus.New()

// Converts a level name from the configuration to a logrus level.
// Unknown names fall back to info.
func FromString(level string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case DebugLevel:
		return logrus.DebugLevel
	case WarnLevel, "warning":
		return logrus.WarnLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	case "trace":
		return logrus.TraceLevel
	default:
		return logrus.InfoLevel
	}
}

func SetLogLevel(level logrus.Level) {
	logger.SetLevel(level)
}

func SetLogFormatter(formatter logrus.Formatter) {
	logger.SetFormatter(formatter)
}

// Logger exposes the underlying logger, mostly for tests that need to
// swap the output or register hooks.
func Logger() *logrus.Logger {
	return logger
}

func IsDebug() bool {
	return logger.IsLevelEnabled(logrus.DebugLevel)
}

func Debug(args ...interface{}) {
	logger.Debug(args...)
}

func Info(args ...interface{}) {
	logger.Info(args...)
}

func Warn(args ...interface{}) {
	logger.Warn(args...)
}

func Error(args ...interface{}) {
	logger.Error(args...)
}

// Fatal logs and terminates the process with exit status 1
func Fatal(args ...interface{}) {
	logger.Fatal(args...)
}

func DebugWithFields(msg string, fields Fields) {
	logger.WithFields(fields).Debug(msg)
}

func InfoWithFields(msg string, fields Fields) {
	logger.WithFields(fields).Info(msg)
}

func WarnWithFields(msg string, fields Fields) {
	logger.WithFields(fields).Warn(msg)
}

func ErrorWithFields(msg string, fields Fields) {
	logger.WithFields(fields).Error(msg)
}

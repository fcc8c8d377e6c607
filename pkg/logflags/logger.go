package logflags

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Logger is the generic logging interface used across the codebase.
type Logger interface {
	// WithField returns a new Logger enriched with the given field.
	WithField(key string, value interface{}) Logger
	// WithFields returns a new Logger enriched with the given fields.
	WithFields(fields Fields) Logger
	// WithError returns a new Logger enriched with the given error.
	WithError(err error) Logger

	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})

	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
}

// LoggerFactory is used to create new Logger instances.
// SetLoggerFactory can be used to configure it.
//
// The given parameters fields and out can both be nil.
type LoggerFactory func(flag bool, fields Fields, out io.Writer) Logger

var loggerFactory LoggerFactory

// SetLoggerFactory will ensure that every Logger created by this package
// will from now on be created by the given LoggerFactory. Default behavior
// is a logrus based Logger writing to logOut.
func SetLoggerFactory(lf LoggerFactory) {
	loggerFactory = lf
}

// Fields wraps the set of structured fields attached to a Logger.
type Fields map[string]interface{}

var logOut io.WriteCloser

var colorOut io.Writer
var forceColors bool

// UseColors routes default logging through out with ANSI colors forced.
// A --log-output destination file still takes precedence.
func UseColors(out io.Writer) {
	colorOut = out
	forceColors = true
}

func makeLogger(flag bool, fields Fields) Logger {
	if loggerFactory != nil {
		return loggerFactory(flag, fields, logOut)
	}
	logger := logrus.New().WithFields(logrus.Fields(fields))
	logger.Logger.Level = logrus.DebugLevel
	if !flag {
		logger.Logger.Level = logrus.ErrorLevel
	}
	if forceColors {
		logger.Logger.Formatter = &logrus.TextFormatter{ForceColors: true}
		if colorOut != nil {
			logger.Logger.Out = colorOut
		}
	}
	if logOut != nil {
		logger.Logger.Out = logOut
	}
	return &logrusLogger{logger}
}

type logrusLogger struct {
	*logrus.Entry
}

func (l *logrusLogger) WithField(key string, value interface{}) Logger {
	return &logrusLogger{l.Entry.WithField(key, value)}
}

func (l *logrusLogger) WithFields(fields Fields) Logger {
	return &logrusLogger{l.Entry.WithFields(logrus.Fields(fields))}
}

func (l *logrusLogger) WithError(err error) Logger {
	return &logrusLogger{l.Entry.WithError(err)}
}

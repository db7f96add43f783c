// Package utils holds small pieces of ambient infrastructure shared across
// packages: the Logger interface with its default and no-op
// implementations, and a handful of numeric helpers.
package utils

import (
	"log"
	"os"
	"strconv"
	"time"
)

// LogLevel selects which log calls actually produce output.
type LogLevel uint8

const (
	logEnv = "DRAFTQUIC_LOG_LEVEL"

	LogLevelNothing LogLevel = 0
	LogLevelError   LogLevel = 1
	LogLevelInfo    LogLevel = 2
	LogLevelDebug   LogLevel = 3
)

// Logger is the interface every package logs through. DefaultLogger wraps
// the standard library logger; connections can be given any other
// implementation via Config.Logger.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debug() bool
	WithPrefix(prefix string) Logger
}

type defaultLogger struct {
	prefix     string
	level      LogLevel
	timeFormat string
}

// DefaultLogger reads its level from the DRAFTQUIC_LOG_LEVEL environment
// variable at construction time.
func DefaultLogger() Logger {
	l := &defaultLogger{}
	l.readEnv()
	return l
}

func (l *defaultLogger) readEnv() {
	env := os.Getenv(logEnv)
	if env == "" {
		return
	}
	level, err := strconv.Atoi(env)
	if err != nil {
		return
	}
	l.level = LogLevel(level)
}

func (l *defaultLogger) WithPrefix(prefix string) Logger {
	p := prefix
	if l.prefix != "" {
		p = l.prefix + " " + prefix
	}
	return &defaultLogger{prefix: p, level: l.level, timeFormat: l.timeFormat}
}

func (l *defaultLogger) Debug() bool { return l.level == LogLevelDebug }

func (l *defaultLogger) Debugf(format string, args ...interface{}) {
	if l.level >= LogLevelDebug {
		l.log(format, args...)
	}
}

func (l *defaultLogger) Infof(format string, args ...interface{}) {
	if l.level >= LogLevelInfo {
		l.log(format, args...)
	}
}

func (l *defaultLogger) Errorf(format string, args ...interface{}) {
	if l.level >= LogLevelError {
		l.log(format, args...)
	}
}

func (l *defaultLogger) log(format string, args ...interface{}) {
	msg := format
	if l.prefix != "" {
		msg = l.prefix + " " + msg
	}
	if l.timeFormat != "" {
		log.Printf(time.Now().Format(l.timeFormat)+" "+msg, args...)
		return
	}
	log.Printf(msg, args...)
}

// NopLogger discards everything; useful in tests that don't want log noise.
var NopLogger Logger = &nopLogger{}

type nopLogger struct{}

func (*nopLogger) Debugf(string, ...interface{}) {}
func (*nopLogger) Infof(string, ...interface{})  {}
func (*nopLogger) Errorf(string, ...interface{}) {}
func (*nopLogger) Debug() bool                   { return false }
func (*nopLogger) WithPrefix(string) Logger      { return &nopLogger{} }

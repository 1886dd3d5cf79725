// Package logging holds the logger shared by every package of this module.
package logging

import (
	"io"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

var loggerPtr atomic.Pointer[log.Logger]

func newNopLogger() *log.Logger {
	l := log.New()
	l.SetOutput(io.Discard)
	l.SetLevel(log.PanicLevel)
	return l
}

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger replaces the active logger. Passing nil restores the default,
// which discards everything.
func SetLogger(l *log.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the active logger.
func Logger() *log.Logger {
	return loggerPtr.Load()
}

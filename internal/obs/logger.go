package obs

import (
	"log"
	"os"
)

// Logger is the narrow logging surface the archive core depends on. It
// exists so callers can plug in their own structured logger without this
// module importing one; the default wraps the standard library's log
// package.
type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

// StdLogger adapts *log.Logger to Logger.
type StdLogger struct {
	debug *log.Logger
	warn  *log.Logger
}

// NewStdLogger returns a Logger writing to os.Stderr with level prefixes.
func NewStdLogger() *StdLogger {
	return &StdLogger{
		debug: log.New(os.Stderr, "DEBUG vaultarc: ", log.LstdFlags),
		warn:  log.New(os.Stderr, "WARN vaultarc: ", log.LstdFlags),
	}
}

func (l *StdLogger) Debugf(format string, args ...any) {
	l.debug.Printf(format, args...)
}

func (l *StdLogger) Warnf(format string, args ...any) {
	l.warn.Printf(format, args...)
}

// NopLogger discards everything. It is the default when no Logger is
// configured.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any) {}
func (NopLogger) Warnf(string, ...any)  {}

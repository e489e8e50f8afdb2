// Package log is the daemon's shared logging backend: one btclog.Backend
// writing to stdout, handing out a per-subsystem btclog.Logger to every
// package the way lnd's build.NewSubLogger does. Packages that need their
// own leveled logger call NewSubLogger once in a small log.go of their own;
// call sites that just want to log something quickly use the package-level
// Errorf/Infof/Debugf below, which go through a "DEFU" subsystem logger.
package log

import (
	"fmt"
	"os"
	"sync"

	"github.com/btcsuite/btclog"
)

var backend = btclog.NewBackend(os.Stdout)

var (
	subsystemsMu sync.Mutex
	subsystems   = make(map[string]btclog.Logger)
)

// NewSubLogger returns a leveled logger tagged with subsystem, e.g. "ACCT"
// for the accounts package or "ENGN" for the execution engine. Every logger
// handed out this way is tracked so a later SetLevel call reaches it too,
// the same registry lnd's build package keeps of its subsystem loggers.
func NewSubLogger(subsystem string) btclog.Logger {
	logger := backend.Logger(subsystem)
	logger.SetLevel(btclog.LevelInfo)

	subsystemsMu.Lock()
	subsystems[subsystem] = logger
	subsystemsMu.Unlock()

	return logger
}

var defaultLogger = NewSubLogger("DEFU")

// SetLevel changes the level of every subsystem logger created through this
// package so far.
func SetLevel(level btclog.Level) {
	subsystemsMu.Lock()
	defer subsystemsMu.Unlock()
	for _, logger := range subsystems {
		logger.SetLevel(level)
	}
}

// ParseLevel maps a config-file level name to a btclog.Level, the same set
// of names lnd's --debuglevel flag accepts.
func ParseLevel(name string) (btclog.Level, error) {
	level, ok := btclog.LevelFromString(name)
	if !ok {
		return 0, fmt.Errorf("log: unknown level %q", name)
	}
	return level, nil
}

func Tracef(format string, args ...interface{}) { defaultLogger.Tracef(format, args...) }
func Debugf(format string, args ...interface{}) { defaultLogger.Debugf(format, args...) }
func Infof(format string, args ...interface{})  { defaultLogger.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { defaultLogger.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { defaultLogger.Errorf(format, args...) }

// Package logging carries the process-wide logger used by the fsq engine.
package logging

import (
	logsdk "github.com/995933447/log-go"
	"github.com/995933447/log-go/impl/loggerwriter"
	"github.com/995933447/std-go/print"
)

// Logger is used by the engine for backlog-rescan errors, policy-violation
// recovery and recovered processor panics. It is a package var, not an
// injected dependency: every package logs through this one shared value.
var Logger *logsdk.Logger

func init() {
	Logger = logsdk.NewLogger(loggerwriter.NewStdoutLoggerWriter(print.ColorNil))
	Logger.SetLogLevel(logsdk.LevelDebug)
}

// SetLogger overrides the package logger, useful for embedding applications
// that already run their own log-go sink.
func SetLogger(l *logsdk.Logger) {
	if l == nil {
		return
	}
	Logger = l
}

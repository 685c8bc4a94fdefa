package main

import (
	"fmt"

	"github.com/pterm/pterm"
)

// logger adapts pterm's structured logger to ota.Logger, manifest.Logger,
// display.Logger and ble.Logger.
type logger struct {
	l pterm.Logger
}

func newLogger(level string) *logger {
	l := pterm.DefaultLogger
	l.ShowTime = true
	l.TimeFormat = "02 Jan 15:04:05"
	l.MaxWidth = 1000
	l.Level = parseLevel(level)
	return &logger{l: l}
}

func parseLevel(level string) pterm.LogLevel {
	switch level {
	case "debug":
		return pterm.LogLevelDebug
	case "warn":
		return pterm.LogLevelWarn
	case "error":
		return pterm.LogLevelError
	default:
		return pterm.LogLevelInfo
	}
}

func (g *logger) Debug(msg string, keysAndValues ...interface{}) {
	g.l.Debug(msg, g.l.Args(keysAndValues...))
}

func (g *logger) Info(msg string, keysAndValues ...interface{}) {
	g.l.Info(msg, g.l.Args(keysAndValues...))
}

func (g *logger) Warn(msg string, keysAndValues ...interface{}) {
	g.l.Warn(msg, g.l.Args(keysAndValues...))
}

func (g *logger) Error(msg string, keysAndValues ...interface{}) {
	g.l.Error(msg, g.l.Args(keysAndValues...))
}

// cronLogger satisfies cron.Logger.
type cronLogger struct {
	g *logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.g.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.g.Error(fmt.Sprintf("cron: %s: %v", msg, err), keysAndValues...)
}

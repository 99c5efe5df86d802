package main

import (
	"github.com/pion/logging"
	"github.com/sirupsen/logrus"
)

// logrusAdapter satisfies pion/logging.LeveledLogger by delegating to a
// *logrus.Logger, matching stund's package-level logrus.New() convention
// for the server's default logger (before a config-driven level/scope is
// applied).
type logrusAdapter struct {
	*logrus.Logger
}

func newLogrusAdapter() logging.LeveledLogger {
	l := logrus.New()
	return logrusAdapter{Logger: l}
}

func (l logrusAdapter) Trace(msg string)                          { l.Logger.Trace(msg) }
func (l logrusAdapter) Tracef(format string, args ...interface{})  { l.Logger.Tracef(format, args...) }
func (l logrusAdapter) Debug(msg string)                           { l.Logger.Debug(msg) }
func (l logrusAdapter) Debugf(format string, args ...interface{})  { l.Logger.Debugf(format, args...) }
func (l logrusAdapter) Info(msg string)                            { l.Logger.Info(msg) }
func (l logrusAdapter) Infof(format string, args ...interface{})   { l.Logger.Infof(format, args...) }
func (l logrusAdapter) Warn(msg string)                            { l.Logger.Warn(msg) }
func (l logrusAdapter) Warnf(format string, args ...interface{})   { l.Logger.Warnf(format, args...) }
func (l logrusAdapter) Error(msg string)                           { l.Logger.Error(msg) }
func (l logrusAdapter) Errorf(format string, args ...interface{})  { l.Logger.Errorf(format, args...) }

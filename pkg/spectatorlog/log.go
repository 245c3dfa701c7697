// Package spectatorlog is the spectator client library's logging entry
// point: a thin wrapper over cc-lib's ccLogger, the same leveled,
// component-tagged logger the teacher's taskmanager, metricstore, and
// config validation use throughout (see e.g.
// internal/taskmanager/taskManager.go's cclog.Errorf/cclog.Warnf calls
// and pkg/metricstore/healthcheck.go's cclog.ComponentDebug). Fatal is
// reserved for unrecoverable startup misconfiguration, mirroring
// internal/config/validate.go's cclog.Fatal(err) on a failed config
// load; it is never called from the hot path or a background task.
package spectatorlog

import (
	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
)

var (
	level       = "info"
	logDateTime = true
)

// SetLevel sets the minimum logged level ("debug", "info", "warn",
// "err"), delegating to cclog.Init exactly as the teacher's own test
// setup does (e.g. internal/repository/node_test.go's cclog.Init("debug", true)).
func SetLevel(lvl string) {
	level = lvl
	cclog.Init(level, logDateTime)
}

// SetLogDateTime toggles the timestamp prefix cclog adds to each line.
func SetLogDateTime(v bool) {
	logDateTime = v
	cclog.Init(level, logDateTime)
}

func Debug(v ...any) { cclog.Debug(v...) }
func Info(v ...any)  { cclog.Info(v...) }
func Warn(v ...any)  { cclog.Warn(v...) }
func Error(v ...any) { cclog.Error(v...) }

// Fatal logs at error level and exits.
func Fatal(v ...any) { cclog.Fatal(v...) }

func Debugf(format string, v ...any) { cclog.Debugf(format, v...) }
func Infof(format string, v ...any)  { cclog.Infof(format, v...) }
func Warnf(format string, v ...any)  { cclog.Warnf(format, v...) }
func Errorf(format string, v ...any) { cclog.Errorf(format, v...) }

func Fatalf(format string, v ...any) { cclog.Fatalf(format, v...) }

// ComponentDebug, ComponentWarn, and ComponentError prefix the message
// with a bracketed component tag, matching the call shape
// pkg/metricstore/healthcheck.go uses for cclog.ComponentDebug.
func ComponentDebug(component string, v ...any) { cclog.ComponentDebug(component, v...) }
func ComponentWarn(component string, v ...any)  { cclog.ComponentWarn(component, v...) }
func ComponentError(component string, v ...any) { cclog.ComponentError(component, v...) }

package spectatorlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestSetLevelTracksLastLevelAndDateTime pins that SetLevel/SetLogDateTime
// delegate to cclog.Init and remember the last (level, logDateTime) pair,
// so toggling the timestamp flag alone doesn't silently reset an
// operator's chosen level back to cclog's default.
func TestSetLevelTracksLastLevelAndDateTime(t *testing.T) {
	defer SetLevel("info")

	for _, lvl := range []string{"debug", "info", "warn", "err"} {
		SetLevel(lvl)
		assert.Equal(t, lvl, level)
	}

	SetLogDateTime(false)
	assert.False(t, logDateTime)
	assert.Equal(t, "err", level, "SetLogDateTime must not disturb the current level")

	SetLogDateTime(true)
	assert.True(t, logDateTime)
}

// TestLoggingFunctionsDoNotPanic is a smoke test: every exported logging
// function must be safe to call regardless of the current level, since
// these are invoked from the registry, scheduler, and publish client on
// paths that must never fail a caller's own operation.
func TestLoggingFunctionsDoNotPanic(t *testing.T) {
	Debug("debug", "message")
	Info("info", "message")
	Warn("warn", "message")
	Error("error", "message")
	Debugf("debug %d", 1)
	Infof("info %d", 1)
	Warnf("warn %d", 1)
	Errorf("error %d", 1)
	ComponentDebug("test", "debug")
	ComponentWarn("test", "warn")
	ComponentError("test", "error")
}

package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLevel(t *testing.T) {
	assert.Equal(t, zapcore.InfoLevel, Level("production"))
	assert.Equal(t, zapcore.DebugLevel, Level("development"))
	assert.Equal(t, zapcore.DebugLevel, Level("test"))
}

func TestNew_ProductionDropsDebug(t *testing.T) {
	l := New("production")
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))

	l = New("development")
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestSet_ReplacesGlobals(t *testing.T) {
	prev := Log
	t.Cleanup(func() { Set(prev) })

	core, logs := observer.New(zap.InfoLevel)
	Set(zap.New(core))

	Sugar.Infof("hello %s", "world")

	assert.Equal(t, 1, logs.Len())
	assert.Equal(t, "hello world", logs.All()[0].Message)
}

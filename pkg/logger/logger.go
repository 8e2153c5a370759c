package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	Log   *zap.Logger        = zap.NewNop()
	Sugar *zap.SugaredLogger = Log.Sugar()
)

// New builds the JSON logger for the given environment. Production logs at
// info and above; every other environment also emits debug lines.
func New(env string) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	encoder := zapcore.NewJSONEncoder(encoderConfig)
	writer := zapcore.AddSync(os.Stdout)

	core := zapcore.NewCore(encoder, writer, Level(env))

	return zap.New(core, zap.AddCaller()).With(zap.String("env", env))
}

// Level returns the minimum enabled level for env.
func Level(env string) zapcore.Level {
	if env == "production" {
		return zapcore.InfoLevel
	}
	return zapcore.DebugLevel
}

// Init initializes the global logger configuration and returns it.
func Init(env string) *zap.Logger {
	Set(New(env))
	return Log
}

// Set replaces the package globals; tests use it to install an observer.
func Set(l *zap.Logger) {
	Log = l
	Sugar = l.Sugar()
}

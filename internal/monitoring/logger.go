package monitoring

import (
	"log"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger or UseZap. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// NewZapLogger builds the structured logger used by the cane binaries.
// Development mode switches to the console encoder with debug level.
func NewZapLogger(development bool) (*zap.Logger, error) {
	if development {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return cfg.Build()
	}
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// UseZap routes Logf through the given zap logger at info level and returns
// a function that restores the previous logger.
func UseZap(logger *zap.Logger) (restore func()) {
	previous := Logf
	if logger == nil {
		return func() { Logf = previous }
	}
	sugar := logger.WithOptions(zap.AddCallerSkip(1)).Sugar()
	Logf = sugar.Infof
	return func() {
		_ = sugar.Sync()
		Logf = previous
	}
}
